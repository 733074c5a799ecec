package data

// JobStatus is the lifecycle state of a job.
type JobStatus string

const (
	JobOpen       JobStatus = "open"
	JobInProgress JobStatus = "in_progress"
	JobCompleted  JobStatus = "completed"
	JobCanceled   JobStatus = "canceled"
)

// Valid reports whether s is a known job status.
func (s JobStatus) Valid() bool {
	switch s {
	case JobOpen, JobInProgress, JobCompleted, JobCanceled:
		return true
	}
	return false
}

// ProposalStatus is the decision state of a proposal.
type ProposalStatus string

const (
	ProposalPending  ProposalStatus = "pending"
	ProposalAccepted ProposalStatus = "accepted"
	ProposalRejected ProposalStatus = "rejected"
)

// Valid reports whether s is a known proposal status.
func (s ProposalStatus) Valid() bool {
	switch s {
	case ProposalPending, ProposalAccepted, ProposalRejected:
		return true
	}
	return false
}

// Badge is the label and color used to display a proposal status.
type Badge struct {
	Label string `json:"label"`
	Color string `json:"color"`
}

// Badge returns the display badge for s.
func (s ProposalStatus) Badge() Badge {
	switch s {
	case ProposalAccepted:
		return Badge{Label: "Accepted", Color: "green"}
	case ProposalRejected:
		return Badge{Label: "Rejected", Color: "red"}
	case ProposalPending:
		return Badge{Label: "Pending", Color: "yellow"}
	}
	return Badge{Label: string(s), Color: "gray"}
}

// TicketPriority ranks support tickets.
type TicketPriority string

const (
	PriorityLow    TicketPriority = "low"
	PriorityNormal TicketPriority = "normal"
	PriorityHigh   TicketPriority = "high"
)

// Valid reports whether p is a known priority.
func (p TicketPriority) Valid() bool {
	switch p {
	case PriorityLow, PriorityNormal, PriorityHigh:
		return true
	}
	return false
}

// TicketStatus is open or closed.
type TicketStatus string

const (
	TicketOpen   TicketStatus = "open"
	TicketClosed TicketStatus = "closed"
)
