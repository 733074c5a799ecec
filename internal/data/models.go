package data

import (
	"time"

	"gorm.io/datatypes"
)

// User maps to the users table. Password holds the bcrypt hash of the local
// credential and never leaves the server.
type User struct {
	ID            int64                       `gorm:"primaryKey" json:"id"`
	ProviderID    *string                     `gorm:"uniqueIndex" json:"providerId,omitempty"`
	Email         string                      `gorm:"uniqueIndex;not null" json:"email"`
	Username      string                      `gorm:"uniqueIndex;not null" json:"username"`
	FullName      string                      `json:"fullName"`
	Password      string                      `gorm:"not null" json:"-"`
	Role          Role                        `gorm:"type:varchar(20);not null;index" json:"role"`
	WalletBalance float64                     `gorm:"not null;default:0" json:"walletBalance"`
	Permissions   datatypes.JSONSlice[string] `json:"permissions"`
	Active        bool                        `gorm:"not null" json:"active"`
	CreatedAt     time.Time                   `json:"createdAt"`
	UpdatedAt     time.Time                   `json:"updatedAt"`
}

// Job is a posting by a client.
type Job struct {
	ID          int64                       `gorm:"primaryKey" json:"id"`
	ClientID    int64                       `gorm:"not null;index" json:"clientId"`
	Title       string                      `gorm:"not null" json:"title"`
	Description string                      `json:"description"`
	Category    string                      `gorm:"index" json:"category"`
	Skills      datatypes.JSONSlice[string] `json:"skills"`
	Budget      *float64                    `json:"budget,omitempty"`
	HourlyRate  *float64                    `json:"hourlyRate,omitempty"`
	Status      JobStatus                   `gorm:"type:varchar(20);not null;index;default:open" json:"status"`
	CreatedAt   time.Time                   `gorm:"index" json:"createdAt"`
}

// Proposal is a freelancer's bid on a job.
type Proposal struct {
	ID                int64          `gorm:"primaryKey" json:"id"`
	JobID             int64          `gorm:"not null;index;uniqueIndex:idx_proposal_job_freelancer" json:"jobId"`
	FreelancerID      int64          `gorm:"not null;index;uniqueIndex:idx_proposal_job_freelancer" json:"freelancerId"`
	BidAmount         float64        `gorm:"not null" json:"bidAmount"`
	EstimatedDuration string         `json:"estimatedDuration"`
	CoverLetter       string         `json:"coverLetter"`
	Status            ProposalStatus `gorm:"type:varchar(20);not null;default:pending" json:"status"`
	CreatedAt         time.Time      `json:"createdAt"`
}

// MaxMessageLength caps message content, in runes after trimming.
const MaxMessageLength = 4000

// Message is a directed message between two users. Only Read changes after
// insert, and only from false to true.
type Message struct {
	ID         int64     `gorm:"primaryKey" json:"id"`
	SenderID   int64     `gorm:"not null;index:idx_messages_pair,priority:1" json:"senderId"`
	ReceiverID int64     `gorm:"not null;index:idx_messages_pair,priority:2;index" json:"receiverId"`
	JobID      *int64    `json:"jobId,omitempty"`
	Content    string    `gorm:"not null" json:"content"`
	CreatedAt  time.Time `gorm:"index" json:"createdAt"`
	Read       bool      `gorm:"not null;default:false" json:"read"`
}

// Counterpart returns the other party of m relative to userID.
func (m Message) Counterpart(userID int64) int64 {
	if m.SenderID == userID {
		return m.ReceiverID
	}
	return m.SenderID
}

// Ticket is a support request.
type Ticket struct {
	ID          int64          `gorm:"primaryKey" json:"id"`
	Reference   string         `gorm:"uniqueIndex;not null" json:"reference"`
	UserID      int64          `gorm:"not null;index" json:"userId"`
	Subject     string         `gorm:"not null" json:"subject"`
	Description string         `json:"description"`
	Priority    TicketPriority `gorm:"type:varchar(10);not null;default:normal" json:"priority"`
	Status      TicketStatus   `gorm:"type:varchar(10);not null;default:open" json:"status"`
	CreatedAt   time.Time      `json:"createdAt"`
}

// Activity is one entry of the activity feed. Metadata holds the JSON form
// of the typed payload; use Payload to read it.
type Activity struct {
	ID        int64          `gorm:"primaryKey" json:"id"`
	Type      ActivityType   `gorm:"type:varchar(32);not null;index" json:"type"`
	ActorID   int64          `gorm:"not null;index" json:"actorId"`
	Metadata  datatypes.JSON `json:"metadata"`
	CreatedAt time.Time      `gorm:"index" json:"createdAt"`
}
