package data

import (
	"encoding/json"
	"fmt"
)

// ActivityType names the kind of event an Activity records.
type ActivityType string

const (
	ActivityJobPosted         ActivityType = "job_posted"
	ActivityProposalSubmitted ActivityType = "proposal_submitted"
	ActivityMessageSent       ActivityType = "message_sent"
	ActivityContractCreated   ActivityType = "contract_created"
	ActivityPaymentReleased   ActivityType = "payment_released"
	ActivityReviewSubmitted   ActivityType = "review_submitted"
)

// ActivityPayload is the typed metadata of an activity. The set of
// implementations is closed to this package.
type ActivityPayload interface {
	ActivityType() ActivityType
	isActivityPayload()
}

type JobPosted struct {
	JobID    int64  `json:"jobId"`
	JobTitle string `json:"jobTitle"`
}

type ProposalSubmitted struct {
	JobID     int64   `json:"jobId"`
	JobTitle  string  `json:"jobTitle"`
	BidAmount float64 `json:"bidAmount"`
}

type MessageSent struct {
	CounterpartID int64  `json:"counterpartId"`
	Preview       string `json:"preview"`
}

type ContractCreated struct {
	JobID        int64  `json:"jobId"`
	JobTitle     string `json:"jobTitle"`
	FreelancerID int64  `json:"freelancerId"`
}

type PaymentReleased struct {
	Amount   float64 `json:"amount"`
	JobTitle string  `json:"jobTitle"`
}

type ReviewSubmitted struct {
	Rating   int    `json:"rating"`
	JobTitle string `json:"jobTitle"`
}

func (JobPosted) ActivityType() ActivityType         { return ActivityJobPosted }
func (ProposalSubmitted) ActivityType() ActivityType { return ActivityProposalSubmitted }
func (MessageSent) ActivityType() ActivityType       { return ActivityMessageSent }
func (ContractCreated) ActivityType() ActivityType   { return ActivityContractCreated }
func (PaymentReleased) ActivityType() ActivityType   { return ActivityPaymentReleased }
func (ReviewSubmitted) ActivityType() ActivityType   { return ActivityReviewSubmitted }

func (JobPosted) isActivityPayload()         {}
func (ProposalSubmitted) isActivityPayload() {}
func (MessageSent) isActivityPayload()       {}
func (ContractCreated) isActivityPayload()   {}
func (PaymentReleased) isActivityPayload()   {}
func (ReviewSubmitted) isActivityPayload()   {}

// NewActivity builds an Activity row for actorID from a typed payload.
func NewActivity(actorID int64, p ActivityPayload) (*Activity, error) {
	raw, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("encode %s payload: %w", p.ActivityType(), err)
	}
	return &Activity{
		Type:     p.ActivityType(),
		ActorID:  actorID,
		Metadata: raw,
	}, nil
}

// Payload decodes the activity metadata into its typed variant.
func (a *Activity) Payload() (ActivityPayload, error) {
	return DecodePayload(a.Type, a.Metadata)
}

// DecodePayload decodes raw metadata for the given activity type.
func DecodePayload(t ActivityType, raw []byte) (ActivityPayload, error) {
	var p ActivityPayload
	switch t {
	case ActivityJobPosted:
		p = &JobPosted{}
	case ActivityProposalSubmitted:
		p = &ProposalSubmitted{}
	case ActivityMessageSent:
		p = &MessageSent{}
	case ActivityContractCreated:
		p = &ContractCreated{}
	case ActivityPaymentReleased:
		p = &PaymentReleased{}
	case ActivityReviewSubmitted:
		p = &ReviewSubmitted{}
	default:
		return nil, fmt.Errorf("unknown activity type %q", t)
	}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, p); err != nil {
			return nil, fmt.Errorf("decode %s payload: %w", t, err)
		}
	}
	return deref(p), nil
}

// deref returns the value form of a freshly decoded payload pointer so
// callers can type-switch on value types.
func deref(p ActivityPayload) ActivityPayload {
	switch v := p.(type) {
	case *JobPosted:
		return *v
	case *ProposalSubmitted:
		return *v
	case *MessageSent:
		return *v
	case *ContractCreated:
		return *v
	case *PaymentReleased:
		return *v
	case *ReviewSubmitted:
		return *v
	}
	return p
}
