package data

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
)

// ProposalsStore performs proposal DB operations.
type ProposalsStore struct {
	db *gorm.DB
}

// NewProposalsStore returns a ProposalsStore using the provided handle.
func NewProposalsStore(db *gorm.DB) *ProposalsStore {
	return &ProposalsStore{db: db}
}

// CreateProposal inserts a pending proposal. A freelancer may bid once per
// job; a second bid fails with ErrConflict.
func (p *ProposalsStore) CreateProposal(ctx context.Context, prop *Proposal) error {
	prop.Status = ProposalPending
	prop.CreatedAt = time.Now().UTC()
	return translate(p.db.WithContext(ctx).Create(prop).Error)
}

// GetProposal finds a proposal by id.
func (p *ProposalsStore) GetProposal(ctx context.Context, id int64) (*Proposal, error) {
	var prop Proposal
	if err := p.db.WithContext(ctx).First(&prop, id).Error; err != nil {
		return nil, translate(err)
	}
	return &prop, nil
}

// ProposalFilter narrows ListProposals. ClientID restricts to proposals on
// jobs owned by that client.
type ProposalFilter struct {
	JobID        *int64
	FreelancerID *int64
	ClientID     *int64
	Limit        int
}

// ListProposals returns proposals newest first.
func (p *ProposalsStore) ListProposals(ctx context.Context, f ProposalFilter) ([]Proposal, error) {
	q := p.db.WithContext(ctx).Model(&Proposal{}).
		Order("proposals.created_at DESC, proposals.id DESC").
		Limit(clampLimit(f.Limit, 100, 500))
	if f.JobID != nil {
		q = q.Where("proposals.job_id = ?", *f.JobID)
	}
	if f.FreelancerID != nil {
		q = q.Where("proposals.freelancer_id = ?", *f.FreelancerID)
	}
	if f.ClientID != nil {
		q = q.Joins("JOIN jobs ON jobs.id = proposals.job_id").Where("jobs.client_id = ?", *f.ClientID)
	}
	props := []Proposal{}
	if err := q.Find(&props).Error; err != nil {
		return nil, err
	}
	return props, nil
}

// DecideProposal accepts or rejects a pending proposal. Accepting moves the
// job from open to in_progress in the same transaction.
func (p *ProposalsStore) DecideProposal(ctx context.Context, id int64, status ProposalStatus) (*Proposal, error) {
	if status != ProposalAccepted && status != ProposalRejected {
		return nil, ErrInvalidTransition
	}
	var out Proposal
	err := p.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&out, id).Error; err != nil {
			return translate(err)
		}
		if out.Status != ProposalPending {
			return ErrInvalidTransition
		}
		res := tx.Model(&Proposal{}).Where("id = ? AND status = ?", id, ProposalPending).Update("status", status)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrInvalidTransition
		}
		out.Status = status
		if status == ProposalAccepted {
			if err := updateJobStatus(tx, out.JobID, JobOpen, JobInProgress); err != nil {
				if errors.Is(err, ErrNotFound) {
					return err
				}
				return ErrInvalidTransition
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}
