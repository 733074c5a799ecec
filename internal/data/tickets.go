package data

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// TicketsStore performs support ticket DB operations.
type TicketsStore struct {
	db *gorm.DB
}

// NewTicketsStore returns a TicketsStore using the provided handle.
func NewTicketsStore(db *gorm.DB) *TicketsStore {
	return &TicketsStore{db: db}
}

// CreateTicket inserts an open ticket with a fresh public reference.
func (t *TicketsStore) CreateTicket(ctx context.Context, tk *Ticket) error {
	tk.Reference = uuid.NewString()
	tk.Status = TicketOpen
	if tk.Priority == "" {
		tk.Priority = PriorityNormal
	}
	tk.CreatedAt = time.Now().UTC()
	return translate(t.db.WithContext(ctx).Create(tk).Error)
}

// ListTickets returns tickets newest first, optionally only those in status.
func (t *TicketsStore) ListTickets(ctx context.Context, status TicketStatus, limit int) ([]Ticket, error) {
	q := t.db.WithContext(ctx).Order("created_at DESC, id DESC").Limit(clampLimit(limit, 100, 500))
	if status != "" {
		q = q.Where("status = ?", status)
	}
	tickets := []Ticket{}
	if err := q.Find(&tickets).Error; err != nil {
		return nil, err
	}
	return tickets, nil
}
