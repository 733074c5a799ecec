// Package data provides DB models and stores.
package data

import (
	"fmt"

	"gorm.io/gorm"
)

// Migrate creates or updates the relational schema.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&User{}, &Job{}, &Proposal{}, &Message{}, &Ticket{}, &Activity{}); err != nil {
		return fmt.Errorf("auto-migrate: %w", err)
	}
	return nil
}

// Stores groups the per-table stores behind one handle.
type Stores struct {
	Users      *UsersStore
	Jobs       *JobsStore
	Proposals  *ProposalsStore
	Messages   *MessagesStore
	Tickets    *TicketsStore
	Activities ActivityStore
}

// NewStores wires every store to db. Activities default to the relational
// table; callers may swap in a MongoActivityStore.
func NewStores(db *gorm.DB) *Stores {
	return &Stores{
		Users:      NewUsersStore(db),
		Jobs:       NewJobsStore(db),
		Proposals:  NewProposalsStore(db),
		Messages:   NewMessagesStore(db),
		Tickets:    NewTicketsStore(db),
		Activities: NewGormActivityStore(db),
	}
}

func clampLimit(limit, def, max int) int {
	if limit <= 0 {
		return def
	}
	if limit > max {
		return max
	}
	return limit
}
