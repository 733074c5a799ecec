package data

import (
	"context"
	"time"

	"gorm.io/gorm"
)

// ActivityStore records and lists feed activities.
type ActivityStore interface {
	Record(ctx context.Context, a *Activity) error
	Recent(ctx context.Context, limit int) ([]Activity, error)
}

// GormActivityStore keeps activities in the relational activities table.
type GormActivityStore struct {
	db *gorm.DB
}

// NewGormActivityStore returns a GormActivityStore using the provided handle.
func NewGormActivityStore(db *gorm.DB) *GormActivityStore {
	return &GormActivityStore{db: db}
}

// Record inserts a.
func (s *GormActivityStore) Record(ctx context.Context, a *Activity) error {
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	return translate(s.db.WithContext(ctx).Create(a).Error)
}

// Recent returns the newest activities first.
func (s *GormActivityStore) Recent(ctx context.Context, limit int) ([]Activity, error) {
	out := []Activity{}
	err := s.db.WithContext(ctx).
		Order("created_at DESC, id DESC").
		Limit(clampLimit(limit, 50, 200)).
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}
