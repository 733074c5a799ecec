package data

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/Gee2424/HubFreelance-sub001/internal/normalize"
)

// JobsStore performs job DB operations.
type JobsStore struct {
	db *gorm.DB
}

// NewJobsStore returns a JobsStore using the provided handle.
func NewJobsStore(db *gorm.DB) *JobsStore {
	return &JobsStore{db: db}
}

// CreateJob inserts a job in the open state.
func (j *JobsStore) CreateJob(ctx context.Context, job *Job) error {
	job.Skills = normalize.Skills(job.Skills)
	job.Status = JobOpen
	job.CreatedAt = time.Now().UTC()
	return translate(j.db.WithContext(ctx).Create(job).Error)
}

// GetJob finds a job by id.
func (j *JobsStore) GetJob(ctx context.Context, id int64) (*Job, error) {
	var job Job
	if err := j.db.WithContext(ctx).First(&job, id).Error; err != nil {
		return nil, translate(err)
	}
	return &job, nil
}

// JobFilter narrows ListJobs. Zero fields match everything.
type JobFilter struct {
	ClientID *int64
	Status   JobStatus
	Category string
	Limit    int
}

// ListJobs returns jobs newest first.
func (j *JobsStore) ListJobs(ctx context.Context, f JobFilter) ([]Job, error) {
	q := j.db.WithContext(ctx).Order("created_at DESC, id DESC").Limit(clampLimit(f.Limit, 100, 500))
	if f.ClientID != nil {
		q = q.Where("client_id = ?", *f.ClientID)
	}
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if f.Category != "" {
		q = q.Where("category = ?", f.Category)
	}
	jobs := []Job{}
	if err := q.Find(&jobs).Error; err != nil {
		return nil, err
	}
	return jobs, nil
}

// UpdateJobStatus moves a job from one status to another. It fails with
// ErrInvalidTransition when the job is not currently in from.
func (j *JobsStore) UpdateJobStatus(ctx context.Context, id int64, from, to JobStatus) error {
	return updateJobStatus(j.db.WithContext(ctx), id, from, to)
}

func updateJobStatus(tx *gorm.DB, id int64, from, to JobStatus) error {
	res := tx.Model(&Job{}).Where("id = ? AND status = ?", id, from).Update("status", to)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		var count int64
		if err := tx.Model(&Job{}).Where("id = ?", id).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return ErrNotFound
		}
		return ErrInvalidTransition
	}
	return nil
}
