package storage

import (
	"context"
	"errors"
	"time"

	"github.com/cuongbtq/render-queue/internal/domain"
)

// ErrJobExists is returned by Put when the job id is already taken
var ErrJobExists = errors.New("job already exists")

// JobStore is the durable record store keyed by job id.
// Get returns domain.ErrJobNotFound for an unknown id. Update is applied only
// when the stored status is one of u.From; otherwise it returns
// domain.ErrJobNotFound or a *domain.TransitionError.
type JobStore interface {
	Put(ctx context.Context, job *domain.Job) error
	Get(ctx context.Context, jobID string) (*domain.Job, error)
	Update(ctx context.Context, jobID string, u domain.StatusUpdate) (*domain.Job, error)
	List(ctx context.Context, filter JobFilter) ([]domain.Job, error)
}

// JobFilter selects a page of jobs, newest first.
// List returns up to PageSize+1 rows so callers can tell whether a next page exists.
type JobFilter struct {
	UserID   string
	Status   domain.Status
	PageSize int
	Cursor   *JobCursor
}

// JobCursor is the keyset position of the last job on the previous page
type JobCursor struct {
	CreatedAt time.Time
	JobID     string
}

// DeadLetter is a queue message the worker gave up on
type DeadLetter struct {
	ID           int64     `db:"id" json:"id"`
	DedupID      string    `db:"dedup_id" json:"dedupId"`
	GroupID      string    `db:"group_id" json:"groupId"`
	Body         []byte    `db:"body" json:"body"`
	Reason       string    `db:"reason" json:"reason"`
	ReceiveCount int       `db:"receive_count" json:"receiveCount"`
	CreatedAt    time.Time `db:"created_at" json:"createdAt"`
}

// DeadLetterSink records poison messages for operators
type DeadLetterSink interface {
	RecordDeadLetter(ctx context.Context, dl *DeadLetter) error
	ListDeadLetters(ctx context.Context, limit int) ([]DeadLetter, error)
}

// before reports whether job sorts after the cursor in newest-first order
func (c *JobCursor) before(job *domain.Job) bool {
	if job.CreatedAt.Equal(c.CreatedAt) {
		return job.JobID < c.JobID
	}
	return job.CreatedAt.Before(c.CreatedAt)
}
