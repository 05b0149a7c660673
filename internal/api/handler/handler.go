package handler

import (
	"context"
	"log/slog"

	"github.com/cuongbtq/render-queue/internal/blob"
	"github.com/cuongbtq/render-queue/internal/domain"
	"github.com/cuongbtq/render-queue/internal/storage"
)

// JobSubmitter creates jobs
type JobSubmitter interface {
	Submit(ctx context.Context, designID, userID string, camera *domain.Camera) (string, error)
}

// JobReader reads job records
type JobReader interface {
	Get(ctx context.Context, jobID string) (*domain.Job, error)
	List(ctx context.Context, filter storage.JobFilter) ([]domain.Job, error)
}

// Pinger reports whether a backing service is reachable
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingFunc adapts a function to Pinger
type PingFunc func(ctx context.Context) error

func (f PingFunc) Ping(ctx context.Context) error {
	return f(ctx)
}

// Dependencies holds all dependencies needed by handlers
type Dependencies struct {
	Logger      *slog.Logger
	ServiceName string
	Submitter   JobSubmitter
	Reader      JobReader
	// Blob is served under /blobs when set
	Blob         blob.Store
	HealthChecks map[string]Pinger
}

// JobHandler handles job-related HTTP requests
type JobHandler struct {
	logger    *slog.Logger
	submitter JobSubmitter
	reader    JobReader
}

// NewJobHandler creates a new JobHandler instance
func NewJobHandler(deps *Dependencies) *JobHandler {
	return &JobHandler{
		logger:    deps.Logger,
		submitter: deps.Submitter,
		reader:    deps.Reader,
	}
}
