package service

import (
	"context"
	"errors"

	"github.com/cuongbtq/render-queue/internal/domain"
	"github.com/cuongbtq/render-queue/internal/storage"
	"github.com/google/uuid"
)

// StatusService reads job records. It never writes.
type StatusService struct {
	store storage.JobStore
}

// NewStatusService creates a StatusService
func NewStatusService(store storage.JobStore) *StatusService {
	return &StatusService{store: store}
}

// Get returns the current record of a job. Ids that are not UUIDs cannot
// exist and are reported as not found.
func (s *StatusService) Get(ctx context.Context, jobID string) (*domain.Job, error) {
	if _, err := uuid.Parse(jobID); err != nil {
		return nil, &domain.JobNotFoundError{JobID: jobID}
	}

	job, err := s.store.Get(ctx, jobID)
	if err != nil {
		if errors.Is(err, domain.ErrJobNotFound) {
			return nil, &domain.JobNotFoundError{JobID: jobID}
		}
		return nil, &domain.StoreError{Op: "get", Err: err}
	}
	return job, nil
}

// List returns one page of jobs, newest first, plus one look-ahead row
func (s *StatusService) List(ctx context.Context, filter storage.JobFilter) ([]domain.Job, error) {
	if filter.Status != "" && !filter.Status.IsValid() {
		return nil, &domain.ValidationError{Field: "status", Message: "must be one of PENDING, PROCESSING, COMPLETED, FAILED"}
	}

	jobs, err := s.store.List(ctx, filter)
	if err != nil {
		return nil, &domain.StoreError{Op: "list", Err: err}
	}
	return jobs, nil
}
