package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cuongbtq/render-queue/internal/domain"
	"github.com/cuongbtq/render-queue/internal/queue"
	"github.com/cuongbtq/render-queue/internal/storage"
	"github.com/google/uuid"
)

// SubmissionService accepts new render jobs
type SubmissionService struct {
	store    storage.JobStore
	queue    queue.Queue
	groupKey string
	logger   *slog.Logger
	now      func() time.Time
	newID    func() string
}

// NewSubmissionService creates a SubmissionService that enqueues every job on groupKey
func NewSubmissionService(store storage.JobStore, q queue.Queue, groupKey string, logger *slog.Logger) *SubmissionService {
	if groupKey == "" {
		groupKey = domain.DefaultGroupKey
	}
	return &SubmissionService{
		store:    store,
		queue:    q,
		groupKey: groupKey,
		logger:   logger,
		now:      time.Now,
		newID:    uuid.NewString,
	}
}

// Submit validates the request, records a PENDING job and enqueues it.
//
// The record is written before the message is sent. If the send fails the
// PENDING record stays behind and an *domain.EnqueueError is returned.
func (s *SubmissionService) Submit(ctx context.Context, designID, userID string, camera *domain.Camera) (string, error) {
	if err := validateSubmission(designID, userID, camera); err != nil {
		return "", err
	}

	job := domain.NewJob(s.newID(), designID, userID, *camera, s.now())

	if err := s.store.Put(ctx, job); err != nil {
		s.logger.Error("Failed to create job record",
			slog.String("job_id", job.JobID),
			slog.Any("error", err),
		)
		return "", &domain.StoreError{Op: "put", Err: err}
	}

	body, err := (&domain.JobMessage{Job: *job}).Encode()
	if err != nil {
		return "", &domain.EnqueueError{JobID: job.JobID, Err: fmt.Errorf("failed to encode message: %w", err)}
	}

	if err := s.queue.Send(ctx, s.groupKey, job.JobID, body); err != nil {
		s.logger.Error("Failed to enqueue job, record left PENDING",
			slog.String("job_id", job.JobID),
			slog.String("group_id", s.groupKey),
			slog.Any("error", err),
		)
		return "", &domain.EnqueueError{JobID: job.JobID, Err: err}
	}

	s.logger.Info("Job submitted",
		slog.String("job_id", job.JobID),
		slog.String("design_id", designID),
		slog.String("user_id", userID),
	)

	return job.JobID, nil
}
