package storage

import (
	"bytes"
	"context"
	"sort"
	"sync"
	"time"

	"github.com/cuongbtq/render-queue/internal/domain"
)

// MemoryStore is an in-process JobStore and DeadLetterSink.
// Used by tests and by the local provider when no database is configured.
type MemoryStore struct {
	mu          sync.RWMutex
	jobs        map[string]*domain.Job
	deadLetters []DeadLetter
}

// NewMemoryStore creates an empty MemoryStore
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		jobs: make(map[string]*domain.Job),
	}
}

func (s *MemoryStore) Put(ctx context.Context, job *domain.Job) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.jobs[job.JobID]; ok {
		return ErrJobExists
	}
	cp := *job
	s.jobs[job.JobID] = &cp
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, jobID string) (*domain.Job, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	job, ok := s.jobs[jobID]
	if !ok {
		return nil, domain.ErrJobNotFound
	}
	cp := *job
	return &cp, nil
}

func (s *MemoryStore) Update(ctx context.Context, jobID string, u domain.StatusUpdate) (*domain.Job, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[jobID]
	if !ok {
		return nil, domain.ErrJobNotFound
	}

	updated, err := job.Apply(u)
	if err != nil {
		return nil, err
	}
	s.jobs[jobID] = updated

	cp := *updated
	return &cp, nil
}

func (s *MemoryStore) List(ctx context.Context, filter JobFilter) ([]domain.Job, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	jobs := make([]domain.Job, 0, len(s.jobs))
	for _, job := range s.jobs {
		if filter.UserID != "" && job.UserID != filter.UserID {
			continue
		}
		if filter.Status != "" && job.Status != filter.Status {
			continue
		}
		if filter.Cursor != nil && !filter.Cursor.before(job) {
			continue
		}
		jobs = append(jobs, *job)
	}
	s.mu.RUnlock()

	sort.Slice(jobs, func(i, j int) bool {
		if jobs[i].CreatedAt.Equal(jobs[j].CreatedAt) {
			return jobs[i].JobID > jobs[j].JobID
		}
		return jobs[i].CreatedAt.After(jobs[j].CreatedAt)
	})

	if filter.PageSize > 0 && len(jobs) > filter.PageSize+1 {
		jobs = jobs[:filter.PageSize+1]
	}
	return jobs, nil
}

func (s *MemoryStore) RecordDeadLetter(ctx context.Context, dl *DeadLetter) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *dl
	cp.ID = int64(len(s.deadLetters) + 1)
	cp.Body = bytes.Clone(dl.Body)
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now().UTC()
	}
	s.deadLetters = append(s.deadLetters, cp)
	return nil
}

// ListDeadLetters returns the most recent dead letters first
func (s *MemoryStore) ListDeadLetters(ctx context.Context, limit int) ([]DeadLetter, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]DeadLetter, 0, len(s.deadLetters))
	for i := len(s.deadLetters) - 1; i >= 0; i-- {
		if limit > 0 && len(out) == limit {
			break
		}
		out = append(out, s.deadLetters[i])
	}
	return out, nil
}

// Ping always succeeds
func (s *MemoryStore) Ping(ctx context.Context) error {
	return ctx.Err()
}
