package worker

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/cuongbtq/render-queue/internal/blob"
	"github.com/cuongbtq/render-queue/internal/queue"
	"github.com/cuongbtq/render-queue/internal/storage"
)

// Config holds worker configuration
type Config struct {
	Logger          *slog.Logger
	Store           storage.JobStore
	Queue           queue.Queue
	Blob            blob.Store
	DeadLetters     storage.DeadLetterSink
	Renderer        Renderer
	BatchSize       int
	WaitTime        time.Duration
	ErrorBackoff    time.Duration
	JobTimeout      time.Duration
	MaxReceiveCount int
}

// Worker is the single sequential consumer of the render queue
type Worker struct {
	logger          *slog.Logger
	store           storage.JobStore
	queue           queue.Queue
	blob            blob.Store
	deadLetters     storage.DeadLetterSink
	renderer        Renderer
	batchSize       int
	waitTime        time.Duration
	errorBackoff    time.Duration
	jobTimeout      time.Duration
	maxReceiveCount int
	now             func() time.Time

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	running bool
}

// NewWorker creates a new worker instance
func NewWorker(cfg *Config) *Worker {
	w := &Worker{
		logger:          cfg.Logger,
		store:           cfg.Store,
		queue:           cfg.Queue,
		blob:            cfg.Blob,
		deadLetters:     cfg.DeadLetters,
		renderer:        cfg.Renderer,
		batchSize:       cfg.BatchSize,
		waitTime:        cfg.WaitTime,
		errorBackoff:    cfg.ErrorBackoff,
		jobTimeout:      cfg.JobTimeout,
		maxReceiveCount: cfg.MaxReceiveCount,
		now:             time.Now,
	}

	if w.batchSize <= 0 {
		w.batchSize = 1
	}
	if w.waitTime <= 0 {
		w.waitTime = 20 * time.Second
	}
	if w.errorBackoff <= 0 {
		w.errorBackoff = 5 * time.Second
	}
	if w.jobTimeout <= 0 {
		w.jobTimeout = 4 * time.Minute
	}
	if w.maxReceiveCount <= 0 {
		w.maxReceiveCount = 5
	}
	if w.renderer == nil {
		w.renderer = NewPlaceholderRenderer(500*time.Millisecond, time.Second)
	}

	return w
}

// Start runs the receive loop until ctx is canceled or Stop is called.
// It returns nil on a clean stop.
func (w *Worker) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return errors.New("worker already running")
	}
	ctx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	w.done = make(chan struct{})
	w.running = true
	done := w.done
	w.mu.Unlock()

	defer func() {
		cancel()
		w.mu.Lock()
		w.running = false
		w.mu.Unlock()
		close(done)
	}()

	w.logger.Info("Starting worker",
		slog.Int("batch_size", w.batchSize),
		slog.Duration("wait_time", w.waitTime),
		slog.Duration("job_timeout", w.jobTimeout),
		slog.Int("max_receive_count", w.maxReceiveCount),
	)

	w.run(ctx)

	w.logger.Info("Worker context canceled, stopped")
	return nil
}

// Stop cancels the loop and waits for the message in flight to finish
func (w *Worker) Stop() {
	w.mu.Lock()
	cancel, done := w.cancel, w.done
	w.mu.Unlock()

	if cancel == nil {
		return
	}

	w.logger.Info("Stopping worker...")
	cancel()
	<-done
	w.logger.Info("Worker stopped")
}
