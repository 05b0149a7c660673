package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/cuongbtq/render-queue/internal/blob"
	"github.com/cuongbtq/render-queue/internal/domain"
	"github.com/cuongbtq/render-queue/internal/queue"
)

// processMessage runs one message through the job lifecycle:
// load record, PROCESSING, render, store result, COMPLETED or FAILED,
// acknowledge. Any step that leaves the record uncommitted also leaves the
// message unacknowledged so it is redelivered.
func (w *Worker) processMessage(ctx context.Context, msg queue.Message) {
	payload, err := parseMessage(msg)
	if err != nil {
		w.handleMalformed(ctx, msg, err)
		return
	}

	jobID := payload.JobID
	logger := w.logger.With(
		slog.String("job_id", jobID),
		slog.Int("receive_count", msg.ReceiveCount),
	)

	job, err := w.store.Get(ctx, jobID)
	if err != nil {
		if errors.Is(err, domain.ErrJobNotFound) {
			logger.Error("Job record not found, dropping message",
				slog.Any("error", &domain.JobNotFoundError{JobID: jobID}),
			)
			w.acknowledge(ctx, msg, jobID)
			return
		}
		logger.Error("Failed to load job, message left for redelivery",
			slog.Any("error", &domain.StoreError{Op: "get", Err: err}),
		)
		return
	}

	if job.Status.IsTerminal() {
		logger.Info("Job already finished, skipping",
			slog.String("status", job.Status.String()),
		)
		w.acknowledge(ctx, msg, jobID)
		return
	}

	if job.Status == domain.JobStatusProcessing {
		logger.Warn("Resuming job interrupted while processing")
	}

	if _, err := w.store.Update(ctx, jobID, domain.MarkProcessing(w.now())); err != nil {
		if errors.Is(err, domain.ErrInvalidTransition) || errors.Is(err, domain.ErrJobNotFound) {
			logger.Warn("Job cannot enter PROCESSING, dropping message",
				slog.Any("error", err),
			)
			w.acknowledge(ctx, msg, jobID)
			return
		}
		logger.Error("Failed to mark job PROCESSING, message left for redelivery",
			slog.Any("error", &domain.StoreError{Op: "update", Err: err}),
		)
		return
	}

	logger.Info("Processing job")

	resultURL, workErr := w.execute(ctx, job)
	if workErr != nil && ctx.Err() != nil {
		logger.Warn("Worker stopping, job left PROCESSING for redelivery",
			slog.Any("error", workErr),
		)
		return
	}

	// the record must reach a terminal state even if shutdown begins now
	commitCtx := context.WithoutCancel(ctx)

	if workErr == nil {
		_, err := w.store.Update(commitCtx, jobID, domain.MarkCompleted(resultURL, w.now()))
		if err == nil {
			logger.Info("Job completed", slog.String("result_url", resultURL))
			w.acknowledge(ctx, msg, jobID)
			return
		}
		workErr = &domain.StoreError{Op: "update", Err: err}
		logger.Error("Failed to mark job COMPLETED", slog.Any("error", workErr))
	}

	logger.Error("Job failed", slog.Any("error", workErr))

	if _, err := w.store.Update(commitCtx, jobID, domain.MarkFailed(workErr.Error(), w.now())); err != nil {
		logger.Error("Failed to mark job FAILED, message left for redelivery",
			slog.Any("error", &domain.StoreError{Op: "update", Err: err}),
		)
		return
	}

	w.acknowledge(ctx, msg, jobID)
}

// execute renders the job within the job timeout and stores the output.
// It returns the result URL.
func (w *Worker) execute(ctx context.Context, job *domain.Job) (string, error) {
	renderCtx, cancel := context.WithTimeout(ctx, w.jobTimeout)
	defer cancel()

	out, err := w.renderer.Render(renderCtx, job)
	if err != nil {
		return "", &domain.WorkUnitError{JobID: job.JobID, Err: err}
	}
	if out == nil {
		return "", &domain.WorkUnitError{JobID: job.JobID, Err: fmt.Errorf("renderer returned no output")}
	}

	key := blob.ResultKey(job.JobID, out.Extension)
	if err := w.blob.Put(ctx, key, out.Data, out.ContentType); err != nil {
		return "", &domain.BlobError{Key: key, Err: err}
	}

	return w.blob.URL(key), nil
}
