package worker

import (
	"context"
	"encoding/base64"
	"log/slog"

	"github.com/cuongbtq/render-queue/internal/domain"
	"github.com/cuongbtq/render-queue/internal/queue"
	"github.com/cuongbtq/render-queue/internal/storage"
	"github.com/google/uuid"
)

// parseMessage extracts the job reference from a queue payload
func parseMessage(msg queue.Message) (*domain.JobMessage, error) {
	payload, err := domain.DecodeJobMessage(msg.Body)
	if err != nil {
		return nil, &domain.MalformedMessageError{Reason: "invalid json", Err: err}
	}

	if payload.JobID == "" {
		return nil, &domain.MalformedMessageError{Reason: "missing jobId"}
	}

	if _, err := uuid.Parse(payload.JobID); err != nil {
		return nil, &domain.MalformedMessageError{Reason: "jobId is not a uuid", Err: err}
	}

	return payload, nil
}

// handleMalformed leaves a bad message for redelivery until it has been
// received maxReceiveCount times, then dead-letters and acknowledges it.
// If the sink keeps failing, the message is logged in full and dropped once
// it has been received twice the limit.
func (w *Worker) handleMalformed(ctx context.Context, msg queue.Message, cause error) {
	logger := w.logger.With(
		slog.String("dedup_id", msg.DedupID),
		slog.Int("receive_count", msg.ReceiveCount),
	)

	if msg.ReceiveCount < w.maxReceiveCount {
		logger.Warn("Malformed message left for redelivery",
			slog.Any("error", cause),
			slog.Int("max_receive_count", w.maxReceiveCount),
		)
		return
	}

	if w.deadLetters != nil {
		err := w.deadLetters.RecordDeadLetter(context.WithoutCancel(ctx), &storage.DeadLetter{
			DedupID:      msg.DedupID,
			GroupID:      msg.GroupID,
			Body:         msg.Body,
			Reason:       cause.Error(),
			ReceiveCount: msg.ReceiveCount,
			CreatedAt:    w.now().UTC(),
		})
		if err != nil {
			if msg.ReceiveCount < 2*w.maxReceiveCount {
				logger.Error("Failed to record dead letter, message left for redelivery",
					slog.Any("error", err),
				)
				return
			}
			logger.Error("Failed to record dead letter, dropping message",
				slog.Any("error", err),
				slog.Any("cause", cause),
				slog.String("body_base64", base64.StdEncoding.EncodeToString(msg.Body)),
			)
			w.acknowledge(ctx, msg, "")
			return
		}
	}

	logger.Error("Malformed message dead-lettered",
		slog.Any("error", cause),
		slog.String("body", truncate(string(msg.Body), 256)),
	)
	w.acknowledge(ctx, msg, "")
}

// acknowledge deletes a handled message. A failed ack is only logged; the
// message comes back after its lease and is skipped as terminal.
func (w *Worker) acknowledge(ctx context.Context, msg queue.Message, jobID string) {
	if err := w.queue.Acknowledge(context.WithoutCancel(ctx), msg.Handle); err != nil {
		w.logger.Error("Failed to acknowledge message",
			slog.String("job_id", jobID),
			slog.String("dedup_id", msg.DedupID),
			slog.Any("error", err),
		)
		return
	}

	w.logger.Debug("Message acknowledged",
		slog.String("job_id", jobID),
		slog.String("dedup_id", msg.DedupID),
	)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
