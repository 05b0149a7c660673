package worker

import (
	"context"
	"log/slog"
	"time"
)

// run is the receive loop. Messages are handled one at a time and each one
// is fully processed before the next Receive.
func (w *Worker) run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}

		msgs, err := w.queue.Receive(ctx, w.batchSize, w.waitTime)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			w.logger.Warn("Failed to receive messages, backing off",
				slog.Any("error", err),
				slog.Duration("backoff", w.errorBackoff),
			)
			if !sleep(ctx, w.errorBackoff) {
				return
			}
			continue
		}

		if len(msgs) == 0 {
			w.logger.Debug("No messages received")
			continue
		}

		for _, msg := range msgs {
			if ctx.Err() != nil {
				// unhandled messages come back after their lease
				return
			}
			w.processMessage(ctx, msg)
		}
	}
}

// sleep waits for d and reports false if ctx ended first
func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
