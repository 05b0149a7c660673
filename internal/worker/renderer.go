package worker

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/cuongbtq/render-queue/internal/domain"
)

// RenderOutput is the artifact produced for one job
type RenderOutput struct {
	Data        []byte
	ContentType string
	Extension   string
}

// Renderer is the work unit. It must return promptly once ctx is done.
type Renderer interface {
	Render(ctx context.Context, job *domain.Job) (*RenderOutput, error)
}

// RendererFunc adapts a function to Renderer
type RendererFunc func(ctx context.Context, job *domain.Job) (*RenderOutput, error)

func (f RendererFunc) Render(ctx context.Context, job *domain.Job) (*RenderOutput, error) {
	return f(ctx, job)
}

// PlaceholderRenderer simulates a render by sleeping a random time between
// MinDelay and MaxDelay and producing a short text file
type PlaceholderRenderer struct {
	MinDelay time.Duration
	MaxDelay time.Duration
	now      func() time.Time
}

// NewPlaceholderRenderer creates a PlaceholderRenderer
func NewPlaceholderRenderer(minDelay, maxDelay time.Duration) *PlaceholderRenderer {
	if maxDelay < minDelay {
		maxDelay = minDelay
	}
	return &PlaceholderRenderer{
		MinDelay: minDelay,
		MaxDelay: maxDelay,
		now:      time.Now,
	}
}

func (r *PlaceholderRenderer) Render(ctx context.Context, job *domain.Job) (*RenderOutput, error) {
	delay := r.MinDelay
	if spread := r.MaxDelay - r.MinDelay; spread > 0 {
		delay += rand.N(spread)
	}

	if delay > 0 {
		t := time.NewTimer(delay)
		defer t.Stop()

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("render canceled: %w", ctx.Err())
		case <-t.C:
		}
	}

	body := fmt.Sprintf("Rendered result for job %s at %s", job.JobID, r.now().UTC().Format(time.RFC3339))
	return &RenderOutput{
		Data:        []byte(body),
		ContentType: "text/plain",
		Extension:   "txt",
	}, nil
}
