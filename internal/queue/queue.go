package queue

import (
	"context"
	"time"
)

// Message is one received queue entry. Handle identifies this particular
// receipt and is what Acknowledge takes.
type Message struct {
	Handle       string
	Body         []byte
	ReceiveCount int
	GroupID      string
	DedupID      string
}

// Queue is a durable queue with per-group FIFO ordering and deduplication.
//
// Send drops a payload whose dedupKey was already sent inside the dedup
// window. Receive blocks up to wait for at least one message and leases what it
// returns; a message that is not acknowledged before its lease expires becomes
// visible again with a higher ReceiveCount. While a message of a group is
// leased, later messages of the same group are not returned. Acknowledge
// deletes a leased message and is a no-op for unknown or stale handles.
type Queue interface {
	Send(ctx context.Context, groupKey, dedupKey string, payload []byte) error
	Receive(ctx context.Context, maxMessages int, wait time.Duration) ([]Message, error)
	Acknowledge(ctx context.Context, handle string) error
}

// Options are the lease and dedup settings shared by the implementations
type Options struct {
	Lease        time.Duration
	DedupWindow  time.Duration
	PollInterval time.Duration
}

const (
	defaultLease        = 5 * time.Minute
	defaultDedupWindow  = 5 * time.Minute
	defaultPollInterval = 200 * time.Millisecond
)

func (o Options) withDefaults() Options {
	if o.Lease <= 0 {
		o.Lease = defaultLease
	}
	if o.DedupWindow <= 0 {
		o.DedupWindow = defaultDedupWindow
	}
	if o.PollInterval <= 0 {
		o.PollInterval = defaultPollInterval
	}
	return o
}

// sleepCtx waits for d or until ctx is done
func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
