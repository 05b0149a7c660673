package queue

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

type memoryEntry struct {
	groupID      string
	dedupID      string
	body         []byte
	receiveCount int
	handle       string
	leasedUntil  time.Time
}

// MemoryQueue is an in-process Queue with the same lease, ordering and dedup
// behaviour as the broker backed one
type MemoryQueue struct {
	mu      sync.Mutex
	opts    Options
	dedup   *MemoryDeduper
	entries []*memoryEntry
	now     func() time.Time
	notify  chan struct{}
}

// NewMemoryQueue creates an empty MemoryQueue
func NewMemoryQueue(opts Options) *MemoryQueue {
	opts = opts.withDefaults()
	return &MemoryQueue{
		opts:   opts,
		dedup:  NewMemoryDeduper(opts.DedupWindow),
		now:    time.Now,
		notify: make(chan struct{}),
	}
}

func (q *MemoryQueue) Send(ctx context.Context, groupKey, dedupKey string, payload []byte) error {
	first, err := q.dedup.Claim(ctx, dedupKey)
	if err != nil {
		return err
	}
	if !first {
		return nil
	}

	body := make([]byte, len(payload))
	copy(body, payload)

	q.mu.Lock()
	q.entries = append(q.entries, &memoryEntry{
		groupID: groupKey,
		dedupID: dedupKey,
		body:    body,
	})
	close(q.notify)
	q.notify = make(chan struct{})
	q.mu.Unlock()

	return nil
}

func (q *MemoryQueue) Receive(ctx context.Context, maxMessages int, wait time.Duration) ([]Message, error) {
	if maxMessages <= 0 {
		maxMessages = 1
	}
	deadline := q.now().Add(wait)

	for {
		q.mu.Lock()
		msgs := q.take(maxMessages)
		notify := q.notify
		next := q.nextExpiry()
		q.mu.Unlock()

		if len(msgs) > 0 {
			return msgs, nil
		}

		remaining := deadline.Sub(q.now())
		if remaining <= 0 {
			return nil, nil
		}
		if !next.IsZero() {
			if untilExpiry := next.Sub(q.now()); untilExpiry < remaining {
				remaining = untilExpiry
			}
		}

		timer := time.NewTimer(remaining)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-notify:
			timer.Stop()
		case <-timer.C:
		}
	}
}

// take leases up to max visible messages in FIFO order, skipping groups that
// have a message in flight. Callers hold q.mu.
func (q *MemoryQueue) take(max int) []Message {
	now := q.now()
	blocked := make(map[string]bool)
	for _, e := range q.entries {
		if e.handle != "" && now.Before(e.leasedUntil) {
			blocked[e.groupID] = true
		}
	}

	var out []Message
	taken := make(map[string]bool)
	for _, e := range q.entries {
		if len(out) == max {
			break
		}
		if blocked[e.groupID] && !taken[e.groupID] {
			continue
		}
		if e.handle != "" && now.Before(e.leasedUntil) {
			continue
		}

		e.receiveCount++
		e.handle = uuid.NewString()
		e.leasedUntil = now.Add(q.opts.Lease)
		taken[e.groupID] = true
		blocked[e.groupID] = true

		out = append(out, Message{
			Handle:       e.handle,
			Body:         e.body,
			ReceiveCount: e.receiveCount,
			GroupID:      e.groupID,
			DedupID:      e.dedupID,
		})
	}
	return out
}

// nextExpiry returns the earliest lease expiry in the future. Callers hold q.mu.
func (q *MemoryQueue) nextExpiry() time.Time {
	now := q.now()
	var next time.Time
	for _, e := range q.entries {
		if e.handle == "" || !now.Before(e.leasedUntil) {
			continue
		}
		if next.IsZero() || e.leasedUntil.Before(next) {
			next = e.leasedUntil
		}
	}
	return next
}

func (q *MemoryQueue) Acknowledge(ctx context.Context, handle string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	for i, e := range q.entries {
		if e.handle == handle && handle != "" {
			q.entries = append(q.entries[:i], q.entries[i+1:]...)
			return nil
		}
	}
	return nil
}

// Len returns the number of messages not yet acknowledged
func (q *MemoryQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries)
}

// Ping always succeeds
func (q *MemoryQueue) Ping(ctx context.Context) error {
	return ctx.Err()
}
