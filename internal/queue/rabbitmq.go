package queue

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/cuongbtq/render-queue/shared/rabbitmq"
	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	headerGroupID       = "x-group-id"
	headerDeliveryCount = "x-delivery-count"
)

// Broker is the subset of the RabbitMQ client the queue needs
type Broker interface {
	PublishWithRetry(ctx context.Context, msg amqp.Publishing) error
	Get() (amqp.Delivery, bool, error)
	Ack(tag uint64) error
	Nack(tag uint64, requeue bool) error
	IsConnected() bool
	Generation() uint64
}

var _ Broker = (*rabbitmq.Client)(nil)

type heldDelivery struct {
	tag        uint64
	messageID  string
	groupID    string
	leasedTill time.Time
	generation uint64
}

// RabbitQueue implements Queue on a single RabbitMQ queue.
//
// Messages are pulled with basic.get and manual acknowledgment. A delivery
// that is still unacknowledged when its lease runs out is nacked back onto
// the queue on the next Receive. The queue is one ordered stream, so while
// any delivery is leased Receive returns nothing.
//
// When the broker channel is replaced every outstanding lease is forgotten:
// the broker has already requeued the unacknowledged deliveries and their
// tags are meaningless on the new channel.
type RabbitQueue struct {
	broker Broker
	dedup  Deduper
	opts   Options
	logger *slog.Logger
	now    func() time.Time

	mu       sync.Mutex
	held     map[string]*heldDelivery
	receives map[string]int
}

// NewRabbitQueue creates a RabbitQueue on top of a connected broker
func NewRabbitQueue(broker Broker, dedup Deduper, opts Options, logger *slog.Logger) *RabbitQueue {
	return &RabbitQueue{
		broker:   broker,
		dedup:    dedup,
		opts:     opts.withDefaults(),
		logger:   logger,
		now:      time.Now,
		held:     make(map[string]*heldDelivery),
		receives: make(map[string]int),
	}
}

func (q *RabbitQueue) Send(ctx context.Context, groupKey, dedupKey string, payload []byte) error {
	first, err := q.dedup.Claim(ctx, dedupKey)
	if err != nil {
		return fmt.Errorf("failed to check dedup key: %w", err)
	}
	if !first {
		q.logger.Info("Duplicate message dropped",
			slog.String("dedup_id", dedupKey),
			slog.String("group_id", groupKey),
		)
		return nil
	}

	msg := amqp.Publishing{
		ContentType: "application/json",
		MessageId:   dedupKey,
		Headers:     amqp.Table{headerGroupID: groupKey},
		Body:        payload,
	}

	if err := q.broker.PublishWithRetry(ctx, msg); err != nil {
		if relErr := q.dedup.Release(context.WithoutCancel(ctx), dedupKey); relErr != nil {
			q.logger.Warn("Failed to release dedup key after publish failure",
				slog.String("dedup_id", dedupKey),
				slog.Any("error", relErr),
			)
		}
		return err
	}

	return nil
}

func (q *RabbitQueue) Receive(ctx context.Context, maxMessages int, wait time.Duration) ([]Message, error) {
	if maxMessages <= 0 {
		maxMessages = 1
	}
	deadline := q.now().Add(wait)

	for {
		q.requeueExpired()

		msgs, err := q.pull(maxMessages)
		if err != nil {
			return nil, err
		}
		if len(msgs) > 0 {
			return msgs, nil
		}

		remaining := deadline.Sub(q.now())
		if remaining <= 0 {
			return nil, nil
		}
		if remaining > q.opts.PollInterval {
			remaining = q.opts.PollInterval
		}
		if err := sleepCtx(ctx, remaining); err != nil {
			return nil, err
		}
	}
}

// pull reads up to max deliveries unless a lease is outstanding
func (q *RabbitQueue) pull(max int) ([]Message, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.dropStale()
	if len(q.held) > 0 {
		return nil, nil
	}

	var out []Message
	for len(out) < max {
		d, ok, err := q.broker.Get()
		if err != nil {
			if len(out) > 0 {
				q.logger.Warn("Receive interrupted, returning partial batch",
					slog.Int("received", len(out)),
					slog.Any("error", err),
				)
				return out, nil
			}
			return nil, err
		}
		if !ok {
			break
		}
		out = append(out, q.lease(d))
	}
	return out, nil
}

// lease records a delivery as in flight. Callers hold q.mu.
func (q *RabbitQueue) lease(d amqp.Delivery) Message {
	groupID, _ := d.Headers[headerGroupID].(string)
	messageID := d.MessageId
	if messageID == "" {
		messageID = "tag-" + strconv.FormatUint(d.DeliveryTag, 10)
	}

	count := q.receives[messageID] + 1
	if n, ok := deliveryCount(d.Headers); ok && n+1 > count {
		count = n + 1
	}
	q.receives[messageID] = count

	handle := strconv.FormatUint(d.DeliveryTag, 10)
	q.held[handle] = &heldDelivery{
		tag:        d.DeliveryTag,
		messageID:  messageID,
		groupID:    groupID,
		leasedTill: q.now().Add(q.opts.Lease),
		generation: q.broker.Generation(),
	}

	return Message{
		Handle:       handle,
		Body:         d.Body,
		ReceiveCount: count,
		GroupID:      groupID,
		DedupID:      d.MessageId,
	}
}

// deliveryCount reads the quorum queue redelivery counter when present
func deliveryCount(h amqp.Table) (int, bool) {
	switch v := h[headerDeliveryCount].(type) {
	case int64:
		return int(v), true
	case int32:
		return int(v), true
	case int:
		return v, true
	}
	return 0, false
}

// dropStale forgets leases taken on an earlier broker channel. Callers hold q.mu.
func (q *RabbitQueue) dropStale() {
	if len(q.held) == 0 {
		return
	}
	current := q.broker.Generation()
	for handle, h := range q.held {
		if h.generation == current {
			continue
		}
		delete(q.held, handle)
		q.logger.Warn("Broker channel replaced, lease released",
			slog.String("message_id", h.messageID),
			slog.String("group_id", h.groupID),
		)
	}
}

// requeueExpired returns deliveries whose lease ran out to the queue. A nack
// that fails means the channel is gone, and the broker requeues on its own.
func (q *RabbitQueue) requeueExpired() {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.dropStale()

	now := q.now()
	for handle, h := range q.held {
		if now.Before(h.leasedTill) {
			continue
		}
		delete(q.held, handle)

		if err := q.broker.Nack(h.tag, true); err != nil {
			q.logger.Warn("Failed to requeue expired lease, leaving it to the broker",
				slog.String("message_id", h.messageID),
				slog.Any("error", err),
			)
			continue
		}

		q.logger.Warn("Lease expired, message returned to queue",
			slog.String("message_id", h.messageID),
			slog.String("group_id", h.groupID),
		)
	}
}

func (q *RabbitQueue) Acknowledge(ctx context.Context, handle string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	h, ok := q.held[handle]
	if !ok {
		return nil
	}
	delete(q.held, handle)

	if h.generation != q.broker.Generation() {
		q.logger.Warn("Acknowledge after broker channel was replaced, message will be redelivered",
			slog.String("message_id", h.messageID),
		)
		return nil
	}
	if err := q.broker.Ack(h.tag); err != nil {
		q.logger.Warn("Failed to acknowledge, message will be redelivered",
			slog.String("message_id", h.messageID),
			slog.Any("error", err),
		)
		return nil
	}
	delete(q.receives, h.messageID)
	return nil
}

// Ping reports whether the broker connection is up
func (q *RabbitQueue) Ping(ctx context.Context) error {
	if !q.broker.IsConnected() {
		return fmt.Errorf("rabbitmq is not connected")
	}
	return ctx.Err()
}
