package queue

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeBroker mimics a single RabbitMQ queue with basic.get semantics
type fakeBroker struct {
	mu         sync.Mutex
	ready      []amqp.Delivery
	unacked    map[uint64]amqp.Delivery
	nextTag    uint64
	publishErr error
	getErr     error
	acked      []string
	generation uint64
}

func newFakeBroker() *fakeBroker {
	return &fakeBroker{unacked: make(map[uint64]amqp.Delivery), generation: 1}
}

// dropChannel simulates a channel or connection loss followed by a reconnect:
// unacknowledged deliveries go back to the head of the queue and their tags
// become unknown.
func (b *fakeBroker) dropChannel() {
	b.mu.Lock()
	defer b.mu.Unlock()

	var returned []amqp.Delivery
	for tag := uint64(1); tag <= b.nextTag; tag++ {
		if d, ok := b.unacked[tag]; ok {
			d.Redelivered = true
			returned = append(returned, d)
		}
	}
	b.ready = append(returned, b.ready...)
	b.unacked = make(map[uint64]amqp.Delivery)
	b.generation++
}

func (b *fakeBroker) PublishWithRetry(ctx context.Context, msg amqp.Publishing) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.publishErr != nil {
		return b.publishErr
	}
	b.ready = append(b.ready, amqp.Delivery{
		MessageId: msg.MessageId,
		Headers:   msg.Headers,
		Body:      msg.Body,
	})
	return nil
}

func (b *fakeBroker) Get() (amqp.Delivery, bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.getErr != nil {
		return amqp.Delivery{}, false, b.getErr
	}
	if len(b.ready) == 0 {
		return amqp.Delivery{}, false, nil
	}
	d := b.ready[0]
	b.ready = b.ready[1:]
	b.nextTag++
	d.DeliveryTag = b.nextTag
	b.unacked[d.DeliveryTag] = d
	return d, true, nil
}

func (b *fakeBroker) Ack(tag uint64) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	d, ok := b.unacked[tag]
	if !ok {
		return errors.New("unknown delivery tag")
	}
	delete(b.unacked, tag)
	b.acked = append(b.acked, d.MessageId)
	return nil
}

func (b *fakeBroker) Nack(tag uint64, requeue bool) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	d, ok := b.unacked[tag]
	if !ok {
		return errors.New("unknown delivery tag")
	}
	delete(b.unacked, tag)
	if requeue {
		d.Redelivered = true
		b.ready = append([]amqp.Delivery{d}, b.ready...)
	}
	return nil
}

func (b *fakeBroker) IsConnected() bool { return true }

func (b *fakeBroker) Generation() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.generation
}

func newTestRabbitQueue(b *fakeBroker, lease time.Duration) *RabbitQueue {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewRabbitQueue(b, NewMemoryDeduper(time.Minute), Options{
		Lease:        lease,
		PollInterval: 5 * time.Millisecond,
	}, logger)
}

func TestRabbitQueue_SendCarriesGroupAndDedup(t *testing.T) {
	ctx := context.Background()
	b := newFakeBroker()
	q := newTestRabbitQueue(b, time.Minute)

	require.NoError(t, q.Send(ctx, testGroup, "job-1", []byte(`{"jobId":"job-1"}`)))
	require.NoError(t, q.Send(ctx, testGroup, "job-1", []byte(`{"jobId":"job-1"}`)))
	require.Len(t, b.ready, 1, "duplicate send is dropped")

	msgs, err := q.Receive(ctx, 1, 0)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "job-1", msgs[0].DedupID)
	assert.Equal(t, testGroup, msgs[0].GroupID)
	assert.Equal(t, 1, msgs[0].ReceiveCount)
}

func TestRabbitQueue_FailedPublishReleasesDedupKey(t *testing.T) {
	ctx := context.Background()
	b := newFakeBroker()
	q := newTestRabbitQueue(b, time.Minute)

	b.publishErr = errors.New("channel closed")
	require.Error(t, q.Send(ctx, testGroup, "job-1", []byte("x")))

	b.publishErr = nil
	require.NoError(t, q.Send(ctx, testGroup, "job-1", []byte("x")))
	assert.Len(t, b.ready, 1)
}

func TestRabbitQueue_BlocksWhileLeased(t *testing.T) {
	ctx := context.Background()
	b := newFakeBroker()
	q := newTestRabbitQueue(b, time.Minute)

	require.NoError(t, q.Send(ctx, testGroup, "a", []byte("a")))
	require.NoError(t, q.Send(ctx, testGroup, "b", []byte("b")))

	first, err := q.Receive(ctx, 1, 0)
	require.NoError(t, err)
	require.Len(t, first, 1)

	blocked, err := q.Receive(ctx, 1, 20*time.Millisecond)
	require.NoError(t, err)
	assert.Empty(t, blocked)

	require.NoError(t, q.Acknowledge(ctx, first[0].Handle))
	require.NoError(t, q.Acknowledge(ctx, first[0].Handle), "second ack is a no-op")

	next, err := q.Receive(ctx, 1, 0)
	require.NoError(t, err)
	require.Len(t, next, 1)
	assert.Equal(t, "b", next[0].DedupID)
	assert.Equal(t, []string{"a"}, b.acked)
}

func TestRabbitQueue_ExpiredLeaseIsRequeued(t *testing.T) {
	ctx := context.Background()
	b := newFakeBroker()
	q := newTestRabbitQueue(b, 20*time.Millisecond)

	require.NoError(t, q.Send(ctx, testGroup, "a", []byte("a")))
	require.NoError(t, q.Send(ctx, testGroup, "b", []byte("b")))

	first, err := q.Receive(ctx, 1, 0)
	require.NoError(t, err)
	require.Len(t, first, 1)

	again, err := q.Receive(ctx, 1, time.Second)
	require.NoError(t, err)
	require.Len(t, again, 1)
	assert.Equal(t, "a", again[0].DedupID, "requeued message keeps its place")
	assert.Equal(t, 2, again[0].ReceiveCount)

	require.NoError(t, q.Acknowledge(ctx, first[0].Handle), "stale handle is a no-op")
	require.NoError(t, q.Acknowledge(ctx, again[0].Handle))
	assert.Equal(t, []string{"a"}, b.acked)
}

func TestRabbitQueue_QuorumDeliveryCount(t *testing.T) {
	b := newFakeBroker()
	q := newTestRabbitQueue(b, time.Minute)

	b.ready = append(b.ready, amqp.Delivery{
		MessageId: "a",
		Headers:   amqp.Table{headerGroupID: testGroup, headerDeliveryCount: int64(3)},
		Body:      []byte("a"),
	})

	msgs, err := q.Receive(context.Background(), 1, 0)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, 4, msgs[0].ReceiveCount)
}

func TestRabbitQueue_ReceiveError(t *testing.T) {
	b := newFakeBroker()
	q := newTestRabbitQueue(b, time.Minute)
	b.getErr = errors.New("connection reset")

	_, err := q.Receive(context.Background(), 1, time.Second)
	assert.Error(t, err)
}

func TestRabbitQueue_AcknowledgeAfterChannelLoss(t *testing.T) {
	ctx := context.Background()
	b := newFakeBroker()
	q := newTestRabbitQueue(b, time.Minute)

	require.NoError(t, q.Send(ctx, testGroup, "job-1", []byte("1")))
	require.NoError(t, q.Send(ctx, testGroup, "job-2", []byte("2")))

	first, err := q.Receive(ctx, 1, 0)
	require.NoError(t, err)
	require.Len(t, first, 1)

	b.dropChannel()
	require.NoError(t, q.Acknowledge(ctx, first[0].Handle))

	again, err := q.Receive(ctx, 1, 0)
	require.NoError(t, err)
	require.Len(t, again, 1)
	assert.Equal(t, "job-1", again[0].DedupID, "broker redelivers the unacknowledged message")
	assert.Equal(t, 2, again[0].ReceiveCount)
	require.NoError(t, q.Acknowledge(ctx, again[0].Handle))

	next, err := q.Receive(ctx, 1, 0)
	require.NoError(t, err)
	require.Len(t, next, 1)
	assert.Equal(t, "job-2", next[0].DedupID)
	require.NoError(t, q.Acknowledge(ctx, next[0].Handle))

	assert.Equal(t, []string{"job-1", "job-2"}, b.acked)
}

func TestRabbitQueue_ChannelLossDoesNotWedgeReceive(t *testing.T) {
	ctx := context.Background()
	b := newFakeBroker()
	q := newTestRabbitQueue(b, 10*time.Millisecond)

	require.NoError(t, q.Send(ctx, testGroup, "job-1", []byte("1")))
	require.NoError(t, q.Send(ctx, testGroup, "job-2", []byte("2")))

	first, err := q.Receive(ctx, 1, 0)
	require.NoError(t, err)
	require.Len(t, first, 1)

	b.dropChannel()
	time.Sleep(20 * time.Millisecond)

	for i := 0; i < 3; i++ {
		msgs, err := q.Receive(ctx, 1, time.Second)
		require.NoError(t, err, "receive %d", i)
		require.Len(t, msgs, 1)
		require.NoError(t, q.Acknowledge(ctx, msgs[0].Handle))
		if len(b.ready) == 0 && len(b.unacked) == 0 {
			break
		}
	}

	assert.Equal(t, []string{"job-1", "job-2"}, b.acked)
}

func TestRabbitQueue_FailedRequeueReleasesLease(t *testing.T) {
	ctx := context.Background()
	b := newFakeBroker()
	q := newTestRabbitQueue(b, 10*time.Millisecond)

	require.NoError(t, q.Send(ctx, testGroup, "job-1", []byte("1")))

	first, err := q.Receive(ctx, 1, 0)
	require.NoError(t, err)
	require.Len(t, first, 1)

	// the broker requeued on its own and forgot the tag without a new channel
	b.mu.Lock()
	d := b.unacked[1]
	delete(b.unacked, 1)
	b.ready = append(b.ready, d)
	b.mu.Unlock()

	msgs, err := q.Receive(ctx, 1, time.Second)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "job-1", msgs[0].DedupID)
}
