package rabbitmq

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// offlineClient is a client that never dialed, as after a lost connection
func offlineClient() *Client {
	return &Client{
		config: &Config{QueueName: "render_tasks"},
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

func TestClient_ConcurrentStatusAndClose(t *testing.T) {
	c := offlineClient()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				assert.False(t, c.IsConnected())
				_ = c.Generation()
			}
		}()
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		assert.NoError(t, c.Close())
	}()
	wg.Wait()

	assert.False(t, c.IsConnected())
}

func TestClient_ClosedClientDoesNotReconnect(t *testing.T) {
	c := offlineClient()
	require.NoError(t, c.Close())

	_, _, err := c.Get()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "closed")

	err = c.Publish(context.Background(), amqp.Publishing{Body: []byte("x")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "closed")

	_, _, err = c.Inspect()
	assert.Error(t, err)
}

func TestClient_AckWithoutChannel(t *testing.T) {
	c := offlineClient()

	err := c.Ack(7)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "delivery 7")

	assert.Error(t, c.Nack(7, true))
	assert.Zero(t, c.Generation())
}
