package bootstrap

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/cuongbtq/render-queue/internal/blob"
	"github.com/cuongbtq/render-queue/internal/config"
	"github.com/cuongbtq/render-queue/internal/queue"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewBlobStore_Local(t *testing.T) {
	root := filepath.Join(t.TempDir(), "blobs")

	store, err := NewBlobStore(context.Background(), &config.BlobConfig{
		Provider: config.BlobProviderLocal,
		Local: config.LocalBlobConfig{
			Root:    root,
			BaseURL: "http://localhost:8080/blobs",
		},
	})
	require.NoError(t, err)
	require.IsType(t, &blob.LocalStore{}, store)

	require.NoError(t, store.Ensure(context.Background()))
	assert.Equal(t, "http://localhost:8080/blobs/results/job-1.txt", store.URL(blob.ResultKey("job-1", "txt")))
}

func TestNewBlobStore_S3(t *testing.T) {
	store, err := NewBlobStore(context.Background(), &config.BlobConfig{
		Provider: config.BlobProviderS3,
		S3: config.S3BlobConfig{
			Bucket:          "render-results",
			Region:          "us-east-1",
			Endpoint:        "http://localhost:4566",
			AccessKeyID:     "test",
			SecretAccessKey: "test",
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:4566/render-results/results/job-1.txt", store.URL("results/job-1.txt"))
}

func TestNewBlobStore_Unknown(t *testing.T) {
	_, err := NewBlobStore(context.Background(), &config.BlobConfig{Provider: "gcs"})
	assert.Error(t, err)
}

func TestNewDeduper_FallsBackToMemory(t *testing.T) {
	cfg := &config.Config{Queue: config.QueueConfig{DedupWindow: time.Minute}}

	d := NewDeduper(nil, cfg)
	require.IsType(t, &queue.MemoryDeduper{}, d)

	first, err := d.Claim(context.Background(), "job-1")
	require.NoError(t, err)
	assert.True(t, first)

	again, err := d.Claim(context.Background(), "job-1")
	require.NoError(t, err)
	assert.False(t, again)
}

func TestInitRedis_Disabled(t *testing.T) {
	client, err := InitRedis(&config.RedisConfig{}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	assert.Nil(t, client)
}

func TestRabbitMQConfig(t *testing.T) {
	cfg := &config.RabbitMQConfig{
		Host:     "localhost",
		Port:     5672,
		Exchange: config.ExchangeConfig{Name: "render_exchange", Type: "direct", Durable: true},
		Queue:    config.RabbitQueueConfig{Name: "render_tasks", Type: "quorum", Durable: true},
		Publish:  config.PublishConfig{RetryAttempts: 3, RetryInterval: time.Second, BackoffMultiplier: 2},
	}

	got := RabbitMQConfig(cfg)
	assert.Equal(t, "render_tasks", got.QueueName)
	assert.Equal(t, "quorum", got.QueueType)
	assert.Equal(t, "render_exchange", got.ExchangeName)
	assert.Equal(t, 3, got.PublishRetries)
	assert.Equal(t, 2.0, got.PublishBackoffMult)
}

func TestQueueOptions(t *testing.T) {
	opts := QueueOptions(&config.QueueConfig{Lease: time.Minute, DedupWindow: 2 * time.Minute})
	assert.Equal(t, time.Minute, opts.Lease)
	assert.Equal(t, 2*time.Minute, opts.DedupWindow)
}
