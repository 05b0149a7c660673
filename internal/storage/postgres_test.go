package storage

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/cuongbtq/render-queue/shared/postgresql"
	"github.com/stretchr/testify/require"
)

// newTestPostgres connects to the database named by RENDER_TEST_POSTGRES_HOST.
// The test is skipped when the variable is unset.
func newTestPostgres(t *testing.T) *postgresql.Client {
	t.Helper()

	host := os.Getenv("RENDER_TEST_POSTGRES_HOST")
	if host == "" {
		t.Skip("RENDER_TEST_POSTGRES_HOST not set")
	}

	port, _ := strconv.Atoi(os.Getenv("RENDER_TEST_POSTGRES_PORT"))
	if port == 0 {
		port = 5432
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	client, err := postgresql.NewClient(&postgresql.Config{
		Host:            host,
		Port:            port,
		User:            envOr("RENDER_TEST_POSTGRES_USER", "postgres"),
		Password:        envOr("RENDER_TEST_POSTGRES_PASSWORD", "postgres"),
		Database:        envOr("RENDER_TEST_POSTGRES_DB", "render_jobs_test"),
		SSLMode:         "disable",
		MaxOpenConns:    5,
		MaxIdleConns:    2,
		ConnMaxLifetime: time.Minute,
	}, logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	require.NoError(t, EnsureSchema(context.Background(), client))
	return client
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func TestPostgresStore(t *testing.T) {
	client := newTestPostgres(t)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	runJobStoreTests(t, func(t *testing.T) JobStore {
		return NewPostgresStore(client, logger)
	})
}

func TestPostgresStore_DeadLetters(t *testing.T) {
	client := newTestPostgres(t)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	runDeadLetterTests(t, NewPostgresStore(client, logger))
}

func TestPostgresStore_Ping(t *testing.T) {
	client := newTestPostgres(t)
	store := NewPostgresStore(client, slog.New(slog.NewTextHandler(io.Discard, nil)))

	require.NoError(t, store.Ping(context.Background()))
}
