package storage

import (
	"context"
	"fmt"

	"github.com/cuongbtq/render-queue/shared/postgresql"
)

// schemaStatements create the render job tables. Every statement is idempotent.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS render_jobs (
		job_id        UUID PRIMARY KEY,
		design_id     TEXT NOT NULL,
		user_id       TEXT NOT NULL,
		camera        JSONB NOT NULL,
		status        TEXT NOT NULL CHECK (status IN ('PENDING', 'PROCESSING', 'COMPLETED', 'FAILED')),
		result_url    TEXT,
		error_message TEXT,
		created_at    TIMESTAMPTZ NOT NULL,
		updated_at    TIMESTAMPTZ NOT NULL,
		CHECK ((status = 'COMPLETED') = (result_url IS NOT NULL)),
		CHECK ((status = 'FAILED') = (error_message IS NOT NULL))
	)`,
	`CREATE INDEX IF NOT EXISTS idx_render_jobs_created ON render_jobs (created_at DESC, job_id DESC)`,
	`CREATE INDEX IF NOT EXISTS idx_render_jobs_user_created ON render_jobs (user_id, created_at DESC, job_id DESC)`,
	`CREATE TABLE IF NOT EXISTS render_dead_letters (
		id            BIGSERIAL PRIMARY KEY,
		dedup_id      TEXT NOT NULL,
		group_id      TEXT NOT NULL,
		body          BYTEA NOT NULL,
		reason        TEXT NOT NULL,
		receive_count INTEGER NOT NULL,
		created_at    TIMESTAMPTZ NOT NULL
	)`,
	`DO $$
	BEGIN
		IF EXISTS (
			SELECT 1 FROM information_schema.columns
			WHERE table_name = 'render_dead_letters' AND column_name = 'body' AND data_type = 'text'
		) THEN
			ALTER TABLE render_dead_letters ALTER COLUMN body TYPE BYTEA USING convert_to(body, 'UTF8');
		END IF;
	END $$`,
}

// EnsureSchema creates the tables and indexes in a single transaction
func EnsureSchema(ctx context.Context, pg *postgresql.Client) error {
	tx, err := pg.BeginTx(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	for _, stmt := range schemaStatements {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit schema: %w", err)
	}
	return nil
}
