package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/cuongbtq/render-queue/internal/domain"
	"github.com/cuongbtq/render-queue/shared/postgresql"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

const jobColumns = `job_id, design_id, user_id, camera, status, result_url, error_message, created_at, updated_at`

// uniqueViolation is the Postgres SQLSTATE for a duplicate key
const uniqueViolation = "23505"

// jobRow is the render_jobs row shape
type jobRow struct {
	JobID        string         `db:"job_id"`
	DesignID     string         `db:"design_id"`
	UserID       string         `db:"user_id"`
	Camera       []byte         `db:"camera"`
	Status       string         `db:"status"`
	ResultURL    sql.NullString `db:"result_url"`
	ErrorMessage sql.NullString `db:"error_message"`
	CreatedAt    time.Time      `db:"created_at"`
	UpdatedAt    time.Time      `db:"updated_at"`
}

func (r *jobRow) toDomain() (*domain.Job, error) {
	job := &domain.Job{
		JobID:     r.JobID,
		DesignID:  r.DesignID,
		UserID:    r.UserID,
		Status:    domain.Status(r.Status),
		ResultURL: r.ResultURL.String,
		Error:     r.ErrorMessage.String,
		CreatedAt: r.CreatedAt.UTC(),
		UpdatedAt: r.UpdatedAt.UTC(),
	}
	if len(r.Camera) > 0 {
		if err := json.Unmarshal(r.Camera, &job.Camera); err != nil {
			return nil, fmt.Errorf("failed to decode camera for job %s: %w", r.JobID, err)
		}
	}
	return job, nil
}

// PostgresStore handles all render job database operations
type PostgresStore struct {
	client *postgresql.Client
	db     *sqlx.DB
	logger *slog.Logger
}

// NewPostgresStore creates a new PostgresStore instance
func NewPostgresStore(pg *postgresql.Client, logger *slog.Logger) *PostgresStore {
	return &PostgresStore{
		client: pg,
		db:     pg.GetDB(),
		logger: logger,
	}
}

// Put inserts a new job record
func (s *PostgresStore) Put(ctx context.Context, job *domain.Job) error {
	camera, err := json.Marshal(job.Camera)
	if err != nil {
		return fmt.Errorf("failed to encode camera: %w", err)
	}

	query := `
		INSERT INTO render_jobs (
			job_id, design_id, user_id, camera,
			status, result_url, error_message, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4,
			$5, $6, $7, $8, $9
		)
	`

	_, err = s.db.ExecContext(
		ctx,
		query,
		job.JobID,
		job.DesignID,
		job.UserID,
		camera,
		job.Status,
		nullString(job.ResultURL),
		nullString(job.Error),
		job.CreatedAt,
		job.UpdatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return ErrJobExists
		}
		return fmt.Errorf("failed to create job: %w", err)
	}

	return nil
}

// Get retrieves a job by its ID
func (s *PostgresStore) Get(ctx context.Context, jobID string) (*domain.Job, error) {
	var row jobRow
	query := `SELECT ` + jobColumns + ` FROM render_jobs WHERE job_id = $1`

	if err := s.db.GetContext(ctx, &row, query, jobID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrJobNotFound
		}
		return nil, fmt.Errorf("failed to get job: %w", err)
	}

	return row.toDomain()
}

// Update applies a status transition with optimistic locking on the current status
func (s *PostgresStore) Update(ctx context.Context, jobID string, u domain.StatusUpdate) (*domain.Job, error) {
	from := make([]string, len(u.From))
	for i, st := range u.From {
		from[i] = string(st)
	}

	query := `
		UPDATE render_jobs
		SET status = $1,
			result_url = $2,
			error_message = $3,
			updated_at = $4
		WHERE job_id = $5
		  AND status = ANY($6)
		RETURNING ` + jobColumns

	var row jobRow
	err := s.db.GetContext(ctx, &row, query,
		u.Status,
		nullString(u.ResultURL),
		nullString(u.Error),
		u.UpdatedAt,
		jobID,
		pq.Array(from),
	)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("failed to update job status: %w", err)
		}

		current, getErr := s.Get(ctx, jobID)
		if getErr != nil {
			return nil, getErr
		}
		s.logger.Warn("Job status update rejected",
			slog.String("job_id", jobID),
			slog.String("current_status", current.Status.String()),
			slog.String("target_status", u.Status.String()),
		)
		return nil, &domain.TransitionError{JobID: jobID, From: current.Status, To: u.Status}
	}

	s.logger.Debug("Job status updated",
		slog.String("job_id", jobID),
		slog.String("status", u.Status.String()),
	)

	return row.toDomain()
}

// List returns one page of jobs, newest first, fetching one extra row
func (s *PostgresStore) List(ctx context.Context, filter JobFilter) ([]domain.Job, error) {
	query := `SELECT ` + jobColumns + ` FROM render_jobs WHERE 1=1`
	args := []interface{}{}
	argIdx := 1

	if filter.UserID != "" {
		query += fmt.Sprintf(" AND user_id = $%d", argIdx)
		args = append(args, filter.UserID)
		argIdx++
	}

	if filter.Status != "" {
		query += fmt.Sprintf(" AND status = $%d", argIdx)
		args = append(args, filter.Status)
		argIdx++
	}

	if filter.Cursor != nil {
		query += fmt.Sprintf(" AND (created_at, job_id) < ($%d, $%d)", argIdx, argIdx+1)
		args = append(args, filter.Cursor.CreatedAt, filter.Cursor.JobID)
		argIdx += 2
	}

	query += " ORDER BY created_at DESC, job_id DESC"

	if filter.PageSize > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIdx)
		args = append(args, filter.PageSize+1)
	}

	var rows []jobRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}

	jobs := make([]domain.Job, 0, len(rows))
	for i := range rows {
		job, err := rows[i].toDomain()
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, *job)
	}

	return jobs, nil
}

// RecordDeadLetter persists a message the worker gave up on. The body is
// stored as raw bytes; the text columns are cleaned of NUL bytes and invalid
// UTF-8, which Postgres rejects in TEXT.
func (s *PostgresStore) RecordDeadLetter(ctx context.Context, dl *DeadLetter) error {
	if dl.CreatedAt.IsZero() {
		dl.CreatedAt = time.Now().UTC()
	}

	row := *dl
	row.DedupID = cleanText(dl.DedupID)
	row.GroupID = cleanText(dl.GroupID)
	row.Reason = cleanText(dl.Reason)
	if row.Body == nil {
		row.Body = []byte{}
	}

	query := `
		INSERT INTO render_dead_letters (
			dedup_id, group_id, body, reason, receive_count, created_at
		) VALUES (
			:dedup_id, :group_id, :body, :reason, :receive_count, :created_at
		)
	`

	if _, err := s.db.NamedExecContext(ctx, query, &row); err != nil {
		return fmt.Errorf("failed to record dead letter: %w", err)
	}

	s.logger.Info("Dead letter recorded",
		slog.String("dedup_id", dl.DedupID),
		slog.String("reason", dl.Reason),
		slog.Int("receive_count", dl.ReceiveCount),
	)

	return nil
}

// ListDeadLetters returns the most recent dead letters first
func (s *PostgresStore) ListDeadLetters(ctx context.Context, limit int) ([]DeadLetter, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT id, dedup_id, group_id, body, reason, receive_count, created_at
		FROM render_dead_letters
		ORDER BY created_at DESC, id DESC
		LIMIT $1
	`

	var out []DeadLetter
	if err := s.db.SelectContext(ctx, &out, query, limit); err != nil {
		return nil, fmt.Errorf("failed to list dead letters: %w", err)
	}
	return out, nil
}

// Ping checks the database connection
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.client.HealthCheck(ctx)
}

// cleanText makes s storable in a TEXT column
func cleanText(s string) string {
	return strings.ToValidUTF8(strings.ReplaceAll(s, "\x00", ""), "\uFFFD")
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
