package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testCamera() Camera {
	return Camera{
		Position: &Vector3{X: 10, Y: 5, Z: 10},
		Target:   &Vector3{X: 0, Y: 0, Z: 0},
		Up:       &Vector3{X: 0, Y: 1, Z: 0},
		Fov:      45,
	}
}

func TestNewJob(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.FixedZone("ICT", 7*3600))
	job := NewJob("job-1", "design-1", "user-1", testCamera(), now)

	assert.Equal(t, JobStatusPending, job.Status)
	assert.Equal(t, time.UTC, job.CreatedAt.Location())
	assert.True(t, job.CreatedAt.Equal(now))
	assert.Equal(t, job.CreatedAt, job.UpdatedAt)
	assert.Empty(t, job.ResultURL)
	assert.Empty(t, job.Error)
	require.NoError(t, job.Check())
}

func TestJob_Apply(t *testing.T) {
	now := time.Now()

	tests := []struct {
		name    string
		from    Status
		update  StatusUpdate
		wantErr bool
	}{
		{name: "pending to processing", from: JobStatusPending, update: MarkProcessing(now)},
		{name: "processing to processing on redelivery", from: JobStatusProcessing, update: MarkProcessing(now)},
		{name: "processing to completed", from: JobStatusProcessing, update: MarkCompleted("http://blob/results/x.txt", now)},
		{name: "processing to failed", from: JobStatusProcessing, update: MarkFailed("boom", now)},
		{name: "pending to completed skips processing", from: JobStatusPending, update: MarkCompleted("u", now), wantErr: true},
		{name: "pending to failed skips processing", from: JobStatusPending, update: MarkFailed("boom", now), wantErr: true},
		{name: "completed is terminal", from: JobStatusCompleted, update: MarkProcessing(now), wantErr: true},
		{name: "failed is terminal", from: JobStatusFailed, update: MarkCompleted("u", now), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			job := NewJob("job-1", "design-1", "user-1", testCamera(), now)
			job.Status = tt.from

			got, err := job.Apply(tt.update)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, ErrInvalidTransition))

				var te *TransitionError
				require.ErrorAs(t, err, &te)
				assert.Equal(t, tt.from, te.From)
				assert.Equal(t, tt.update.Status, te.To)
				assert.Nil(t, got)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.update.Status, got.Status)
			assert.Equal(t, tt.from, job.Status, "original job must not be mutated")
		})
	}
}

func TestMarkFailed_DefaultCause(t *testing.T) {
	u := MarkFailed("", time.Now())
	assert.Equal(t, "unknown error", u.Error)
	assert.Equal(t, JobStatusFailed, u.Status)
}

func TestJob_Check(t *testing.T) {
	job := NewJob("job-1", "design-1", "user-1", testCamera(), time.Now())

	job.ResultURL = "http://x"
	assert.Error(t, job.Check(), "pending job with result url")

	job.ResultURL = ""
	job.Status = JobStatusCompleted
	assert.Error(t, job.Check(), "completed job without result url")

	job.ResultURL = "http://x"
	assert.NoError(t, job.Check())

	job.Status = JobStatusFailed
	job.ResultURL = ""
	job.Error = "render failed"
	assert.NoError(t, job.Check())

	job.Status = "CANCELED"
	assert.Error(t, job.Check())
}

func TestJobMessage_RoundTrip(t *testing.T) {
	job := NewJob("job-1", "design-1", "user-1", testCamera(), time.Now())
	body, err := (&JobMessage{Job: *job}).Encode()
	require.NoError(t, err)

	assert.Contains(t, string(body), `"jobId":"job-1"`)
	assert.Contains(t, string(body), `"status":"PENDING"`)

	msg, err := DecodeJobMessage(body)
	require.NoError(t, err)
	assert.Equal(t, job.JobID, msg.JobID)
	assert.Equal(t, job.Camera, msg.Camera)
	assert.True(t, job.CreatedAt.Equal(msg.CreatedAt))

	_, err = DecodeJobMessage([]byte("{not json"))
	assert.Error(t, err)
}

func TestErrors_Matching(t *testing.T) {
	cause := errors.New("connection reset")

	var storeErr *StoreError
	assert.ErrorAs(t, error(&StoreError{Op: "put", Err: cause}), &storeErr)
	assert.ErrorIs(t, &StoreError{Op: "put", Err: cause}, cause)
	assert.ErrorIs(t, &EnqueueError{JobID: "j", Err: cause}, cause)
	assert.ErrorIs(t, &BlobError{Key: "k", Err: cause}, cause)
	assert.ErrorIs(t, &WorkUnitError{JobID: "j", Err: cause}, cause)
	assert.ErrorIs(t, &JobNotFoundError{JobID: "j"}, ErrJobNotFound)
	assert.ErrorIs(t, &MalformedMessageError{Reason: "bad json"}, ErrMalformedMessage)
	assert.Equal(t, "validation error: fov: must be between 0 and 180", (&ValidationError{Field: "fov", Message: "must be between 0 and 180"}).Error())
}

func TestStatus(t *testing.T) {
	assert.True(t, JobStatusCompleted.IsTerminal())
	assert.True(t, JobStatusFailed.IsTerminal())
	assert.False(t, JobStatusPending.IsTerminal())
	assert.False(t, JobStatusProcessing.IsTerminal())
	assert.False(t, Status("RUNNING").IsValid())
}
