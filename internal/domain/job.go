package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// Vector3 is a point or direction in scene space
type Vector3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Camera describes the viewpoint of a render. It is passed through to the
// renderer untouched.
type Camera struct {
	Position *Vector3 `json:"position" validate:"required"`
	Target   *Vector3 `json:"target" validate:"required"`
	Up       *Vector3 `json:"up" validate:"required"`
	Fov      float64  `json:"fov" validate:"gt=0,lt=180"`
}

// Job is the full render job record
type Job struct {
	JobID     string    `json:"jobId"`
	DesignID  string    `json:"designId"`
	UserID    string    `json:"userId"`
	Camera    Camera    `json:"camera"`
	Status    Status    `json:"status"`
	ResultURL string    `json:"resultUrl,omitempty"`
	Error     string    `json:"error,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// NewJob builds a PENDING job stamped with now
func NewJob(jobID, designID, userID string, camera Camera, now time.Time) *Job {
	now = now.UTC()
	return &Job{
		JobID:     jobID,
		DesignID:  designID,
		UserID:    userID,
		Camera:    camera,
		Status:    JobStatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Check verifies the field invariants that tie resultUrl and error to status
func (j *Job) Check() error {
	if !j.Status.IsValid() {
		return fmt.Errorf("unknown status %q", j.Status)
	}
	if (j.ResultURL != "") != (j.Status == JobStatusCompleted) {
		return fmt.Errorf("result_url must be set only when status is %s", JobStatusCompleted)
	}
	if (j.Error != "") != (j.Status == JobStatusFailed) {
		return fmt.Errorf("error must be set only when status is %s", JobStatusFailed)
	}
	return nil
}

// StatusUpdate is a conditional partial update of a job record. It is applied
// only when the stored status is one of From.
type StatusUpdate struct {
	Status    Status
	ResultURL string
	Error     string
	UpdatedAt time.Time
	From      []Status
}

// Allows reports whether the update may be applied to a record in status s
func (u StatusUpdate) Allows(s Status) bool {
	for _, from := range u.From {
		if from == s {
			return true
		}
	}
	return false
}

// MarkProcessing moves a job into PROCESSING. PROCESSING is accepted as a
// source so a redelivered message can resume a job interrupted mid-flight.
func MarkProcessing(now time.Time) StatusUpdate {
	return StatusUpdate{
		Status:    JobStatusProcessing,
		UpdatedAt: now.UTC(),
		From:      []Status{JobStatusPending, JobStatusProcessing},
	}
}

// MarkCompleted moves a PROCESSING job into COMPLETED with its result location
func MarkCompleted(resultURL string, now time.Time) StatusUpdate {
	return StatusUpdate{
		Status:    JobStatusCompleted,
		ResultURL: resultURL,
		UpdatedAt: now.UTC(),
		From:      []Status{JobStatusProcessing},
	}
}

// MarkFailed moves a PROCESSING job into FAILED with a human readable cause
func MarkFailed(cause string, now time.Time) StatusUpdate {
	if cause == "" {
		cause = "unknown error"
	}
	return StatusUpdate{
		Status:    JobStatusFailed,
		Error:     cause,
		UpdatedAt: now.UTC(),
		From:      []Status{JobStatusProcessing},
	}
}

// Apply returns a copy of j with the update applied. It fails with a
// *TransitionError when the current status is not an allowed source.
func (j *Job) Apply(u StatusUpdate) (*Job, error) {
	if !u.Allows(j.Status) {
		return nil, &TransitionError{JobID: j.JobID, From: j.Status, To: u.Status}
	}
	out := *j
	out.Status = u.Status
	out.UpdatedAt = u.UpdatedAt
	out.ResultURL = u.ResultURL
	out.Error = u.Error
	return &out, nil
}

// JobMessage is the queue payload. It carries the full job as it was at
// submission time; only JobID is trusted by the worker.
type JobMessage struct {
	Job
}

// Encode marshals the message body
func (m *JobMessage) Encode() ([]byte, error) {
	return json.Marshal(m)
}

// DecodeJobMessage parses a queue payload
func DecodeJobMessage(body []byte) (*JobMessage, error) {
	var msg JobMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
