package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrJobNotFound is returned when a job cannot be found in the record store
	ErrJobNotFound = errors.New("job not found")

	// ErrInvalidTransition is matched by every *TransitionError
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrMalformedMessage is matched by every *MalformedMessageError
	ErrMalformedMessage = errors.New("malformed queue message")
)

// ValidationError rejects a submission before anything is written
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation error: " + e.Message
	}
	return fmt.Sprintf("validation error: %s: %s", e.Field, e.Message)
}

// StoreError wraps a record store failure
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("record store %s failed: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// EnqueueError wraps a queue send failure. The job record named by JobID was
// already written and stays PENDING.
type EnqueueError struct {
	JobID string
	Err   error
}

func (e *EnqueueError) Error() string {
	return fmt.Sprintf("enqueue job %s failed: %v", e.JobID, e.Err)
}

func (e *EnqueueError) Unwrap() error {
	return e.Err
}

// BlobError wraps a blob store failure
type BlobError struct {
	Key string
	Err error
}

func (e *BlobError) Error() string {
	return fmt.Sprintf("blob store put %s failed: %v", e.Key, e.Err)
}

func (e *BlobError) Unwrap() error {
	return e.Err
}

// MalformedMessageError is raised when a queue payload cannot be parsed
type MalformedMessageError struct {
	Reason string
	Err    error
}

func (e *MalformedMessageError) Error() string {
	if e.Err == nil {
		return "malformed queue message: " + e.Reason
	}
	return fmt.Sprintf("malformed queue message: %s: %v", e.Reason, e.Err)
}

func (e *MalformedMessageError) Unwrap() error {
	return e.Err
}

func (e *MalformedMessageError) Is(target error) bool {
	return target == ErrMalformedMessage
}

// JobNotFoundError is raised by the worker when a message references a job
// the record store does not know
type JobNotFoundError struct {
	JobID string
}

func (e *JobNotFoundError) Error() string {
	return fmt.Sprintf("job %s not found", e.JobID)
}

func (e *JobNotFoundError) Is(target error) bool {
	return target == ErrJobNotFound
}

// WorkUnitError is a failure of the render step itself
type WorkUnitError struct {
	JobID string
	Err   error
}

func (e *WorkUnitError) Error() string {
	return fmt.Sprintf("render job %s failed: %v", e.JobID, e.Err)
}

func (e *WorkUnitError) Unwrap() error {
	return e.Err
}

// TransitionError is returned when a status update is not allowed from the
// record's current status
type TransitionError struct {
	JobID string
	From  Status
	To    Status
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("job %s: cannot transition from %s to %s", e.JobID, e.From, e.To)
}

func (e *TransitionError) Is(target error) bool {
	return target == ErrInvalidTransition
}
