package domain

// Status is the lifecycle state of a render job
type Status string

// Job status constants
const (
	JobStatusPending    Status = "PENDING"
	JobStatusProcessing Status = "PROCESSING"
	JobStatusCompleted  Status = "COMPLETED"
	JobStatusFailed     Status = "FAILED"
)

// DefaultGroupKey is the ordering group shared by every render job.
// All jobs are serialized through this one group.
const DefaultGroupKey = "global-render-tasks"

// IsTerminal reports whether no further transition is allowed from s
func (s Status) IsTerminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// IsValid reports whether s is one of the known statuses
func (s Status) IsValid() bool {
	switch s {
	case JobStatusPending, JobStatusProcessing, JobStatusCompleted, JobStatusFailed:
		return true
	}
	return false
}

func (s Status) String() string {
	return string(s)
}
