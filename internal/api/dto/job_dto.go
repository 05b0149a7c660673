package dto

import (
	"time"

	"github.com/cuongbtq/render-queue/internal/domain"
)

type CreateJobRequest struct {
	DesignID string         `json:"designId"`
	UserID   string         `json:"userId"`
	Camera   *domain.Camera `json:"camera"`
}

type CreateJobResponse struct {
	JobID string `json:"job_id"`
}

type ListJobsRequest struct {
	UserID   string `form:"user_id"`
	Status   string `form:"status"`
	PageSize int    `form:"page_size"`
	Cursor   string `form:"cursor"`
}

type ListJobsResponse struct {
	Jobs       []JobDTO `json:"jobs"`
	NextCursor string   `json:"next_cursor,omitempty"`
}

type JobDTO struct {
	JobID     string        `json:"job_id"`
	DesignID  string        `json:"design_id"`
	UserID    string        `json:"user_id"`
	Camera    domain.Camera `json:"camera"`
	Status    string        `json:"status"`
	ResultURL string        `json:"result_url,omitempty"`
	Error     string        `json:"error,omitempty"`
	CreatedAt string        `json:"created_at"`
	UpdatedAt string        `json:"updated_at"`
}

type ErrorResponse struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}

// NewJobDTO projects a job record onto the API view
func NewJobDTO(job *domain.Job) JobDTO {
	return JobDTO{
		JobID:     job.JobID,
		DesignID:  job.DesignID,
		UserID:    job.UserID,
		Camera:    job.Camera,
		Status:    job.Status.String(),
		ResultURL: job.ResultURL,
		Error:     job.Error,
		CreatedAt: job.CreatedAt.Format(time.RFC3339Nano),
		UpdatedAt: job.UpdatedAt.Format(time.RFC3339Nano),
	}
}
