package model

import "time"

// UploadResponse is returned immediately after an upload is accepted.
// For deduplicated or direct uploads the URL is already final; for
// transcode jobs the caller polls for it.
type UploadResponse struct {
	JobID    string    `json:"jobId"`
	Status   JobStatus `json:"status"`
	Progress int       `json:"progress"`
	URL      string    `json:"url,omitempty"`
}

// JobStatusResponse is the polling view of a job.
type JobStatusResponse struct {
	JobID        string    `json:"jobId"`
	Kind         JobKind   `json:"kind"`
	Status       JobStatus `json:"status"`
	Progress     int       `json:"progress"`
	ResultRefs   []string  `json:"resultRefs,omitempty"`
	ErrorMessage *string   `json:"errorMessage,omitempty"`
	DisplayName  string    `json:"displayName,omitempty"`
	Width        *int      `json:"width,omitempty"`
	Height       *int      `json:"height,omitempty"`
	DurationSec  *int      `json:"durationSec,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// NewJobStatusResponse converts a stored job into its polling view.
func NewJobStatusResponse(job *Job) *JobStatusResponse {
	return &JobStatusResponse{
		JobID:        job.ID,
		Kind:         job.Kind,
		Status:       job.Status,
		Progress:     job.Progress,
		ResultRefs:   job.ResultURLs(),
		ErrorMessage: job.ErrorMessage,
		DisplayName:  job.DisplayName,
		Width:        job.Width,
		Height:       job.Height,
		DurationSec:  job.DurationSec,
		CreatedAt:    job.CreatedAt,
		UpdatedAt:    job.UpdatedAt,
	}
}

// SeparationStartRequest starts a remote separation job for an uploaded
// media record.
type SeparationStartRequest struct {
	MediaID string `json:"mediaId" validate:"required"`
}

// SeparationStartResponse is the immediate acknowledgement of a
// separation request.
type SeparationStartResponse struct {
	JobID  string    `json:"jobId"`
	Status JobStatus `json:"status"`
}

// ProgressPushRequest is the payload the remote audio service posts back
// while it works on a job.
type ProgressPushRequest struct {
	Progress int    `json:"progress" validate:"gte=0,lte=100"`
	Message  string `json:"message,omitempty"`
}

// AckResponse is the success-shaped envelope returned to the remote
// service for every push, including no-ops.
type AckResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}
