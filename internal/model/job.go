package model

import (
	"encoding/json"
	"time"
)

// JobKind selects the processing strategy for a job.
type JobKind string

const (
	// JobKindDirectUpload covers media that needs no processing (images,
	// audio, already-compatible video). The record completes at creation.
	JobKindDirectUpload JobKind = "direct_upload"

	// JobKindTranscode runs a local ffmpeg encode to H.264/AAC MP4.
	JobKindTranscode JobKind = "local_transcode"

	// Remote separation kinds delegate to the audio AI service.
	JobKindVocalSeparation JobKind = "vocal_separation"
	JobKindStem4Separation JobKind = "stem4_separation"
	JobKindStem6Separation JobKind = "stem6_separation"
)

// Remote reports whether the job is executed by the remote audio service.
// Remote jobs get synthetic progress from the booster; local jobs report
// real encoder progress.
func (k JobKind) Remote() bool {
	switch k {
	case JobKindVocalSeparation, JobKindStem4Separation, JobKindStem6Separation:
		return true
	}
	return false
}

// Job status
type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusSuccess    JobStatus = "success"
	JobStatusFailed     JobStatus = "failed"
)

// Terminal reports whether the status can never change again.
func (s JobStatus) Terminal() bool {
	return s == JobStatusSuccess || s == JobStatusFailed
}

// File types
const (
	FileTypeImage = "IMAGE"
	FileTypeVideo = "VIDEO"
	FileTypeAudio = "AUDIO"
)

// Job is one unit of asynchronous media processing work and doubles as the
// media record: direct uploads complete immediately, transcode and
// separation jobs move through the state machine.
type Job struct {
	ID          string    `gorm:"primaryKey;size:36" json:"id"`
	Kind        JobKind   `gorm:"size:32;index" json:"kind"`
	OwnerID     string    `gorm:"size:64;index:idx_jobs_owner_fingerprint" json:"ownerId"`
	Fingerprint string    `gorm:"size:64;index:idx_jobs_owner_fingerprint" json:"-"`
	SubjectRef  string    `gorm:"size:512" json:"subjectRef"`
	FileType    string    `gorm:"size:16" json:"fileType,omitempty"`
	DisplayName string    `gorm:"size:255" json:"displayName,omitempty"`
	SizeBytes   int64     `json:"sizeBytes,omitempty"`
	Status      JobStatus `gorm:"size:16;index" json:"status"`
	Progress    int       `json:"progress"`
	ResultRefs  []byte    `gorm:"type:text" json:"-"`
	ErrorMessage *string  `gorm:"size:512" json:"errorMessage,omitempty"`
	Width       *int      `json:"width,omitempty"`
	Height      *int      `json:"height,omitempty"`
	DurationSec *int      `json:"durationSec,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// ResultURLs decodes the stored result references. An empty or unset
// column yields nil.
func (j *Job) ResultURLs() []string {
	if len(j.ResultRefs) == 0 {
		return nil
	}
	var refs []string
	if err := json.Unmarshal(j.ResultRefs, &refs); err != nil {
		return nil
	}
	return refs
}

// EncodeResultURLs marshals result references for storage.
func EncodeResultURLs(refs []string) []byte {
	if len(refs) == 0 {
		return nil
	}
	data, err := json.Marshal(refs)
	if err != nil {
		return nil
	}
	return data
}
