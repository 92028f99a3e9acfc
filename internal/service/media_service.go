// Package service holds the upload and separation flows that sit between
// the HTTP handlers and the job machinery.
package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/creativehub/media/internal/client"
	"github.com/creativehub/media/internal/dedup"
	"github.com/creativehub/media/internal/executor"
	"github.com/creativehub/media/internal/media"
	"github.com/creativehub/media/internal/model"
	"github.com/creativehub/media/internal/store"
	"github.com/creativehub/media/internal/worker"
)

var (
	// ErrUnsupportedMedia is returned for content types outside
	// image/video/audio. No record or object is created for these.
	ErrUnsupportedMedia = errors.New("unsupported media type")

	// ErrSourceNotReady is returned when a separation is requested against
	// media that has not finished uploading or processing.
	ErrSourceNotReady = errors.New("source media is not ready")
)

// JobRunner executes one job to completion. Both workers satisfy it.
type JobRunner interface {
	Process(ctx context.Context, jobID string)
}

// MediaService coordinates uploads, separation requests and job queries.
type MediaService struct {
	store     *store.JobStore
	storage   client.StorageClient
	pool      *executor.Pool
	transcode JobRunner
	separate  JobRunner
	hub       worker.Notifier
}

// NewMediaService creates a new media service
func NewMediaService(jobStore *store.JobStore, storage client.StorageClient, pool *executor.Pool, transcode, separate JobRunner, hub worker.Notifier) *MediaService {
	return &MediaService{
		store:     jobStore,
		storage:   storage,
		pool:      pool,
		transcode: transcode,
		separate:  separate,
		hub:       hub,
	}
}

// Upload ingests one file. Duplicate content for the same owner returns
// the existing record without touching storage; compatible formats
// complete immediately; incompatible video is queued for transcoding.
func (s *MediaService) Upload(ctx context.Context, ownerID, filename, contentType string, file io.Reader) (*model.UploadResponse, error) {
	data, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("failed to read upload: %w", err)
	}

	fingerprint, err := dedup.Fingerprint(bytes.NewReader(data), ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to fingerprint upload: %w", err)
	}

	if existing, err := s.store.FindByFingerprint(ctx, fingerprint, ownerID); err != nil {
		return nil, err
	} else if existing != nil {
		log.Printf("Upload deduplicated to job %s for owner %s", existing.ID, ownerID)
		return uploadResponse(existing), nil
	}

	fileType, err := media.FileTypeFromMIME(contentType)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedMedia, contentType)
	}

	jobID := uuid.New().String()
	ext := media.Ext(filename)
	key := OriginalKey(time.Now(), jobID, ext)

	url, err := s.storage.Upload(ctx, key, bytes.NewReader(data), contentType)
	if err != nil {
		return nil, fmt.Errorf("failed to store upload: %w", err)
	}

	job := &model.Job{
		ID:          jobID,
		OwnerID:     ownerID,
		Fingerprint: fingerprint,
		SubjectRef:  key,
		FileType:    fileType,
		DisplayName: filename,
		SizeBytes:   int64(len(data)),
	}

	if fileType == model.FileTypeVideo && media.NeedsTranscode(ext) {
		job.Kind = model.JobKindTranscode
		job.Status = model.JobStatusPending
		if err := s.store.Create(ctx, job); err != nil {
			return nil, err
		}
		s.pool.Submit(func() {
			s.transcode.Process(context.Background(), jobID)
		})
		return uploadResponse(job), nil
	}

	job.Kind = model.JobKindDirectUpload
	job.Status = model.JobStatusSuccess
	job.Progress = 100
	job.ResultRefs = model.EncodeResultURLs([]string{url})
	if err := s.store.Create(ctx, job); err != nil {
		return nil, err
	}
	return uploadResponse(job), nil
}

// StartSeparation queues a remote separation job against uploaded media.
// Requesting the same separation twice returns the original job.
func (s *MediaService) StartSeparation(ctx context.Context, ownerID, mediaID string, kind model.JobKind) (*model.SeparationStartResponse, error) {
	source, err := s.store.Get(ctx, mediaID)
	if err != nil {
		return nil, err
	}
	if source.OwnerID != ownerID {
		return nil, store.ErrJobNotFound
	}
	if source.Status != model.JobStatusSuccess || len(source.ResultURLs()) == 0 {
		return nil, ErrSourceNotReady
	}

	// One separation of a given kind per source and owner.
	fingerprint, err := dedup.Fingerprint(strings.NewReader(string(kind)+":"+mediaID), ownerID)
	if err != nil {
		return nil, err
	}
	if existing, err := s.store.FindByFingerprint(ctx, fingerprint, ownerID); err != nil {
		return nil, err
	} else if existing != nil {
		log.Printf("Separation deduplicated to job %s for owner %s", existing.ID, ownerID)
		return &model.SeparationStartResponse{JobID: existing.ID, Status: existing.Status}, nil
	}

	job := &model.Job{
		ID:          uuid.New().String(),
		Kind:        kind,
		OwnerID:     ownerID,
		Fingerprint: fingerprint,
		SubjectRef:  mediaID,
		FileType:    source.FileType,
		DisplayName: source.DisplayName,
		Status:      model.JobStatusPending,
	}
	if err := s.store.Create(ctx, job); err != nil {
		return nil, err
	}

	jobID := job.ID
	s.pool.Submit(func() {
		s.separate.Process(context.Background(), jobID)
	})

	return &model.SeparationStartResponse{JobID: jobID, Status: job.Status}, nil
}

// GetJob returns the polling view of a job for its owner.
func (s *MediaService) GetJob(ctx context.Context, ownerID, jobID string) (*model.JobStatusResponse, error) {
	job, err := s.store.Get(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.OwnerID != ownerID {
		return nil, store.ErrJobNotFound
	}
	return model.NewJobStatusResponse(job), nil
}

// PushProgress applies an external progress report. Every outcome the
// remote service can trigger is acknowledged: unknown job ids and pushes
// against terminal jobs are no-ops, not errors.
func (s *MediaService) PushProgress(ctx context.Context, jobID string, progress int) error {
	applied, merged, err := s.store.PushProgress(ctx, jobID, progress)
	if err != nil {
		if errors.Is(err, store.ErrJobNotFound) {
			log.Printf("Progress push for unknown job %s ignored", jobID)
			return nil
		}
		return err
	}
	if applied {
		// Broadcast the merged value: a stale push must not move the live
		// channel backwards either.
		s.hub.BroadcastProgress(jobID, merged, model.JobStatusProcessing, "Processing...")
	}
	return nil
}

// DeleteMedia removes a media record and its stored original. Derived
// artifacts on the CDN are left to bucket lifecycle rules.
func (s *MediaService) DeleteMedia(ctx context.Context, ownerID, jobID string) error {
	job, err := s.store.Get(ctx, jobID)
	if err != nil {
		return err
	}
	if job.OwnerID != ownerID {
		return store.ErrJobNotFound
	}

	if job.Kind == model.JobKindDirectUpload || job.Kind == model.JobKindTranscode {
		if err := s.storage.Delete(ctx, job.SubjectRef); err != nil {
			log.Printf("Failed to delete object %s: %v", job.SubjectRef, err)
		}
	}

	return s.store.Delete(ctx, jobID)
}

func uploadResponse(job *model.Job) *model.UploadResponse {
	resp := &model.UploadResponse{
		JobID:    job.ID,
		Status:   job.Status,
		Progress: job.Progress,
	}
	if urls := job.ResultURLs(); len(urls) > 0 {
		resp.URL = urls[0]
	}
	return resp
}
