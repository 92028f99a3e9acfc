// Package store persists job records. It is the source of truth for
// recovery: every status and progress transition goes through here, and
// progress writes are applied with a monotone merge at the SQL layer so
// concurrent writers (worker, booster, remote push) can never move a job
// backwards.
package store

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/creativehub/media/internal/media"
	"github.com/creativehub/media/internal/model"
)

const (
	// InitialProgress is written when a worker claims a job, so the caller
	// sees movement before the adapter produces its first real signal.
	InitialProgress = 5

	// FailureFloor is the minimum progress shown for a failed job that
	// never advanced; a job that got further keeps the value it reached.
	FailureFloor = 5

	// ErrorMessageLimit bounds stored error messages so an oversized
	// message can never make the failure write itself fail.
	ErrorMessageLimit = 500
)

// ErrJobNotFound is returned when a job id does not exist.
var ErrJobNotFound = errors.New("job not found")

// JobStore is the GORM-backed job record store.
type JobStore struct {
	db *gorm.DB
}

// NewJobStore wraps an open gorm handle.
func NewJobStore(db *gorm.DB) *JobStore {
	return &JobStore{db: db}
}

// Migrate creates the jobs table.
func (s *JobStore) Migrate(ctx context.Context) error {
	return s.db.WithContext(ctx).AutoMigrate(&model.Job{})
}

// Create persists a new job record.
func (s *JobStore) Create(ctx context.Context, job *model.Job) error {
	return s.db.WithContext(ctx).Create(job).Error
}

// Get loads a job by id.
func (s *JobStore) Get(ctx context.Context, id string) (*model.Job, error) {
	var job model.Job
	err := s.db.WithContext(ctx).First(&job, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrJobNotFound
		}
		return nil, err
	}
	return &job, nil
}

// FindByFingerprint returns the existing record for (fingerprint, owner),
// or nil when the content has not been seen before.
func (s *JobStore) FindByFingerprint(ctx context.Context, fingerprint, ownerID string) (*model.Job, error) {
	var job model.Job
	err := s.db.WithContext(ctx).
		Where("fingerprint = ? AND owner_id = ?", fingerprint, ownerID).
		First(&job).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &job, nil
}

// Claim transitions a pending job to processing on behalf of a worker.
// The record is re-read inside the transaction; a job already in a
// terminal state is not claimed (claimed=false), which makes duplicate
// submission harmless.
func (s *JobStore) Claim(ctx context.Context, id string) (job *model.Job, claimed bool, err error) {
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var current model.Job
		if err := tx.First(&current, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrJobNotFound
			}
			return err
		}

		if current.Status.Terminal() {
			job = &current
			return nil
		}

		current.Status = model.JobStatusProcessing
		if current.Progress < InitialProgress {
			current.Progress = InitialProgress
		}
		if err := tx.Save(&current).Error; err != nil {
			return err
		}

		job = &current
		claimed = true
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return job, claimed, nil
}

// UpdateProgress applies a worker progress sample. The guard clause makes
// the write monotone and restricts it to in-flight jobs; a stale or
// out-of-order sample is silently dropped.
func (s *JobStore) UpdateProgress(ctx context.Context, id string, progress int) error {
	if progress < 0 {
		progress = 0
	}
	if progress > 100 {
		progress = 100
	}
	return s.db.WithContext(ctx).
		Model(&model.Job{}).
		Where("id = ? AND status = ? AND progress < ?", id, model.JobStatusProcessing, progress).
		Update("progress", progress).Error
}

// PushProgress applies an external progress push. Rules, in order: a
// terminal job is left untouched (applied=false, nil error); a job not yet
// processing is forced to processing; progress is merged with max, never
// overwritten. The returned value is the merged progress actually stored,
// so callers relay the monotone value rather than the raw push. A missing
// job reports ErrJobNotFound so the caller can translate it into a no-op
// ack.
func (s *JobStore) PushProgress(ctx context.Context, id string, progress int) (applied bool, merged int, err error) {
	if progress < 0 {
		progress = 0
	}
	if progress > 100 {
		progress = 100
	}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var current model.Job
		if err := tx.First(&current, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrJobNotFound
			}
			return err
		}

		if current.Status.Terminal() {
			merged = current.Progress
			return nil
		}

		current.Status = model.JobStatusProcessing
		if progress > current.Progress {
			current.Progress = progress
		}
		if err := tx.Save(&current).Error; err != nil {
			return err
		}
		applied = true
		merged = current.Progress
		return nil
	})
	return applied, merged, err
}

// Complete finalizes a successful job: result references, progress pinned
// to 100, any stale error cleared, and output metadata recorded when the
// probe produced it.
func (s *JobStore) Complete(ctx context.Context, id string, refs []string, meta *media.Metadata) error {
	updates := map[string]interface{}{
		"status":        model.JobStatusSuccess,
		"progress":      100,
		"result_refs":   model.EncodeResultURLs(refs),
		"error_message": nil,
	}
	if meta != nil {
		updates["width"] = meta.Width
		updates["height"] = meta.Height
		updates["duration_sec"] = meta.DurationSec
	}
	result := s.db.WithContext(ctx).
		Model(&model.Job{}).
		Where("id = ? AND status NOT IN ?", id, []model.JobStatus{model.JobStatusSuccess, model.JobStatusFailed}).
		Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("complete job %s: record missing or already terminal", id)
	}
	return nil
}

// Fail finalizes a failed job. The message is truncated so storage limits
// never mask the real error, and progress keeps the greater of its current
// value and the failure floor: a job that stalled mid-way still shows how
// far it got.
func (s *JobStore) Fail(ctx context.Context, id string, message string) error {
	if len(message) > ErrorMessageLimit {
		message = message[:ErrorMessageLimit]
	}
	return s.db.WithContext(ctx).
		Model(&model.Job{}).
		Where("id = ? AND status NOT IN ?", id, []model.JobStatus{model.JobStatusSuccess, model.JobStatusFailed}).
		Updates(map[string]interface{}{
			"status":        model.JobStatusFailed,
			"error_message": message,
			"progress":      gorm.Expr("MAX(progress, ?)", FailureFloor),
		}).Error
}

// BoostCandidates returns the remote jobs eligible for a synthetic
// progress bump: processing, with progress inside [floor, ceiling).
// Local transcode jobs report real encoder progress and are excluded.
func (s *JobStore) BoostCandidates(ctx context.Context, floor, ceiling int) ([]*model.Job, error) {
	var jobs []*model.Job
	err := s.db.WithContext(ctx).
		Where("status = ? AND progress >= ? AND progress < ?", model.JobStatusProcessing, floor, ceiling).
		Where("kind IN ?", []model.JobKind{
			model.JobKindVocalSeparation,
			model.JobKindStem4Separation,
			model.JobKindStem6Separation,
		}).
		Find(&jobs).Error
	if err != nil {
		return nil, err
	}
	return jobs, nil
}

// BoostProgress advances a job's synthetic progress by step, clamped at
// ceiling. The guard re-checks the band so a racing real update or
// completion wins. It returns the progress actually stored after the
// write and whether the boost was applied, so callers broadcast what the
// row says rather than a value computed from a stale snapshot.
func (s *JobStore) BoostProgress(ctx context.Context, id string, step, floor, ceiling int) (progress int, boosted bool, err error) {
	result := s.db.WithContext(ctx).
		Model(&model.Job{}).
		Where("id = ? AND status = ? AND progress >= ? AND progress < ?",
			id, model.JobStatusProcessing, floor, ceiling).
		Update("progress", gorm.Expr("MIN(progress + ?, ?)", step, ceiling))
	if result.Error != nil {
		return 0, false, result.Error
	}

	var current model.Job
	if err := s.db.WithContext(ctx).Select("progress").First(&current, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, false, ErrJobNotFound
		}
		return 0, false, err
	}
	return current.Progress, result.RowsAffected > 0, nil
}

// RecoverInterrupted fails every job left in-flight by a previous crashed
// run. Pending rows are included: the submission queue is in-memory, so a
// job that never reached a worker has nothing left to drive it after a
// restart. Temp artifacts are wiped by the work-area pre-clean when the
// id is next seen; callers resubmit explicitly, there is no automatic
// retry.
func (s *JobStore) RecoverInterrupted(ctx context.Context) (int64, error) {
	result := s.db.WithContext(ctx).
		Model(&model.Job{}).
		Where("status IN ?", []model.JobStatus{model.JobStatusPending, model.JobStatusProcessing}).
		Updates(map[string]interface{}{
			"status":        model.JobStatusFailed,
			"error_message": "processing interrupted by service restart",
		})
	return result.RowsAffected, result.Error
}

// Delete removes a job record.
func (s *JobStore) Delete(ctx context.Context, id string) error {
	return s.db.WithContext(ctx).Delete(&model.Job{}, "id = ?", id).Error
}
