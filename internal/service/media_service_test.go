package service

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/creativehub/media/internal/executor"
	"github.com/creativehub/media/internal/model"
	"github.com/creativehub/media/internal/store"
)

func newTestStore(t *testing.T) *store.JobStore {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "jobs.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	s := store.NewJobStore(db)
	require.NoError(t, s.Migrate(context.Background()))
	return s
}

type fakeStorage struct {
	mu      sync.Mutex
	objects map[string][]byte
	deleted []string
}

func newFakeStorage() *fakeStorage {
	return &fakeStorage{objects: make(map[string][]byte)}
}

func (f *fakeStorage) Upload(ctx context.Context, key string, body io.Reader, contentType string) (string, error) {
	data, err := io.ReadAll(body)
	if err != nil {
		return "", err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[key] = data
	return f.GetPublicURL(key), nil
}

func (f *fakeStorage) Download(ctx context.Context, key string) (io.ReadCloser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.objects[key]
	if !ok {
		return nil, fmt.Errorf("object %s not found", key)
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (f *fakeStorage) Delete(ctx context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.objects, key)
	f.deleted = append(f.deleted, key)
	return nil
}

func (f *fakeStorage) GetPublicURL(key string) string {
	return "https://cdn.test/" + key
}

type recordingRunner struct {
	mu   sync.Mutex
	jobs []string
	done chan struct{}
}

func newRecordingRunner() *recordingRunner {
	return &recordingRunner{done: make(chan struct{}, 16)}
}

func (r *recordingRunner) Process(ctx context.Context, jobID string) {
	r.mu.Lock()
	r.jobs = append(r.jobs, jobID)
	r.mu.Unlock()
	r.done <- struct{}{}
}

func (r *recordingRunner) wait(t *testing.T) {
	t.Helper()
	select {
	case <-r.done:
	case <-time.After(2 * time.Second):
		t.Fatal("runner was not invoked")
	}
}

type progressRecorder struct {
	mu       sync.Mutex
	progress []int
}

func (r *progressRecorder) BroadcastProgress(jobID string, progress int, status model.JobStatus, step string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.progress = append(r.progress, progress)
}

func (r *progressRecorder) BroadcastComplete(jobID string, resultRefs []string) {}

func (r *progressRecorder) BroadcastError(jobID string, code, message string) {}

func (r *progressRecorder) values() []int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int(nil), r.progress...)
}

type serviceFixture struct {
	svc       *MediaService
	store     *store.JobStore
	storage   *fakeStorage
	transcode *recordingRunner
	separate  *recordingRunner
	notifier  *progressRecorder
	pool      *executor.Pool
}

func newFixture(t *testing.T) *serviceFixture {
	t.Helper()
	s := newTestStore(t)
	storage := newFakeStorage()
	transcode := newRecordingRunner()
	separate := newRecordingRunner()
	pool := executor.NewPool(2, 16)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		pool.Shutdown(ctx)
	})
	notifier := &progressRecorder{}
	return &serviceFixture{
		svc:       NewMediaService(s, storage, pool, transcode, separate, notifier),
		store:     s,
		storage:   storage,
		transcode: transcode,
		separate:  separate,
		notifier:  notifier,
		pool:      pool,
	}
}

func TestUploadImageCompletesImmediately(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	resp, err := f.svc.Upload(ctx, "user-1", "photo.jpg", "image/jpeg", strings.NewReader("jpeg bytes"))
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusSuccess, resp.Status)
	assert.Equal(t, 100, resp.Progress)
	assert.Contains(t, resp.URL, "https://cdn.test/original/")
	assert.Contains(t, resp.URL, ".jpg")

	job, err := f.store.Get(ctx, resp.JobID)
	require.NoError(t, err)
	assert.Equal(t, model.JobKindDirectUpload, job.Kind)
	assert.Equal(t, model.FileTypeImage, job.FileType)
	assert.Equal(t, "photo.jpg", job.DisplayName)
	assert.Equal(t, int64(len("jpeg bytes")), job.SizeBytes)
}

func TestUploadDuplicateReturnsExistingJob(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	first, err := f.svc.Upload(ctx, "user-1", "photo.jpg", "image/jpeg", strings.NewReader("same bytes"))
	require.NoError(t, err)

	second, err := f.svc.Upload(ctx, "user-1", "renamed.jpg", "image/jpeg", strings.NewReader("same bytes"))
	require.NoError(t, err)
	assert.Equal(t, first.JobID, second.JobID)
	assert.Len(t, f.storage.objects, 1, "duplicate upload must not touch storage")
}

func TestUploadSameContentDifferentOwners(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	first, err := f.svc.Upload(ctx, "user-1", "photo.jpg", "image/jpeg", strings.NewReader("shared bytes"))
	require.NoError(t, err)

	second, err := f.svc.Upload(ctx, "user-2", "photo.jpg", "image/jpeg", strings.NewReader("shared bytes"))
	require.NoError(t, err)
	assert.NotEqual(t, first.JobID, second.JobID, "dedup is per owner")
}

func TestUploadUnsupportedTypeLeavesNoTrace(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.svc.Upload(ctx, "user-1", "doc.pdf", "application/pdf", strings.NewReader("%PDF"))
	require.ErrorIs(t, err, ErrUnsupportedMedia)
	assert.Empty(t, f.storage.objects)
}

func TestUploadIncompatibleVideoQueuesTranscode(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	resp, err := f.svc.Upload(ctx, "user-1", "clip.mkv", "video/x-matroska", strings.NewReader("mkv bytes"))
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusPending, resp.Status)
	assert.Empty(t, resp.URL)

	f.transcode.wait(t)
	assert.Equal(t, []string{resp.JobID}, f.transcode.jobs)

	job, err := f.store.Get(ctx, resp.JobID)
	require.NoError(t, err)
	assert.Equal(t, model.JobKindTranscode, job.Kind)
	assert.Contains(t, job.SubjectRef, "original/")
}

func TestUploadCompatibleVideoSkipsTranscode(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	resp, err := f.svc.Upload(ctx, "user-1", "clip.mp4", "video/mp4", strings.NewReader("mp4 bytes"))
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusSuccess, resp.Status)
	assert.NotEmpty(t, resp.URL)
	assert.Empty(t, f.transcode.jobs)
}

func uploadAudio(t *testing.T, f *serviceFixture, owner string) string {
	t.Helper()
	resp, err := f.svc.Upload(context.Background(), owner, "song.mp3", "audio/mpeg", strings.NewReader("mp3 bytes "+owner))
	require.NoError(t, err)
	return resp.JobID
}

func TestStartSeparation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	mediaID := uploadAudio(t, f, "user-1")

	resp, err := f.svc.StartSeparation(ctx, "user-1", mediaID, model.JobKindVocalSeparation)
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusPending, resp.Status)

	f.separate.wait(t)
	assert.Equal(t, []string{resp.JobID}, f.separate.jobs)

	job, err := f.store.Get(ctx, resp.JobID)
	require.NoError(t, err)
	assert.Equal(t, model.JobKindVocalSeparation, job.Kind)
	assert.Equal(t, mediaID, job.SubjectRef)
}

func TestStartSeparationDeduplicates(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	mediaID := uploadAudio(t, f, "user-1")

	first, err := f.svc.StartSeparation(ctx, "user-1", mediaID, model.JobKindStem4Separation)
	require.NoError(t, err)
	f.separate.wait(t)

	second, err := f.svc.StartSeparation(ctx, "user-1", mediaID, model.JobKindStem4Separation)
	require.NoError(t, err)
	assert.Equal(t, first.JobID, second.JobID)
	assert.Len(t, f.separate.jobs, 1, "duplicate request must not queue again")

	// A different kind against the same source is a new job.
	third, err := f.svc.StartSeparation(ctx, "user-1", mediaID, model.JobKindStem6Separation)
	require.NoError(t, err)
	assert.NotEqual(t, first.JobID, third.JobID)
}

func TestStartSeparationRejectsForeignMedia(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	mediaID := uploadAudio(t, f, "user-1")

	_, err := f.svc.StartSeparation(ctx, "user-2", mediaID, model.JobKindVocalSeparation)
	assert.ErrorIs(t, err, store.ErrJobNotFound)
}

func TestStartSeparationRequiresReadySource(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	require.NoError(t, f.store.Create(ctx, &model.Job{
		ID:          "pending-media",
		Kind:        model.JobKindTranscode,
		OwnerID:     "user-1",
		Fingerprint: "fp-pending",
		Status:      model.JobStatusPending,
	}))

	_, err := f.svc.StartSeparation(ctx, "user-1", "pending-media", model.JobKindVocalSeparation)
	assert.ErrorIs(t, err, ErrSourceNotReady)
}

func TestPushProgress(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	mediaID := uploadAudio(t, f, "user-1")

	resp, err := f.svc.StartSeparation(ctx, "user-1", mediaID, model.JobKindVocalSeparation)
	require.NoError(t, err)
	f.separate.wait(t)

	require.NoError(t, f.svc.PushProgress(ctx, resp.JobID, 40))
	job, err := f.store.Get(ctx, resp.JobID)
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusProcessing, job.Status, "push forces processing")
	assert.Equal(t, 40, job.Progress)

	// Lower pushes never move a job backwards, and the live channel gets
	// the merged value, not the raw push.
	require.NoError(t, f.svc.PushProgress(ctx, resp.JobID, 10))
	job, err = f.store.Get(ctx, resp.JobID)
	require.NoError(t, err)
	assert.Equal(t, 40, job.Progress)
	assert.Equal(t, []int{40, 40}, f.notifier.values())

	// Unknown ids are acknowledged as no-ops.
	assert.NoError(t, f.svc.PushProgress(ctx, "no-such-job", 50))
}

func TestRestartFailsQueuedUploads(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	resp, err := f.svc.Upload(ctx, "user-1", "clip.mkv", "video/x-matroska", strings.NewReader("mkv bytes"))
	require.NoError(t, err)
	f.transcode.wait(t)

	// The runner stub never claimed the job, mimicking a crash between
	// submission and pickup. Boot recovery must fail it, not leave it
	// pending with nothing to drive it.
	n, err := f.store.RecoverInterrupted(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	job, err := f.store.Get(ctx, resp.JobID)
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusFailed, job.Status)

	// Re-uploading the same bytes deduplicates to the failed record, so
	// the caller sees a terminal state instead of a frozen pending one.
	again, err := f.svc.Upload(ctx, "user-1", "clip.mkv", "video/x-matroska", strings.NewReader("mkv bytes"))
	require.NoError(t, err)
	assert.Equal(t, resp.JobID, again.JobID)
	assert.Equal(t, model.JobStatusFailed, again.Status)
}

func TestDeleteMedia(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	mediaID := uploadAudio(t, f, "user-1")

	require.NoError(t, f.svc.DeleteMedia(ctx, "user-1", mediaID))

	_, err := f.store.Get(ctx, mediaID)
	assert.ErrorIs(t, err, store.ErrJobNotFound)
	assert.Len(t, f.storage.deleted, 1)

	assert.ErrorIs(t, f.svc.DeleteMedia(ctx, "user-1", mediaID), store.ErrJobNotFound)
}
