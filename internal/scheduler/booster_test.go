package scheduler

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

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

type noopNotifier struct {
	mu       sync.Mutex
	calls    int
	progress []int
}

func (n *noopNotifier) BroadcastProgress(jobID string, progress int, status model.JobStatus, step string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls++
	n.progress = append(n.progress, progress)
}

func (n *noopNotifier) BroadcastComplete(jobID string, resultRefs []string) {}

func (n *noopNotifier) BroadcastError(jobID string, code, message string) {}

func seedJob(t *testing.T, s *store.JobStore, id string, kind model.JobKind, status model.JobStatus, progress int) {
	t.Helper()
	require.NoError(t, s.Create(context.Background(), &model.Job{
		ID:          id,
		Kind:        kind,
		OwnerID:     "user-1",
		Fingerprint: "fp-" + id,
		Status:      status,
		Progress:    progress,
	}))
}

func TestBoosterAdvancesRemoteJobs(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	notifier := &noopNotifier{}

	seedJob(t, s, "remote-1", model.JobKindVocalSeparation, model.JobStatusProcessing, 10)
	b := NewProgressBooster(s, notifier, BoosterConfig{Floor: 5, Ceiling: 80, Step: 2, Interval: time.Second})

	b.sweep()

	got, err := s.Get(ctx, "remote-1")
	require.NoError(t, err)
	assert.Equal(t, 12, got.Progress)
	assert.Equal(t, 1, notifier.calls)
	assert.Equal(t, []int{12}, notifier.progress, "broadcast carries the stored value")
}

func TestBoosterBroadcastsStoredValueAfterRacingPush(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	notifier := &noopNotifier{}
	b := NewProgressBooster(s, notifier, BoosterConfig{Floor: 5, Ceiling: 80, Step: 2, Interval: time.Second})

	seedJob(t, s, "racy", model.JobKindVocalSeparation, model.JobStatusProcessing, 10)

	// A push lands before the sweep's write; the broadcast must report
	// what the row says, never a value derived from a stale snapshot.
	_, _, err := s.PushProgress(ctx, "racy", 60)
	require.NoError(t, err)

	b.sweep()

	got, err := s.Get(ctx, "racy")
	require.NoError(t, err)
	assert.Equal(t, 62, got.Progress)
	assert.Equal(t, []int{62}, notifier.progress)
}

func TestBoosterStopsAtCeiling(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	b := NewProgressBooster(s, &noopNotifier{}, BoosterConfig{Floor: 5, Ceiling: 80, Step: 2, Interval: time.Second})

	seedJob(t, s, "remote-2", model.JobKindStem4Separation, model.JobStatusProcessing, 79)
	b.sweep()

	got, err := s.Get(ctx, "remote-2")
	require.NoError(t, err)
	assert.Equal(t, 80, got.Progress, "clamped at ceiling, not past it")

	b.sweep()
	got, err = s.Get(ctx, "remote-2")
	require.NoError(t, err)
	assert.Equal(t, 80, got.Progress, "at ceiling the job leaves the band")
}

func TestBoosterIgnoresLocalAndTerminalJobs(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	b := NewProgressBooster(s, &noopNotifier{}, BoosterConfig{Floor: 5, Ceiling: 80, Step: 2, Interval: time.Second})

	seedJob(t, s, "local-1", model.JobKindTranscode, model.JobStatusProcessing, 40)
	seedJob(t, s, "pending-1", model.JobKindVocalSeparation, model.JobStatusPending, 0)
	seedJob(t, s, "done-1", model.JobKindVocalSeparation, model.JobStatusSuccess, 100)

	b.sweep()

	for id, want := range map[string]int{"local-1": 40, "pending-1": 0, "done-1": 100} {
		got, err := s.Get(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, want, got.Progress, id)
	}
}
