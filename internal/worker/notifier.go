package worker

import "github.com/creativehub/media/internal/model"

// Notifier pushes job lifecycle events to live subscribers. The WebSocket
// hub satisfies it in production.
type Notifier interface {
	BroadcastProgress(jobID string, progress int, status model.JobStatus, step string)
	BroadcastComplete(jobID string, resultRefs []string)
	BroadcastError(jobID string, code, message string)
}
