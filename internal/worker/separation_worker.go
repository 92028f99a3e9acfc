package worker

import (
	"context"
	"fmt"
	"log"

	"github.com/creativehub/media/internal/client"
	"github.com/creativehub/media/internal/model"
	"github.com/creativehub/media/internal/store"
)

// SeparationWorker processes remote separation jobs by delegating to the
// audio AI service. The remote call is a single long blocking request;
// intermediate progress comes from the booster and from the service's own
// progress pushes, not from this worker.
type SeparationWorker struct {
	store     *store.JobStore
	processor client.SeparationProcessor
	hub       Notifier
}

// NewSeparationWorker creates a new separation worker
func NewSeparationWorker(jobStore *store.JobStore, processor client.SeparationProcessor, hub Notifier) *SeparationWorker {
	return &SeparationWorker{
		store:     jobStore,
		processor: processor,
		hub:       hub,
	}
}

// Process runs one separation job end to end.
func (w *SeparationWorker) Process(ctx context.Context, jobID string) {
	job, claimed, err := w.store.Claim(ctx, jobID)
	if err != nil {
		log.Printf("Failed to claim separation job %s: %v", jobID, err)
		return
	}
	if !claimed {
		log.Printf("Separation job %s already finished, skipping", jobID)
		return
	}

	log.Printf("Starting %s job: %s", job.Kind, jobID)

	// The source must be fully uploaded media; anything else fails fast
	// before the expensive remote call.
	fileURL, fileName, err := w.resolveSource(ctx, job.SubjectRef)
	if err != nil {
		w.fail(ctx, jobID, err.Error())
		return
	}

	req := &client.SeparationRequest{
		JobID:    jobID,
		FileURL:  fileURL,
		FileName: fileName,
	}

	var refs []string
	switch job.Kind {
	case model.JobKindVocalSeparation:
		result, err := w.processor.SeparateVocal(ctx, req)
		if err != nil {
			w.fail(ctx, jobID, err.Error())
			return
		}
		refs = []string{result.VocalURL, result.InstrumentalURL}

	case model.JobKindStem4Separation:
		result, err := w.processor.SeparateStems4(ctx, req)
		if err != nil {
			w.fail(ctx, jobID, err.Error())
			return
		}
		refs = result.TrackURLs()

	case model.JobKindStem6Separation:
		result, err := w.processor.SeparateStems6(ctx, req)
		if err != nil {
			w.fail(ctx, jobID, err.Error())
			return
		}
		refs = result.TrackURLs()

	default:
		w.fail(ctx, jobID, fmt.Sprintf("unsupported separation kind: %s", job.Kind))
		return
	}

	if len(refs) == 0 {
		w.fail(ctx, jobID, "separation service returned no tracks")
		return
	}

	if err := w.store.Complete(ctx, jobID, refs, nil); err != nil {
		log.Printf("finalize: separation job %s: %v", jobID, err)
		w.fail(ctx, jobID, fmt.Sprintf("finalize: %v", err))
		return
	}

	w.hub.BroadcastComplete(jobID, refs)
	log.Printf("Separation job %s completed", jobID)
}

// resolveSource loads the media record the separation is based on and
// returns its public URL and display name.
func (w *SeparationWorker) resolveSource(ctx context.Context, mediaID string) (string, string, error) {
	source, err := w.store.Get(ctx, mediaID)
	if err != nil {
		return "", "", fmt.Errorf("source media %s not found", mediaID)
	}
	if source.Status != model.JobStatusSuccess {
		return "", "", fmt.Errorf("source media %s is not ready (status %s)", mediaID, source.Status)
	}
	urls := source.ResultURLs()
	if len(urls) == 0 {
		return "", "", fmt.Errorf("source media %s has no stored file", mediaID)
	}
	return urls[0], source.DisplayName, nil
}

func (w *SeparationWorker) fail(ctx context.Context, jobID, message string) {
	if err := w.store.Fail(ctx, jobID, message); err != nil {
		log.Printf("Failed to mark job %s failed: %v", jobID, err)
	}
	w.hub.BroadcastError(jobID, "processing_failed", message)
	log.Printf("Separation job %s failed: %s", jobID, message)
}
