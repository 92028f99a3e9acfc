package worker

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/creativehub/media/internal/client"
	"github.com/creativehub/media/internal/media"
	"github.com/creativehub/media/internal/model"
	"github.com/creativehub/media/internal/store"
)

// Encoder runs the actual video encode. Satisfied by media.Transcoder.
type Encoder interface {
	Transcode(ctx context.Context, inputPath, outputPath string, progress media.ProgressFunc) error
}

// TranscodeWorker processes local transcode jobs: it pulls the original
// from object storage, re-encodes it to a web-compatible MP4 and uploads
// the result.
type TranscodeWorker struct {
	store   *store.JobStore
	storage client.StorageClient
	encoder Encoder
	hub     Notifier
	baseDir string
	probe   func(ctx context.Context, path string) (*media.Metadata, error)
}

// NewTranscodeWorker creates a new transcode worker
func NewTranscodeWorker(jobStore *store.JobStore, storage client.StorageClient, transcoder *media.Transcoder, hub Notifier, baseDir string) *TranscodeWorker {
	return &TranscodeWorker{
		store:   jobStore,
		storage: storage,
		encoder: transcoder,
		hub:     hub,
		baseDir: baseDir,
		probe: func(ctx context.Context, path string) (*media.Metadata, error) {
			return media.Probe(ctx, transcoder.FFprobeBin, path)
		},
	}
}

// Process runs one transcode job end to end. All failure paths finalize
// the record and clean the work area; nothing is retried automatically.
func (w *TranscodeWorker) Process(ctx context.Context, jobID string) {
	job, claimed, err := w.store.Claim(ctx, jobID)
	if err != nil {
		log.Printf("Failed to claim transcode job %s: %v", jobID, err)
		return
	}
	if !claimed {
		log.Printf("Transcode job %s already finished, skipping", jobID)
		return
	}

	log.Printf("Starting transcode job: %s", jobID)

	area, err := NewWorkArea(w.baseDir, jobID)
	if err != nil {
		w.fail(ctx, jobID, fmt.Sprintf("prepare work area: %v", err))
		return
	}
	defer area.Remove()

	ext := media.Ext(job.DisplayName)
	if ext == "" {
		ext = "src"
	}
	inputPath := area.Path("input." + ext)
	if err := w.download(ctx, job.SubjectRef, inputPath); err != nil {
		w.fail(ctx, jobID, fmt.Sprintf("download source: %v", err))
		return
	}

	outputPath := area.Path("output.mp4")
	err = w.encoder.Transcode(ctx, inputPath, outputPath, func(percent int) {
		if err := w.store.UpdateProgress(ctx, jobID, percent); err != nil {
			log.Printf("Failed to record progress for job %s: %v", jobID, err)
		}
		w.hub.BroadcastProgress(jobID, percent, model.JobStatusProcessing, "Encoding video...")
	})
	if err != nil {
		w.fail(ctx, jobID, err.Error())
		return
	}

	outFile, err := os.Open(outputPath)
	if err != nil {
		w.fail(ctx, jobID, fmt.Sprintf("open encoded output: %v", err))
		return
	}
	url, err := w.storage.Upload(ctx, TranscodedKey(time.Now(), jobID), outFile, "video/mp4")
	outFile.Close()
	if err != nil {
		w.fail(ctx, jobID, fmt.Sprintf("upload encoded output: %v", err))
		return
	}

	// Metadata is best-effort: a probe failure does not fail the job.
	meta, err := w.probe(ctx, outputPath)
	if err != nil {
		log.Printf("Output probe failed for job %s: %v", jobID, err)
		meta = nil
	}

	if err := w.store.Complete(ctx, jobID, []string{url}, meta); err != nil {
		log.Printf("finalize: transcode job %s: %v", jobID, err)
		w.fail(ctx, jobID, fmt.Sprintf("finalize: %v", err))
		return
	}

	w.hub.BroadcastComplete(jobID, []string{url})
	log.Printf("Transcode job %s completed", jobID)
}

func (w *TranscodeWorker) download(ctx context.Context, key, dst string) error {
	body, err := w.storage.Download(ctx, key)
	if err != nil {
		return err
	}
	defer body.Close()

	f, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer f.Close()

	if _, err := io.Copy(f, body); err != nil {
		return err
	}
	return nil
}

func (w *TranscodeWorker) fail(ctx context.Context, jobID, message string) {
	if err := w.store.Fail(ctx, jobID, message); err != nil {
		log.Printf("Failed to mark job %s failed: %v", jobID, err)
	}
	w.hub.BroadcastError(jobID, "processing_failed", message)
	log.Printf("Transcode job %s failed: %s", jobID, message)
}
