package media

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

const (
	// ffmpeg writes a progress record roughly once a second; we poll the
	// file a little faster and throttle callback delivery separately.
	progressPollInterval = 200 * time.Millisecond

	// progressUpdateInterval bounds how often the callback fires so the
	// job record store is not hammered with near-identical samples.
	progressUpdateInterval = 500 * time.Millisecond

	defaultTranscodeTimeout = 30 * time.Minute
)

// ProgressFunc receives encoder progress as a 0-100 percentage.
type ProgressFunc func(percent int)

// Transcoder converts incompatible video containers into H.264/AAC MP4
// arranged for progressive playback, by driving an external ffmpeg
// process.
type Transcoder struct {
	FFmpegBin  string
	FFprobeBin string
	Timeout    time.Duration
}

// NewTranscoder builds a transcoder around the configured binaries.
func NewTranscoder(ffmpegBin, ffprobeBin string, timeout time.Duration) *Transcoder {
	if ffmpegBin == "" {
		ffmpegBin = "ffmpeg"
	}
	if ffprobeBin == "" {
		ffprobeBin = "ffprobe"
	}
	if timeout <= 0 {
		timeout = defaultTranscodeTimeout
	}
	return &Transcoder{FFmpegBin: ffmpegBin, FFprobeBin: ffprobeBin, Timeout: timeout}
}

// Transcode encodes inputPath into outputPath and streams progress through
// the callback. Progress is derived from ffmpeg's self-reported encoded
// time against the probed input duration; if the probe fails the encode
// still runs, with coarse milestones only. The ffmpeg process is killed,
// not abandoned, when the timeout elapses.
func (t *Transcoder) Transcode(ctx context.Context, inputPath, outputPath string, progress ProgressFunc) error {
	totalMs := int64(0)
	if meta, err := Probe(ctx, t.FFprobeBin, inputPath); err != nil {
		log.Printf("transcode: input probe failed, using coarse progress: %v", err)
	} else if meta.DurationSec > 0 {
		totalMs = int64(meta.DurationSec) * 1000
	}

	// ffmpeg reports encoded time on an auxiliary progress file rather
	// than stdout, so it is polled instead of line-read.
	progressPath := filepath.Join(filepath.Dir(outputPath), fmt.Sprintf("progress_%d.txt", time.Now().UnixNano()))
	defer os.Remove(progressPath)

	runCtx, cancel := context.WithTimeout(ctx, t.Timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, t.FFmpegBin,
		"-i", inputPath,
		"-vcodec", "libx264",
		"-preset", "veryfast",
		"-acodec", "aac",
		"-strict", "-2",
		"-movflags", "+faststart",
		"-progress", progressPath,
		"-y",
		outputPath,
	)
	var output bytes.Buffer
	cmd.Stdout = &output
	cmd.Stderr = &output

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start ffmpeg: %w", err)
	}

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	ticker := time.NewTicker(progressPollInterval)
	defer ticker.Stop()

	lastUpdate := time.Time{}
	for {
		select {
		case err := <-done:
			if runCtx.Err() == context.DeadlineExceeded {
				return fmt.Errorf("ffmpeg timed out after %s", t.Timeout)
			}
			if err != nil {
				return fmt.Errorf("ffmpeg failed: %w: %s", err, tail(output.Bytes(), 400))
			}
			if progress != nil {
				progress(100)
			}
			return nil

		case <-ticker.C:
			if progress == nil || totalMs <= 0 {
				continue
			}
			elapsedMs, ok := readProgressFile(progressPath)
			if !ok {
				continue
			}
			if now := time.Now(); now.Sub(lastUpdate) >= progressUpdateInterval {
				progress(transcodePercent(elapsedMs, totalMs))
				lastUpdate = now
			}
		}
	}
}

// readProgressFile returns the last out_time_ms sample (in milliseconds)
// from an ffmpeg -progress file.
func readProgressFile(path string) (int64, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, false
	}
	return parseOutTimeMs(data)
}

// parseOutTimeMs scans ffmpeg progress output for the most recent
// out_time_ms record. The value is reported in microseconds.
func parseOutTimeMs(data []byte) (int64, bool) {
	const prefix = "out_time_ms="
	var (
		lastValue string
		found     bool
	)
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, prefix) {
			lastValue = strings.TrimPrefix(line, prefix)
			found = true
		}
	}
	if !found || lastValue == "" || lastValue == "N/A" {
		return 0, false
	}
	micros, err := strconv.ParseInt(lastValue, 10, 64)
	if err != nil {
		return 0, false
	}
	return micros / 1000, true
}

// transcodePercent converts encoded time to a clamped 0-100 percentage.
func transcodePercent(elapsedMs, totalMs int64) int {
	if totalMs <= 0 {
		return 0
	}
	percent := int(elapsedMs * 100 / totalMs)
	if percent > 100 {
		percent = 100
	}
	if percent < 0 {
		percent = 0
	}
	return percent
}

func tail(data []byte, n int) string {
	s := strings.TrimSpace(string(data))
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}
