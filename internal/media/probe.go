// Package media wraps the external ffmpeg/ffprobe tooling used for local
// transcode jobs.
package media

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

const probeTimeout = 60 * time.Second

// Metadata holds the basic properties extracted from a media file.
type Metadata struct {
	Width       int `json:"width"`
	Height      int `json:"height"`
	DurationSec int `json:"durationSec"`
}

type probeResult struct {
	Streams []probeStream `json:"streams"`
	Format  probeFormat   `json:"format"`
}

type probeStream struct {
	CodecType string `json:"codec_type"`
	Width     int    `json:"width"`
	Height    int    `json:"height"`
	Duration  string `json:"duration"`
}

type probeFormat struct {
	Duration string `json:"duration"`
}

// Probe runs ffprobe against path and extracts width, height and duration.
// Callers treat a probe error as a degraded mode, not a job failure:
// progress reporting falls back to coarse milestones and metadata is left
// unset.
func Probe(ctx context.Context, binary, path string) (*Metadata, error) {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		binary = "ffprobe"
	}
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("probe: empty path")
	}

	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, binary,
		"-v", "error",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		path,
	)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return nil, fmt.Errorf("probe %s: %w: %s", path, err, strings.TrimSpace(string(output)))
	}

	return parseProbeOutput(output)
}

func parseProbeOutput(output []byte) (*Metadata, error) {
	var result probeResult
	if err := json.Unmarshal(output, &result); err != nil {
		return nil, fmt.Errorf("probe parse: %w", err)
	}

	meta := &Metadata{}
	if d, err := strconv.ParseFloat(result.Format.Duration, 64); err == nil {
		meta.DurationSec = int(math.Round(d))
	}
	for _, stream := range result.Streams {
		if stream.CodecType != "video" {
			continue
		}
		meta.Width = stream.Width
		meta.Height = stream.Height
		if meta.DurationSec == 0 {
			if d, err := strconv.ParseFloat(stream.Duration, 64); err == nil {
				meta.DurationSec = int(math.Round(d))
			}
		}
		break
	}
	return meta, nil
}
