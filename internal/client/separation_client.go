package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/creativehub/media/internal/config"
)

// SeparationProcessor defines the interface for the audio separation
// microservice. Each call blocks until the engine returns a result, so the
// configured timeout has to cover a full separation run.
type SeparationProcessor interface {
	SeparateVocal(ctx context.Context, req *SeparationRequest) (*VocalResult, error)
	SeparateStems4(ctx context.Context, req *SeparationRequest) (*StemResult, error)
	SeparateStems6(ctx context.Context, req *SeparationRequest) (*StemResult, error)
	HealthCheck(ctx context.Context) error
}

// SeparationClient implements SeparationProcessor for the Python microservice
type SeparationClient struct {
	httpClient *http.Client
	baseURL    string
}

// SeparationRequest carries the source track to the separation engine
type SeparationRequest struct {
	JobID    string `json:"jobId"`
	FileURL  string `json:"fileUrl"`
	FileName string `json:"fileName"`
}

// VocalResult represents a two-way vocal/instrumental split
type VocalResult struct {
	VocalURL        string `json:"vocalUrl"`
	InstrumentalURL string `json:"instUrl"`
}

// StemResult represents a multi-track split into named stems
type StemResult struct {
	Results []StemTrack `json:"results"`
}

// StemTrack is a single separated track
type StemTrack struct {
	Stem string `json:"stem"`
	URL  string `json:"url"`
}

// TrackURLs returns the stem URLs in result order
func (r *StemResult) TrackURLs() []string {
	urls := make([]string, 0, len(r.Results))
	for _, track := range r.Results {
		urls = append(urls, track.URL)
	}
	return urls
}

const defaultSeparationTimeout = 30 * time.Minute

// NewSeparationClient creates a new separation client
func NewSeparationClient(cfg *config.SeparationConfig) *SeparationClient {
	timeout := defaultSeparationTimeout
	if cfg.Timeout > 0 {
		timeout = time.Duration(cfg.Timeout) * time.Second
	}
	return &SeparationClient{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		baseURL: cfg.ServiceURL,
	}
}

// SeparateVocal splits a track into vocal and instrumental
func (c *SeparationClient) SeparateVocal(ctx context.Context, req *SeparationRequest) (*VocalResult, error) {
	var result VocalResult
	if err := c.post(ctx, "/internal/separation/vocal", req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// SeparateStems4 splits a track into vocals, drums, bass and other
func (c *SeparationClient) SeparateStems4(ctx context.Context, req *SeparationRequest) (*StemResult, error) {
	var result StemResult
	if err := c.post(ctx, "/internal/separation/demucs4", req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// SeparateStems6 splits a track into six stems including guitar and piano
func (c *SeparationClient) SeparateStems6(ctx context.Context, req *SeparationRequest) (*StemResult, error) {
	var result StemResult
	if err := c.post(ctx, "/internal/separation/demucs6", req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// HealthCheck checks if the separation service is available
func (c *SeparationClient) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("separation service unhealthy: status %d", resp.StatusCode)
	}

	return nil
}

// post sends a POST request with JSON body and parses the response
func (c *SeparationClient) post(ctx context.Context, endpoint string, body interface{}, result interface{}) error {
	bodyBytes, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, bytes.NewReader(bodyBytes))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("separation service error (status %d): %s", resp.StatusCode, string(respBody))
	}

	if err := json.Unmarshal(respBody, result); err != nil {
		return fmt.Errorf("failed to unmarshal response: %w", err)
	}

	return nil
}

// IsConfigured returns true if the client has valid configuration
func (c *SeparationClient) IsConfigured() bool {
	return c.baseURL != ""
}
