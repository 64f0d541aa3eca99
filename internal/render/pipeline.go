// Package render defines the boundary to the rendering pipeline. The
// pipeline itself is an external collaborator: it consumes render settings
// and produces content-addressed artifact locations.
package render

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Coarse progress milestones reported while a render is in flight.
const (
	ProgressSubmitted = 10
	ProgressRendered  = 60
	ProgressUploaded  = 90
)

// Request carries one render invocation.
type Request struct {
	JobID        string          `json:"jobId"`
	OwnerAddress string          `json:"ownerAddress"`
	Settings     json.RawMessage `json:"settings"`
}

// Result holds the artifact locations produced by a completed render.
type Result struct {
	ImageURI    string `json:"imageUri"`
	MetadataURI string `json:"metadataUri"`
}

// ProgressFunc reports a progress milestone (0-100) for the running job.
type ProgressFunc func(progress int)

// Pipeline executes one render request to completion.
type Pipeline interface {
	Render(ctx context.Context, req *Request, report ProgressFunc) (*Result, error)
}

// HTTPPipeline calls a remote render service over HTTP. The service renders
// the artwork, uploads image and metadata to content storage, and returns
// their locations.
type HTTPPipeline struct {
	baseURL string
	client  *http.Client
}

// NewHTTPPipeline creates a pipeline client for the given render service URL.
func NewHTTPPipeline(baseURL string, timeout time.Duration) *HTTPPipeline {
	if timeout <= 0 {
		timeout = 10 * time.Minute
	}
	return &HTTPPipeline{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

// Render submits the request and blocks until the service responds with
// artifact locations. The caller's context bounds the whole call, so a
// stuck render fails deterministically instead of holding a worker.
func (p *HTTPPipeline) Render(ctx context.Context, req *Request, report ProgressFunc) (*Result, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to encode render request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/render", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build render request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	report(ProgressSubmitted)

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("render service call failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("render service returned %d: %s", resp.StatusCode, string(raw))
	}

	report(ProgressRendered)

	var result Result
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode render response: %w", err)
	}

	if result.ImageURI == "" || result.MetadataURI == "" {
		return nil, fmt.Errorf("render service returned incomplete artifact locations")
	}

	report(ProgressUploaded)

	return &result, nil
}
