// Package recognition feeds published frames to an external face
// recognizer and records what it finds.
package recognition

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/smazurov/camrelay/internal/logging"
)

// Face is a detected face region in image pixels.
type Face struct {
	X     int     `json:"x"`
	Y     int     `json:"y"`
	W     int     `json:"w"`
	H     int     `json:"h"`
	Score float64 `json:"score"`
}

// Match is the best identity for a feature vector. ID is -1 when the store
// holds nothing similar.
type Match struct {
	ID         int64   `json:"id"`
	Confidence float64 `json:"confidence"`
}

// NoIdentity is the Match.ID reported when nothing is similar enough.
const NoIdentity int64 = -1

// Recognizer is the face pipeline. Images are JPEG encoded.
type Recognizer interface {
	Detect(ctx context.Context, img []byte) ([]Face, error)
	Extract(ctx context.Context, img []byte, face Face) ([]float32, error)
	Search(ctx context.Context, feature []float32) (*Match, error)
}

// HTTPRecognizer calls a recognition sidecar over JSON. Images travel
// base64 encoded.
type HTTPRecognizer struct {
	baseURL string
	client  *retryablehttp.Client
}

// NewHTTPRecognizer returns a client for the sidecar at baseURL. Transient
// failures are retried twice.
func NewHTTPRecognizer(baseURL string, timeout time.Duration, logger logging.Logger) *HTTPRecognizer {
	client := retryablehttp.NewClient()
	client.RetryMax = 2
	client.RetryWaitMin = 50 * time.Millisecond
	client.RetryWaitMax = 250 * time.Millisecond
	client.HTTPClient.Timeout = timeout
	client.Logger = logger
	return &HTTPRecognizer{baseURL: strings.TrimRight(baseURL, "/"), client: client}
}

type detectRequest struct {
	Image []byte `json:"image"`
}

type detectResponse struct {
	Faces []Face `json:"faces"`
}

type extractRequest struct {
	Image []byte `json:"image"`
	Face  Face   `json:"face"`
}

type extractResponse struct {
	Feature []float32 `json:"feature"`
}

type searchRequest struct {
	Feature []float32 `json:"feature"`
}

func (r *HTTPRecognizer) Detect(ctx context.Context, img []byte) ([]Face, error) {
	var resp detectResponse
	if err := r.post(ctx, "/detect", detectRequest{Image: img}, &resp); err != nil {
		return nil, err
	}
	return resp.Faces, nil
}

func (r *HTTPRecognizer) Extract(ctx context.Context, img []byte, face Face) ([]float32, error) {
	var resp extractResponse
	if err := r.post(ctx, "/extract", extractRequest{Image: img, Face: face}, &resp); err != nil {
		return nil, err
	}
	return resp.Feature, nil
}

func (r *HTTPRecognizer) Search(ctx context.Context, feature []float32) (*Match, error) {
	m := &Match{ID: NoIdentity}
	if err := r.post(ctx, "/search", searchRequest{Feature: feature}, m); err != nil {
		return nil, err
	}
	return m, nil
}

func (r *HTTPRecognizer) post(ctx context.Context, path string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("encode %s request: %w", path, err)
	}
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("build %s request: %w", path, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return fmt.Errorf("recognizer %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("recognizer %s: status %d: %s", path, resp.StatusCode, bytes.TrimSpace(msg))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}
