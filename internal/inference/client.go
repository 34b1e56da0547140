// Package inference is the outbound HTTP client for the external inference
// service. The service is slow: calls run for minutes and every operation
// carries its own generous timeout. No retries are built in; a failed call
// surfaces to the orchestrator, which marks the job failed.
package inference

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"

	"github.com/google/uuid"
	"github.com/voxelmed/voxelmed/internal/config"
)

// Sentinel errors for inference client failures.
var (
	ErrUnreachable = errors.New("inference service unreachable")
	ErrTimeout     = errors.New("inference call timeout")
	ErrRemote      = errors.New("inference service error")
)

// Client is the interface for talking to the inference service.
type Client interface {
	Analyze(ctx context.Context, req AnalyzeRequest) (*AnalysisResult, error)
	ReconstructBinary(ctx context.Context, result *AnalysisResult) ([]byte, error)
	DisplayViews(ctx context.Context, recordID uuid.UUID, imagePrefix string) ([]string, error)
}

// Features is the derived patient feature vector sent with an analyze call.
// All values are computed at call time, never stored.
type Features struct {
	Age int     `json:"age"`
	Sex string  `json:"sex"`
	BMI float64 `json:"bmi"`
}

// AnalyzeRequest is the input to an analyze call. ImagePrefix is the blob
// URI prefix under which the record's input images were stored.
type AnalyzeRequest struct {
	RecordID    uuid.UUID `json:"record_id"`
	Model       string    `json:"model"`
	Features    Features  `json:"features"`
	ImagePrefix string    `json:"image_prefix"`
}

// Landmark is one anatomical coordinate returned by the analysis.
type Landmark struct {
	Label string  `json:"label"`
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Z     float64 `json:"z"`
}

// AnalysisResult is the raw payload returned by the analyze operation and
// accepted by the completion callback. Prescription is still in its
// compressed transport encoding here; Reconstruction is opaque parameter
// data echoed back verbatim on the reconstruct call.
type AnalysisResult struct {
	Risk                 string          `json:"risk"`
	Phenotype            string          `json:"phenotype"`
	PhenotypeImageURL    string          `json:"phenotype_image_url"`
	TreatmentDescription string          `json:"treatment_description"`
	TreatmentImageURL    string          `json:"treatment_image_url"`
	Prescription         string          `json:"prescription"`
	Reconstruction       json.RawMessage `json:"reconstruction,omitempty"`
	Landmarks            []Landmark      `json:"landmarks,omitempty"`
}

// HTTPClient implements Client against the inference service's HTTP API.
type HTTPClient struct {
	cfg    config.InferenceConfig
	client *http.Client
}

// NewHTTPClient creates a new inference HTTP client. Timeouts are applied
// per operation from the config, not on the underlying http.Client.
func NewHTTPClient(cfg config.InferenceConfig) *HTTPClient {
	return &HTTPClient{
		cfg:    cfg,
		client: &http.Client{},
	}
}

func (c *HTTPClient) Analyze(ctx context.Context, req AnalyzeRequest) (*AnalysisResult, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.AnalyzeTimeout)
	defer cancel()

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encoding analyze request: %w", err)
	}

	resp, err := c.post(ctx, "/v1/analyze", "application/json", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: analyze status %d", ErrRemote, resp.StatusCode)
	}

	var result AnalysisResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decoding analyze response: %w", err)
	}
	return &result, nil
}

// ReconstructBinary posts the full analysis payload back to the service and
// receives the reconstructed binary volume artifact.
func (c *HTTPClient) ReconstructBinary(ctx context.Context, result *AnalysisResult) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.RebuildTimeout)
	defer cancel()

	body, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("encoding reconstruct request: %w", err)
	}

	resp, err := c.post(ctx, "/v1/reconstruct", "application/json", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: reconstruct status %d", ErrRemote, resp.StatusCode)
	}

	blob, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading reconstruct response: %w", err)
	}
	if len(blob) == 0 {
		return nil, fmt.Errorf("%w: reconstruct returned empty body", ErrRemote)
	}
	return blob, nil
}

func (c *HTTPClient) DisplayViews(ctx context.Context, recordID uuid.UUID, imagePrefix string) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.ViewsTimeout)
	defer cancel()

	body, err := json.Marshal(map[string]string{
		"record_id":    recordID.String(),
		"image_prefix": imagePrefix,
	})
	if err != nil {
		return nil, fmt.Errorf("encoding views request: %w", err)
	}

	resp, err := c.post(ctx, "/v1/views", "application/json", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: views status %d", ErrRemote, resp.StatusCode)
	}

	var viewsResp struct {
		Views []string `json:"views"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&viewsResp); err != nil {
		return nil, fmt.Errorf("decoding views response: %w", err)
	}
	return viewsResp.Views, nil
}

func (c *HTTPClient) post(ctx context.Context, path, contentType string, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, classifyError(err)
	}
	return resp, nil
}

// classifyError maps transport-level errors to sentinel errors.
func classifyError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return fmt.Errorf("%w: %v", ErrTimeout, err)
		}
		return fmt.Errorf("%w: %v", ErrUnreachable, err)
	}

	return fmt.Errorf("%w: %v", ErrUnreachable, err)
}

// Compile-time check that HTTPClient implements Client.
var _ Client = (*HTTPClient)(nil)
