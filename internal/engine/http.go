package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// HTTPClient implements Client against the engine's JSON API.
type HTTPClient struct {
	BaseURL string
	HTTP    *http.Client
}

// NewHTTPClient constructs an HTTPClient with the given base URL and timeout.
func NewHTTPClient(baseURL string, timeout time.Duration) *HTTPClient {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPClient{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTP:    &http.Client{Timeout: timeout},
	}
}

type submitResponse struct {
	JobID string `json:"jobId"`
}

// Submit sends the analysis request and returns the engine-assigned job ID.
func (c *HTTPClient) Submit(ctx context.Context, req SubmitRequest) (string, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return "", err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/v1/analyses", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTP.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("%w: submit: %v", ErrTransport, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return "", fmt.Errorf("%w: submit status %d", ErrTransport, resp.StatusCode)
	}
	if resp.StatusCode != http.StatusAccepted && resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("engine rejected submission: status %d", resp.StatusCode)
	}

	var parsed submitResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&parsed); err != nil {
		return "", fmt.Errorf("%w: submit decode: %v", ErrTransport, err)
	}
	if parsed.JobID == "" {
		return "", fmt.Errorf("engine returned empty job id")
	}
	return parsed.JobID, nil
}

// GetStatus fetches the current status snapshot for a job.
func (c *HTTPClient) GetStatus(ctx context.Context, jobID string) (StatusSnapshot, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/v1/analyses/"+jobID, nil)
	if err != nil {
		return StatusSnapshot{}, err
	}

	resp, err := c.HTTP.Do(httpReq)
	if err != nil {
		return StatusSnapshot{}, fmt.Errorf("%w: status: %v", ErrTransport, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return StatusSnapshot{}, ErrUnknownJob
	case resp.StatusCode >= 500:
		return StatusSnapshot{}, fmt.Errorf("%w: status %d", ErrTransport, resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return StatusSnapshot{}, fmt.Errorf("engine status request failed: status %d", resp.StatusCode)
	}

	var snapshot StatusSnapshot
	if err := json.NewDecoder(io.LimitReader(resp.Body, 4<<20)).Decode(&snapshot); err != nil {
		return StatusSnapshot{}, fmt.Errorf("%w: status decode: %v", ErrTransport, err)
	}
	if snapshot.JobID == "" {
		snapshot.JobID = jobID
	}
	if snapshot.ReportedAt.IsZero() {
		snapshot.ReportedAt = time.Now().UTC()
	}
	return snapshot, nil
}

// Cancel asks the engine to stop a running job. Advisory: the engine may have
// already finished by the time the request lands.
func (c *HTTPClient) Cancel(ctx context.Context, jobID string) error {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/v1/analyses/"+jobID+"/cancel", nil)
	if err != nil {
		return err
	}

	resp, err := c.HTTP.Do(httpReq)
	if err != nil {
		return fmt.Errorf("%w: cancel: %v", ErrTransport, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return ErrUnknownJob
	case resp.StatusCode >= 500:
		return fmt.Errorf("%w: cancel status %d", ErrTransport, resp.StatusCode)
	case resp.StatusCode >= 400:
		return fmt.Errorf("engine cancel failed: status %d", resp.StatusCode)
	}
	return nil
}
