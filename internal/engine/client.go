package engine

import (
	"context"
	"errors"
	"time"
)

// Status values reported by the analysis engine.
const (
	StatusPending   = "pending"
	StatusAnalyzing = "analyzing"
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
)

// ErrTransport marks transient network failures talking to the engine.
// Callers retry these; anything else is treated as authoritative.
var ErrTransport = errors.New("engine transport error")

// ErrUnknownJob is returned when the engine does not recognize a job ID.
var ErrUnknownJob = errors.New("engine job not found")

// ImageRef points the engine at one stored image.
type ImageRef struct {
	StorageKey string `json:"storageKey"`
	MimeType   string `json:"mimeType"`
	SizeBytes  int64  `json:"sizeBytes"`
}

// SubmitRequest asks the engine to analyze a set of images.
type SubmitRequest struct {
	RequestID string     `json:"requestId"`
	Images    []ImageRef `json:"images"`
}

// Finding is one detected damage region.
type Finding struct {
	Region     string  `json:"region"`
	Severity   string  `json:"severity"`
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
}

// ResultPayload is the engine's terminal output for a succeeded job.
type ResultPayload struct {
	Findings     []Finding `json:"findings"`
	OverallScore float64   `json:"overallScore"`
}

// StatusSnapshot is one observation of a job's engine-side state. Seq is the
// engine's monotonic sequence number; replies with a lower Seq than one
// already observed are stale and must be discarded.
type StatusSnapshot struct {
	JobID        string         `json:"jobId"`
	Status       string         `json:"status"`
	Seq          int64          `json:"seq"`
	Result       *ResultPayload `json:"result,omitempty"`
	ErrorCode    string         `json:"errorCode,omitempty"`
	ErrorMessage string         `json:"errorMessage,omitempty"`
	ReportedAt   time.Time      `json:"reportedAt"`
}

// Terminal reports whether the snapshot is a terminal state.
func (s StatusSnapshot) Terminal() bool {
	return s.Status == StatusSucceeded || s.Status == StatusFailed
}

// Client is the boundary to the damage-analysis engine.
type Client interface {
	Submit(ctx context.Context, req SubmitRequest) (jobID string, err error)
	GetStatus(ctx context.Context, jobID string) (StatusSnapshot, error)
	Cancel(ctx context.Context, jobID string) error
}
