package inspections

import "time"

// Status is the lifecycle state of an inspection job.
type Status string

const (
	StatusPending   Status = "pending"
	StatusAnalyzing Status = "analyzing"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// Terminal reports whether the status admits no further transitions.
func (s Status) Terminal() bool {
	return s == StatusSucceeded || s == StatusFailed
}

// Rank orders statuses by progress. Transitions never decrease rank.
func (s Status) Rank() int {
	switch s {
	case StatusPending:
		return 0
	case StatusAnalyzing:
		return 1
	case StatusSucceeded, StatusFailed:
		return 2
	}
	return -1
}

// Failure reasons attached to jobs that reach StatusFailed.
const (
	ReasonAnalysisTimeout = "analysis_timeout"
	ReasonCancelled       = "cancelled"
	ReasonEngineError     = "engine_error"
)

// Finding is one detected damage region.
type Finding struct {
	Region     string  `json:"region"`
	Severity   string  `json:"severity"`
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
}

// Result holds the findings of a succeeded inspection. Attached to a job only
// on success and never mutated afterwards.
type Result struct {
	Findings     []Finding `json:"findings"`
	OverallScore float64   `json:"overallScore"`
}

// Job represents one submitted damage-analysis request and its lifecycle.
// Result is set iff status is succeeded; error fields are set iff failed.
type Job struct {
	ID            string     `json:"jobId"`
	UserID        string     `json:"userId"`
	Status        Status     `json:"status"`
	ImageKeys     []string   `json:"imageKeys"`
	Result        *Result    `json:"result,omitempty"`
	ErrorCode     string     `json:"errorCode,omitempty"`
	ErrorMessage  string     `json:"errorMessage,omitempty"`
	FailureReason string     `json:"failureReason,omitempty"`
	StatusSeq     int64      `json:"-"`
	SubmittedAt   time.Time  `json:"submittedAt"`
	UpdatedAt     *time.Time `json:"updatedAt,omitempty"`
	CompletedAt   *time.Time `json:"completedAt,omitempty"`
}

// ImageUpload is one user-provided image, fully read before validation so the
// policy check can fail fast without touching storage or the network.
type ImageUpload struct {
	FileName string
	Data     []byte
}

// Snapshot is one status observation delivered to tracker subscribers.
// Snapshots for a job arrive in non-decreasing rank order.
type Snapshot struct {
	JobID         string    `json:"jobId"`
	Status        Status    `json:"status"`
	Seq           int64     `json:"seq"`
	Result        *Result   `json:"result,omitempty"`
	ErrorCode     string    `json:"errorCode,omitempty"`
	ErrorMessage  string    `json:"errorMessage,omitempty"`
	FailureReason string    `json:"failureReason,omitempty"`
	At            time.Time `json:"at"`
}

// Terminal reports whether the snapshot carries a terminal status.
func (s Snapshot) Terminal() bool {
	return s.Status.Terminal()
}
