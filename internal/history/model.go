package history

import "time"

// Entry is one immutable record of a completed inspection. Entries are
// appended exactly once, when the job reaches a terminal state, and never
// updated afterwards.
type Entry struct {
	JobID         string     `json:"jobId"`
	UserID        string     `json:"userId"`
	Status        string     `json:"status"`
	FailureReason string     `json:"failureReason,omitempty"`
	FindingCount  int        `json:"findingCount"`
	OverallScore  float64    `json:"overallScore"`
	SubmittedAt   time.Time  `json:"submittedAt"`
	CompletedAt   *time.Time `json:"completedAt,omitempty"`
}

// Page is one page of history entries, newest-first. NextToken is empty when
// there are no further pages.
type Page struct {
	Entries   []Entry `json:"entries"`
	NextToken string  `json:"nextToken,omitempty"`
}
