package audit

import "time"

// Audited actions.
const (
	ActionUserRegistered      = "user.registered"
	ActionUserLogin           = "user.login"
	ActionUserLogout          = "user.logout"
	ActionInspectionSubmitted = "inspection.submitted"
	ActionInspectionFinished  = "inspection.finished"
	ActionInspectionCancelled = "inspection.cancelled"
)

// Entry is one append-only audit record.
type Entry struct {
	ID         int64          `json:"id"`
	UserID     string         `json:"userId,omitempty"`
	Action     string         `json:"action"`
	EntityType string         `json:"entityType,omitempty"`
	EntityID   string         `json:"entityId,omitempty"`
	RequestID  string         `json:"requestId,omitempty"`
	Details    map[string]any `json:"details,omitempty"`
	CreatedAt  time.Time      `json:"createdAt"`
}
