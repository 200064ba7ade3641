package workflow

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/DedovInside/AutoInspect/internal/inspections"
	"github.com/DedovInside/AutoInspect/internal/shared/telemetry"
)

// State is the screen-level position of one user in the inspection flow.
type State string

const (
	StateUnauthenticated  State = "unauthenticated"
	StateIdle             State = "idle"
	StateUploading        State = "uploading"
	StateAwaitingAnalysis State = "awaiting_analysis"
	StateResultReady      State = "result_ready"
	StateBrowsingHistory  State = "browsing_history"
	StateAdminView        State = "admin_view"
)

// Event drives transitions between states.
type Event string

const (
	EventLogin        Event = "login"
	EventLogout       Event = "logout"
	EventStartUpload  Event = "start_upload"
	EventCancelUpload Event = "cancel_upload"
	EventSubmitted    Event = "submitted"
	EventResume       Event = "resume"
	EventViewResult   Event = "view_result"
	EventOpenHistory  Event = "open_history"
	EventOpenAdmin    Event = "open_admin"
	EventBack         Event = "back"
)

var (
	ErrUnknownEvent = errors.New("unknown workflow event")
	ErrForbidden    = errors.New("event not allowed for this role")
)

// InvalidTransitionError reports an event that does not apply in the current
// state.
type InvalidTransitionError struct {
	From  State
	Event Event
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("event %q not valid in state %q", e.Event, e.From)
}

// View is one user's current position. JobID is set while a specific job is
// in focus (awaiting analysis or viewing its result).
type View struct {
	State     State     `json:"state"`
	JobID     string    `json:"jobId,omitempty"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Controller tracks each user's workflow position. Leaving the awaiting
// screen never cancels job tracking; the job keeps running and a terminal
// outcome flips the stored view to result_ready whenever the user is still
// waiting on it.
type Controller struct {
	mu    sync.Mutex
	views map[string]View
}

// NewController constructs a Controller.
func NewController() *Controller {
	return &Controller{views: make(map[string]View)}
}

// Current returns the user's view, defaulting to idle for an authenticated
// caller that has not produced any events yet.
func (c *Controller) Current(userID string) View {
	c.mu.Lock()
	defer c.mu.Unlock()
	if view, ok := c.views[userID]; ok {
		return view
	}
	return View{State: StateIdle, UpdatedAt: time.Now().UTC()}
}

// Apply runs one event through the state machine and returns the new view.
func (c *Controller) Apply(userID, role string, event Event, jobID string) (View, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	view, ok := c.views[userID]
	if !ok {
		view = View{State: StateIdle}
	}

	next, err := transition(view, role, event, jobID)
	if err != nil {
		return view, err
	}
	next.UpdatedAt = time.Now().UTC()
	c.views[userID] = next

	telemetry.Info("workflow.transition", map[string]any{
		"user_id": userID,
		"event":   string(event),
		"from":    string(view.State),
		"to":      string(next.State),
	})
	return next, nil
}

func transition(view View, role string, event Event, jobID string) (View, error) {
	from := view.State
	switch event {
	case EventLogin:
		return View{State: StateIdle}, nil

	case EventLogout:
		return View{State: StateUnauthenticated}, nil

	case EventStartUpload:
		if from == StateIdle || from == StateResultReady || from == StateBrowsingHistory {
			return View{State: StateUploading}, nil
		}

	case EventCancelUpload:
		if from == StateUploading {
			return View{State: StateIdle}, nil
		}

	case EventSubmitted:
		if from == StateUploading && jobID != "" {
			return View{State: StateAwaitingAnalysis, JobID: jobID}, nil
		}

	case EventResume:
		// Re-entering the waiting screen for a job left running earlier.
		if jobID != "" && (from == StateIdle || from == StateBrowsingHistory || from == StateResultReady) {
			return View{State: StateAwaitingAnalysis, JobID: jobID}, nil
		}

	case EventViewResult:
		if jobID == "" {
			jobID = view.JobID
		}
		if jobID != "" && (from == StateAwaitingAnalysis || from == StateBrowsingHistory || from == StateIdle) {
			return View{State: StateResultReady, JobID: jobID}, nil
		}

	case EventOpenHistory:
		if from == StateIdle || from == StateAwaitingAnalysis || from == StateResultReady || from == StateAdminView {
			return View{State: StateBrowsingHistory}, nil
		}

	case EventOpenAdmin:
		if role != "admin" {
			return View{}, ErrForbidden
		}
		if from == StateIdle || from == StateBrowsingHistory || from == StateResultReady {
			return View{State: StateAdminView}, nil
		}

	case EventBack:
		if from == StateUnauthenticated {
			break
		}
		return View{State: StateIdle}, nil

	default:
		return View{}, ErrUnknownEvent
	}

	return View{}, &InvalidTransitionError{From: from, Event: event}
}

// JobFinished flips a user still waiting on the finished job to the result
// screen. Users who navigated elsewhere keep their position.
func (c *Controller) JobFinished(ctx context.Context, job inspections.Job) {
	c.mu.Lock()
	defer c.mu.Unlock()
	view, ok := c.views[job.UserID]
	if !ok || view.State != StateAwaitingAnalysis || view.JobID != job.ID {
		return
	}
	c.views[job.UserID] = View{
		State:     StateResultReady,
		JobID:     job.ID,
		UpdatedAt: time.Now().UTC(),
	}
}
