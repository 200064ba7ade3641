package inspections

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/DedovInside/AutoInspect/internal/engine"
	"github.com/DedovInside/AutoInspect/internal/shared/metrics"
	"github.com/DedovInside/AutoInspect/internal/shared/telemetry"
)

// PollConfig tunes the tracker's engine polling.
type PollConfig struct {
	Interval      time.Duration
	BackoffFactor float64
	RetryCeiling  int
}

// DefaultPollConfig mirrors the shipped configuration defaults.
func DefaultPollConfig() PollConfig {
	return PollConfig{Interval: time.Second, BackoffFactor: 2.0, RetryCeiling: 5}
}

const maxPollInterval = time.Minute

// TerminalSink receives each job exactly once when it reaches a terminal
// state. Used to append history entries and audit records.
type TerminalSink interface {
	JobFinished(ctx context.Context, job Job)
}

// Tracker owns the lifecycle of submitted jobs until a terminal outcome.
// It is process-wide and keyed by job ID, so tracking survives the client
// navigating away; re-subscribing to a finished job immediately yields the
// terminal snapshot.
type Tracker struct {
	Engine engine.Client
	Repo   Repo
	Sink   TerminalSink
	Notify func(jobID string, status Status)
	Config PollConfig

	mu     sync.Mutex
	jobs   map[string]*trackedJob
	ctx    context.Context
	cancel context.CancelFunc
}

type trackedJob struct {
	id       string
	mu       sync.Mutex
	last     Snapshot
	terminal bool
	subs     map[chan Snapshot]struct{}
}

// Subscription is a finite, restartable stream of status snapshots for one
// job. The channel is closed after the terminal snapshot is delivered.
type Subscription struct {
	ch     chan Snapshot
	detach func(chan Snapshot)
	once   sync.Once
}

// Updates returns the snapshot channel. Snapshots arrive in non-decreasing
// progress order and the channel closes at the first terminal snapshot.
func (s *Subscription) Updates() <-chan Snapshot {
	return s.ch
}

// Close stops further delivery. Safe to call more than once; closing does not
// stop the underlying job tracking.
func (s *Subscription) Close() {
	s.once.Do(func() { s.detach(s.ch) })
}

// NewTracker constructs a Tracker.
func NewTracker(engineClient engine.Client, repo Repo, cfg PollConfig) *Tracker {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Second
	}
	if cfg.BackoffFactor < 1 {
		cfg.BackoffFactor = 2.0
	}
	if cfg.RetryCeiling <= 0 {
		cfg.RetryCeiling = 5
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Tracker{
		Engine: engineClient,
		Repo:   repo,
		Config: cfg,
		jobs:   make(map[string]*trackedJob),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Close stops all poll loops.
func (t *Tracker) Close() {
	t.cancel()
}

// Track registers a freshly submitted job and starts polling the engine.
func (t *Tracker) Track(job Job) {
	tj := t.register(job)
	if tj != nil {
		go t.pollLoop(t.ctx, tj)
	}
}

func (t *Tracker) register(job Job) *trackedJob {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.jobs[job.ID]; ok {
		return nil
	}
	tj := &trackedJob{
		id:   job.ID,
		last: snapshotFromJob(job),
		subs: make(map[chan Snapshot]struct{}),
	}
	tj.terminal = job.Status.Terminal()
	t.jobs[job.ID] = tj
	return tj
}

// Watch subscribes to a job's status snapshots. For a job already terminal it
// delivers the terminal snapshot immediately and closes the channel.
func (t *Tracker) Watch(ctx context.Context, jobID string) (*Subscription, error) {
	t.mu.Lock()
	tj, tracked := t.jobs[jobID]
	t.mu.Unlock()

	if !tracked {
		job, err := t.Repo.GetByID(ctx, jobID)
		if err != nil {
			return nil, err
		}
		if job.Status.Terminal() {
			job = t.refreshLocalTimeout(ctx, job)
			return closedSubscription(snapshotFromJob(job)), nil
		}
		// Known to the store but not tracked (e.g. after restart): resume.
		t.Track(job)
		t.mu.Lock()
		tj = t.jobs[jobID]
		t.mu.Unlock()
	}

	tj.mu.Lock()
	needRefresh := tj.terminal && tj.last.FailureReason == ReasonAnalysisTimeout
	tj.mu.Unlock()
	if needRefresh {
		if job, err := t.Repo.GetByID(ctx, jobID); err == nil {
			job = t.refreshLocalTimeout(ctx, job)
			tj.mu.Lock()
			tj.last = snapshotFromJob(job)
			tj.mu.Unlock()
		}
	}

	tj.mu.Lock()
	defer tj.mu.Unlock()
	ch := make(chan Snapshot, 4)
	ch <- tj.last
	if tj.terminal {
		close(ch)
		return &Subscription{ch: ch, detach: func(chan Snapshot) {}}, nil
	}
	tj.subs[ch] = struct{}{}
	sub := &Subscription{ch: ch, detach: func(c chan Snapshot) {
		tj.mu.Lock()
		defer tj.mu.Unlock()
		if _, ok := tj.subs[c]; ok {
			delete(tj.subs, c)
			close(c)
		}
	}}
	return sub, nil
}

// refreshLocalTimeout gives the engine one chance to override a locally
// recorded timeout with its authoritative terminal state.
func (t *Tracker) refreshLocalTimeout(ctx context.Context, job Job) Job {
	if job.FailureReason != ReasonAnalysisTimeout {
		return job
	}
	snap, err := t.Engine.GetStatus(ctx, job.ID)
	if err != nil || !snap.Terminal() {
		return job
	}
	updated, _, err := t.Repo.MarkTerminal(ctx, job.ID, terminalFromEngine(snap))
	if err != nil {
		telemetry.Error("tracker.timeout_refresh_failed", map[string]any{"job_id": job.ID, "error": err.Error()})
		return job
	}
	return updated
}

// Cancel requests cancellation. A no-op if the job is already terminal;
// double-cancel is safe.
func (t *Tracker) Cancel(ctx context.Context, jobID string) error {
	job, err := t.Repo.GetByID(ctx, jobID)
	if err != nil {
		return err
	}
	if job.Status.Terminal() {
		return nil
	}

	if err := t.Engine.Cancel(ctx, jobID); err != nil && !errors.Is(err, engine.ErrUnknownJob) {
		return err
	}

	t.recordTerminal(ctx, jobID, TerminalUpdate{
		Status:        StatusFailed,
		ErrorCode:     ErrorCodeCancelled,
		ErrorMessage:  "cancelled by user",
		FailureReason: ReasonCancelled,
		ReportedAt:    time.Now().UTC(),
	})
	return nil
}

func (t *Tracker) pollLoop(ctx context.Context, tj *trackedJob) {
	interval := t.Config.Interval
	failures := 0

	for {
		select {
		case <-ctx.Done():
			return
		case <-time.After(interval):
		}

		snap, err := t.Engine.GetStatus(ctx, tj.id)
		if err != nil {
			if errors.Is(err, engine.ErrUnknownJob) {
				t.recordTerminal(ctx, tj.id, TerminalUpdate{
					Status:        StatusFailed,
					ErrorCode:     ErrorCodeEngine,
					ErrorMessage:  "job unknown to analysis engine",
					FailureReason: ReasonEngineError,
					ReportedAt:    time.Now().UTC(),
					Authoritative: true,
				})
				return
			}
			failures++
			metrics.IncEnginePollFailure()
			telemetry.Error("tracker.poll_failed", map[string]any{
				"job_id":   tj.id,
				"failures": failures,
				"error":    err.Error(),
			})
			if failures > t.Config.RetryCeiling {
				t.recordTerminal(ctx, tj.id, TerminalUpdate{
					Status:        StatusFailed,
					ErrorCode:     ErrorCodeAnalysisTimeout,
					ErrorMessage:  "analysis engine unresponsive",
					FailureReason: ReasonAnalysisTimeout,
					ReportedAt:    time.Now().UTC(),
				})
				return
			}
			interval = nextBackoff(interval, t.Config.BackoffFactor)
			continue
		}

		failures = 0
		interval = t.Config.Interval
		if done := t.observe(ctx, tj, snap); done {
			return
		}
	}
}

// observe applies one engine snapshot, discarding stale or regressive
// observations. Returns true once the job is terminal.
func (t *Tracker) observe(ctx context.Context, tj *trackedJob, raw engine.StatusSnapshot) bool {
	snap := snapshotFromEngine(raw)

	tj.mu.Lock()
	if tj.terminal {
		tj.mu.Unlock()
		return true
	}
	if snap.Seq < tj.last.Seq || snap.Status.Rank() < tj.last.Status.Rank() {
		tj.mu.Unlock()
		return false
	}
	if snap.Status.Rank() == tj.last.Status.Rank() && !snap.Terminal() {
		tj.last.Seq = snap.Seq
		tj.mu.Unlock()
		return false
	}
	tj.mu.Unlock()

	if snap.Terminal() {
		t.recordTerminal(ctx, tj.id, terminalFromEngine(raw))
		return true
	}

	if err := t.Repo.UpdateProgress(ctx, tj.id, snap.Status, snap.Seq); err != nil {
		telemetry.Error("tracker.progress_update_failed", map[string]any{"job_id": tj.id, "error": err.Error()})
	}
	tj.mu.Lock()
	if !tj.terminal && snap.Status.Rank() > tj.last.Status.Rank() {
		tj.last = snap
		tj.deliverLocked(snap)
	}
	tj.mu.Unlock()

	telemetry.Info("inspection.status", map[string]any{
		"job_id": tj.id,
		"status": snap.Status,
		"seq":    snap.Seq,
	})
	return false
}

// recordTerminal persists a terminal transition and, when it is the first for
// the job, fans it out: subscribers, sink, metrics, workflow notification.
// Duplicate terminal reports are idempotent no-ops.
func (t *Tracker) recordTerminal(ctx context.Context, jobID string, update TerminalUpdate) {
	job, recorded, err := t.Repo.MarkTerminal(ctx, jobID, update)
	if err != nil {
		telemetry.Error("tracker.terminal_update_failed", map[string]any{"job_id": jobID, "error": err.Error()})
		return
	}

	snap := snapshotFromJob(job)

	t.mu.Lock()
	tj := t.jobs[jobID]
	t.mu.Unlock()
	if tj != nil {
		tj.mu.Lock()
		if !tj.terminal {
			tj.terminal = true
			tj.last = snap
			tj.deliverLocked(snap)
			for ch := range tj.subs {
				close(ch)
			}
			tj.subs = make(map[chan Snapshot]struct{})
		}
		tj.mu.Unlock()
	}

	if !recorded {
		return
	}

	if job.Status == StatusSucceeded {
		metrics.IncInspectionSucceeded()
	} else {
		metrics.IncInspectionFailed(job.FailureReason)
	}
	if job.CompletedAt != nil {
		metrics.ObserveInspectionDuration(job.CompletedAt.Sub(job.SubmittedAt).Seconds())
	}
	telemetry.Info("inspection.status", map[string]any{
		"job_id":         jobID,
		"status":         job.Status,
		"failure_reason": job.FailureReason,
	})

	if t.Sink != nil {
		t.Sink.JobFinished(ctx, job)
	}
	if t.Notify != nil {
		t.Notify(jobID, job.Status)
	}
}

func (tj *trackedJob) deliverLocked(snap Snapshot) {
	for ch := range tj.subs {
		select {
		case ch <- snap:
		default:
		}
	}
}

func closedSubscription(snap Snapshot) *Subscription {
	ch := make(chan Snapshot, 1)
	ch <- snap
	close(ch)
	return &Subscription{ch: ch, detach: func(chan Snapshot) {}}
}

func nextBackoff(current time.Duration, factor float64) time.Duration {
	next := time.Duration(float64(current) * factor)
	if next > maxPollInterval {
		return maxPollInterval
	}
	return next
}

func snapshotFromJob(job Job) Snapshot {
	at := job.SubmittedAt
	if job.UpdatedAt != nil {
		at = *job.UpdatedAt
	}
	return Snapshot{
		JobID:         job.ID,
		Status:        job.Status,
		Seq:           job.StatusSeq,
		Result:        job.Result,
		ErrorCode:     job.ErrorCode,
		ErrorMessage:  job.ErrorMessage,
		FailureReason: job.FailureReason,
		At:            at,
	}
}

func snapshotFromEngine(raw engine.StatusSnapshot) Snapshot {
	return Snapshot{
		JobID:        raw.JobID,
		Status:       Status(raw.Status),
		Seq:          raw.Seq,
		Result:       resultFromEngine(raw.Result),
		ErrorCode:    raw.ErrorCode,
		ErrorMessage: raw.ErrorMessage,
		At:           raw.ReportedAt,
	}
}

func terminalFromEngine(raw engine.StatusSnapshot) TerminalUpdate {
	update := TerminalUpdate{
		Status:        Status(raw.Status),
		Result:        resultFromEngine(raw.Result),
		ErrorCode:     raw.ErrorCode,
		ErrorMessage:  raw.ErrorMessage,
		Seq:           raw.Seq,
		ReportedAt:    raw.ReportedAt,
		Authoritative: true,
	}
	if update.Status == StatusFailed {
		update.FailureReason = ReasonEngineError
		if update.ErrorCode == "" {
			update.ErrorCode = ErrorCodeEngine
		}
	}
	return update
}

func resultFromEngine(payload *engine.ResultPayload) *Result {
	if payload == nil {
		return nil
	}
	findings := make([]Finding, 0, len(payload.Findings))
	for _, f := range payload.Findings {
		findings = append(findings, Finding{
			Region:     f.Region,
			Severity:   f.Severity,
			Label:      f.Label,
			Confidence: f.Confidence,
		})
	}
	return &Result{Findings: findings, OverallScore: payload.OverallScore}
}
