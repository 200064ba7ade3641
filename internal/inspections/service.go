package inspections

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/DedovInside/AutoInspect/internal/engine"
	"github.com/DedovInside/AutoInspect/internal/shared/metrics"
	"github.com/DedovInside/AutoInspect/internal/shared/storage/object"
	"github.com/DedovInside/AutoInspect/internal/shared/telemetry"

	"github.com/google/uuid"
)

// AuditRecorder receives best-effort audit events for job activity.
type AuditRecorder interface {
	Record(ctx context.Context, action, userID string, details map[string]any)
}

// Service coordinates image intake, engine submission and job access.
type Service struct {
	Repo    Repo
	Store   object.ObjectStore
	Engine  engine.Client
	Tracker *Tracker
	Policy  UploadPolicy
	Audit   AuditRecorder
}

// Submit validates the image set, stores the images, hands them to the
// analysis engine and registers the resulting job with the tracker. A policy
// violation returns before any storage or engine interaction.
func (s *Service) Submit(ctx context.Context, userID string, images []ImageUpload) (Job, error) {
	if err := s.Policy.Validate(images); err != nil {
		return Job{}, err
	}

	refs := make([]engine.ImageRef, 0, len(images))
	keys := make([]string, 0, len(images))
	for _, img := range images {
		key, size, mime, err := s.Store.Save(ctx, userID, img.FileName, bytes.NewReader(img.Data))
		if err != nil {
			return Job{}, fmt.Errorf("%w: %v", ErrUploadTransport, err)
		}
		keys = append(keys, key)
		refs = append(refs, engine.ImageRef{StorageKey: key, MimeType: mime, SizeBytes: size})
	}

	requestID := uuid.NewString()
	jobID, err := s.Engine.Submit(ctx, engine.SubmitRequest{RequestID: requestID, Images: refs})
	if err != nil {
		return Job{}, fmt.Errorf("%w: %v", ErrUploadTransport, err)
	}

	job := Job{
		ID:          jobID,
		UserID:      userID,
		Status:      StatusPending,
		ImageKeys:   keys,
		SubmittedAt: time.Now().UTC(),
	}
	if err := s.Repo.Create(ctx, job); err != nil {
		return Job{}, err
	}
	s.Tracker.Track(job)
	metrics.IncInspectionSubmitted()

	telemetry.Info("inspection.submitted", map[string]any{
		"job_id":      jobID,
		"user_id":     userID,
		"image_count": len(images),
	})
	if s.Audit != nil {
		s.Audit.Record(ctx, "inspection.submitted", userID, map[string]any{"jobId": jobID})
	}
	return job, nil
}

// Get returns a job visible to the caller. A job owned by another user is
// indistinguishable from a missing one unless the caller is an admin.
func (s *Service) Get(ctx context.Context, userID, role, jobID string) (Job, error) {
	job, err := s.Repo.GetByID(ctx, jobID)
	if err != nil {
		return Job{}, err
	}
	if job.UserID != userID && role != "admin" {
		return Job{}, ErrNotFound
	}
	return job, nil
}

// GetResult returns the findings of a succeeded job. Jobs still in flight
// return ErrNotReady; failed jobs have no result and also return ErrNotReady.
func (s *Service) GetResult(ctx context.Context, userID, role, jobID string) (*Result, error) {
	job, err := s.Get(ctx, userID, role, jobID)
	if err != nil {
		return nil, err
	}
	if job.Status != StatusSucceeded || job.Result == nil {
		return nil, ErrNotReady
	}
	return job.Result, nil
}

// List returns the caller's jobs newest-first.
func (s *Service) List(ctx context.Context, userID string, limit, offset int) ([]Job, error) {
	return s.Repo.ListByUser(ctx, userID, limit, offset)
}

// Watch subscribes the caller to a job's status stream.
func (s *Service) Watch(ctx context.Context, userID, role, jobID string) (*Subscription, error) {
	if _, err := s.Get(ctx, userID, role, jobID); err != nil {
		return nil, err
	}
	return s.Tracker.Watch(ctx, jobID)
}

// Cancel requests cancellation of the caller's job.
func (s *Service) Cancel(ctx context.Context, userID, role, jobID string) error {
	if _, err := s.Get(ctx, userID, role, jobID); err != nil {
		return err
	}
	if err := s.Tracker.Cancel(ctx, jobID); err != nil {
		return err
	}
	if s.Audit != nil {
		s.Audit.Record(ctx, "inspection.cancelled", userID, map[string]any{"jobId": jobID})
	}
	return nil
}
