package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/kirillkom/policy-upload-portal/internal/core/domain"
	"github.com/kirillkom/policy-upload-portal/internal/core/ports"
)

type JanitorPolicy struct {
	Interval    time.Duration
	DraftMaxAge time.Duration
}

func DefaultJanitorPolicy() JanitorPolicy {
	return JanitorPolicy{Interval: time.Hour, DraftMaxAge: time.Hour}
}

// Janitor garbage-collects rate limit rows, expired sessions and abandoned drafts.
type Janitor struct {
	rateLimits       ports.RateLimitRepository
	adminSessions    ports.AdminSessionRepository
	uploaderSessions ports.UploaderSessionRepository
	submissions      ports.SubmissionRepository
	storage          ports.ObjectStorage
	observer         ports.SweepObserver
	audit            *Auditor
	policy           JanitorPolicy
	now              func() time.Time
}

func NewJanitor(
	rateLimits ports.RateLimitRepository,
	adminSessions ports.AdminSessionRepository,
	uploaderSessions ports.UploaderSessionRepository,
	submissions ports.SubmissionRepository,
	storage ports.ObjectStorage,
	observer ports.SweepObserver,
	audit *Auditor,
	policy JanitorPolicy,
) *Janitor {
	def := DefaultJanitorPolicy()
	if policy.Interval <= 0 {
		policy.Interval = def.Interval
	}
	if policy.DraftMaxAge <= 0 {
		policy.DraftMaxAge = def.DraftMaxAge
	}
	return &Janitor{
		rateLimits:       rateLimits,
		adminSessions:    adminSessions,
		uploaderSessions: uploaderSessions,
		submissions:      submissions,
		storage:          storage,
		observer:         observer,
		audit:            audit,
		policy:           policy,
		now:              utcNow,
	}
}

// Sweep runs every cleanup step. A failing step is reported and the remaining steps still run.
func (j *Janitor) Sweep(ctx context.Context) (domain.SweepReport, error) {
	started := time.Now()
	now := j.now()
	var report domain.SweepReport
	var errs []error

	step := func(name string, fn func() (int64, error), into *int64) {
		n, err := fn()
		if err != nil {
			report.Failures++
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
			slog.Warn("janitor_step_failed", "step", name, "error", err)
			return
		}
		*into = n
	}

	step("rate_limit_attempts", func() (int64, error) {
		return j.rateLimits.DeleteBefore(ctx, now.Add(-RateLimitWindow))
	}, &report.RateLimitRows)
	step("admin_sessions", func() (int64, error) {
		return j.adminSessions.DeleteExpired(ctx, now)
	}, &report.AdminSessions)
	step("uploader_sessions", func() (int64, error) {
		return j.uploaderSessions.DeleteExpired(ctx, now)
	}, &report.UploaderSessions)
	step("abandoned_drafts", func() (int64, error) {
		return j.sweepDrafts(ctx, now)
	}, &report.AbandonedDrafts)

	err := errors.Join(errs...)
	if j.observer != nil {
		j.observer.ObserveSweep(domain.SweepObservation{Report: report, Duration: time.Since(started)}, err)
	}
	slog.Info("janitor_sweep",
		"rate_limit_rows", report.RateLimitRows,
		"admin_sessions", report.AdminSessions,
		"uploader_sessions", report.UploaderSessions,
		"abandoned_drafts", report.AbandonedDrafts,
		"failures", report.Failures,
	)
	return report, err
}

func (j *Janitor) sweepDrafts(ctx context.Context, now time.Time) (int64, error) {
	removed, err := j.submissions.DeleteDraftsCreatedBefore(ctx, now.Add(-j.policy.DraftMaxAge))
	if err != nil {
		return 0, err
	}
	for _, sub := range removed {
		if j.storage != nil {
			if err := j.storage.RemoveDir(ctx, sub.Slug); err != nil {
				slog.Warn("janitor_draft_dir_remove_failed", "slug", sub.Slug, "error", err)
			}
		}
		j.audit.Record(ctx, domain.AuditSubmissionDeleted, domain.EntitySubmission, sub.ID, systemActor(),
			map[string]any{"slug": sub.Slug, "reason": "abandoned_draft"})
	}
	return int64(len(removed)), nil
}

// Run sweeps once immediately and then on every interval until ctx is done. Failures never stop the loop.
func (j *Janitor) Run(ctx context.Context) {
	ticker := time.NewTicker(j.policy.Interval)
	defer ticker.Stop()

	for {
		if _, err := j.Sweep(ctx); err != nil {
			slog.Warn("janitor_sweep_failed", "error", err)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
