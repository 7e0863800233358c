package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/kirillkom/policy-upload-portal/internal/core/domain"
	"github.com/kirillkom/policy-upload-portal/internal/core/ports"
)

const (
	EndpointLogin            = "login"
	EndpointUploaderLogin    = "uploader_login"
	EndpointCreateSubmission = "create_submission"

	RateLimitWindow = time.Hour
)

const msgRateLimited = "Too many attempts. Please try again later."

type RateLimitPolicy struct {
	LoginMaxAttempts      int
	SubmissionMaxAttempts int
}

func DefaultRateLimitPolicy() RateLimitPolicy {
	return RateLimitPolicy{LoginMaxAttempts: 10, SubmissionMaxAttempts: 20}
}

// RateLimiter counts attempts per (ip, endpoint) over a trailing window stored in the database.
type RateLimiter struct {
	repo   ports.RateLimitRepository
	limits map[string]int
	now    func() time.Time
}

func NewRateLimiter(repo ports.RateLimitRepository, policy RateLimitPolicy) *RateLimiter {
	def := DefaultRateLimitPolicy()
	if policy.LoginMaxAttempts <= 0 {
		policy.LoginMaxAttempts = def.LoginMaxAttempts
	}
	if policy.SubmissionMaxAttempts <= 0 {
		policy.SubmissionMaxAttempts = def.SubmissionMaxAttempts
	}
	return &RateLimiter{
		repo: repo,
		limits: map[string]int{
			EndpointLogin:            policy.LoginMaxAttempts,
			EndpointUploaderLogin:    policy.LoginMaxAttempts,
			EndpointCreateSubmission: policy.SubmissionMaxAttempts,
		},
		now: utcNow,
	}
}

// Allowed reports whether fewer than the endpoint's maximum attempts were seen in the window.
func (r *RateLimiter) Allowed(ctx context.Context, ip, endpoint string) (bool, error) {
	limit, ok := r.limits[endpoint]
	if !ok {
		return true, nil
	}
	count, err := r.repo.CountSince(ctx, ip, endpoint, r.now().Add(-RateLimitWindow))
	if err != nil {
		return false, fmt.Errorf("count attempts: %w", err)
	}
	return count < int64(limit), nil
}

// Check rejects the call when the limit is reached and otherwise records it.
// Counting and recording happen atomically in the store.
func (r *RateLimiter) Check(ctx context.Context, ip, endpoint string) error {
	limit, ok := r.limits[endpoint]
	if !ok {
		return nil
	}
	now := r.now()
	recorded, err := r.repo.RecordIfUnder(ctx, ip, endpoint, now, now.Add(-RateLimitWindow), int64(limit))
	if err != nil {
		return fmt.Errorf("record attempt: %w", err)
	}
	if !recorded {
		return domain.Fail(domain.ErrRateLimited, msgRateLimited)
	}
	return nil
}
