package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

type SubmissionStatus string

const (
	StatusDraft       SubmissionStatus = "draft"
	StatusSubmitted   SubmissionStatus = "submitted"
	StatusUnderReview SubmissionStatus = "under_review"
	StatusApproved    SubmissionStatus = "approved"
	StatusRejected    SubmissionStatus = "rejected"
	StatusForwarded   SubmissionStatus = "forwarded"
	StatusCompleted   SubmissionStatus = "completed"
)

// SubmissionStatuses lists every status in lifecycle order. The database enum is generated from it.
func SubmissionStatuses() []SubmissionStatus {
	return []SubmissionStatus{
		StatusDraft,
		StatusSubmitted,
		StatusUnderReview,
		StatusApproved,
		StatusRejected,
		StatusForwarded,
		StatusCompleted,
	}
}

// ParseSubmissionStatus accepts only the closed set of statuses.
func ParseSubmissionStatus(raw string) (SubmissionStatus, error) {
	switch s := SubmissionStatus(strings.TrimSpace(raw)); s {
	case StatusDraft, StatusSubmitted, StatusUnderReview, StatusApproved,
		StatusRejected, StatusForwarded, StatusCompleted:
		return s, nil
	default:
		return "", Failf(ErrInvalidInput, "Invalid status: %s", raw)
	}
}

// Forwardable reports whether an admin may forward a submission in this status.
func (s SubmissionStatus) Forwardable() bool {
	switch s {
	case StatusSubmitted, StatusUnderReview, StatusApproved:
		return true
	default:
		return false
	}
}

type Submission struct {
	ID                     string           `json:"id"`
	Slug                   string           `json:"slug"`
	SubmitterName          string           `json:"submitter_name"`
	SubmitterEmail         *string          `json:"submitter_email"`
	Organization           string           `json:"organization"`
	OrganizationDepartment *string          `json:"organization_department"`
	Status                 SubmissionStatus `json:"status"`
	Notes                  *string          `json:"notes"`
	ForwardedTo            *string          `json:"forwarded_to"`
	ForwardedAt            *time.Time       `json:"forwarded_at"`
	CreatedAt              time.Time        `json:"created_at"`
	UpdatedAt              time.Time        `json:"updated_at"`
	SubmittedAt            *time.Time       `json:"submitted_at"`
	ExpiresAt              time.Time        `json:"expires_at"`
}

// SubmissionPatch carries a partial update; nil fields are left untouched.
type SubmissionPatch struct {
	SubmitterName          *string `json:"submitter_name"`
	SubmitterEmail         *string `json:"submitter_email"`
	Organization           *string `json:"organization"`
	OrganizationDepartment *string `json:"organization_department"`
}

type SubmissionDetail struct {
	Submission
	Documents []Document `json:"documents"`
}

type SubmissionFilter struct {
	Status  *SubmissionStatus
	Search  string
	Page    int
	PerPage int
}

const (
	DefaultPerPage = 20
	MaxPerPage     = 100
)

// Normalize clamps paging values into their accepted ranges.
func (f SubmissionFilter) Normalize() SubmissionFilter {
	out := f
	if out.Page < 1 {
		out.Page = 1
	}
	if out.PerPage <= 0 {
		out.PerPage = DefaultPerPage
	}
	if out.PerPage > MaxPerPage {
		out.PerPage = MaxPerPage
	}
	out.Search = strings.TrimSpace(out.Search)
	return out
}

func (f SubmissionFilter) Offset() int {
	return (f.Page - 1) * f.PerPage
}

type Page[T any] struct {
	Items      []T   `json:"items"`
	Total      int64 `json:"total"`
	Page       int   `json:"page"`
	PerPage    int   `json:"per_page"`
	TotalPages int64 `json:"total_pages"`
}

func NewPage[T any](items []T, total int64, page, perPage int) Page[T] {
	if items == nil {
		items = []T{}
	}
	var pages int64
	if perPage > 0 {
		pages = (total + int64(perPage) - 1) / int64(perPage)
	}
	return Page[T]{Items: items, Total: total, Page: page, PerPage: perPage, TotalPages: pages}
}

type DashboardStats struct {
	SubmissionsByStatus   map[SubmissionStatus]int64 `json:"submissions_by_status"`
	TotalSubmissions      int64                      `json:"total_submissions"`
	TotalDocuments        int64                      `json:"total_documents"`
	AvailableMeetingSlots int64                      `json:"available_meeting_slots"`
}

const slugPrefix = "rr-"

// NewSlug builds a reference code of the form rr-YYYYMMDD-xxxxx.
func NewSlug(now time.Time) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:5]
	return fmt.Sprintf("%s%s-%s", slugPrefix, now.UTC().Format("20060102"), suffix)
}

// ValidateSlug accepts lowercase alphanumerics and inner hyphens, at most 50 characters.
func ValidateSlug(slug string) error {
	if slug == "" || len(slug) > 50 {
		return Fail(ErrInvalidInput, msgInvalidSlug)
	}
	if strings.HasPrefix(slug, "-") || strings.HasSuffix(slug, "-") {
		return Fail(ErrInvalidInput, msgInvalidSlug)
	}
	for _, r := range slug {
		if !(r >= 'a' && r <= 'z') && !(r >= '0' && r <= '9') && r != '-' {
			return Fail(ErrInvalidInput, msgInvalidSlug)
		}
	}
	return nil
}

const msgInvalidSlug = "Invalid slug format (must be lowercase alphanumeric with hyphens)"

// ForwardEvent is published when a submission is handed to another department.
type ForwardEvent struct {
	SubmissionID string    `json:"submission_id"`
	Slug         string    `json:"slug"`
	ForwardedTo  string    `json:"forwarded_to"`
	Notes        *string   `json:"notes,omitempty"`
	ForwardedBy  string    `json:"forwarded_by"`
	ForwardedAt  time.Time `json:"forwarded_at"`
}
