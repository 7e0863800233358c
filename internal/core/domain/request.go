package domain

import (
	"io"
	"time"
)

// RequestMeta describes who is calling, for rate limiting and the audit trail.
type RequestMeta struct {
	ClientIP  string
	UserAgent string
}

type UploadInput struct {
	Slug           string
	Category       DocumentCategory
	Classification DocumentClassification
	Description    *string
	Filename       string
	MimeType       string
	Size           int64
	Body           io.Reader
	UploaderToken  string
}

type FormalLawInput struct {
	Slug           string
	ExternalURL    string
	ExternalTitle  *string
	Description    *string
	Classification *DocumentClassification
	UploaderToken  string
}

// FileInspection holds best-effort facts read from a stored file.
type FileInspection struct {
	PageCount *int
}

type SweepReport struct {
	RateLimitRows    int64 `json:"rate_limit_rows"`
	AdminSessions    int64 `json:"admin_sessions"`
	UploaderSessions int64 `json:"uploader_sessions"`
	AbandonedDrafts  int64 `json:"abandoned_drafts"`
	Failures         int   `json:"failures"`
}

type SweepObservation struct {
	Report   SweepReport
	Duration time.Duration
}
