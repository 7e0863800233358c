package domain

import "time"

type AdminUser struct {
	ID           string     `json:"id"`
	Username     string     `json:"username"`
	Email        *string    `json:"email"`
	DisplayName  *string    `json:"display_name"`
	PasswordHash string     `json:"-"`
	IsActive     bool       `json:"is_active"`
	LastLoginAt  *time.Time `json:"last_login_at"`
	CreatedAt    time.Time  `json:"created_at"`
}

// AdminSession is stored under the hash of its token; the raw token never reaches storage.
type AdminSession struct {
	ID          string
	AdminUserID string
	TokenHash   string
	ExpiresAt   time.Time
	IPAddress   *string
	UserAgent   *string
	CreatedAt   time.Time
}

type UploaderSession struct {
	ID           string
	SubmissionID string
	Email        string
	TokenHash    string
	ExpiresAt    time.Time
	CreatedAt    time.Time
}

// AdminIdentity is the resolved caller of an admin-gated operation.
type AdminIdentity struct {
	User      AdminUser
	SessionID string
	ExpiresAt time.Time
}

// UploaderIdentity binds a caller to exactly one submission.
type UploaderIdentity struct {
	SubmissionID string
	Slug         string
	SessionID    string
	ExpiresAt    time.Time
}

type AdminLogin struct {
	User      AdminUser `json:"user"`
	Token     string    `json:"-"`
	ExpiresAt time.Time `json:"expires_at"`
}

// UploaderView is what an uploader sees about their dossier. Name and organization are omitted.
type UploaderView struct {
	SubmissionID     string           `json:"submission_id"`
	Slug             string           `json:"slug"`
	Status           SubmissionStatus `json:"status"`
	Documents        []Document       `json:"documents"`
	SessionExpiresAt time.Time        `json:"session_expires_at"`
}

type UploaderLogin struct {
	View  UploaderView
	Token string
}
