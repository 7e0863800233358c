package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/kirillkom/policy-upload-portal/internal/core/domain"
)

type authFixture struct {
	users     *adminUserStoreFake
	adminSess *adminSessionStoreFake
	upSess    *uploaderSessionStoreFake
	subs      *submissionStoreFake
	docs      *documentStoreFake
	audit     *auditStoreFake
	tokens    *tokensFake
	admin     *AdminAuthService
	uploader  *UploaderAuthService
}

func newAuthFixture() *authFixture {
	f := &authFixture{
		users: &adminUserStoreFake{users: map[string]*domain.AdminUser{
			"admin-1": {ID: "admin-1", Username: "admin", PasswordHash: "plain:s3cret", IsActive: true},
			"admin-2": {ID: "admin-2", Username: "retired", PasswordHash: "plain:old", IsActive: false},
			"admin-3": {ID: "admin-3", Username: "broken", PasswordHash: "$argon2id$garbage", IsActive: true},
		}},
		adminSess: &adminSessionStoreFake{},
		upSess:    &uploaderSessionStoreFake{},
		subs:      newSubmissionStoreFake(),
		docs:      &documentStoreFake{},
		audit:     &auditStoreFake{},
		tokens:    &tokensFake{},
	}
	limiter := newTestLimiter(&rateLimitStoreFake{})
	auditor := newTestAuditor(f.audit)
	f.admin = NewAdminAuthService(NewLocalPasswordProvider(f.users, hasherFake{}), f.users, f.adminSess, f.tokens, limiter, auditor, 0)
	f.admin.now = fixedClock
	f.uploader = NewUploaderAuthService(f.subs, f.docs, f.upSess, f.tokens, limiter, auditor, 0)
	f.uploader.now = fixedClock
	return f
}

func TestAdminLoginStoresOnlyTokenHash(t *testing.T) {
	f := newAuthFixture()

	login, err := f.admin.Login(context.Background(), testMeta, "admin", "s3cret")
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	if login.Token == "" {
		t.Fatalf("expected token")
	}
	if !login.ExpiresAt.Equal(fixedNow.Add(8 * time.Hour)) {
		t.Fatalf("expected 8h session, got %s", login.ExpiresAt)
	}
	if _, ok := f.adminSess.sessions[login.Token]; ok {
		t.Fatalf("raw token must not be stored")
	}
	session, ok := f.adminSess.sessions[f.tokens.Hash(login.Token)]
	if !ok {
		t.Fatalf("session not stored under token hash")
	}
	if session.IPAddress == nil || *session.IPAddress != testMeta.ClientIP {
		t.Fatalf("expected ip recorded, got %v", session.IPAddress)
	}
	if len(f.users.touched) != 1 || login.User.LastLoginAt == nil {
		t.Fatalf("expected last login stamped")
	}
	if got := f.audit.last().Action; got != domain.AuditAdminLogin {
		t.Fatalf("expected admin_login audit, got %s", got)
	}

	ident, err := f.admin.Validate(context.Background(), login.Token)
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if ident.User.ID != "admin-1" {
		t.Fatalf("unexpected identity %+v", ident)
	}
}

func TestAdminLoginFailuresAreIndistinguishable(t *testing.T) {
	f := newAuthFixture()
	ctx := context.Background()

	_, wrongPass := f.admin.Login(ctx, testMeta, "admin", "nope")
	_, unknown := f.admin.Login(ctx, testMeta, "ghost", "nope")
	_, inactive := f.admin.Login(ctx, testMeta, "retired", "old")

	for _, err := range []error{wrongPass, unknown, inactive} {
		if !domain.IsKind(err, domain.ErrUnauthorized) {
			t.Fatalf("expected ErrUnauthorized, got %v", err)
		}
		if msg, _ := domain.PublicMessage(err); msg != msgInvalidCredentials {
			t.Fatalf("expected generic message, got %q", msg)
		}
	}
}

func TestAdminLoginRateLimitedOnEleventhAttempt(t *testing.T) {
	f := newAuthFixture()
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		if _, err := f.admin.Login(ctx, testMeta, "admin", "wrong"); !domain.IsKind(err, domain.ErrUnauthorized) {
			t.Fatalf("attempt %d: expected ErrUnauthorized, got %v", i+1, err)
		}
	}
	_, err := f.admin.Login(ctx, testMeta, "admin", "s3cret")
	if !domain.IsKind(err, domain.ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited with correct password, got %v", err)
	}

	other := domain.RequestMeta{ClientIP: "198.51.100.1"}
	if _, err := f.admin.Login(ctx, other, "admin", "s3cret"); err != nil {
		t.Fatalf("other ip must not be limited, got %v", err)
	}
}

func TestAdminLoginMalformedHashIsServerError(t *testing.T) {
	f := newAuthFixture()

	_, err := f.admin.Login(context.Background(), testMeta, "broken", "anything")
	if err == nil {
		t.Fatalf("expected error")
	}
	if domain.IsKind(err, domain.ErrUnauthorized) {
		t.Fatalf("malformed hash must not look like a credential mismatch: %v", err)
	}
}

func TestAdminLoginRequiresFields(t *testing.T) {
	f := newAuthFixture()
	if _, err := f.admin.Login(context.Background(), testMeta, "  ", "x"); !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestAdminLoginCountsMalformedAttempts(t *testing.T) {
	f := newAuthFixture()
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		if _, err := f.admin.Login(ctx, testMeta, "", ""); !domain.IsKind(err, domain.ErrInvalidInput) {
			t.Fatalf("attempt %d: expected ErrInvalidInput, got %v", i+1, err)
		}
	}
	if _, err := f.admin.Login(ctx, testMeta, "admin", "s3cret"); !domain.IsKind(err, domain.ErrRateLimited) {
		t.Fatalf("empty attempts must use up the budget, got %v", err)
	}
}

func TestUploaderLoginCountsMalformedAttempts(t *testing.T) {
	f := newAuthFixture()
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		if _, err := f.uploader.Login(ctx, testMeta, " ", ""); !domain.IsKind(err, domain.ErrInvalidInput) {
			t.Fatalf("attempt %d: expected ErrInvalidInput, got %v", i+1, err)
		}
	}
	if _, err := f.uploader.Login(ctx, testMeta, "rr-20240301-ab12c", "jan@example.org"); !domain.IsKind(err, domain.ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}
}

func TestAdminValidateRejectsExpiredAndDeactivated(t *testing.T) {
	f := newAuthFixture()
	ctx := context.Background()

	login, err := f.admin.Login(ctx, testMeta, "admin", "s3cret")
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}

	f.admin.now = func() time.Time { return fixedNow.Add(9 * time.Hour) }
	if _, err := f.admin.Validate(ctx, login.Token); !domain.IsKind(err, domain.ErrUnauthorized) {
		t.Fatalf("expected expired session rejected, got %v", err)
	}

	f.admin.now = fixedClock
	f.users.users["admin-1"].IsActive = false
	if _, err := f.admin.Validate(ctx, login.Token); !domain.IsKind(err, domain.ErrUnauthorized) {
		t.Fatalf("expected deactivated account rejected, got %v", err)
	}
}

func TestAdminLogoutIsIdempotent(t *testing.T) {
	f := newAuthFixture()
	ctx := context.Background()

	login, _ := f.admin.Login(ctx, testMeta, "admin", "s3cret")
	if err := f.admin.Logout(ctx, testMeta, login.Token); err != nil {
		t.Fatalf("Logout() error = %v", err)
	}
	if err := f.admin.Logout(ctx, testMeta, login.Token); err != nil {
		t.Fatalf("second Logout() error = %v", err)
	}
	if _, err := f.admin.Validate(ctx, login.Token); !domain.IsKind(err, domain.ErrUnauthorized) {
		t.Fatalf("expected logged out token rejected, got %v", err)
	}
}

func seedSubmission(store *submissionStoreFake, status domain.SubmissionStatus) *domain.Submission {
	return store.put(domain.Submission{
		ID:             "7f1c6a52-1c3b-4d8e-9d0a-5b8e2f3c4d01",
		Slug:           "rr-20240301-ab12c",
		SubmitterName:  "Jan",
		SubmitterEmail: strPtr("Jan@Example.org"),
		Organization:   "Gemeente X",
		Status:         status,
		CreatedAt:      fixedNow,
		UpdatedAt:      fixedNow,
	})
}

func TestUploaderLoginAndNamespaceIsolation(t *testing.T) {
	f := newAuthFixture()
	ctx := context.Background()
	sub := seedSubmission(f.subs, domain.StatusSubmitted)

	login, err := f.uploader.Login(ctx, testMeta, " RR-20240301-AB12C ", "jan@EXAMPLE.org")
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	if login.View.SubmissionID != sub.ID || login.View.Slug != sub.Slug {
		t.Fatalf("unexpected view %+v", login.View)
	}
	if !login.View.SessionExpiresAt.Equal(fixedNow.Add(4 * time.Hour)) {
		t.Fatalf("expected 4h session, got %s", login.View.SessionExpiresAt)
	}

	ident, err := f.uploader.Validate(ctx, login.Token)
	if err != nil || ident.SubmissionID != sub.ID {
		t.Fatalf("Validate() = %+v, %v", ident, err)
	}

	if _, err := f.admin.Validate(ctx, login.Token); !domain.IsKind(err, domain.ErrUnauthorized) {
		t.Fatalf("uploader token must not validate as admin, got %v", err)
	}

	me, err := f.uploader.Me(ctx, login.Token)
	if err != nil {
		t.Fatalf("Me() error = %v", err)
	}
	if me.Status != domain.StatusSubmitted || me.Documents == nil {
		t.Fatalf("unexpected me view %+v", me)
	}
}

func TestUploaderLoginWrongEmail(t *testing.T) {
	f := newAuthFixture()
	seedSubmission(f.subs, domain.StatusDraft)

	_, err := f.uploader.Login(context.Background(), testMeta, "rr-20240301-ab12c", "someone@else.org")
	if !domain.IsKind(err, domain.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	if msg, _ := domain.PublicMessage(err); msg != msgInvalidUploader {
		t.Fatalf("unexpected message %q", msg)
	}
}

func TestSSOProviderRejects(t *testing.T) {
	p := &SSOProvider{Issuer: "https://login.example.org"}
	if _, err := p.Authenticate(context.Background(), "a", "b"); !domain.IsKind(err, domain.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	if p.Name() != "sso" {
		t.Fatalf("unexpected provider name %q", p.Name())
	}
}

func TestTruncateKeepsRuneBoundary(t *testing.T) {
	if got := truncate("héllo", 2); got != "h" {
		t.Fatalf("truncate() = %q", got)
	}
	if got := truncate("abc", 5); got != "abc" {
		t.Fatalf("truncate() = %q", got)
	}
}
