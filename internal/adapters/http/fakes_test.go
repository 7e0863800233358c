package httpadapter

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/kirillkom/policy-upload-portal/internal/config"
	"github.com/kirillkom/policy-upload-portal/internal/core/domain"
	"github.com/kirillkom/policy-upload-portal/internal/core/ports"
)

const testAdminToken = "admin-token"

// Each fake embeds its port so tests only implement what they exercise.
type submissionsFake struct {
	ports.SubmissionManager
	created    []domain.CreateSubmissionInput
	filters    []domain.SubmissionFilter
	statusArgs []domain.SubmissionStatus
	getErr     error
}

func (f *submissionsFake) Create(_ context.Context, _ domain.RequestMeta, in domain.CreateSubmissionInput) (*domain.Submission, error) {
	f.created = append(f.created, in)
	return &domain.Submission{ID: "sub-1", Slug: "abc-20260101", SubmitterName: in.SubmitterName, Status: domain.StatusDraft}, nil
}

func (f *submissionsFake) Get(_ context.Context, slug string) (*domain.SubmissionDetail, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	return &domain.SubmissionDetail{Submission: domain.Submission{ID: "sub-1", Slug: slug}, Documents: []domain.Document{}}, nil
}

func (f *submissionsFake) List(_ context.Context, filter domain.SubmissionFilter) (domain.Page[domain.SubmissionDetail], error) {
	f.filters = append(f.filters, filter)
	return domain.NewPage[domain.SubmissionDetail](nil, 0, filter.Page, filter.PerPage), nil
}

func (f *submissionsFake) SetStatus(_ context.Context, _ *domain.AdminIdentity, _ domain.RequestMeta, id string, status domain.SubmissionStatus, _ *string) (*domain.Submission, error) {
	f.statusArgs = append(f.statusArgs, status)
	return &domain.Submission{ID: id, Status: status}, nil
}

type documentsFake struct {
	ports.DocumentManager
	uploads []domain.UploadInput
	bodies  []string
}

func (f *documentsFake) Upload(_ context.Context, _ domain.RequestMeta, in domain.UploadInput) (*domain.Document, error) {
	raw, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	in.Body = nil
	f.uploads = append(f.uploads, in)
	f.bodies = append(f.bodies, string(raw))
	name := in.Filename
	return &domain.Document{ID: "doc-1", Category: in.Category, Classification: in.Classification, OriginalFilename: &name}, nil
}

type calendarFake struct {
	ports.CalendarManager
	bookErr error
	windows [][2]*time.Time
}

func (f *calendarFake) Available(_ context.Context, from, to *time.Time) ([]domain.CalendarSlot, error) {
	f.windows = append(f.windows, [2]*time.Time{from, to})
	return []domain.CalendarSlot{}, nil
}

func (f *calendarFake) Book(_ context.Context, _ domain.RequestMeta, _ string, slotID string) (*domain.CalendarSlot, error) {
	if f.bookErr != nil {
		return nil, f.bookErr
	}
	return &domain.CalendarSlot{ID: slotID}, nil
}

type adminAuthFake struct {
	ports.AdminAuthenticator
	loginErr error
}

func (f *adminAuthFake) Login(_ context.Context, _ domain.RequestMeta, username, _ string) (*domain.AdminLogin, error) {
	if f.loginErr != nil {
		return nil, f.loginErr
	}
	return &domain.AdminLogin{
		User:      domain.AdminUser{ID: "admin-1", Username: username, IsActive: true},
		Token:     testAdminToken,
		ExpiresAt: time.Now().Add(time.Hour),
	}, nil
}

func (f *adminAuthFake) Logout(context.Context, domain.RequestMeta, string) error { return nil }

func (f *adminAuthFake) Validate(_ context.Context, token string) (*domain.AdminIdentity, error) {
	if token != testAdminToken {
		return nil, domain.Fail(domain.ErrUnauthorized, "Session expired or invalid")
	}
	return &domain.AdminIdentity{User: domain.AdminUser{ID: "admin-1", Username: "admin"}}, nil
}

type uploaderAuthFake struct {
	ports.UploaderAuthenticator
}

func (f *uploaderAuthFake) Login(_ context.Context, _ domain.RequestMeta, slug, _ string) (*domain.UploaderLogin, error) {
	return &domain.UploaderLogin{
		View:  domain.UploaderView{SubmissionID: "sub-1", Slug: slug, Status: domain.StatusDraft, SessionExpiresAt: time.Now().Add(time.Hour)},
		Token: "uploader-token",
	}, nil
}

type exportsFake struct {
	ports.SubmissionExporter
	archive string
}

func (f *exportsFake) ExportJSON(_ context.Context, id string) (*domain.SubmissionExport, error) {
	return &domain.SubmissionExport{Submission: domain.Submission{ID: id, Slug: "abc-20260101"}}, nil
}

func (f *exportsFake) WriteArchive(_ context.Context, _ *domain.SubmissionExport, w io.Writer) error {
	_, err := io.WriteString(w, f.archive)
	return err
}

type testServices struct {
	submissions *submissionsFake
	documents   *documentsFake
	calendar    *calendarFake
	adminAuth   *adminAuthFake
	exports     *exportsFake
}

func newTestServices() *testServices {
	return &testServices{
		submissions: &submissionsFake{},
		documents:   &documentsFake{},
		calendar:    &calendarFake{},
		adminAuth:   &adminAuthFake{},
		exports:     &exportsFake{archive: "PK-fake"},
	}
}

func (s *testServices) handler(cfg config.Config) http.Handler {
	return NewRouter(cfg, Services{
		Submissions:  s.submissions,
		Documents:    s.documents,
		Calendar:     s.calendar,
		AdminAuth:    s.adminAuth,
		UploaderAuth: &uploaderAuthFake{},
		Exports:      s.exports,
	}, nil).Handler()
}

func newTestHandler(cfg config.Config) http.Handler {
	return newTestServices().handler(cfg)
}

func withAdminCookie(r *http.Request) *http.Request {
	r.AddCookie(&http.Cookie{Name: adminSessionCookie, Value: testAdminToken})
	return r
}
