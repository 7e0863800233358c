package httpadapter

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/kirillkom/policy-upload-portal/internal/config"
	"github.com/kirillkom/policy-upload-portal/internal/core/domain"
)

type testEnvelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *string         `json:"error"`
}

func decodeEnvelope(t *testing.T, res *httptest.ResponseRecorder) testEnvelope {
	t.Helper()
	var env testEnvelope
	if err := json.Unmarshal(res.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode envelope: %v (body=%s)", err, res.Body.String())
	}
	return env
}

func TestHealthzAndFAQ(t *testing.T) {
	handler := newTestHandler(config.Config{})

	res := httptest.NewRecorder()
	handler.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if res.Code != http.StatusOK {
		t.Fatalf("healthz expected 200, got %d", res.Code)
	}

	res = httptest.NewRecorder()
	handler.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/api/faq", nil))
	env := decodeEnvelope(t, res)
	if !env.Success || env.Error != nil {
		t.Fatalf("expected success envelope, got %+v", env)
	}
	var items []faqItem
	if err := json.Unmarshal(env.Data, &items); err != nil {
		t.Fatalf("decode faq: %v", err)
	}
	if len(items) != len(faqItems) || items[0].Question == "" {
		t.Fatalf("unexpected faq items: %+v", items)
	}
}

func TestSecurityHeadersAndRequestID(t *testing.T) {
	handler := newTestHandler(config.Config{Environment: "production"})

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set(requestIDHeader, "req-123")
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	for header, want := range map[string]string{
		"X-Frame-Options":        "DENY",
		"X-Content-Type-Options": "nosniff",
		requestIDHeader:          "req-123",
	} {
		if got := res.Header().Get(header); got != want {
			t.Fatalf("%s = %q, want %q", header, got, want)
		}
	}
	if res.Header().Get("Strict-Transport-Security") == "" {
		t.Fatalf("expected HSTS in production")
	}
}

func TestAdminRoutesRequireSession(t *testing.T) {
	handler := newTestHandler(config.Config{})

	res := httptest.NewRecorder()
	handler.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/api/admin/submissions", nil))
	if res.Code != http.StatusUnauthorized {
		t.Fatalf("missing cookie expected 401, got %d", res.Code)
	}
	if env := decodeEnvelope(t, res); env.Error == nil || *env.Error != "Not authenticated" {
		t.Fatalf("unexpected error envelope: %+v", env)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/admin/dashboard", nil)
	req.AddCookie(&http.Cookie{Name: adminSessionCookie, Value: "stale"})
	res = httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	if res.Code != http.StatusUnauthorized {
		t.Fatalf("stale cookie expected 401, got %d", res.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/admin/submissions", nil)
	req.AddCookie(&http.Cookie{Name: uploaderSessionCookie, Value: testAdminToken})
	res = httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	if res.Code != http.StatusUnauthorized {
		t.Fatalf("uploader cookie expected 401 on admin route, got %d", res.Code)
	}
}

func TestAdminLoginSetsSessionCookie(t *testing.T) {
	handler := newTestHandler(config.Config{Environment: "production"})

	req := httptest.NewRequest(http.MethodPost, "/api/admin/login", strings.NewReader(`{"username":"admin","password":"secret"}`))
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	if res.Code != http.StatusOK {
		t.Fatalf("login expected 200, got %d: %s", res.Code, res.Body.String())
	}

	var cookie *http.Cookie
	for _, c := range res.Result().Cookies() {
		if c.Name == adminSessionCookie {
			cookie = c
		}
	}
	if cookie == nil {
		t.Fatalf("expected %s cookie", adminSessionCookie)
	}
	if cookie.Value != testAdminToken || !cookie.HttpOnly || !cookie.Secure || cookie.SameSite != http.SameSiteStrictMode {
		t.Fatalf("unexpected cookie attributes: %+v", cookie)
	}
	if strings.Contains(res.Body.String(), testAdminToken) {
		t.Fatalf("token must not appear in the response body")
	}
}

func TestAdminLoginFailureIsUnauthorized(t *testing.T) {
	svc := newTestServices()
	svc.adminAuth.loginErr = domain.Fail(domain.ErrUnauthorized, "Invalid username or password")
	handler := svc.handler(config.Config{})

	req := httptest.NewRequest(http.MethodPost, "/api/admin/login", strings.NewReader(`{"username":"admin","password":"nope"}`))
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	if res.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", res.Code)
	}
	if env := decodeEnvelope(t, res); env.Error == nil || *env.Error != "Invalid username or password" {
		t.Fatalf("unexpected envelope: %+v", env)
	}
	if len(res.Result().Cookies()) != 0 {
		t.Fatalf("failed login must not set cookies")
	}
}

func TestListSubmissionsParsesFilter(t *testing.T) {
	svc := newTestServices()
	handler := svc.handler(config.Config{})

	req := withAdminCookie(httptest.NewRequest(http.MethodGet, "/api/admin/submissions?status=submitted&search=+belasting+&page=2&per_page=500", nil))
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", res.Code, res.Body.String())
	}
	if len(svc.submissions.filters) != 1 {
		t.Fatalf("expected one List call, got %d", len(svc.submissions.filters))
	}
	f := svc.submissions.filters[0]
	if f.Status == nil || *f.Status != domain.StatusSubmitted {
		t.Fatalf("unexpected status filter: %v", f.Status)
	}
	if f.Search != "belasting" || f.Page != 2 || f.PerPage != domain.MaxPerPage {
		t.Fatalf("unexpected filter: %+v", f)
	}

	req = withAdminCookie(httptest.NewRequest(http.MethodGet, "/api/admin/submissions?status=bogus", nil))
	res = httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	if res.Code != http.StatusBadRequest {
		t.Fatalf("bogus status expected 400, got %d", res.Code)
	}
}

func TestUpdateStatusPassesRequestedStatus(t *testing.T) {
	svc := newTestServices()
	handler := svc.handler(config.Config{})

	req := withAdminCookie(httptest.NewRequest(http.MethodPut, "/api/admin/submissions/sub-1/status", strings.NewReader(`{"status":"under_review","notes":"checking"}`)))
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", res.Code, res.Body.String())
	}
	if len(svc.submissions.statusArgs) != 1 || svc.submissions.statusArgs[0] != domain.StatusUnderReview {
		t.Fatalf("unexpected status args: %v", svc.submissions.statusArgs)
	}
}

func TestCreateSubmissionReturns201(t *testing.T) {
	svc := newTestServices()
	handler := svc.handler(config.Config{})

	body := `{"submitter_name":"Jan","organization":"Gemeente Utrecht"}`
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, httptest.NewRequest(http.MethodPost, "/api/submissions", strings.NewReader(body)))
	if res.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", res.Code, res.Body.String())
	}
	if len(svc.submissions.created) != 1 || svc.submissions.created[0].Organization != "Gemeente Utrecht" {
		t.Fatalf("unexpected create input: %+v", svc.submissions.created)
	}

	res = httptest.NewRecorder()
	handler.ServeHTTP(res, httptest.NewRequest(http.MethodPost, "/api/submissions", strings.NewReader("{not json")))
	if res.Code != http.StatusBadRequest {
		t.Fatalf("malformed body expected 400, got %d", res.Code)
	}
}

func TestUploadDocumentReadsMultipartAndQuery(t *testing.T) {
	svc := newTestServices()
	handler := svc.handler(config.Config{MaxUploadSize: 1 << 20})

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", "beleid.pdf")
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	_, _ = part.Write([]byte("%PDF-1.4 test"))
	if err := mw.Close(); err != nil {
		t.Fatalf("close multipart: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/submissions/abc-20260101/documents?category=circular&classification=public&description=Rondschrijven", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.AddCookie(&http.Cookie{Name: uploaderSessionCookie, Value: "uploader-token"})
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	if res.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", res.Code, res.Body.String())
	}

	if len(svc.documents.uploads) != 1 {
		t.Fatalf("expected one upload, got %d", len(svc.documents.uploads))
	}
	in := svc.documents.uploads[0]
	if in.Slug != "abc-20260101" || in.Category != domain.CategoryCircular || in.Classification != domain.ClassificationPublic {
		t.Fatalf("unexpected upload input: %+v", in)
	}
	if in.Filename != "beleid.pdf" || in.Size != int64(len("%PDF-1.4 test")) || in.UploaderToken != "uploader-token" {
		t.Fatalf("unexpected file fields: %+v", in)
	}
	if in.Description == nil || *in.Description != "Rondschrijven" {
		t.Fatalf("unexpected description: %v", in.Description)
	}
	if svc.documents.bodies[0] != "%PDF-1.4 test" {
		t.Fatalf("unexpected body: %q", svc.documents.bodies[0])
	}
}

func TestUploadDocumentRejectsUnknownCategory(t *testing.T) {
	svc := newTestServices()
	handler := svc.handler(config.Config{})

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, _ := mw.CreateFormFile("file", "a.pdf")
	_, _ = part.Write([]byte("x"))
	_ = mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/submissions/abc-20260101/documents?category=memo&classification=public", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
	if len(svc.documents.uploads) != 0 {
		t.Fatalf("service must not be called for invalid category")
	}
}

func TestBookSlotConflictIs409(t *testing.T) {
	svc := newTestServices()
	svc.calendar.bookErr = domain.Fail(domain.ErrConflict, "Slot is no longer available")
	handler := svc.handler(config.Config{})

	req := httptest.NewRequest(http.MethodPost, "/api/submissions/abc-20260101/book-slot", strings.NewReader(`{"slot_id":"slot-1"}`))
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	if res.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", res.Code)
	}
	if env := decodeEnvelope(t, res); env.Error == nil || *env.Error != "Slot is no longer available" {
		t.Fatalf("unexpected envelope: %+v", env)
	}
}

func TestAvailableSlotsRejectsBadTimestamp(t *testing.T) {
	svc := newTestServices()
	handler := svc.handler(config.Config{})

	res := httptest.NewRecorder()
	handler.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/api/calendar/available?from=yesterday", nil))
	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}

	res = httptest.NewRecorder()
	handler.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/api/calendar/available?from=2026-03-01T09:00:00%2B01:00", nil))
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", res.Code, res.Body.String())
	}
	from := svc.calendar.windows[0][0]
	if from == nil || from.Hour() != 8 || from.Location().String() != "UTC" {
		t.Fatalf("expected UTC-normalised from, got %v", from)
	}
}

func TestInternalErrorsAreNotLeaked(t *testing.T) {
	svc := newTestServices()
	svc.submissions.getErr = fmt.Errorf("get submission: %w", errors.New("dial tcp 10.0.0.5:5432: connection refused"))
	handler := svc.handler(config.Config{})

	res := httptest.NewRecorder()
	handler.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/api/submissions/abc-20260101", nil))
	if res.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", res.Code)
	}
	if strings.Contains(res.Body.String(), "10.0.0.5") {
		t.Fatalf("internal detail leaked: %s", res.Body.String())
	}
}

func TestExportFilesStreamsZip(t *testing.T) {
	svc := newTestServices()
	handler := svc.handler(config.Config{})

	res := httptest.NewRecorder()
	handler.ServeHTTP(res, withAdminCookie(httptest.NewRequest(http.MethodGet, "/api/admin/submissions/sub-1/export/files", nil)))
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	if got := res.Header().Get("Content-Type"); got != "application/zip" {
		t.Fatalf("unexpected content type %q", got)
	}
	if got := res.Header().Get("Content-Disposition"); !strings.Contains(got, "abc-20260101-export.zip") {
		t.Fatalf("unexpected disposition %q", got)
	}
	if res.Body.String() != "PK-fake" {
		t.Fatalf("unexpected archive body %q", res.Body.String())
	}
}

func TestUploaderLoginSetsCookie(t *testing.T) {
	handler := newTestHandler(config.Config{})

	req := httptest.NewRequest(http.MethodPost, "/api/uploader/login", strings.NewReader(`{"slug":"abc-20260101","email":"jan@example.nl"}`))
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", res.Code, res.Body.String())
	}
	found := false
	for _, c := range res.Result().Cookies() {
		if c.Name == uploaderSessionCookie && c.Value == "uploader-token" && c.HttpOnly {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected uploader session cookie")
	}

	res = httptest.NewRecorder()
	handler.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/api/uploader/me", nil))
	if res.Code != http.StatusUnauthorized {
		t.Fatalf("me without cookie expected 401, got %d", res.Code)
	}
}

func TestMetricsEndpointUsesRoutePatterns(t *testing.T) {
	handler := newTestHandler(config.Config{})

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/submissions/abc-20260101", nil))

	res := httptest.NewRecorder()
	handler.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body := res.Body.String()
	if !strings.Contains(body, `path="GET /api/submissions/{slug}"`) {
		t.Fatalf("expected route pattern label in metrics:\n%s", body)
	}
	if strings.Contains(body, "abc-20260101") {
		t.Fatalf("slug leaked into metric labels")
	}
}
