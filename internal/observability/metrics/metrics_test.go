package metrics

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/kirillkom/policy-upload-portal/internal/core/domain"
)

func scrape(t *testing.T, h http.Handler) string {
	t.Helper()
	res := httptest.NewRecorder()
	h.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body, _ := io.ReadAll(res.Body)
	return string(body)
}

func TestMiddlewareLabelsByRoutePattern(t *testing.T) {
	m := NewHTTPServerMetrics("api")
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/submissions/{slug}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	handler := m.Middleware("api", mux)

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/submissions/rr-20240301-ab12c", nil))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/nowhere", nil))

	out := scrape(t, m.Handler())
	if !strings.Contains(out, `path="GET /api/submissions/{slug}"`) || !strings.Contains(out, `status="404"`) {
		t.Fatalf("expected pattern label, got:\n%s", out)
	}
	if strings.Contains(out, "rr-20240301-ab12c") {
		t.Fatalf("slug leaked into labels")
	}
	if !strings.Contains(out, `path="unmatched"`) {
		t.Fatalf("expected unmatched label, got:\n%s", out)
	}
}

func TestDomainCounters(t *testing.T) {
	m := NewHTTPServerMetrics("api")
	m.RecordSubmissionCreated("api")
	m.RecordStatusChange("api", "approved")
	m.RecordDocumentAdded("api", "circular", "file", 2048)
	m.RecordBooking("api", "conflict")
	m.RecordLogin("api", "admin", "rate_limited")
	m.RecordRejected("api", "rate_limit")

	out := scrape(t, m.Handler())
	for _, want := range []string{
		"portal_submissions_created_total",
		`portal_submissions_status_changes_total{service="api",status="approved"} 1`,
		`portal_documents_added_total{category="circular",kind="file",service="api"} 1`,
		`portal_calendar_bookings_total{result="conflict",service="api"} 1`,
		`portal_auth_logins_total{realm="admin",result="rate_limited",service="api"} 1`,
		`portal_http_rejected_total{reason="rate_limit",service="api"} 1`,
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("missing %q in:\n%s", want, out)
		}
	}
}

func TestWorkerMetricsObserveSweep(t *testing.T) {
	w := NewWorkerMetrics("worker")
	w.ObserveSweep(domain.SweepObservation{
		Report:   domain.SweepReport{AbandonedDrafts: 2, AdminSessions: 1},
		Duration: 15 * time.Millisecond,
	}, nil)
	w.ObserveSweep(domain.SweepObservation{}, errors.New("db down"))

	out := scrape(t, w.Handler())
	for _, want := range []string{
		`portal_janitor_sweeps_total{service="worker",status="success"} 1`,
		`portal_janitor_sweeps_total{service="worker",status="error"} 1`,
		`portal_janitor_removed_total{kind="abandoned_drafts",service="worker"} 2`,
		"portal_janitor_last_sweep_timestamp_seconds",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("missing %q in:\n%s", want, out)
		}
	}

	api := NewHTTPServerMetrics("api")
	if combined := scrape(t, api.Handler(w.Registry())); !strings.Contains(combined, "portal_janitor_sweeps_total") {
		t.Fatalf("expected combined handler to expose sweep metrics")
	}
}
