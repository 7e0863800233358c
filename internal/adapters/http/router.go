package httpadapter

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kirillkom/policy-upload-portal/internal/config"
	"github.com/kirillkom/policy-upload-portal/internal/core/domain"
	"github.com/kirillkom/policy-upload-portal/internal/core/ports"
	"github.com/kirillkom/policy-upload-portal/internal/observability/metrics"
)

const (
	metricsService      = "api"
	backpressureWait    = 250 * time.Millisecond
	multipartOverhead   = 1 << 20
	multipartMemoryHint = 8 << 20
)

// Services are the inbound ports the router dispatches to.
type Services struct {
	Submissions  ports.SubmissionManager
	Documents    ports.DocumentManager
	Calendar     ports.CalendarManager
	AdminAuth    ports.AdminAuthenticator
	UploaderAuth ports.UploaderAuthenticator
	Exports      ports.SubmissionExporter
}

type Router struct {
	cfg          config.Config
	svc          Services
	clientIPs    *ClientIPResolver
	httpMetrics  *metrics.HTTPServerMetrics
	extraMetrics []prometheus.Gatherer
}

func NewRouter(cfg config.Config, svc Services, httpMetrics *metrics.HTTPServerMetrics, extraMetrics ...prometheus.Gatherer) *Router {
	if httpMetrics == nil {
		httpMetrics = metrics.NewHTTPServerMetrics(metricsService)
	}
	return &Router{
		cfg:          cfg,
		svc:          svc,
		clientIPs:    NewClientIPResolver(cfg.TrustedProxies),
		httpMetrics:  httpMetrics,
		extraMetrics: extraMetrics,
	}
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", rt.healthz)
	mux.Handle("GET /metrics", rt.httpMetrics.Handler(rt.extraMetrics...))
	mux.HandleFunc("GET /api/faq", rt.faq)

	mux.HandleFunc("POST /api/submissions", rt.createSubmission)
	mux.HandleFunc("GET /api/submissions/{slug}", rt.getSubmission)
	mux.HandleFunc("PUT /api/submissions/{slug}", rt.updateSubmission)
	mux.HandleFunc("POST /api/submissions/{slug}/submit", rt.submitSubmission)
	mux.HandleFunc("POST /api/submissions/{slug}/documents", rt.uploadDocument)
	mux.HandleFunc("POST /api/submissions/{slug}/formal-law", rt.addFormalLaw)
	mux.HandleFunc("DELETE /api/submissions/{slug}/documents/{id}", rt.deleteDocument)
	mux.HandleFunc("POST /api/submissions/{slug}/book-slot", rt.bookSlot)
	mux.HandleFunc("POST /api/submissions/{slug}/cancel-booking", rt.cancelBooking)
	mux.HandleFunc("GET /api/calendar/available", rt.availableSlots)

	mux.HandleFunc("POST /api/uploader/login", rt.uploaderLogin)
	mux.HandleFunc("POST /api/uploader/logout", rt.uploaderLogout)
	mux.HandleFunc("GET /api/uploader/me", rt.uploaderMe)

	mux.HandleFunc("POST /api/admin/login", rt.adminLogin)
	mux.HandleFunc("POST /api/admin/logout", rt.adminLogout)
	mux.HandleFunc("GET /api/admin/me", rt.admin(rt.adminMe))
	mux.HandleFunc("GET /api/admin/submissions", rt.admin(rt.listSubmissions))
	mux.HandleFunc("GET /api/admin/submissions/{id}", rt.admin(rt.getSubmissionAdmin))
	mux.HandleFunc("PUT /api/admin/submissions/{id}/status", rt.admin(rt.updateStatus))
	mux.HandleFunc("POST /api/admin/submissions/{id}/forward", rt.admin(rt.forwardSubmission))
	mux.HandleFunc("DELETE /api/admin/submissions/{id}", rt.admin(rt.deleteSubmission))
	mux.HandleFunc("GET /api/admin/submissions/{id}/export", rt.admin(rt.exportJSON))
	mux.HandleFunc("GET /api/admin/submissions/{id}/export/files", rt.admin(rt.exportFiles))
	mux.HandleFunc("GET /api/admin/exports/submissions.xlsx", rt.admin(rt.exportOverview))
	mux.HandleFunc("GET /api/admin/dashboard", rt.admin(rt.dashboard))
	mux.HandleFunc("GET /api/admin/calendar/slots", rt.admin(rt.listSlots))
	mux.HandleFunc("POST /api/admin/calendar/slots", rt.admin(rt.createSlots))
	mux.HandleFunc("DELETE /api/admin/calendar/slots/{id}", rt.admin(rt.deleteSlot))

	var handler http.Handler = rt.httpMetrics.Middleware(metricsService, mux)
	handler = backpressureMiddlewareWithHook(handler, rt.cfg.APIMaxInFlight, backpressureWait, func() {
		rt.httpMetrics.RecordRejected(metricsService, "backpressure")
	})
	if rt.cfg.APIRateLimitRPS > 0 {
		handler = rateLimitMiddleware(newIPLimiter(rt.cfg.APIRateLimitRPS, rt.cfg.APIRateLimitBurst), func() {
			rt.httpMetrics.RecordRejected(metricsService, "rate_limit")
		}, handler)
	}
	handler = corsMiddleware(rt.cfg.IsProduction(), rt.cfg.CORSOrigins, handler)
	handler = securityHeadersMiddleware(rt.cfg.IsProduction(), handler)
	handler = accessLogMiddleware(handler)
	handler = clientIPMiddleware(rt.clientIPs, handler)
	return requestIDMiddleware(handler)
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (rt *Router) meta(r *http.Request) domain.RequestMeta {
	ip := clientIPFromContext(r.Context())
	if ip == "" {
		ip = rt.clientIPs.ClientIP(r)
	}
	return domain.RequestMeta{ClientIP: ip, UserAgent: r.UserAgent()}
}

type adminHandler func(w http.ResponseWriter, r *http.Request, admin *domain.AdminIdentity)

// admin resolves the admin session cookie before calling h. Uploader sessions never pass.
func (rt *Router) admin(h adminHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := sessionToken(r, adminSessionCookie)
		if token == "" {
			writeFailure(w, http.StatusUnauthorized, "Not authenticated")
			return
		}
		identity, err := rt.svc.AdminAuth.Validate(r.Context(), token)
		if err != nil {
			writeError(w, r, err)
			return
		}
		h(w, r, identity)
	}
}
