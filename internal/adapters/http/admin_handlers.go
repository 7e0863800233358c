package httpadapter

import (
	"bytes"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/kirillkom/policy-upload-portal/internal/core/domain"
)

type adminLoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (rt *Router) adminLogin(w http.ResponseWriter, r *http.Request) {
	var req adminLoginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	login, err := rt.svc.AdminAuth.Login(r.Context(), rt.meta(r), req.Username, req.Password)
	if err != nil {
		rt.httpMetrics.RecordLogin(metricsService, "admin", loginResult(err))
		writeError(w, r, err)
		return
	}
	rt.httpMetrics.RecordLogin(metricsService, "admin", "success")
	rt.setSessionCookie(w, adminSessionCookie, login.Token, time.Until(login.ExpiresAt))
	writeData(w, http.StatusOK, login)
}

func (rt *Router) adminLogout(w http.ResponseWriter, r *http.Request) {
	if token := sessionToken(r, adminSessionCookie); token != "" {
		if err := rt.svc.AdminAuth.Logout(r.Context(), rt.meta(r), token); err != nil {
			writeError(w, r, err)
			return
		}
	}
	rt.clearSessionCookie(w, adminSessionCookie)
	writeData(w, http.StatusOK, map[string]string{"message": "Logged out"})
}

func (rt *Router) adminMe(w http.ResponseWriter, _ *http.Request, admin *domain.AdminIdentity) {
	writeData(w, http.StatusOK, admin.User)
}

func (rt *Router) listSubmissions(w http.ResponseWriter, r *http.Request, _ *domain.AdminIdentity) {
	filter, err := submissionFilter(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	page, err := rt.svc.Submissions.List(r.Context(), filter)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, page)
}

func (rt *Router) getSubmissionAdmin(w http.ResponseWriter, r *http.Request, _ *domain.AdminIdentity) {
	detail, err := rt.svc.Submissions.GetByID(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, detail)
}

type updateStatusRequest struct {
	Status string  `json:"status"`
	Notes  *string `json:"notes"`
}

func (rt *Router) updateStatus(w http.ResponseWriter, r *http.Request, admin *domain.AdminIdentity) {
	var req updateStatusRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	sub, err := rt.svc.Submissions.SetStatus(r.Context(), admin, rt.meta(r), r.PathValue("id"), domain.SubmissionStatus(req.Status), req.Notes)
	if err != nil {
		writeError(w, r, err)
		return
	}
	rt.httpMetrics.RecordStatusChange(metricsService, string(sub.Status))
	writeData(w, http.StatusOK, sub)
}

type forwardRequest struct {
	ForwardTo string  `json:"forward_to"`
	Notes     *string `json:"notes"`
}

func (rt *Router) forwardSubmission(w http.ResponseWriter, r *http.Request, admin *domain.AdminIdentity) {
	var req forwardRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	sub, err := rt.svc.Submissions.Forward(r.Context(), admin, rt.meta(r), r.PathValue("id"), req.ForwardTo, req.Notes)
	if err != nil {
		writeError(w, r, err)
		return
	}
	rt.httpMetrics.RecordStatusChange(metricsService, string(sub.Status))
	writeData(w, http.StatusOK, sub)
}

func (rt *Router) deleteSubmission(w http.ResponseWriter, r *http.Request, admin *domain.AdminIdentity) {
	if err := rt.svc.Submissions.Delete(r.Context(), admin, rt.meta(r), r.PathValue("id")); err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, map[string]string{"message": "Submission deleted"})
}

func (rt *Router) exportJSON(w http.ResponseWriter, r *http.Request, _ *domain.AdminIdentity) {
	bundle, err := rt.svc.Exports.ExportJSON(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Disposition", attachment(bundle.Submission.Slug+".json"))
	writeData(w, http.StatusOK, bundle)
}

// exportFiles streams the archive. Once the first byte is out, failures can only be logged.
func (rt *Router) exportFiles(w http.ResponseWriter, r *http.Request, _ *domain.AdminIdentity) {
	bundle, err := rt.svc.Exports.ExportJSON(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", attachment(bundle.Submission.Slug+"-export.zip"))
	w.WriteHeader(http.StatusOK)
	if err := rt.svc.Exports.WriteArchive(r.Context(), bundle, w); err != nil {
		slog.Error("export_archive_failed",
			"request_id", requestIDFromContext(r.Context()),
			"submission_id", bundle.Submission.ID,
			"error", err,
		)
	}
}

func (rt *Router) exportOverview(w http.ResponseWriter, r *http.Request, _ *domain.AdminIdentity) {
	filter, err := submissionFilter(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var buf bytes.Buffer
	if err := rt.svc.Exports.WriteOverview(r.Context(), filter, &buf); err != nil {
		writeError(w, r, err)
		return
	}
	name := fmt.Sprintf("submissions-%s.xlsx", time.Now().UTC().Format("20060102"))
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", attachment(name))
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}

func (rt *Router) dashboard(w http.ResponseWriter, r *http.Request, _ *domain.AdminIdentity) {
	stats, err := rt.svc.Submissions.Dashboard(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, stats)
}

func (rt *Router) listSlots(w http.ResponseWriter, r *http.Request, _ *domain.AdminIdentity) {
	from, to, err := timeWindow(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	slots, err := rt.svc.Calendar.ListAll(r.Context(), from, to)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, slots)
}

func (rt *Router) createSlots(w http.ResponseWriter, r *http.Request, admin *domain.AdminIdentity) {
	var in []domain.SlotInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	slots, err := rt.svc.Calendar.CreateSlots(r.Context(), admin, rt.meta(r), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusCreated, slots)
}

func (rt *Router) deleteSlot(w http.ResponseWriter, r *http.Request, admin *domain.AdminIdentity) {
	if err := rt.svc.Calendar.DeleteSlot(r.Context(), admin, rt.meta(r), r.PathValue("id")); err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, map[string]string{"message": "Slot deleted"})
}

// submissionFilter reads status, search, page and per_page. Malformed numbers fall back to defaults.
func submissionFilter(r *http.Request) (domain.SubmissionFilter, error) {
	q := r.URL.Query()
	filter := domain.SubmissionFilter{
		Search:  strings.TrimSpace(q.Get("search")),
		Page:    intParam(q.Get("page"), 1),
		PerPage: intParam(q.Get("per_page"), domain.DefaultPerPage),
	}
	if raw := strings.TrimSpace(q.Get("status")); raw != "" {
		status, err := domain.ParseSubmissionStatus(raw)
		if err != nil {
			return domain.SubmissionFilter{}, err
		}
		filter.Status = &status
	}
	return filter.Normalize(), nil
}

func intParam(raw string, fallback int) int {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return fallback
	}
	return n
}

func attachment(filename string) string {
	return fmt.Sprintf("attachment; filename=%q", filename)
}

func loginResult(err error) string {
	switch {
	case domain.IsKind(err, domain.ErrRateLimited):
		return "rate_limited"
	case domain.IsKind(err, domain.ErrUnauthorized):
		return "rejected"
	case domain.IsKind(err, domain.ErrInvalidInput):
		return "invalid"
	default:
		return "error"
	}
}
