package httpadapter

import (
	"net/http"
	"time"
)

type uploaderLoginRequest struct {
	Slug  string `json:"slug"`
	Email string `json:"email"`
}

func (rt *Router) uploaderLogin(w http.ResponseWriter, r *http.Request) {
	var req uploaderLoginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	login, err := rt.svc.UploaderAuth.Login(r.Context(), rt.meta(r), req.Slug, req.Email)
	if err != nil {
		rt.httpMetrics.RecordLogin(metricsService, "uploader", loginResult(err))
		writeError(w, r, err)
		return
	}
	rt.httpMetrics.RecordLogin(metricsService, "uploader", "success")
	rt.setSessionCookie(w, uploaderSessionCookie, login.Token, time.Until(login.View.SessionExpiresAt))
	writeData(w, http.StatusOK, login.View)
}

func (rt *Router) uploaderLogout(w http.ResponseWriter, r *http.Request) {
	if token := sessionToken(r, uploaderSessionCookie); token != "" {
		if err := rt.svc.UploaderAuth.Logout(r.Context(), rt.meta(r), token); err != nil {
			writeError(w, r, err)
			return
		}
	}
	rt.clearSessionCookie(w, uploaderSessionCookie)
	writeData(w, http.StatusOK, map[string]string{"message": "Logged out"})
}

func (rt *Router) uploaderMe(w http.ResponseWriter, r *http.Request) {
	token := sessionToken(r, uploaderSessionCookie)
	if token == "" {
		writeFailure(w, http.StatusUnauthorized, "Not authenticated")
		return
	}
	view, err := rt.svc.UploaderAuth.Me(r.Context(), token)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, view)
}
