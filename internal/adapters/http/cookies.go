package httpadapter

import (
	"net/http"
	"strings"
	"time"
)

const (
	adminSessionCookie    = "rr_admin_session"
	uploaderSessionCookie = "rr_uploader_session"
)

func (rt *Router) setSessionCookie(w http.ResponseWriter, name, token string, ttl time.Duration) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    token,
		Path:     "/",
		MaxAge:   int(ttl.Seconds()),
		HttpOnly: true,
		Secure:   rt.cfg.IsProduction(),
		SameSite: http.SameSiteStrictMode,
	})
}

// clearSessionCookie emits Max-Age=0 so the browser drops the cookie at once.
func (rt *Router) clearSessionCookie(w http.ResponseWriter, name string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   rt.cfg.IsProduction(),
		SameSite: http.SameSiteStrictMode,
	})
}

func sessionToken(r *http.Request, name string) string {
	c, err := r.Cookie(name)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(c.Value)
}
