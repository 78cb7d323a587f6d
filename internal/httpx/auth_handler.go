package httpx

import (
	"github.com/ariefcatur/go-ledger-orders/internal/auth"
	"github.com/ariefcatur/go-ledger-orders/internal/logging"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"
	"net/http"
	"time"
)

type AuthHandler struct {
	Auth         *auth.Service
	Sessions     Sessions
	SessionTTL   time.Duration
	CookieSecure bool
	// RateLimit caps login/register attempts per client IP per minute; 0 disables it.
	RateLimit int
}

func (h *AuthHandler) Register(r chi.Router) {
	r.Group(func(r chi.Router) {
		if h.RateLimit > 0 {
			r.Use(httprate.LimitByIP(h.RateLimit, time.Minute))
		}
		r.Post("/register", h.register)
		r.Post("/login", h.login)
	})
	r.Get("/logout", h.logout)
	r.Post("/logout", h.logout)
	r.Get("/", h.index)
}

func credentials(r *http.Request) auth.Credentials {
	f := newForm(r)
	return auth.Credentials{Username: f.str("username"), Password: r.PostFormValue("password")}
}

func (h *AuthHandler) register(w http.ResponseWriter, r *http.Request) {
	u, err := h.Auth.Register(r.Context(), credentials(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	created(w, r, map[string]string{"id": u.ID, "username": u.Username})
}

func (h *AuthHandler) login(w http.ResponseWriter, r *http.Request) {
	u, err := h.Auth.Login(r.Context(), credentials(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	sess, err := h.Sessions.Create(r.Context(), u.ID, u.Username)
	if err != nil {
		writeError(w, r, err)
		return
	}
	setSessionCookie(w, sess.ID, h.SessionTTL, h.CookieSecure)
	if wantsJSON(r) {
		writeJSON(w, http.StatusOK, map[string]string{"user_id": u.ID, "username": u.Username})
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (h *AuthHandler) logout(w http.ResponseWriter, r *http.Request) {
	if s, ok := sessionFrom(r.Context()); ok {
		if err := h.Sessions.Delete(r.Context(), s.ID); err != nil {
			logging.Ctx(r.Context()).Warn().Err(err).Msg("session delete failed")
		}
	}
	clearSessionCookie(w, h.CookieSecure)
	if wantsJSON(r) {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (h *AuthHandler) index(w http.ResponseWriter, r *http.Request) {
	body := map[string]any{"logged_in": false}
	if s, ok := sessionFrom(r.Context()); ok {
		body = map[string]any{"logged_in": true, "user_id": s.UserID, "username": s.Username}
	}
	writeJSON(w, http.StatusOK, body)
}
