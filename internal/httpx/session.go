package httpx

import (
	"context"
	"github.com/ariefcatur/go-ledger-orders/internal/auth"
	"github.com/ariefcatur/go-ledger-orders/internal/logging"
	"net/http"
	"time"
)

const sessionCookie = "session"

// Sessions is the session backend (auth.SessionStore in production).
type Sessions interface {
	Create(ctx context.Context, userID, username string) (auth.Session, error)
	Get(ctx context.Context, id string) (auth.Session, bool, error)
	Delete(ctx context.Context, id string) error
}

type ctxKey int

const sessionKey ctxKey = iota

// WithSession loads the session named by the cookie, if any. A missing or broken session
// never blocks the request; the actor is just unknown.
func WithSession(s Sessions) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			c, err := r.Cookie(sessionCookie)
			if err != nil || c.Value == "" {
				next.ServeHTTP(w, r)
				return
			}
			sess, ok, err := s.Get(r.Context(), c.Value)
			if err != nil {
				logging.Ctx(r.Context()).Warn().Err(err).Msg("session lookup failed")
			}
			if ok {
				r = r.WithContext(context.WithValue(r.Context(), sessionKey, sess))
			}
			next.ServeHTTP(w, r)
		})
	}
}

func sessionFrom(ctx context.Context) (auth.Session, bool) {
	s, ok := ctx.Value(sessionKey).(auth.Session)
	return s, ok
}

// actor is the user id to attribute writes to, "" when nobody is logged in.
func actor(r *http.Request) string {
	if s, ok := sessionFrom(r.Context()); ok {
		return s.UserID
	}
	return ""
}

func setSessionCookie(w http.ResponseWriter, id string, ttl time.Duration, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    id,
		Path:     "/",
		MaxAge:   int(ttl.Seconds()),
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func clearSessionCookie(w http.ResponseWriter, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}
