package middleware

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/gothglitter/storefront/pkg/logger"
)

// SessionCookie is the cookie that ties a browser (or shopper process) to its
// server-held cart.
const SessionCookie = "SESSION"

// SessionConfig configures the session cookie.
type SessionConfig struct {
	Secure bool
	MaxAge int
}

// Session reads the SESSION cookie, issuing a fresh one when it is missing or
// not a UUID, and stores the id in the request context.
func Session(cfg SessionConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var sessionID string
			if c, err := r.Cookie(SessionCookie); err == nil {
				if id, err := uuid.Parse(c.Value); err == nil {
					sessionID = id.String()
				}
			}

			if sessionID == "" {
				sessionID = uuid.NewString()
				http.SetCookie(w, &http.Cookie{
					Name:     SessionCookie,
					Value:    sessionID,
					Path:     "/",
					MaxAge:   cfg.MaxAge,
					HttpOnly: true,
					Secure:   cfg.Secure,
					SameSite: http.SameSiteLaxMode,
				})
			}

			ctx := logger.WithSessionID(r.Context(), sessionID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// NoStore marks responses as uncacheable. Cart and availability answers go
// stale the moment another session reserves a unit.
func NoStore(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-store")
		next.ServeHTTP(w, r)
	})
}
