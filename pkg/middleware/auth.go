package middleware

import (
	"crypto/subtle"
	"log/slog"
	"net/http"

	apperrors "github.com/gothglitter/storefront/pkg/errors"
	"github.com/gothglitter/storefront/pkg/httputil"
)

// AdminTokenHeader is the header carrying the shared admin credential.
const AdminTokenHeader = "X-Admin-Token"

// AdminToken guards admin routes with a single shared credential. An empty
// configured token disables the admin surface entirely rather than opening it.
func AdminToken(token string, l *slog.Logger) func(http.Handler) http.Handler {
	want := []byte(token)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if len(want) == 0 {
				httputil.WriteError(w, r, apperrors.ServiceUnavailable("admin access is not configured"), l)
				return
			}

			got := r.Header.Get(AdminTokenHeader)
			if got == "" {
				httputil.WriteError(w, r, apperrors.Unauthorized("missing admin token"), l)
				return
			}
			if subtle.ConstantTimeCompare([]byte(got), want) != 1 {
				l.WarnContext(r.Context(), "admin token rejected",
					slog.String("path", r.URL.Path),
					slog.String("remote_addr", r.RemoteAddr),
				)
				httputil.WriteError(w, r, apperrors.Unauthorized("invalid admin token"), l)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
