package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gothglitter/storefront/pkg/logger"
)

func sessionHandler(seen *string) http.Handler {
	return Session(SessionConfig{MaxAge: 3600})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*seen = logger.SessionIDFromContext(r.Context())
	}))
}

func TestSession_IssuesCookieWhenMissing(t *testing.T) {
	var seen string
	rec := httptest.NewRecorder()
	sessionHandler(&seen).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/cart", nil))

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, SessionCookie, cookies[0].Name)
	assert.True(t, cookies[0].HttpOnly)
	assert.Equal(t, seen, cookies[0].Value)
	_, err := uuid.Parse(seen)
	assert.NoError(t, err)
}

func TestSession_ReusesValidCookie(t *testing.T) {
	var seen string
	req := httptest.NewRequest(http.MethodGet, "/api/cart", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookie, Value: "0b6f1d3e-8a52-4c6a-9f0e-2d7c1b9a4e10"})
	rec := httptest.NewRecorder()

	sessionHandler(&seen).ServeHTTP(rec, req)

	assert.Equal(t, "0b6f1d3e-8a52-4c6a-9f0e-2d7c1b9a4e10", seen)
	assert.Empty(t, rec.Result().Cookies())
}

func TestSession_ReplacesForgedCookie(t *testing.T) {
	var seen string
	req := httptest.NewRequest(http.MethodGet, "/api/cart", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookie, Value: "cart:*"})
	rec := httptest.NewRecorder()

	sessionHandler(&seen).ServeHTTP(rec, req)

	assert.NotEqual(t, "cart:*", seen)
	require.Len(t, rec.Result().Cookies(), 1)
}

func TestNoStore(t *testing.T) {
	rec := httptest.NewRecorder()
	NoStore(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})).
		ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/inventory/p1/available", nil))

	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
}
