package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"furniture-dashboard/internal/model"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestRateLimitMiddleware_UnlimitedGeneral(t *testing.T) {
	t.Parallel()

	handler := NewRateLimitMiddleware(0, 1).Handler(okHandler())

	for i := 0; i < 10; i++ {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/furnitures", nil))
		assert.Equal(t, http.StatusOK, rec.Code, "request %d", i)
	}
}

func TestRateLimitMiddleware_SignIn(t *testing.T) {
	t.Parallel()

	handler := NewRateLimitMiddleware(0, 1).Handler(okHandler())

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/auth/login", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	// Burst of 1 per minute: the immediate second attempt waits a full minute.
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/auth/register", nil))
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "60", rec.Header().Get("Retry-After"))

	var body model.APIResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	require.NotNil(t, body.Error)
	assert.Equal(t, "RATE_LIMITED", body.Error.Code)

	t.Run("other endpoints are not sign-in attempts", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/auth/logout", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("other clients keep their own bucket", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/auth/login", nil)
		req.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
	})
}

func TestRateLimitMiddleware_PrunesIdleVisitors(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	mw := NewRateLimitMiddleware(60, 0)
	mw.now = func() time.Time { return now }
	handler := mw.Handler(okHandler())

	for _, ip := range []string{"198.51.100.1", "198.51.100.2"} {
		req := httptest.NewRequest(http.MethodGet, "/api/suppliers", nil)
		req.Header.Set("X-Real-IP", ip)
		handler.ServeHTTP(httptest.NewRecorder(), req)
	}
	assert.Len(t, mw.visitors, 2)

	now = now.Add(visitorIdleAfter + time.Second)
	req := httptest.NewRequest(http.MethodGet, "/api/suppliers", nil)
	req.Header.Set("X-Real-IP", "198.51.100.3")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	assert.Len(t, mw.visitors, 1)
	assert.Contains(t, mw.visitors, "198.51.100.3")
}

func TestRateLimitMiddleware_Configuration(t *testing.T) {
	t.Parallel()

	mw := NewRateLimitMiddleware(-1, 0)
	assert.Equal(t, -1, mw.generalRPM)
	assert.Equal(t, defaultSignInRPM, mw.signInRPM)
}
