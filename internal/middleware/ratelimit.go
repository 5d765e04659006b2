package middleware

import (
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"furniture-dashboard/internal/model"
)

const (
	defaultSignInRPM = 10
	visitorIdleAfter = 10 * time.Minute
)

// signInPaths are throttled by the tighter bucket. Logout, refresh and
// who-am-i share the general one.
var signInPaths = map[string]bool{
	"/api/auth/login":    true,
	"/api/auth/register": true,
}

type visitorLimiter struct {
	general  *rate.Limiter
	signIn   *rate.Limiter
	lastSeen time.Time
}

// RateLimitMiddleware throttles requests per client IP.
type RateLimitMiddleware struct {
	generalRPM int
	signInRPM  int

	mu        sync.Mutex
	visitors  map[string]*visitorLimiter
	lastPrune time.Time
	now       func() time.Time
}

// NewRateLimitMiddleware leaves general traffic unlimited when generalRPM is
// not positive. signInRPM falls back to 10.
func NewRateLimitMiddleware(generalRPM int, signInRPM int) *RateLimitMiddleware {
	if signInRPM <= 0 {
		signInRPM = defaultSignInRPM
	}

	return &RateLimitMiddleware{
		generalRPM: generalRPM,
		signInRPM:  signInRPM,
		visitors:   map[string]*visitorLimiter{},
		now:        time.Now,
	}
}

func (m *RateLimitMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		visitor := m.visitor(clientIP(r))

		limiter := visitor.general
		if r.Method == http.MethodPost && signInPaths[r.URL.Path] {
			limiter = visitor.signIn
		}
		if limiter == nil {
			next.ServeHTTP(w, r)
			return
		}

		now := m.now()
		reservation := limiter.ReserveN(now, 1)
		if delay := reservation.DelayFrom(now); delay > 0 {
			reservation.CancelAt(now)
			AddLogAttrs(r.Context(), "rate_limited", true)

			w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(delay.Seconds()))))
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			_ = jsonEncode(w, model.APIResponse{
				Success: false,
				Error: &model.APIError{
					Kind:    "network",
					Code:    "RATE_LIMITED",
					Message: "Too many requests, please retry shortly",
				},
			})
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (m *RateLimitMiddleware) visitor(ip string) *visitorLimiter {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	m.pruneLocked(now)

	if v, ok := m.visitors[ip]; ok {
		v.lastSeen = now
		return v
	}

	v := &visitorLimiter{
		signIn:   perMinute(m.signInRPM),
		lastSeen: now,
	}
	if m.generalRPM > 0 {
		v.general = perMinute(m.generalRPM)
	}
	m.visitors[ip] = v
	return v
}

// pruneLocked drops visitors idle for longer than visitorIdleAfter, at most
// once per that interval.
func (m *RateLimitMiddleware) pruneLocked(now time.Time) {
	if now.Sub(m.lastPrune) < visitorIdleAfter {
		return
	}
	m.lastPrune = now

	cutoff := now.Add(-visitorIdleAfter)
	for ip, v := range m.visitors {
		if v.lastSeen.Before(cutoff) {
			delete(m.visitors, ip)
		}
	}
}

func perMinute(rpm int) *rate.Limiter {
	return rate.NewLimiter(rate.Every(time.Minute/time.Duration(rpm)), rpm)
}

func clientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		first, _, _ := strings.Cut(forwarded, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	if realIP := strings.TrimSpace(r.Header.Get("X-Real-IP")); realIP != "" {
		return realIP
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
