package httpapi

import (
	"context"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/time/rate"

	"github.com/dmitrijs2005/talkboard/internal/common"
)

type ctxKey int

const userIDKey ctxKey = iota

// UserIDFrom returns the authenticated user id stored by the auth
// middleware, or "".
func UserIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(userIDKey).(string)
	return id
}

func withUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

// authenticate requires "Authorization: Bearer <jwt>" and stores the user id
// from the token in the request context.
func (h *handler) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get(common.AuthorizationHeaderName)
		var token string
		if n := len(common.BearerPrefix); len(header) > n && strings.EqualFold(header[:n], common.BearerPrefix) {
			token = strings.TrimSpace(header[n:])
		}
		if token == "" {
			w.Header().Set("WWW-Authenticate", "Bearer")
			writeErrorStatus(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
			return
		}
		userID, err := h.users.UserIDFromToken(token)
		if err != nil {
			w.Header().Set("WWW-Authenticate", "Bearer")
			h.writeError(w, r, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(withUserID(r.Context(), userID)))
	})
}

// instrument records in-flight count, status and latency per route pattern.
func instrument(rec HTTPRecorder) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rec.IncInFlight()
			defer rec.DecInFlight()

			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			route := "unmatched"
			if rc := chi.RouteContext(r.Context()); rc != nil {
				if p := rc.RoutePattern(); p != "" {
					route = p
				}
			}
			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			rec.RecordHTTPRequest(r.Method, route, status, time.Since(start))
		})
	}
}

const maxLimiters = 10000

// rateLimiter keeps one token bucket per authenticated user, falling back to
// the remote host.
type rateLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	rate     rate.Limit
	burst    int
}

// newRateLimiter returns a limiter with perSecond tokens per key. A
// non-positive rate disables limiting.
func newRateLimiter(perSecond float64, burst int) *rateLimiter {
	if burst < 1 {
		burst = 1
	}
	return &rateLimiter{
		limiters: make(map[string]*rate.Limiter),
		rate:     rate.Limit(perSecond),
		burst:    burst,
	}
}

func (rl *rateLimiter) limiter(key string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	l, ok := rl.limiters[key]
	if !ok {
		if len(rl.limiters) >= maxLimiters {
			rl.limiters = make(map[string]*rate.Limiter)
		}
		l = rate.NewLimiter(rl.rate, rl.burst)
		rl.limiters[key] = l
	}
	return l
}

func (rl *rateLimiter) Handler(next http.Handler) http.Handler {
	if rl.rate <= 0 {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := UserIDFrom(r.Context())
		if key == "" {
			key = remoteHost(r)
		}
		if !rl.limiter(key).Allow() {
			w.Header().Set("Retry-After", "1")
			writeErrorStatus(w, http.StatusTooManyRequests, "rate_limited", "too many requests")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// remoteHost drops the port so every connection from a client shares a bucket.
func remoteHost(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
