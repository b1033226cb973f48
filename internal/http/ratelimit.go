package http

import (
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kjstillabower/fusion-gateway/internal/observability"
)

// RateLimit is a per-client allowance of Limit requests per Window.
type RateLimit struct {
	Limit  int
	Window time.Duration
}

// Default allowances per route class.
var (
	DefaultAPILimit      = RateLimit{Limit: 100, Window: 15 * time.Minute}
	DefaultExternalLimit = RateLimit{Limit: 30, Window: 15 * time.Minute}
	DefaultAuthLimit     = RateLimit{Limit: 10, Window: 15 * time.Minute}
)

// ClientLimiter keeps one token bucket per client IP. A bucket holds Limit
// tokens and refills at Limit per Window. Buckets idle for a full window are
// dropped.
type ClientLimiter struct {
	class string
	cfg   RateLimit
	clock clockwork.Clock

	mu        sync.Mutex
	clients   map[string]*clientBucket
	lastSweep time.Time
}

type clientBucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewClientLimiter returns a limiter for class. It returns nil when cfg
// disables limiting (Limit <= 0 or Window <= 0).
func NewClientLimiter(class string, cfg RateLimit, clock clockwork.Clock) *ClientLimiter {
	if cfg.Limit <= 0 || cfg.Window <= 0 {
		return nil
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &ClientLimiter{
		class:     class,
		cfg:       cfg,
		clock:     clock,
		clients:   make(map[string]*clientBucket),
		lastSweep: clock.Now(),
	}
}

// Allow consumes one token for key. It reports whether the request may
// proceed, the tokens left and how long until the next token.
func (l *ClientLimiter) Allow(key string) (ok bool, remaining int, retryAfter time.Duration) {
	now := l.clock.Now()

	l.mu.Lock()
	defer l.mu.Unlock()

	l.sweep(now)
	b, found := l.clients[key]
	if !found {
		b = &clientBucket{limiter: rate.NewLimiter(rate.Every(l.cfg.Window/time.Duration(l.cfg.Limit)), l.cfg.Limit)}
		l.clients[key] = b
	}
	b.lastSeen = now

	if b.limiter.AllowN(now, 1) {
		return true, int(b.limiter.TokensAt(now)), 0
	}
	r := b.limiter.ReserveN(now, 1)
	retryAfter = r.DelayFrom(now)
	r.CancelAt(now)
	return false, 0, retryAfter
}

func (l *ClientLimiter) sweep(now time.Time) {
	if now.Sub(l.lastSweep) < l.cfg.Window {
		return
	}
	for k, b := range l.clients {
		if now.Sub(b.lastSeen) >= l.cfg.Window {
			delete(l.clients, k)
		}
	}
	l.lastSweep = now
}

// RateLimitMiddleware returns 429 when the client's bucket is empty.
// Disabled when limiter is nil.
func RateLimitMiddleware(limiter *ClientLimiter) mux.MiddlewareFunc {
	if limiter == nil {
		return func(next http.Handler) http.Handler { return next }
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ok, remaining, retryAfter := limiter.Allow(clientIP(r))
			w.Header().Set("RateLimit-Limit", strconv.Itoa(limiter.cfg.Limit))
			w.Header().Set("RateLimit-Remaining", strconv.Itoa(remaining))
			if !ok {
				secs := int(retryAfter.Round(time.Second) / time.Second)
				if secs < 1 {
					secs = 1
				}
				w.Header().Set("Retry-After", strconv.Itoa(secs))
				observability.RateLimitDeniedTotal.WithLabelValues(limiter.class).Inc()
				observability.LoggerFromContext(r.Context()).Debug("rate limit denied", zap.String("class", limiter.class))
				writeError(w, http.StatusTooManyRequests, "RATE_LIMITED", "Too many requests, please try again later")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// clientIP prefers the first X-Forwarded-For hop, then X-Real-IP, then the
// connection address.
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); ip != "" {
		return ip
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
