package middleware

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"propmarket-be/internal/utils"

	"golang.org/x/time/rate"
)

// Rate Limit Tiers
const (
	// Payment callback / refund (Strict)
	limitStrict = rate.Limit(2)
	burstStrict = 5

	// General (Default)
	limitGeneral = rate.Limit(10)
	burstGeneral = 20

	// Internal / trusted services
	limitInternal = rate.Limit(100)
	burstInternal = 200

	visitorIdle = 3 * time.Minute
)

// strictSuffixes are the routes that reach a payment provider on behalf of
// an unauthenticated or privileged caller.
var strictSuffixes = []string{"/payment/callback", "/payment/refund"}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter keeps one token bucket per identity and tier.
type RateLimiter struct {
	internalKey string

	mu       sync.Mutex
	visitors map[string]*visitor
}

// NewRateLimiter builds a limiter. Requests carrying internalKey in
// X-Service-Auth get the internal tier; an empty key disables that tier.
func NewRateLimiter(internalKey string) *RateLimiter {
	return &RateLimiter{
		internalKey: internalKey,
		visitors:    make(map[string]*visitor),
	}
}

func (l *RateLimiter) getVisitor(key string, r rate.Limit, b int) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	v, exists := l.visitors[key]
	if !exists {
		limiter := rate.NewLimiter(r, b)
		l.visitors[key] = &visitor{limiter, time.Now()}
		return limiter
	}

	v.lastSeen = time.Now()
	return v.limiter
}

// Cleanup evicts idle visitors every interval until ctx is done.
func (l *RateLimiter) Cleanup(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.evict(visitorIdle)
		}
	}
}

func (l *RateLimiter) evict(idle time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for key, v := range l.visitors {
		if time.Since(v.lastSeen) > idle {
			delete(l.visitors, key)
		}
	}
}

func (l *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		limit, burst, tier := l.resolveTier(r)

		// Prefer User ID if authenticated
		var identity string
		if userID, ok := utils.GetUserIDFromContext(r.Context()); ok {
			identity = fmt.Sprintf("user:%d", userID)
		} else if deviceID := r.Header.Get("X-Device-ID"); deviceID != "" {
			identity = "device:" + deviceID
		} else {
			ip, _, err := net.SplitHostPort(r.RemoteAddr)
			if err != nil {
				ip = r.RemoteAddr
			}
			identity = "ip:" + ip
		}

		// separate quotas per tier, e.g. "ip:10.0.0.1:strict"
		key := fmt.Sprintf("%s:%s", identity, tier)

		if !l.getVisitor(key, limit, burst).Allow() {
			utils.WriteJSONError(w, http.StatusText(http.StatusTooManyRequests), http.StatusTooManyRequests)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (l *RateLimiter) resolveTier(r *http.Request) (rate.Limit, int, string) {
	if l.internalKey != "" && r.Header.Get("X-Service-Auth") == l.internalKey {
		return limitInternal, burstInternal, "internal"
	}

	for _, suffix := range strictSuffixes {
		if strings.HasSuffix(r.URL.Path, suffix) {
			return limitStrict, burstStrict, "strict"
		}
	}

	return limitGeneral, burstGeneral, "general"
}
