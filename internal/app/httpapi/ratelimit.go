package httpapi

import (
	"fmt"
	"net/http"
	"sync"

	"golang.org/x/time/rate"
)

// tenantLimiter rate-limits the command surface and the registry webhook
// ingress per tenant, generalizing the teacher's hand-rolled
// rpcPolicy/minuteLimiter in handler_rpc.go to golang.org/x/time/rate's
// token bucket.
type tenantLimiter struct {
	ratePerSecond float64
	burst         int

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

func newTenantLimiter(ratePerSecond float64, burst int) *tenantLimiter {
	if ratePerSecond <= 0 {
		return nil
	}
	if burst <= 0 {
		burst = 1
	}
	return &tenantLimiter{ratePerSecond: ratePerSecond, burst: burst, limiters: make(map[string]*rate.Limiter)}
}

func (l *tenantLimiter) limiterFor(key string) *rate.Limiter {
	if key == "" {
		key = "anonymous"
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	lim, ok := l.limiters[key]
	if !ok {
		lim = rate.NewLimiter(rate.Limit(l.ratePerSecond), l.burst)
		l.limiters[key] = lim
	}
	return lim
}

func (l *tenantLimiter) allow(key string) bool {
	if l == nil {
		return true
	}
	return l.limiterFor(key).Allow()
}

// rateLimit rejects requests exceeding the per-tenant budget with 429,
// keyed on the authenticated tenant (falling back to remote addr for
// the unauthenticated registry webhook ingress).
func rateLimit(limiter *tenantLimiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if limiter == nil {
				next.ServeHTTP(w, r)
				return
			}
			key := tenantFromCtx(r.Context())
			if key == "" {
				key = r.RemoteAddr
			}
			if !limiter.allow(key) {
				writeError(w, http.StatusTooManyRequests, fmt.Errorf("rate limit exceeded"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
