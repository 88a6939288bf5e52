package httpx

import (
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"
)

// RatePolicy bounds how many requests a single caller may issue inside a
// rolling window. A zero Limit disables the policy.
type RatePolicy struct {
	Limit  int
	Window time.Duration
}

func (p RatePolicy) enabled() bool { return p.Limit > 0 }

func (p RatePolicy) window() time.Duration {
	if p.Window <= 0 {
		return time.Minute
	}
	return p.Window
}

type rateDecision struct {
	allowed   bool
	remaining int
	resetAt   time.Time
}

type RateLimiter interface {
	Allow(key string, policy RatePolicy) rateDecision
	Close()
}

// memoryRateLimiter is the single-process fallback used when Redis is not
// configured. Expired windows are swept in the background.
type memoryRateLimiter struct {
	mu      sync.Mutex
	windows map[string]*rateWindow
	now     func() time.Time
	done    chan struct{}
	once    sync.Once
}

type rateWindow struct {
	used    int
	resetAt time.Time
}

const rateSweepEvery = 5 * time.Minute

func NewMemoryRateLimiter() RateLimiter {
	rl := &memoryRateLimiter{
		windows: make(map[string]*rateWindow),
		now:     time.Now,
		done:    make(chan struct{}),
	}
	go rl.sweep()
	return rl
}

func (rl *memoryRateLimiter) Allow(key string, policy RatePolicy) rateDecision {
	if !policy.enabled() {
		return rateDecision{allowed: true}
	}
	now := rl.now()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	win := rl.windows[key]
	if win == nil || !now.Before(win.resetAt) {
		win = &rateWindow{resetAt: now.Add(policy.window())}
		rl.windows[key] = win
	}
	if win.used >= policy.Limit {
		return rateDecision{allowed: false, remaining: 0, resetAt: win.resetAt}
	}
	win.used++
	return rateDecision{
		allowed:   true,
		remaining: policy.Limit - win.used,
		resetAt:   win.resetAt,
	}
}

func (rl *memoryRateLimiter) sweep() {
	ticker := time.NewTicker(rateSweepEvery)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			now := rl.now()
			rl.mu.Lock()
			for key, win := range rl.windows {
				if !now.Before(win.resetAt) {
					delete(rl.windows, key)
				}
			}
			rl.mu.Unlock()
		case <-rl.done:
			return
		}
	}
}

func (rl *memoryRateLimiter) Close() {
	rl.once.Do(func() { close(rl.done) })
}

// withRateLimit wraps a handler with a caller-keyed rate policy. Callers
// without an identity fall back to their remote IP.
func (r *Router) withRateLimit(route string, policy RatePolicy, keyFn func(*http.Request) string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		if r.limiter == nil || !policy.enabled() {
			next(w, req)
			return
		}
		key := keyFn(req)
		if key == "" {
			key = callerIPKey(req)
		}
		decision := r.limiter.Allow(key, policy)
		applyRateHeaders(w, policy.Limit, decision)
		if !decision.allowed {
			r.recordRateLimitHit(route, keyClass(key))
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		next(w, req)
	}
}

// handlerAuthRate chains token auth and a per-subject rate policy, the
// standard wrapping for every dashboard data route.
func (r *Router) handlerAuthRate(route string, policy RatePolicy, next http.HandlerFunc) http.HandlerFunc {
	return r.requireAuth(r.withRateLimit(route, policy, callerSubjectKey, next))
}

func applyRateHeaders(w http.ResponseWriter, limit int, decision rateDecision) {
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(limit))
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(decision.remaining))
	if !decision.resetAt.IsZero() {
		w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(decision.resetAt.Unix(), 10))
	}
}

func callerSubjectKey(req *http.Request) string {
	if info, ok := authInfoFromContext(req.Context()); ok && info.Subject != "" {
		return "subject:" + info.Subject
	}
	return ""
}

func callerIPKey(req *http.Request) string {
	host, _, err := net.SplitHostPort(req.RemoteAddr)
	if err != nil {
		host = req.RemoteAddr
	}
	if host == "" {
		host = "unknown"
	}
	return "ip:" + host
}

// keyClass strips the caller-specific part of a limiter key so the metric
// label stays low-cardinality.
func keyClass(key string) string {
	if class, _, ok := strings.Cut(key, ":"); ok && class != "" {
		return class
	}
	return "unknown"
}
