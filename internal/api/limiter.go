package api

import (
	"net/http"
	"strconv"
	"sync"

	"github.com/go-chi/chi/v5"
	"golang.org/x/time/rate"
)

// RateLimit configures the per-user token bucket. A zero PerSecond disables it.
type RateLimit struct {
	PerSecond float64
	Burst     int
}

// Idle limiters are dropped once this many users are tracked.
const maxTrackedUsers = 10_000

type userLimiter struct {
	mu       sync.Mutex
	cfg      RateLimit
	limiters map[string]*rate.Limiter
}

func newUserLimiter(cfg RateLimit) *userLimiter {
	if cfg.Burst < 1 {
		cfg.Burst = 1
	}

	return &userLimiter{cfg: cfg, limiters: make(map[string]*rate.Limiter)}
}

func (l *userLimiter) get(user string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	lim, ok := l.limiters[user]
	if ok {
		return lim
	}

	if len(l.limiters) >= maxTrackedUsers {
		l.pruneLocked()
	}

	lim = rate.NewLimiter(rate.Limit(l.cfg.PerSecond), l.cfg.Burst)
	l.limiters[user] = lim

	return lim
}

// pruneLocked forgets limiters whose bucket has refilled; they carry no state.
func (l *userLimiter) pruneLocked() {
	for user, lim := range l.limiters {
		if lim.Tokens() >= float64(l.cfg.Burst) {
			delete(l.limiters, user)
		}
	}
}

// Middleware rejects requests over the caller's budget with 429. The user is
// taken from the {userId} route parameter.
func (l *userLimiter) Middleware(next http.Handler) http.Handler {
	if l.cfg.PerSecond <= 0 {
		return next
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user := chi.URLParam(r, "userId")

		lim := l.get(user)
		if !lim.Allow() {
			retry := 1.0 / l.cfg.PerSecond
			w.Header().Set("Retry-After", strconv.Itoa(int(retry)+1))
			writeError(w, http.StatusTooManyRequests, "slow down")

			return
		}

		next.ServeHTTP(w, r)
	})
}
