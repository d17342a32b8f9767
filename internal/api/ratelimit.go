package api

import (
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/MikeSquared-Agency/parley/internal/auth"
)

const limiterIdle = 30 * time.Minute

type limiterEntry struct {
	lim  *rate.Limiter
	seen time.Time
}

// userLimiter keeps one token bucket per user.
type userLimiter struct {
	mu      sync.Mutex
	every   rate.Limit
	burst   int
	entries map[uuid.UUID]*limiterEntry
	swept   time.Time
	now     func() time.Time
}

func newUserLimiter(perMinute, burst int) *userLimiter {
	every := rate.Inf
	if perMinute > 0 {
		every = rate.Every(time.Minute / time.Duration(perMinute))
	}
	return &userLimiter{
		every:   every,
		burst:   burst,
		entries: make(map[uuid.UUID]*limiterEntry),
		now:     time.Now,
	}
}

func (l *userLimiter) allow(id uuid.UUID) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if now.Sub(l.swept) > limiterIdle {
		for k, e := range l.entries {
			if now.Sub(e.seen) > limiterIdle {
				delete(l.entries, k)
			}
		}
		l.swept = now
	}

	e, ok := l.entries[id]
	if !ok {
		e = &limiterEntry{lim: rate.NewLimiter(l.every, l.burst)}
		l.entries[id] = e
	}
	e.seen = now
	return e.lim.AllowN(now, 1)
}

func (s *Server) rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, ok := auth.UserFrom(r.Context())
		if ok && !s.limiter.allow(user.ID) {
			w.Header().Set("Retry-After", "60")
			writeError(w, http.StatusTooManyRequests, "Too many requests")
			return
		}
		next.ServeHTTP(w, r)
	})
}
