package middleware

import (
	"net/http"
	"strings"
	"sync"
	"time"

	"synccode/pkg/config"

	"github.com/gin-gonic/gin"
)

// slidingWindowStore keeps, per key, the timestamps of admitted calls
// inside the current window. Admission counts every call regardless of its
// outcome.
type slidingWindowStore struct {
	mu     sync.Mutex
	window time.Duration
	max    int
	calls  map[string][]time.Time
	now    func() time.Time
}

func newSlidingWindowStore(window time.Duration, max int) *slidingWindowStore {
	return &slidingWindowStore{
		window: window,
		max:    max,
		calls:  make(map[string][]time.Time),
		now:    time.Now,
	}
}

func (s *slidingWindowStore) allow(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	cutoff := now.Add(-s.window)

	kept := s.calls[key][:0]
	for _, ts := range s.calls[key] {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}

	if len(kept) >= s.max {
		s.calls[key] = kept
		return false
	}

	s.calls[key] = append(kept, now)
	return true
}

// bearerKey extracts the rate-limiting key from the Authorization header.
func bearerKey(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	parts := strings.Split(authHeader, " ")
	if len(parts) == 2 && parts[0] == "Bearer" && parts[1] != "" {
		return parts[1]
	}
	return "anonymous"
}

// NewExecuteRateLimitMiddleware returns Gin middleware applying a per-credential
// sliding-window budget in front of the execution gateway. Requests without
// an Authorization header are deliberately not rate-limited at all; the
// authentication gate behind this middleware rejects them anyway.
// onLimited, if non-nil, is invoked once per rejected request.
func NewExecuteRateLimitMiddleware(cfg *config.Config, onLimited func()) gin.HandlerFunc {
	if !cfg.RateLimiting.Execute.Enabled {
		return func(c *gin.Context) {
			c.Next()
		}
	}

	store := newSlidingWindowStore(
		cfg.RateLimiting.Execute.Window,
		cfg.RateLimiting.Execute.MaxRequests,
	)

	return func(c *gin.Context) {
		if c.GetHeader("Authorization") == "" {
			c.Next()
			return
		}

		if !store.allow(bearerKey(c.Request)) {
			if onLimited != nil {
				onLimited()
			}
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": "too many requests, please try again later",
			})
			return
		}
		c.Next()
	}
}
