package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/dyaogo/pos-superette-sub002/internal/apierror"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// ── API rate limiter ──────────────────────────────────────────────────────────

// rateEntry tracks request counts per key within a fixed window.
type rateEntry struct {
	count     int
	windowEnd time.Time
}

type rateLimiter struct {
	mu        sync.Mutex
	limit     int
	window    time.Duration
	entries   map[string]*rateEntry
	lastPurge time.Time
	now       func() time.Time
}

// purgeInterval bounds how often expired entries are swept from the map.
const purgeInterval = 5 * time.Minute

// RateLimiter allows limit requests per window per client. The key is the
// authenticated operator when present, the client IP otherwise.
func RateLimiter(limit int, window time.Duration) gin.HandlerFunc {
	rl := &rateLimiter{
		limit:   limit,
		window:  window,
		entries: make(map[string]*rateEntry),
		now:     time.Now,
	}
	return rl.handle
}

func (rl *rateLimiter) handle(c *gin.Context) {
	key := c.ClientIP()
	if v, ok := c.Get(ClaimsKey); ok {
		if claims, ok := v.(*JWTClaims); ok && claims.Subject != "" {
			key = "op:" + claims.Subject
		}
	}

	allowed, retryAt := rl.allow(key)
	if !allowed {
		c.Header("Retry-After", retryAt.UTC().Format(http.TimeFormat))
		c.AbortWithStatusJSON(http.StatusTooManyRequests, apierror.New("Demasiadas solicitudes. Intente nuevamente en un momento."))
		return
	}
	c.Next()
}

func (rl *rateLimiter) allow(key string) (bool, time.Time) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	if now.Sub(rl.lastPurge) > purgeInterval {
		rl.purge(now)
	}

	entry, ok := rl.entries[key]
	if !ok {
		entry = &rateEntry{}
		rl.entries[key] = entry
	}
	if now.After(entry.windowEnd) {
		entry.count = 0
		entry.windowEnd = now.Add(rl.window)
	}
	entry.count++
	return entry.count <= rl.limit, entry.windowEnd
}

// purge drops expired entries so clients that never return do not accumulate.
func (rl *rateLimiter) purge(now time.Time) {
	purged := 0
	for k, e := range rl.entries {
		if now.After(e.windowEnd) {
			delete(rl.entries, k)
			purged++
		}
	}
	rl.lastPurge = now
	if purged > 0 {
		log.Debug().
			Int("entries_purged", purged).
			Int("entries_remaining", len(rl.entries)).
			Msg("rate limiter map purged")
	}
}
