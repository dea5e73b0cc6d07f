package middleware

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"stockledger/internal/apierror"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// window counts requests from one client IP inside a fixed window.
type window struct {
	count int
	ends  time.Time
}

// ipLimiter is a fixed-window per-IP limiter. Expired windows are purged by
// a background sweep so idle IPs do not accumulate.
type ipLimiter struct {
	name   string
	limit  int
	period time.Duration

	mu      sync.Mutex
	windows map[string]*window
}

const purgeInterval = 5 * time.Minute

func newIPLimiter(name string, limit int, period time.Duration) *ipLimiter {
	l := &ipLimiter{name: name, limit: limit, period: period, windows: make(map[string]*window)}
	go l.purgeLoop()
	return l
}

// allow records one hit and reports whether it is within the limit, plus
// the time the current window ends.
func (l *ipLimiter) allow(ip string, now time.Time) (bool, time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	w, ok := l.windows[ip]
	if !ok || now.After(w.ends) {
		w = &window{ends: now.Add(l.period)}
		l.windows[ip] = w
	}
	w.count++
	return w.count <= l.limit, w.ends
}

func (l *ipLimiter) purge(now time.Time) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	purged := 0
	for ip, w := range l.windows {
		if now.After(w.ends) {
			delete(l.windows, ip)
			purged++
		}
	}
	return purged
}

func (l *ipLimiter) purgeLoop() {
	ticker := time.NewTicker(purgeInterval)
	defer ticker.Stop()
	for now := range ticker.C {
		if n := l.purge(now); n > 0 {
			log.Debug().Str("limiter", l.name).Int("purged", n).Msg("rate limiter windows purged")
		}
	}
}

func (l *ipLimiter) handler(msg string) gin.HandlerFunc {
	return func(c *gin.Context) {
		ok, ends := l.allow(c.ClientIP(), time.Now())
		if !ok {
			secs := int(time.Until(ends).Seconds()) + 1
			c.Header("Retry-After", strconv.Itoa(secs))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, apierror.New(msg))
			return
		}
		c.Next()
	}
}

// LoginRateLimiter allows 20 login attempts per minute per IP.
func LoginRateLimiter() gin.HandlerFunc {
	return newIPLimiter("login", 20, time.Minute).handler("too many login attempts, try again in a minute")
}

// RateLimiter allows limit requests per window per IP.
func RateLimiter(limit int, period time.Duration) gin.HandlerFunc {
	return newIPLimiter("api", limit, period).handler("too many requests, try again shortly")
}
