package middleware

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/studyhub/internal/metrics"
	"github.com/xxxsen/studyhub/internal/pkg/errcode"
	"github.com/xxxsen/studyhub/internal/pkg/response"
)

const (
	RateLimitMessage         = "Too many requests from this IP, please try again later"
	defaultRateLimitCapacity = 10000
)

type fixedWindow struct {
	start time.Time
	count int
}

// RateLimiter counts requests per client address in fixed windows. The
// window opens on a key's first request and the count resets once it has
// elapsed. Only request volume is tracked.
type RateLimiter struct {
	mu       sync.Mutex
	window   time.Duration
	max      int
	entries  *expirable.LRU[string, fixedWindow]
	now      func() time.Time
	recorder metrics.Recorder
}

// NewRateLimiter tracks at most capacity addresses; the least recently seen
// address is forgotten first when the table is full.
func NewRateLimiter(window time.Duration, max, capacity int, recorder metrics.Recorder) *RateLimiter {
	if capacity <= 0 {
		capacity = defaultRateLimitCapacity
	}
	if recorder == nil {
		recorder = metrics.Nop
	}
	return &RateLimiter{
		window:   window,
		max:      max,
		entries:  expirable.NewLRU[string, fixedWindow](capacity, nil, window),
		now:      time.Now,
		recorder: recorder,
	}
}

// Allow counts one request for key. remaining is how many more requests fit
// in the current window; reset is when the window closes.
func (l *RateLimiter) Allow(key string) (allowed bool, remaining int, reset time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	w, ok := l.entries.Get(key)
	if !ok || now.Sub(w.start) >= l.window {
		w = fixedWindow{start: now}
	}
	w.count++
	l.entries.Add(key, w)
	reset = w.start.Add(l.window)
	if w.count > l.max {
		return false, 0, reset
	}
	return true, l.max - w.count, reset
}

func (l *RateLimiter) Handler() gin.HandlerFunc {
	return l.handle
}

func (l *RateLimiter) handle(c *gin.Context) {
	if l.window <= 0 || l.max <= 0 {
		c.Next()
		return
	}
	ip := c.ClientIP()
	allowed, remaining, reset := l.Allow(ip)
	resetIn := int(reset.Sub(l.now()).Seconds() + 0.5)
	if resetIn < 0 {
		resetIn = 0
	}
	header := c.Writer.Header()
	header.Set("RateLimit-Limit", strconv.Itoa(l.max))
	header.Set("RateLimit-Remaining", strconv.Itoa(remaining))
	header.Set("RateLimit-Reset", strconv.Itoa(resetIn))
	if !allowed {
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		logutil.GetLogger(c.Request.Context()).Warn("rate limit hit",
			zap.String("ip", ip),
			zap.String("path", path),
		)
		l.recorder.RecordRateLimited(path)
		header.Set("Retry-After", strconv.Itoa(resetIn))
		response.Error(c, http.StatusTooManyRequests, errcode.ErrTooMany, RateLimitMessage)
		c.Abort()
		return
	}
	c.Next()
}
