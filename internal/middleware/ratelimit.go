package middleware

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

const (
	idleWindow = 5 * time.Minute
	// maxTrackedClients bounds the bucket table; the least recently seen
	// client is evicted once it is full.
	maxTrackedClients = 10000
)

// RateLimiter throttles inbound requests per client IP. The userId a caller
// sends is not part of the key, so rotating ids share one budget.
// Upstream Graph calls are not throttled.
type RateLimiter struct {
	perMinute  int
	limit      rate.Limit
	burst      int
	window     time.Duration
	maxClients int
	now        func() time.Time

	mu      sync.Mutex
	clients map[string]*clientBucket
}

type clientBucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewRateLimiter builds a limiter for a requests-per-minute budget with a
// burst of a tenth of it. A non-positive budget disables limiting and returns nil.
func NewRateLimiter(requestsPerMinute int) *RateLimiter {
	if requestsPerMinute <= 0 {
		return nil
	}
	burst := requestsPerMinute / 10
	if burst < 1 {
		burst = 1
	}
	return &RateLimiter{
		perMinute:  requestsPerMinute,
		limit:      rate.Limit(float64(requestsPerMinute) / 60.0),
		burst:      burst,
		window:     idleWindow,
		maxClients: maxTrackedClients,
		now:        time.Now,
		clients:    make(map[string]*clientBucket),
	}
}

// Handler returns the gin middleware. A nil limiter passes every request.
func (r *RateLimiter) Handler() gin.HandlerFunc {
	if r == nil {
		return func(c *gin.Context) {
			c.Next()
		}
	}

	return func(c *gin.Context) {
		if !r.allow(c.ClientIP()) {
			c.Header("Retry-After", r.retryAfter())
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"success": false,
				"error":   "Too many requests. Please slow down.",
			})
			return
		}
		c.Next()
	}
}

// Tracked reports how many client buckets are held.
func (r *RateLimiter) Tracked() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.clients)
}

func (r *RateLimiter) allow(key string) bool {
	now := r.now()
	r.mu.Lock()
	defer r.mu.Unlock()

	bucket, ok := r.clients[key]
	if !ok {
		r.evictLocked(now)
		bucket = &clientBucket{limiter: rate.NewLimiter(r.limit, r.burst)}
		r.clients[key] = bucket
	}
	bucket.lastSeen = now
	return bucket.limiter.AllowN(now, 1)
}

// evictLocked drops idle buckets, then the oldest one if the table is still full.
func (r *RateLimiter) evictLocked(now time.Time) {
	var (
		oldestKey  string
		oldestSeen time.Time
	)
	for key, bucket := range r.clients {
		if now.Sub(bucket.lastSeen) > r.window {
			delete(r.clients, key)
			continue
		}
		if oldestKey == "" || bucket.lastSeen.Before(oldestSeen) {
			oldestKey, oldestSeen = key, bucket.lastSeen
		}
	}
	if len(r.clients) >= r.maxClients && oldestKey != "" {
		delete(r.clients, oldestKey)
	}
}

// retryAfter is the whole seconds until one token refills.
func (r *RateLimiter) retryAfter() string {
	return strconv.Itoa((60 + r.perMinute - 1) / r.perMinute)
}
