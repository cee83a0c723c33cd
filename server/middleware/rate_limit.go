package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// RateLimiter is a per-client token bucket. One mobile client talks to the
// engine at a time in practice, but the gateway still refuses runaway
// reconnect loops.
type RateLimiter struct {
	clients map[string]*clientBucket
	mutex   sync.RWMutex
	cleanup *time.Ticker
	logger  *zap.Logger
	rps     int
	burst   int
}

type clientBucket struct {
	tokens     float64
	lastUpdate time.Time
	mutex      sync.Mutex
}

func NewRateLimiter(rps, burst int, logger *zap.Logger) *RateLimiter {
	rl := &RateLimiter{
		clients: make(map[string]*clientBucket),
		rps:     rps,
		burst:   burst,
		logger:  logger,
	}

	rl.cleanup = time.NewTicker(5 * time.Minute)
	go rl.cleanupExpiredClients()

	return rl
}

func (rl *RateLimiter) RateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		clientIP := c.ClientIP()

		if !rl.allow(clientIP) {
			rl.logger.Warn("rate limit exceeded",
				zap.String("client_ip", clientIP),
				zap.String("path", c.Request.URL.Path))

			c.JSON(http.StatusTooManyRequests, gin.H{
				"error":       "rate limit exceeded",
				"retry_after": 60,
			})
			c.Abort()
			return
		}

		c.Next()
	}
}

func (rl *RateLimiter) allow(clientIP string) bool {
	rl.mutex.Lock()
	bucket, exists := rl.clients[clientIP]
	if !exists {
		bucket = &clientBucket{
			tokens:     float64(rl.burst),
			lastUpdate: time.Now(),
		}
		rl.clients[clientIP] = bucket
	}
	rl.mutex.Unlock()

	bucket.mutex.Lock()
	defer bucket.mutex.Unlock()

	now := time.Now()
	bucket.tokens += now.Sub(bucket.lastUpdate).Seconds() * float64(rl.rps)
	if bucket.tokens > float64(rl.burst) {
		bucket.tokens = float64(rl.burst)
	}
	bucket.lastUpdate = now

	if bucket.tokens >= 1 {
		bucket.tokens--
		return true
	}
	return false
}

func (rl *RateLimiter) cleanupExpiredClients() {
	for range rl.cleanup.C {
		rl.mutex.Lock()
		now := time.Now()
		for ip, bucket := range rl.clients {
			bucket.mutex.Lock()
			stale := now.Sub(bucket.lastUpdate) > 10*time.Minute
			bucket.mutex.Unlock()
			if stale {
				delete(rl.clients, ip)
			}
		}
		rl.mutex.Unlock()
	}
}

func (rl *RateLimiter) Shutdown() {
	if rl.cleanup != nil {
		rl.cleanup.Stop()
	}
}
