// Package middleware carries gin.HandlerFunc helpers shared across the
// API layer: a shared control-token gate and a per-IP rate limiter
// built on golang.org/x/time/rate.
package middleware

import (
	"crypto/subtle"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/onlytrade/room-server/internal/apperr"
)

// ControlToken rejects any request whose token does not match the
// configured control token via constant-time comparison. The token is
// read from X-Control-Token, then from an Authorization: Bearer header,
// and, only when both are absent, from a control_token value already set
// on the gin context by an earlier handler.
func ControlToken(expected string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if expected == "" {
			respondErr(c, apperr.ServiceUnavailable("control_token_not_configured"))
			return
		}

		got := c.GetHeader("X-Control-Token")
		if got == "" {
			if auth := c.GetHeader("Authorization"); len(auth) > 7 && auth[:7] == "Bearer " {
				got = auth[7:]
			}
		}
		if got == "" {
			if v, ok := c.Get("control_token"); ok {
				got, _ = v.(string)
			}
		}

		if subtle.ConstantTimeCompare([]byte(got), []byte(expected)) != 1 {
			respondErr(c, apperr.Unauthorized(apperr.CodeUnauthorizedControlToken))
			return
		}
		c.Next()
	}
}

func respondErr(c *gin.Context, e *apperr.Error) {
	c.JSON(e.Status, gin.H{"error": e.Code})
	c.Abort()
}

// perIPLimiter lazily creates and caches one rate.Limiter per client IP.
type perIPLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	r        rate.Limit
	burst    int
}

func newPerIPLimiter(perMinute, burst int) *perIPLimiter {
	return &perIPLimiter{
		limiters: make(map[string]*rate.Limiter),
		r:        rate.Limit(float64(perMinute) / 60.0),
		burst:    burst,
	}
}

func (p *perIPLimiter) get(ip string) *rate.Limiter {
	p.mu.Lock()
	defer p.mu.Unlock()
	l, ok := p.limiters[ip]
	if !ok {
		l = rate.NewLimiter(p.r, p.burst)
		p.limiters[ip] = l
	}
	return l
}

// ChatRateLimit caps chat-post requests per client IP to perMinute,
// bursting up to burst.
func ChatRateLimit(perMinute, burst int) gin.HandlerFunc {
	limiters := newPerIPLimiter(perMinute, burst)
	return func(c *gin.Context) {
		if !limiters.get(c.ClientIP()).Allow() {
			c.JSON(http.StatusTooManyRequests, gin.H{"error": apperr.CodeRateLimited})
			c.Abort()
			return
		}
		c.Next()
	}
}
