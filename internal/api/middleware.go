package api

import (
	"net/http"
	"strconv"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/stratalabs/finsight/internal/auth"
)

const identityKey = "identity"

// IdentityMiddleware resolves the caller from the trusted gateway headers.
// The upstream proxy authenticates the request and forwards the caller id
// and role set; requests without them are rejected.
func IdentityMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		callerHeader := c.GetHeader("X-Caller-Id")
		rolesHeader := c.GetHeader("X-Roles")

		if callerHeader == "" || rolesHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "missing X-Caller-Id or X-Roles header",
			})
			return
		}

		callerID, err := strconv.ParseInt(callerHeader, 10, 64)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "invalid X-Caller-Id header",
			})
			return
		}

		roles, err := auth.ParseRoles(rolesHeader)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": err.Error(),
			})
			return
		}

		c.Set(identityKey, auth.Identity{
			CallerID:    callerID,
			DisplayName: c.GetHeader("X-Caller-Name"),
			Roles:       roles,
		})
		c.Next()
	}
}

// identityFrom returns the resolved identity for the request. It is only
// valid on routes behind IdentityMiddleware.
func identityFrom(c *gin.Context) auth.Identity {
	val, _ := c.Get(identityKey)
	identity, _ := val.(auth.Identity)
	return identity
}

// RequireRole guards a route group behind a role.
func RequireRole(role auth.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		identity := identityFrom(c)
		for _, r := range identity.Roles {
			if r == role {
				c.Next()
				return
			}
		}
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
			"error": "insufficient role",
		})
	}
}

// clientLimiter applies per-client token bucket rate limiting. Clients are
// keyed by caller id when present, falling back to source IP.
type clientLimiter struct {
	limiters sync.Map // map[string]*rate.Limiter
	rps      rate.Limit
	burst    int
}

func newClientLimiter(rps float64, burst int) *clientLimiter {
	if rps <= 0 {
		rps = 5
	}
	if burst <= 0 {
		burst = 10
	}
	return &clientLimiter{rps: rate.Limit(rps), burst: burst}
}

func (cl *clientLimiter) limiterFor(key string) *rate.Limiter {
	if val, ok := cl.limiters.Load(key); ok {
		return val.(*rate.Limiter)
	}
	val, _ := cl.limiters.LoadOrStore(key, rate.NewLimiter(cl.rps, cl.burst))
	return val.(*rate.Limiter)
}

// Middleware returns a Gin middleware enforcing the rate limit.
func (cl *clientLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.GetHeader("X-Caller-Id")
		if key == "" {
			key = c.ClientIP()
		}

		if !cl.limiterFor(key).Allow() {
			log.Warn().Str("client", key).Msg("Rate limit exceeded")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": "rate limit exceeded",
			})
			return
		}
		c.Next()
	}
}
