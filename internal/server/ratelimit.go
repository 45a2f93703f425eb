package server

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/netbill/internal/auditcontext"
	obslogger "github.com/smallbiznis/netbill/internal/observability/logger"
	"go.uber.org/zap"
)

// limitWrites throttles ledger mutations per actor. Redis failures let the
// request through.
func (s *Server) limitWrites() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !s.limiter.Enabled() {
			c.Next()
			return
		}

		ctx := c.Request.Context()
		_, actorID := auditcontext.ActorFromContext(ctx)
		res, err := s.limiter.AllowWrite(ctx, actorID)
		if err != nil {
			obslogger.FromContext(ctx).Warn("rate limiter unavailable", zap.Error(err))
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(res.Limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))
		if !res.Allowed {
			if secs := int(res.RetryAfter.Seconds() + 0.999); secs > 0 {
				c.Header("Retry-After", strconv.Itoa(secs))
			}
			AbortWithError(c, ErrRateLimited)
			return
		}
		c.Next()
	}
}
