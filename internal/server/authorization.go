package server

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/netbill/internal/auditcontext"
)

// authorize rejects callers whose role may not perform action on object.
// Requests without an actor identity are unauthorized.
func (s *Server) authorize(object string, action string) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		if _, actorID := auditcontext.ActorFromContext(ctx); strings.TrimSpace(actorID) == "" {
			AbortWithError(c, ErrUnauthorized)
			return
		}
		if err := s.authzSvc.Authorize(ctx, auditcontext.RoleFromContext(ctx), object, action); err != nil {
			AbortWithError(c, err)
			return
		}
		c.Next()
	}
}
