package server

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/netbill/internal/auditcontext"
	obscontext "github.com/smallbiznis/netbill/internal/observability/context"
)

const (
	HeaderActorID   = "X-Actor-ID"
	HeaderActorRole = "X-Actor-Role"

	contextActorRoleKey = "actor_role"
)

// ActorContext reads the caller identity forwarded by the gateway and puts it
// on the request context for audit entries and logs.
func ActorContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		actorID := strings.TrimSpace(c.GetHeader(HeaderActorID))
		role := strings.ToLower(strings.TrimSpace(c.GetHeader(HeaderActorRole)))
		if actorID == "" {
			c.Next()
			return
		}

		ctx := c.Request.Context()
		ctx = auditcontext.WithActor(ctx, auditcontext.ActorTypeUser, actorID, role)
		ctx = obscontext.WithActor(ctx, auditcontext.ActorTypeUser, actorID)
		c.Request = c.Request.WithContext(ctx)
		c.Set(contextActorRoleKey, role)
		c.Next()
	}
}
