// Package auditcontext carries request-scoped attribution used by the
// billing audit log.
package auditcontext

import (
	"context"
	"strings"
)

type contextKey string

const (
	requestIDKey contextKey = "audit_request_id"
	ipAddressKey contextKey = "audit_ip_address"
	userAgentKey contextKey = "audit_user_agent"
	actorTypeKey contextKey = "audit_actor_type"
	actorIDKey   contextKey = "audit_actor_id"
	actorRoleKey contextKey = "audit_actor_role"
)

const (
	ActorTypeUser   = "user"
	ActorTypeSystem = "system"
)

func WithRequestID(ctx context.Context, requestID string) context.Context {
	return withString(ctx, requestIDKey, requestID)
}

func RequestIDFromContext(ctx context.Context) string {
	return stringFrom(ctx, requestIDKey)
}

func WithIPAddress(ctx context.Context, ip string) context.Context {
	return withString(ctx, ipAddressKey, ip)
}

func IPAddressFromContext(ctx context.Context) string {
	return stringFrom(ctx, ipAddressKey)
}

func WithUserAgent(ctx context.Context, userAgent string) context.Context {
	return withString(ctx, userAgentKey, userAgent)
}

func UserAgentFromContext(ctx context.Context) string {
	return stringFrom(ctx, userAgentKey)
}

// WithActor records who is performing the current operation.
func WithActor(ctx context.Context, actorType, actorID, role string) context.Context {
	ctx = withString(ctx, actorTypeKey, actorType)
	ctx = withString(ctx, actorIDKey, actorID)
	return withString(ctx, actorRoleKey, role)
}

func ActorFromContext(ctx context.Context) (string, string) {
	return stringFrom(ctx, actorTypeKey), stringFrom(ctx, actorIDKey)
}

func RoleFromContext(ctx context.Context) string {
	return stringFrom(ctx, actorRoleKey)
}

func withString(ctx context.Context, key contextKey, value string) context.Context {
	value = strings.TrimSpace(value)
	if value == "" {
		return ctx
	}
	return context.WithValue(ctx, key, value)
}

func stringFrom(ctx context.Context, key contextKey) string {
	if ctx == nil {
		return ""
	}
	value, _ := ctx.Value(key).(string)
	return value
}
