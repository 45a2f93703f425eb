package context

import (
	"context"
	"strings"
)

type key string

const (
	requestIDKey key = "obs_request_id"
	actorTypeKey key = "obs_actor_type"
	actorIDKey   key = "obs_actor_id"
)

func WithRequestID(ctx context.Context, requestID string) context.Context {
	requestID = strings.TrimSpace(requestID)
	if requestID == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey, requestID)
}

func RequestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	value, _ := ctx.Value(requestIDKey).(string)
	return value
}

func WithActor(ctx context.Context, actorType, actorID string) context.Context {
	ctx = context.WithValue(ctx, actorTypeKey, strings.TrimSpace(actorType))
	return context.WithValue(ctx, actorIDKey, strings.TrimSpace(actorID))
}

func ActorFromContext(ctx context.Context) (string, string) {
	if ctx == nil {
		return "", ""
	}
	actorType, _ := ctx.Value(actorTypeKey).(string)
	actorID, _ := ctx.Value(actorIDKey).(string)
	return actorType, actorID
}
