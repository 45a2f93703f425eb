package tracing

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/netbill/internal/auditcontext"
	obscontext "github.com/smallbiznis/netbill/internal/observability/context"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "netbill/http"

// GinMiddleware opens a server span per request. Spans are named after the
// matched route so ids in the path do not explode cardinality.
func GinMiddleware() gin.HandlerFunc {
	tracer := otel.Tracer(tracerName)
	return func(c *gin.Context) {
		ctx := ExtractContext(c.Request.Context(), propagation.HeaderCarrier(c.Request.Header))
		ctx, span := tracer.Start(ctx, c.Request.Method, trace.WithSpanKind(trace.SpanKindServer))
		defer span.End()

		if requestID := obscontext.RequestIDFromContext(ctx); requestID != "" {
			span.SetAttributes(attribute.String("request_id", requestID))
		}
		c.Request = c.Request.WithContext(ctx)

		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unknown"
		}
		status := c.Writer.Status()
		span.SetName(c.Request.Method + " " + route)

		attrs := []attribute.KeyValue{
			attribute.String("http.method", c.Request.Method),
			attribute.String("http.route", route),
			attribute.Int("http.status_code", status),
		}
		if id := c.Param("id"); id != "" {
			attrs = append(attrs, attribute.String("netbill.resource_id", id))
		}
		if role := auditcontext.RoleFromContext(c.Request.Context()); role != "" {
			attrs = append(attrs, attribute.String("netbill.actor_role", role))
		}
		span.SetAttributes(SafeAttributes(attrs...)...)

		lastErr := c.Errors.Last()
		switch {
		case status >= http.StatusInternalServerError:
			if lastErr != nil {
				span.RecordError(SafeError(lastErr.Err))
			}
			span.SetStatus(codes.Error, http.StatusText(status))
		case lastErr != nil:
			// Rejections such as overpayment are expected outcomes, not span errors.
			span.AddEvent("request.rejected", trace.WithAttributes(
				attribute.String("error", SafeError(lastErr.Err).Error()),
			))
		}
	}
}
