package logger

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/smallbiznis/netbill/internal/auditcontext"
	obscontext "github.com/smallbiznis/netbill/internal/observability/context"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const headerRequestID = "X-Request-Id"

// MiddlewareConfig controls request logging behavior.
type MiddlewareConfig struct {
	Debug bool
	// ErrorClassifier returns the error type and code written to the log line.
	ErrorClassifier func(err error) (string, string)
}

// GinMiddleware assigns a request id, seeds the audit context and writes one
// line per request.
func GinMiddleware(cfg MiddlewareConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		requestID := requestIDFor(c)

		ctx := c.Request.Context()
		ctx = obscontext.WithRequestID(ctx, requestID)
		ctx = auditcontext.WithRequestID(ctx, requestID)
		ctx = auditcontext.WithIPAddress(ctx, c.ClientIP())
		ctx = auditcontext.WithUserAgent(ctx, c.Request.UserAgent())
		c.Request = c.Request.WithContext(ctx)

		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unknown"
		}
		status := c.Writer.Status()
		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("route", route),
			zap.Int("status", status),
			zap.Int64("duration_ms", time.Since(start).Milliseconds()),
			zap.Int("bytes_out", max(c.Writer.Size(), 0)),
		}
		fields = append(fields, resourceFields(c, route)...)

		// The actor is set by a later middleware; its id and type come in
		// through FromContext, the role does not.
		if role := auditcontext.RoleFromContext(c.Request.Context()); role != "" {
			fields = append(fields, zap.String("actor_role", role))
		}

		var errorType string
		if lastErr := c.Errors.Last(); lastErr != nil && cfg.ErrorClassifier != nil {
			var errorCode string
			errorType, errorCode = cfg.ErrorClassifier(lastErr.Err)
			fields = append(fields,
				zap.String("error_type", errorType),
				zap.String("error_code", errorCode),
			)
			if cfg.Debug && status >= http.StatusInternalServerError {
				fields = append(fields, zap.Error(lastErr.Err))
			}
		}

		if ce := FromContext(c.Request.Context()).Check(requestLevel(route, status, errorType), "http_request"); ce != nil {
			ce.Write(fields...)
		}
	}
}

func requestIDFor(c *gin.Context) string {
	requestID := strings.TrimSpace(c.GetHeader(headerRequestID))
	if requestID == "" {
		requestID = uuid.NewString()
	}
	c.Set("request_id", requestID)
	c.Header(headerRequestID, requestID)
	return requestID
}

// resourceFields names the path id after the resource it identifies.
func resourceFields(c *gin.Context, route string) []zap.Field {
	id := strings.TrimSpace(c.Param("id"))
	if id == "" {
		return nil
	}
	switch {
	case strings.HasPrefix(route, "/api/bills/"):
		return []zap.Field{zap.String("bill_id", id)}
	case strings.HasPrefix(route, "/api/customers/"):
		return []zap.Field{zap.String("customer_id", id)}
	default:
		return []zap.Field{zap.String("resource_id", id)}
	}
}

func requestLevel(route string, status int, errorType string) zapcore.Level {
	switch {
	case route == "/health" || route == "/metrics":
		return zapcore.DebugLevel
	case status >= http.StatusInternalServerError:
		return zapcore.ErrorLevel
	case status >= http.StatusBadRequest && errorType != "":
		return zapcore.WarnLevel
	default:
		return zapcore.InfoLevel
	}
}
