package logger

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	obscontext "github.com/smallbiznis/netbill/internal/observability/context"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config configures the zap logger.
type Config struct {
	ServiceName string
	Environment string
	Version     string
	Level       string
	Format      string
	Debug       bool

	SamplingInitial     int
	SamplingThereafter  int
	SamplingWindow      time.Duration
	IncludeCaller       bool
	IncludeStackOnError bool
}

// New builds the process logger, installs it as the zap global and syncs it
// on shutdown.
func New(lc fx.Lifecycle, cfg Config) (*zap.Logger, error) {
	logger, err := Build(cfg, zapcore.Lock(os.Stdout))
	if err != nil {
		return nil, err
	}
	zap.ReplaceGlobals(logger)

	if lc != nil {
		lc.Append(fx.Hook{
			OnStop: func(context.Context) error {
				_ = logger.Sync()
				return nil
			},
		})
	}
	return logger, nil
}

// Build writes to sink. Debug mode disables sampling so every payment line
// reaches the output.
func Build(cfg Config, sink zapcore.WriteSyncer) (*zap.Logger, error) {
	level, err := parseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "ts"
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	var encoder zapcore.Encoder
	if strings.EqualFold(strings.TrimSpace(cfg.Format), "console") {
		encCfg.EncodeLevel = zapcore.CapitalLevelEncoder
		encoder = zapcore.NewConsoleEncoder(encCfg)
	} else {
		encoder = zapcore.NewJSONEncoder(encCfg)
	}

	core := zapcore.NewCore(encoder, sink, level)
	if !cfg.Debug {
		core = zapcore.NewSamplerWithOptions(core,
			orDefault(cfg.SamplingWindow, time.Second),
			orDefault(cfg.SamplingInitial, 100),
			orDefault(cfg.SamplingThereafter, 100),
		)
	}

	options := []zap.Option{zap.ErrorOutput(zapcore.Lock(os.Stderr))}
	if cfg.IncludeCaller {
		options = append(options, zap.AddCaller())
	}
	if cfg.IncludeStackOnError {
		options = append(options, zap.AddStacktrace(zapcore.ErrorLevel))
	}

	service := strings.TrimSpace(cfg.ServiceName)
	if service == "" {
		service = "netbill"
	}
	return zap.New(core, options...).With(
		zap.String("service", service),
		zap.String("env", strings.TrimSpace(cfg.Environment)),
		zap.String("version", strings.TrimSpace(cfg.Version)),
	), nil
}

func parseLevel(raw string) (zap.AtomicLevel, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		raw = "info"
	}
	level, err := zap.ParseAtomicLevel(raw)
	if err != nil {
		return zap.AtomicLevel{}, fmt.Errorf("invalid log level %q: %w", raw, err)
	}
	return level, nil
}

func orDefault[T int | time.Duration](v, def T) T {
	if v <= 0 {
		return def
	}
	return v
}

// FromContext returns the global logger with request-scoped fields.
func FromContext(ctx context.Context) *zap.Logger {
	return WithContext(ctx, zap.L())
}

// WithContext adds request id, actor and trace correlation fields to base.
func WithContext(ctx context.Context, base *zap.Logger) *zap.Logger {
	if ctx == nil {
		return base
	}

	fields := make([]zap.Field, 0, 5)
	if requestID := obscontext.RequestIDFromContext(ctx); requestID != "" {
		fields = append(fields, zap.String("request_id", requestID))
	}
	if actorType, actorID := obscontext.ActorFromContext(ctx); actorType != "" {
		fields = append(fields,
			zap.String("actor_type", actorType),
			zap.String("actor_id", actorID),
		)
	}
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		fields = append(fields,
			zap.String("trace_id", sc.TraceID().String()),
			zap.String("span_id", sc.SpanID().String()),
		)
	}
	if len(fields) == 0 {
		return base
	}
	return base.With(fields...)
}

// WithBill scopes a logger to a single bill.
func WithBill(log *zap.Logger, billID, billNumber string) *zap.Logger {
	if log == nil {
		return nil
	}
	return log.With(
		zap.String("bill_id", strings.TrimSpace(billID)),
		zap.String("bill_number", strings.TrimSpace(billNumber)),
	)
}
