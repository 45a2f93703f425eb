package observability

import (
	"github.com/smallbiznis/netbill/internal/observability/logger"
	"github.com/smallbiznis/netbill/internal/observability/metrics"
	"github.com/smallbiznis/netbill/internal/observability/tracing"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/fx"
)

var Module = fx.Module("observability",
	fx.Provide(
		LoadConfig,
		func(cfg Config) logger.Config {
			return logger.Config{
				ServiceName:         cfg.ServiceName,
				Environment:         cfg.Environment,
				Version:             cfg.Version,
				Level:               cfg.LogLevel,
				Format:              cfg.LogFormat,
				Debug:               cfg.Debug(),
				IncludeCaller:       true,
				IncludeStackOnError: cfg.Debug(),
			}
		},
		func(cfg Config) tracing.Config {
			return tracing.Config{
				Enabled:          cfg.OtelEnabled,
				ServiceName:      cfg.ServiceName,
				ServiceVersion:   cfg.Version,
				Environment:      cfg.Environment,
				ExporterEndpoint: cfg.OtelExporterEndpoint,
				ExporterProtocol: cfg.OtelExporterProtocol,
				SamplingRatio:    cfg.OtelSamplingRatio,
			}
		},
		func(cfg Config) metrics.Config {
			return metrics.Config{
				Enabled:          cfg.OtelEnabled,
				ExporterEndpoint: cfg.OtelExporterEndpoint,
				ExporterProtocol: cfg.OtelExporterProtocol,
				ServiceName:      cfg.ServiceName,
				Environment:      cfg.Environment,
			}
		},
		logger.New,
		tracing.NewProvider,
		metrics.NewProvider,
		metrics.New,
		metrics.NewHTTPMetrics,
		provideSchedulerMetrics,
	),
	fx.Invoke(func(*sdktrace.TracerProvider) {}),
)

// provideSchedulerMetrics shares the process-wide collectors registered on
// the default prometheus registry, which /metrics serves.
func provideSchedulerMetrics(cfg metrics.Config) *metrics.SchedulerMetrics {
	return metrics.SchedulerWithConfig(cfg)
}
