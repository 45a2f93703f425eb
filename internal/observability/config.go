package observability

import (
	"strings"

	"github.com/smallbiznis/netbill/internal/config"
)

// Config is the slice of application config the logging, tracing and
// metrics providers need.
type Config struct {
	ServiceName string
	Environment string
	Version     string

	LogLevel  string
	LogFormat string

	OtelEnabled          bool
	OtelExporterEndpoint string
	OtelExporterProtocol string
	OtelSamplingRatio    float64
}

func LoadConfig(cfg config.Config) Config {
	out := Config{
		ServiceName:          strings.TrimSpace(cfg.AppName),
		Environment:          strings.TrimSpace(cfg.Environment),
		Version:              strings.TrimSpace(cfg.AppVersion),
		LogLevel:             strings.TrimSpace(cfg.LogLevel),
		LogFormat:            strings.TrimSpace(cfg.LogFormat),
		OtelEnabled:          cfg.OtelEnabled,
		OtelExporterEndpoint: strings.TrimSpace(cfg.OTLPEndpoint),
		OtelExporterProtocol: strings.TrimSpace(cfg.OTLPProtocol),
		OtelSamplingRatio:    cfg.OtelSamplingRatio,
	}
	if out.ServiceName == "" {
		out.ServiceName = "netbill"
	}
	if out.LogLevel == "" {
		out.LogLevel = "info"
	}
	if out.OtelExporterProtocol == "" {
		out.OtelExporterProtocol = "grpc"
	}
	return out
}

// Debug is true for debug log level and for local environments.
func (c Config) Debug() bool {
	if strings.EqualFold(c.LogLevel, "debug") {
		return true
	}
	switch strings.ToLower(c.Environment) {
	case "dev", "development", "local", "test":
		return true
	}
	return false
}
