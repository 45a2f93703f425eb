package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration.
type Config struct {
	AppName     string
	AppVersion  string
	Environment string
	HTTPPort    string
	CompanyName string

	LogLevel  string
	LogFormat string

	OTLPEndpoint      string
	OTLPProtocol      string
	OtelEnabled       bool
	OtelSamplingRatio float64

	DBType            string
	DBHost            string
	DBPort            string
	DBName            string
	DBUser            string
	DBPassword        string
	DBSSLMode         string
	DBMaxIdleConn     int
	DBMaxOpenConn     int
	DBConnMaxLifetime int
	DBConnMaxIdleTime int
	DBAutoMigrate     bool
	SeedSampleData    bool

	Redis     RedisConfig
	RateLimit RateLimitConfig

	WhatsApp WhatsAppConfig

	SchedulerEnabled  bool
	SchedulerInterval time.Duration
	SchedulerJobs     []string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

func (c RedisConfig) Enabled() bool {
	return strings.TrimSpace(c.Addr) != ""
}

// RateLimitConfig throttles ledger writes per actor. It needs Redis.
type RateLimitConfig struct {
	Enabled bool
	Rate    float64 // tokens per second
	Burst   int
}

// WhatsAppConfig points at a WAHA (WhatsApp HTTP API) instance.
type WhatsAppConfig struct {
	BaseURL string
	APIKey  string
	Session string
	Timeout time.Duration
}

func (c WhatsAppConfig) Enabled() bool {
	return strings.TrimSpace(c.BaseURL) != ""
}

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	cfg := Config{
		AppName:           getenv("APP_SERVICE", "netbill"),
		AppVersion:        getenv("APP_VERSION", "0.1.0"),
		Environment:       getenv("ENVIRONMENT", "development"),
		HTTPPort:          getenv("HTTP_PORT", "8080"),
		CompanyName:       getenv("COMPANY_NAME", "NetBill"),
		LogLevel:          strings.ToLower(getenv("LOG_LEVEL", "info")),
		LogFormat:         strings.ToLower(getenv("LOG_FORMAT", "json")),
		OTLPEndpoint:      getenv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
		OTLPProtocol:      strings.ToLower(getenv("OTEL_EXPORTER_OTLP_PROTOCOL", "grpc")),
		OtelEnabled:       getenvBool("OTEL_ENABLED", false),
		OtelSamplingRatio: getenvFloat("OTEL_SAMPLING_RATIO", 0.1),
		DBType:            getenv("DATABASE_TYPE", "postgres"),
		DBHost:            getenv("DATABASE_HOST", "localhost"),
		DBPort:            getenv("DATABASE_PORT", "5432"),
		DBName:            getenv("DATABASE_NAME", "netbill"),
		DBUser:            getenv("DATABASE_USER", "postgres"),
		DBPassword:        getenv("DATABASE_PASSWORD", ""),
		DBSSLMode:         getenv("DATABASE_SSLMODE", "disable"),
		DBMaxIdleConn:     getenvInt("DATABASE_MAX_IDLE_CONN", 5),
		DBMaxOpenConn:     getenvInt("DATABASE_MAX_OPEN_CONN", 20),
		DBConnMaxLifetime: getenvInt("DATABASE_CONN_MAX_LIFETIME", 1800),
		DBConnMaxIdleTime: getenvInt("DATABASE_CONN_MAX_IDLE_TIME", 300),
		DBAutoMigrate:     getenvBool("DATABASE_AUTO_MIGRATE", true),
		SeedSampleData:    getenvBool("SEED_SAMPLE_DATA", false),
		Redis: RedisConfig{
			Addr:     strings.TrimSpace(getenv("REDIS_ADDR", "")),
			Password: getenv("REDIS_PASSWORD", ""),
			DB:       getenvInt("REDIS_DB", 0),
		},
		RateLimit: RateLimitConfig{
			Enabled: getenvBool("RATE_LIMIT_ENABLED", false),
			Rate:    getenvFloat("RATE_LIMIT_RATE", 2),
			Burst:   getenvInt("RATE_LIMIT_BURST", 20),
		},
		WhatsApp: WhatsAppConfig{
			BaseURL: strings.TrimRight(strings.TrimSpace(getenv("WAHA_BASE_URL", "")), "/"),
			APIKey:  strings.TrimSpace(getenv("WAHA_API_KEY", "")),
			Session: getenv("WAHA_SESSION", "default"),
			Timeout: getenvDuration("WAHA_TIMEOUT", 5*time.Second),
		},
		SchedulerEnabled:  getenvBool("SCHEDULER_ENABLED", true),
		SchedulerInterval: getenvDuration("SCHEDULER_INTERVAL", 24*time.Hour),
		SchedulerJobs:     getenvList("SCHEDULER_JOBS"),
	}

	return cfg
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvBool(key string, def bool) bool {
	value := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if value == "" {
		return def
	}
	switch value {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return def
	}
}

func getenvInt(key string, def int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return def
	}
	return parsed
}

func getenvFloat(key string, def float64) float64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return def
	}
	return parsed
}

func getenvDuration(key string, def time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return def
	}
	return parsed
}

func getenvList(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
