package config

import (
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"
	_ "time/tzdata"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

const (
	DueDateEndOfPeriod       = "end_of_period"
	DueDateFixedDayNextMonth = "fixed_day_next_period"
)

// BillingConfig is the hot-reloadable part of the configuration, read from
// billing.yml.
type BillingConfig struct {
	DueDate     DueDatePolicy     `mapstructure:"dueDate"`
	Sequence    SequencePolicy    `mapstructure:"sequence"`
	Concurrency ConcurrencyPolicy `mapstructure:"concurrency"`
	Reset       ResetPolicy       `mapstructure:"reset"`
	Schedule    SchedulePolicy    `mapstructure:"schedule"`
}

type DueDatePolicy struct {
	Policy string `mapstructure:"policy"`
	Day    int    `mapstructure:"day"`
}

type SequencePolicy struct {
	MaxAttempts int           `mapstructure:"maxAttempts"`
	BaseDelay   time.Duration `mapstructure:"baseDelay"`
	MaxDelay    time.Duration `mapstructure:"maxDelay"`
	MaxJitter   time.Duration `mapstructure:"maxJitter"`
}

type ConcurrencyPolicy struct {
	MaxConflictRetries int `mapstructure:"maxConflictRetries"`
}

type ResetPolicy struct {
	Enabled bool `mapstructure:"enabled"`
}

type SchedulePolicy struct {
	GenerateDay int `mapstructure:"generateDay"`
	// Timezone is the IANA zone the operator's calendar runs in.
	Timezone string `mapstructure:"timezone"`
}

func DefaultBillingConfig() BillingConfig {
	return BillingConfig{
		DueDate: DueDatePolicy{Policy: DueDateEndOfPeriod},
		Sequence: SequencePolicy{
			MaxAttempts: 5,
			BaseDelay:   200 * time.Millisecond,
			MaxDelay:    2 * time.Second,
			MaxJitter:   2 * time.Second,
		},
		Concurrency: ConcurrencyPolicy{MaxConflictRetries: 10},
		Reset:       ResetPolicy{Enabled: true},
		Schedule:    SchedulePolicy{GenerateDay: 1, Timezone: "UTC"},
	}
}

type BillingConfigHolder struct {
	current atomic.Value // holds BillingConfig
}

// NewStaticBillingConfig returns a holder that never reloads.
func NewStaticBillingConfig(cfg BillingConfig) *BillingConfigHolder {
	holder := &BillingConfigHolder{}
	holder.current.Store(cfg)
	return holder
}

func NewBillingConfigHolder(log *zap.Logger) (*BillingConfigHolder, error) {
	log = log.Named("billing.config")
	v := viper.New()

	v.SetConfigName("billing")
	v.SetConfigType("yml")
	v.AddConfigPath("/etc/netbill")
	v.AddConfigPath("./config")
	v.AddConfigPath(".")

	v.SetEnvPrefix("NETBILL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := DefaultBillingConfig()
	v.SetDefault("billing.dueDate.policy", defaults.DueDate.Policy)
	v.SetDefault("billing.dueDate.day", defaults.DueDate.Day)
	v.SetDefault("billing.sequence.maxAttempts", defaults.Sequence.MaxAttempts)
	v.SetDefault("billing.sequence.baseDelay", defaults.Sequence.BaseDelay)
	v.SetDefault("billing.sequence.maxDelay", defaults.Sequence.MaxDelay)
	v.SetDefault("billing.sequence.maxJitter", defaults.Sequence.MaxJitter)
	v.SetDefault("billing.concurrency.maxConflictRetries", defaults.Concurrency.MaxConflictRetries)
	v.SetDefault("billing.reset.enabled", defaults.Reset.Enabled)
	v.SetDefault("billing.schedule.generateDay", defaults.Schedule.GenerateDay)
	v.SetDefault("billing.schedule.timezone", defaults.Schedule.Timezone)

	fileFound := true
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		fileFound = false
		log.Info("billing.yml not found, using defaults")
	}

	cfg, err := decodeBillingConfig(v)
	if err != nil {
		return nil, err
	}
	if err := ValidateBillingConfig(cfg); err != nil {
		return nil, err
	}

	holder := NewStaticBillingConfig(cfg)
	if !fileFound {
		return holder, nil
	}

	v.OnConfigChange(func(e fsnotify.Event) {
		updated, err := decodeBillingConfig(v)
		if err != nil {
			log.Warn("reload failed", zap.Error(err))
			return
		}
		if err := ValidateBillingConfig(updated); err != nil {
			log.Warn("invalid config ignored", zap.Error(err))
			return
		}
		holder.current.Store(updated)
		log.Info("reloaded", zap.String("file", e.Name))
	})
	v.WatchConfig()

	return holder, nil
}

// decodeBillingConfig goes through Unmarshal rather than UnmarshalKey so
// defaults are merged into partially specified sections.
func decodeBillingConfig(v *viper.Viper) (BillingConfig, error) {
	var wrapper struct {
		Billing BillingConfig `mapstructure:"billing"`
	}
	if err := v.Unmarshal(&wrapper); err != nil {
		return BillingConfig{}, err
	}
	return wrapper.Billing, nil
}

func (h *BillingConfigHolder) Get() BillingConfig {
	return h.current.Load().(BillingConfig)
}

func ValidateBillingConfig(cfg BillingConfig) error {
	switch cfg.DueDate.Policy {
	case DueDateEndOfPeriod:
	case DueDateFixedDayNextMonth:
		if cfg.DueDate.Day < 1 || cfg.DueDate.Day > 28 {
			return fmt.Errorf("billing.dueDate.day must be within 1..28, got %d", cfg.DueDate.Day)
		}
	default:
		return fmt.Errorf("unknown billing.dueDate.policy %q", cfg.DueDate.Policy)
	}
	if cfg.Sequence.MaxAttempts < 1 {
		return errors.New("billing.sequence.maxAttempts must be at least 1")
	}
	if cfg.Sequence.BaseDelay < 0 || cfg.Sequence.MaxDelay < 0 || cfg.Sequence.MaxJitter < 0 {
		return errors.New("billing.sequence delays cannot be negative")
	}
	if cfg.Concurrency.MaxConflictRetries < 1 {
		return errors.New("billing.concurrency.maxConflictRetries must be at least 1")
	}
	if cfg.Schedule.GenerateDay < 1 || cfg.Schedule.GenerateDay > 28 {
		return fmt.Errorf("billing.schedule.generateDay must be within 1..28, got %d", cfg.Schedule.GenerateDay)
	}
	if _, err := time.LoadLocation(cfg.Schedule.Timezone); err != nil {
		return fmt.Errorf("billing.schedule.timezone %q: %w", cfg.Schedule.Timezone, err)
	}
	return nil
}

// Location returns the schedule time zone, UTC when unset or unknown.
func (p SchedulePolicy) Location() *time.Location {
	loc, err := time.LoadLocation(p.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
