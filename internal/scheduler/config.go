package scheduler

import (
	"time"

	"github.com/smallbiznis/netbill/internal/config"
)

// Config controls scheduler intervals and limits.
type Config struct {
	RunInterval       time.Duration
	GenerateTimeout   time.Duration
	OverdueTimeout    time.Duration
	LockTTL           time.Duration
	OverdueBatchLimit int
	EnabledJobs       []string
}

func DefaultConfig() Config {
	return Config{
		RunInterval:       24 * time.Hour,
		GenerateTimeout:   10 * time.Minute,
		OverdueTimeout:    time.Minute,
		LockTTL:           15 * time.Minute,
		OverdueBatchLimit: 1000,
	}
}

func ProvideConfig(cfg config.Config) Config {
	c := DefaultConfig()
	if cfg.SchedulerInterval > 0 {
		c.RunInterval = cfg.SchedulerInterval
	}
	c.EnabledJobs = cfg.SchedulerJobs
	return c
}

func (c Config) withDefaults() Config {
	defaults := DefaultConfig()
	if c.RunInterval <= 0 {
		c.RunInterval = defaults.RunInterval
	}
	if c.GenerateTimeout <= 0 {
		c.GenerateTimeout = defaults.GenerateTimeout
	}
	if c.OverdueTimeout <= 0 {
		c.OverdueTimeout = defaults.OverdueTimeout
	}
	if c.LockTTL <= 0 {
		c.LockTTL = defaults.LockTTL
	}
	if c.OverdueBatchLimit <= 0 {
		c.OverdueBatchLimit = defaults.OverdueBatchLimit
	}
	return c
}
