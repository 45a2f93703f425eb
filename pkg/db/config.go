package db

import (
	"time"

	"github.com/smallbiznis/netbill/internal/config"
)

type Config struct {
	Type            string
	MaxIdleConn     int
	MaxOpenConn     int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	SlowThreshold   time.Duration
}

func ConfigFrom(cfg config.Config) Config {
	out := Config{
		Type:            cfg.DBType,
		MaxIdleConn:     cfg.DBMaxIdleConn,
		MaxOpenConn:     cfg.DBMaxOpenConn,
		ConnMaxLifetime: time.Duration(cfg.DBConnMaxLifetime) * time.Second,
		ConnMaxIdleTime: time.Duration(cfg.DBConnMaxIdleTime) * time.Second,
		SlowThreshold:   200 * time.Millisecond,
	}
	if out.MaxIdleConn <= 0 {
		out.MaxIdleConn = 5
	}
	if out.MaxOpenConn <= 0 {
		out.MaxOpenConn = 20
	}
	if out.ConnMaxLifetime <= 0 {
		out.ConnMaxLifetime = 30 * time.Minute
	}
	if out.ConnMaxIdleTime <= 0 {
		out.ConnMaxIdleTime = 5 * time.Minute
	}
	return out
}
