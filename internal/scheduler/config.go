package scheduler

import (
	"time"

	"github.com/smallbiznis/orderbridge/internal/config"
)

const (
	JobPartnerSync  = "partner_sync"
	JobExpireOffers = "expire_offers"
)

// Config controls the tick cadence and which jobs a tick runs.
type Config struct {
	PollInterval time.Duration
	TickTimeout  time.Duration
	// EnabledJobs overrides the default job set when non-empty.
	EnabledJobs []string
}

func DefaultConfig() Config {
	return Config{
		PollInterval: 30 * time.Second,
		TickTimeout:  5 * time.Minute,
	}
}

func ProvideConfig(cfg config.Config) Config {
	return Config{
		PollInterval: cfg.Scheduler.PollInterval,
		TickTimeout:  cfg.Scheduler.TickTimeout,
		EnabledJobs:  cfg.Scheduler.EnabledJobs,
	}
}

func (c Config) withDefaults() Config {
	defaults := DefaultConfig()
	if c.PollInterval <= 0 {
		c.PollInterval = defaults.PollInterval
	}
	if c.TickTimeout <= 0 {
		c.TickTimeout = defaults.TickTimeout
	}
	return c
}
