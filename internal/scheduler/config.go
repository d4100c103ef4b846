package scheduler

import (
	"time"

	"github.com/smallbiznis/feeledger/internal/config"
)

// Config controls job intervals and batch sizes.
type Config struct {
	Enabled     bool
	RunInterval time.Duration
	BatchSize   int
	JobTimeout  time.Duration
	EnabledJobs []string
}

func DefaultConfig() Config {
	return Config{
		Enabled:     false,
		RunInterval: time.Hour,
		BatchSize:   100,
		JobTimeout:  5 * time.Minute,
	}
}

func (c Config) withDefaults() Config {
	defaults := DefaultConfig()
	if c.RunInterval <= 0 {
		c.RunInterval = defaults.RunInterval
	}
	if c.BatchSize <= 0 {
		c.BatchSize = defaults.BatchSize
	}
	if c.JobTimeout <= 0 {
		c.JobTimeout = defaults.JobTimeout
	}
	return c
}

func ProvideConfig(cfg config.Config) Config {
	c := DefaultConfig()
	c.Enabled = cfg.SchedulerEnabled
	if cfg.SchedulerInterval > 0 {
		c.RunInterval = cfg.SchedulerInterval
	}
	c.EnabledJobs = cfg.SchedulerJobs
	return c
}
