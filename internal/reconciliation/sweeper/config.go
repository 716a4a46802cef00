package sweeper

import "time"

// Config controls the maintenance worker loop.
type Config struct {
	PollInterval time.Duration
	ReportLimit  int
}

func DefaultConfig() Config {
	return Config{
		PollInterval: 5 * time.Minute,
		ReportLimit:  100,
	}
}

func (c Config) withDefaults() Config {
	defaults := DefaultConfig()
	if c.PollInterval <= 0 {
		c.PollInterval = defaults.PollInterval
	}

	if c.ReportLimit <= 0 {
		c.ReportLimit = defaults.ReportLimit
	}
	return c
}
