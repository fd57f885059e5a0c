// internal/tools/journaling/config.go
package journaling

import "clarity-agent/internal/common/config"

type Config struct {
	// SummaryDays is the lookback window for journal_summary.
	SummaryDays int
	// MaxTags caps how many theme tags a single entry receives.
	MaxTags int
}

func DefaultConfig() *Config {
	return &Config{
		SummaryDays: 7,
		MaxTags:     3,
	}
}

func FromAppConfig(cfg *config.Config) *Config {
	c := DefaultConfig()
	if cfg == nil {
		return c
	}
	if cfg.Journal.SummaryDays > 0 {
		c.SummaryDays = cfg.Journal.SummaryDays
	}
	return c
}
