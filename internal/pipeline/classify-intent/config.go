// internal/pipeline/classify-intent/config.go
package classifyintent

import (
	"time"

	"clarity-agent/internal/common/config"
)

type Config struct {
	// MoodPatterns map mood labels to the regexes behind the
	// vent_distress intent. Defaults to the shipped mood lexicon.
	MoodPatterns map[string]string
	Timeout      time.Duration
}

func DefaultConfig() *Config {
	return &Config{
		MoodPatterns: config.DefaultRiskConfig().ElevatedPatterns,
		Timeout:      2 * time.Second,
	}
}

func FromAppConfig(cfg *config.Config) *Config {
	c := DefaultConfig()
	if cfg == nil {
		return c
	}
	if len(cfg.Risk.ElevatedPatterns) > 0 {
		c.MoodPatterns = cfg.Risk.ElevatedPatterns
	}
	if stage := config.GetStageConfig(cfg, StageName); stage.Timeout > 0 {
		c.Timeout = config.GetDuration(stage.Timeout)
	}
	return c
}
