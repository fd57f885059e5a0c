// internal/tools/focus-timer/config.go
package focustimer

import (
	"time"

	"clarity-agent/internal/common/config"
)

// Config bounds timer durations and controls how long abandoned timer
// state lingers in Redis.
type Config struct {
	// MinSeconds is the floor applied to every requested duration.
	MinSeconds int
	// DefaultMinutes is used when a start request carries no duration.
	DefaultMinutes int
	// MaxMinutes caps the requested duration. Zero disables the cap.
	MaxMinutes int
	// StateTTL expires per-conversation timer state that is never
	// stopped or checked again.
	StateTTL time.Duration
}

func DefaultConfig() *Config {
	return &Config{
		MinSeconds:     60,
		DefaultMinutes: 25,
		MaxMinutes:     180,
		StateTTL:       6 * time.Hour,
	}
}

// FromAppConfig builds a timer config from the application config,
// falling back to defaults for unset fields.
func FromAppConfig(cfg *config.Config) *Config {
	c := DefaultConfig()
	if cfg == nil {
		return c
	}
	if cfg.Tools.Timer.MinSeconds > 0 {
		c.MinSeconds = cfg.Tools.Timer.MinSeconds
	}
	if cfg.Tools.Timer.DefaultMinutes > 0 {
		c.DefaultMinutes = cfg.Tools.Timer.DefaultMinutes
	}
	if cfg.Tools.Timer.MaxMinutes > 0 {
		c.MaxMinutes = cfg.Tools.Timer.MaxMinutes
	}
	if cfg.Tools.Timer.TTLHours > 0 {
		c.StateTTL = time.Duration(cfg.Tools.Timer.TTLHours) * time.Hour
	}
	return c
}
