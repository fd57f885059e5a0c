// internal/pipeline/compose-reply/config.go
package composereply

import (
	"time"

	"clarity-agent/internal/common/config"
)

const (
	ModeRuleBased     = "rule_based"
	ModeExternalModel = "external_model"
)

type Config struct {
	// Mode selects the composer variant: rule_based or external_model.
	Mode string

	// External model settings, used only in external_model mode.
	BaseURL     string
	APIKey      string
	Provider    string
	Model       string
	Temperature float64
	MaxTokens   int
	MaxRetries  int

	Timeout time.Duration
}

func DefaultConfig() *Config {
	return &Config{
		Mode:        ModeRuleBased,
		Temperature: 0.7,
		MaxTokens:   500,
		MaxRetries:  2,
		Timeout:     10 * time.Second,
	}
}

func FromAppConfig(cfg *config.Config) *Config {
	c := DefaultConfig()
	if cfg == nil {
		return c
	}
	if cfg.Composer.Mode != "" {
		c.Mode = cfg.Composer.Mode
	}
	ext := cfg.Composer.External
	c.BaseURL = ext.BaseURL
	c.APIKey = ext.APIKey
	c.Provider = ext.Provider
	c.Model = ext.Model
	if ext.Temperature > 0 {
		c.Temperature = ext.Temperature
	}
	if ext.MaxTokens > 0 {
		c.MaxTokens = ext.MaxTokens
	}
	if stage := config.GetStageConfig(cfg, StageName); stage.Timeout > 0 {
		c.Timeout = config.GetDuration(stage.Timeout)
		if stage.MaxRetries > 0 {
			c.MaxRetries = stage.MaxRetries
		}
	}
	if ext.Timeout > 0 {
		c.Timeout = config.GetDuration(ext.Timeout)
	}
	return c
}
