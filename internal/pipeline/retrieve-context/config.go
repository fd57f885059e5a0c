// internal/pipeline/retrieve-context/config.go
package retrievecontext

import (
	"time"

	"clarity-agent/internal/common/config"
)

type Config struct {
	// TopK caps how many passages a turn retrieves when the caller does
	// not ask for a specific count.
	TopK int
	// CacheEnabled turns on the redis read-through cache.
	CacheEnabled bool
	CacheTTL     time.Duration
	Timeout      time.Duration
}

func DefaultConfig() *Config {
	return &Config{
		TopK:     3,
		CacheTTL: 5 * time.Minute,
		Timeout:  3 * time.Second,
	}
}

func FromAppConfig(cfg *config.Config) *Config {
	c := DefaultConfig()
	if cfg == nil {
		return c
	}
	c.CacheEnabled = cfg.Corpus.Cache.Enabled
	if cfg.Corpus.Cache.TTLSeconds > 0 {
		c.CacheTTL = time.Duration(cfg.Corpus.Cache.TTLSeconds) * time.Second
	}
	if stage := config.GetStageConfig(cfg, StageName); stage.Timeout > 0 {
		c.Timeout = config.GetDuration(stage.Timeout)
	}
	return c
}
