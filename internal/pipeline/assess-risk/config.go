// internal/pipeline/assess-risk/config.go
package assessrisk

import (
	"time"

	"clarity-agent/internal/common/config"
)

type Config struct {
	// CrisisPatterns force a crisis assessment on any match.
	CrisisPatterns []string
	// ElevatedPatterns map a mood label to its detection regex.
	ElevatedPatterns map[string]string
	// HistoryWindow bounds how many recent user turns are scanned.
	HistoryWindow int
	// HistoryEscalationThreshold escalates a sustained run of distressed
	// turns inside the window to crisis.
	HistoryEscalationThreshold int
	Timeout                    time.Duration
}

func DefaultConfig() *Config {
	risk := config.DefaultRiskConfig()
	return &Config{
		CrisisPatterns:             risk.CrisisPatterns,
		ElevatedPatterns:           risk.ElevatedPatterns,
		HistoryWindow:              risk.HistoryWindow,
		HistoryEscalationThreshold: risk.HistoryEscalationThreshold,
		Timeout:                    time.Second,
	}
}

func FromAppConfig(cfg *config.Config) *Config {
	c := DefaultConfig()
	if cfg == nil {
		return c
	}
	if len(cfg.Risk.CrisisPatterns) > 0 {
		c.CrisisPatterns = cfg.Risk.CrisisPatterns
	}
	if len(cfg.Risk.ElevatedPatterns) > 0 {
		c.ElevatedPatterns = cfg.Risk.ElevatedPatterns
	}
	if cfg.Risk.HistoryWindow > 0 {
		c.HistoryWindow = cfg.Risk.HistoryWindow
	}
	if cfg.Risk.HistoryEscalationThreshold > 0 {
		c.HistoryEscalationThreshold = cfg.Risk.HistoryEscalationThreshold
	}
	if stage := config.GetStageConfig(cfg, StageName); stage.Timeout > 0 {
		c.Timeout = config.GetDuration(stage.Timeout)
	}
	return c
}
