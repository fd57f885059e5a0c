// internal/dialogue/config.go
package dialogue

import (
	"clarity-agent/internal/common/config"
	"clarity-agent/internal/models"
)

type Config struct {
	// IntentConfidenceThreshold gates tool routing: a recognized intent
	// below it still gets a direct reply, never a tool call.
	IntentConfidenceThreshold float64
	// ContextK caps how many passages are requested per turn.
	ContextK int
	// IntentToolMap routes intent labels to registered tool names.
	// Intents without an entry always resolve to a direct reply.
	IntentToolMap map[string]string
	// HistoryWindow bounds the recent user texts handed to the risk
	// detector alongside the current turn.
	HistoryWindow int
	// EscalationMessage and Resources form every escalation decision,
	// including the fail-safe refusal.
	EscalationMessage string
	Resources         []models.Resource
}

func DefaultConfig() *Config {
	risk := config.DefaultRiskConfig()
	return &Config{
		IntentConfidenceThreshold: 0.6,
		ContextK:                  3,
		IntentToolMap:             config.DefaultIntentToolMap(),
		HistoryWindow:             risk.HistoryWindow,
		EscalationMessage:         risk.EscalationMessage,
		Resources:                 resourcesFromConfig(risk.Resources),
	}
}

func FromAppConfig(cfg *config.Config) *Config {
	c := DefaultConfig()
	if cfg == nil {
		return c
	}
	if cfg.Pipeline.IntentConfidenceThreshold > 0 {
		c.IntentConfidenceThreshold = cfg.Pipeline.IntentConfidenceThreshold
	}
	if cfg.Pipeline.ContextK > 0 {
		c.ContextK = cfg.Pipeline.ContextK
	}
	if len(cfg.Pipeline.IntentToolMap) > 0 {
		c.IntentToolMap = cfg.Pipeline.IntentToolMap
	}
	if cfg.Risk.HistoryWindow > 0 {
		c.HistoryWindow = cfg.Risk.HistoryWindow
	}
	if cfg.Risk.EscalationMessage != "" {
		c.EscalationMessage = cfg.Risk.EscalationMessage
	}
	if len(cfg.Risk.Resources) > 0 {
		c.Resources = resourcesFromConfig(cfg.Risk.Resources)
	}
	return c
}

func resourcesFromConfig(in []config.ResourceConfig) []models.Resource {
	out := make([]models.Resource, 0, len(in))
	for _, r := range in {
		out = append(out, models.Resource{Name: r.Name, Contact: r.Contact, URL: r.URL})
	}
	return out
}
