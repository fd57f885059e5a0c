// internal/pipeline/compose-reply/models.go
package composereply

import (
	"context"

	"clarity-agent/internal/common/logger"
	"clarity-agent/internal/corpus"
)

const StageName = "compose-reply"

// Reply sources, carried so callers and logs can tell which variant
// actually produced the text.
const (
	SourceRuleBased     = "rule_based"
	SourceExternalModel = "external_model"
)

// Input is everything a composer may draw on for one turn. Intent and
// Mood come from the classifier, Passages from the retriever; Slots are
// the first extracted value per entity type.
type Input struct {
	Text     string                 `json:"text"`
	Intent   string                 `json:"intent"`
	Mood     string                 `json:"mood,omitempty"`
	Slots    map[string]string      `json:"slots,omitempty"`
	Passages []corpus.ScoredPassage `json:"passages,omitempty"`

	// Clarification, when set, overrides normal composition: the reply
	// asks the user for the tool arguments that were missing or invalid.
	Clarification *Clarification `json:"clarification,omitempty"`

	// Degraded marks a turn where both classification and retrieval
	// failed; the reply acknowledges without pretending to understand.
	Degraded bool `json:"degraded,omitempty"`
}

// Clarification names the tool the manager wanted to run and the
// argument fields it still needs. Empty Fields means the tool itself
// was unavailable.
type Clarification struct {
	Tool   string   `json:"tool"`
	Fields []string `json:"fields,omitempty"`
}

type Reply struct {
	Text   string `json:"text"`
	Source string `json:"source"`
}

// Composer turns a prepared Input into the agent's reply text.
type Composer interface {
	Compose(ctx context.Context, input *Input) (*Reply, error)
}

// New selects the composer variant for the configured mode. Unknown
// modes fall back to the rule-based composer.
func New(config *Config, log logger.Logger) Composer {
	if config == nil {
		config = DefaultConfig()
	}
	if config.Mode == ModeExternalModel {
		return NewExternalModelComposer(config, log)
	}
	return NewRuleBasedComposer(log)
}
