// internal/pipeline/classify-intent/handler.go
package classifyintent

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"clarity-agent/internal/common/logger"
)

const StageName = "classify-intent"

var (
	// ErrMalformedExtraction reports an extractor that produced spans
	// outside the input text or overlapping each other.
	ErrMalformedExtraction = errors.New("MALFORMED_EXTRACTION")

	// ErrIntentClassificationFailed reports that the stage could not
	// produce a ranking at all, typically a cancelled context.
	ErrIntentClassificationFailed = errors.New("INTENT_CLASSIFICATION_FAILED")
)

type moodPattern struct {
	label string
	re    *regexp.Regexp
}

// Handler ranks intent candidates for a single user turn and extracts
// slot entities for downstream tool calls.
type Handler struct {
	config     *Config
	rules      []rule
	moods      []moodPattern
	extractors []EntityExtractor
	logger     logger.Logger
}

// NewHandler builds a classify-intent handler. Passing no extractors
// installs the default slot extractors.
func NewHandler(config *Config, log logger.Logger, extractors ...EntityExtractor) (*Handler, error) {
	if config == nil {
		config = DefaultConfig()
	}

	labels := make([]string, 0, len(config.MoodPatterns))
	for label := range config.MoodPatterns {
		labels = append(labels, label)
	}
	sort.Strings(labels)

	moods := make([]moodPattern, 0, len(labels))
	for _, label := range labels {
		re, err := regexp.Compile(config.MoodPatterns[label])
		if err != nil {
			return nil, fmt.Errorf("compile mood pattern %q: %w", label, err)
		}
		moods = append(moods, moodPattern{label: label, re: re})
	}

	if len(extractors) == 0 {
		extractors = DefaultExtractors()
	}

	return &Handler{
		config:     config,
		rules:      intentRules(moods),
		moods:      moods,
		extractors: extractors,
		logger:     log.WithFields(map[string]interface{}{"stage": StageName}),
	}, nil
}

// Execute classifies one turn under the stage timeout.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	ctx, cancel := context.WithTimeout(ctx, h.config.Timeout)
	defer cancel()
	return h.execute(ctx, input)
}

func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIntentClassificationFailed, err)
	}

	entities, err := h.extractEntities(input.Text)
	if err != nil {
		return nil, err
	}

	t := strings.ToLower(strings.TrimSpace(input.Text))

	results := make([]IntentResult, 0, 4)
	for _, r := range h.rules {
		if r.match(t) {
			results = append(results, IntentResult{
				Label:      r.label,
				Confidence: r.confidence,
				Entities:   copyEntities(entities),
			})
		}
	}

	// The unknown candidate is always present so callers can rely on a
	// non-empty ranking even for text no rule recognizes.
	results = append(results, IntentResult{
		Label:      IntentUnknown,
		Confidence: 0.0,
		Entities:   copyEntities(entities),
	})

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Confidence != results[j].Confidence {
			return results[i].Confidence > results[j].Confidence
		}
		return results[i].Label < results[j].Label
	})

	h.logger.Debug("Intent classification complete", map[string]interface{}{
		"topIntent":  results[0].Label,
		"confidence": results[0].Confidence,
		"candidates": len(results),
		"entities":   len(entities),
	})

	return &Output{Results: results}, nil
}

// extractEntities runs every extractor, validates its spans against the
// original text, and merges the outputs. When two extractors claim
// overlapping spans the earlier extractor wins. Mood mentions are
// appended last so slot values always take precedence over them.
func (h *Handler) extractEntities(text string) ([]Entity, error) {
	var merged []Entity
	for _, ex := range h.extractors {
		found := ex.Extract(text)
		if err := validateSpans(text, found); err != nil {
			return nil, err
		}
		merged = mergeNonOverlapping(merged, found)
	}
	merged = mergeNonOverlapping(merged, h.moodEntities(text))

	sort.Slice(merged, func(i, j int) bool { return merged[i].Start < merged[j].Start })
	return merged, nil
}

// moodEntities surfaces the first mention of each configured mood as an
// entity so the reply composer can acknowledge it.
func (h *Handler) moodEntities(text string) []Entity {
	var out []Entity
	for _, mood := range h.moods {
		loc := mood.re.FindStringIndex(text)
		if loc == nil {
			continue
		}
		out = append(out, Entity{
			Type:  "mood",
			Value: mood.label,
			Start: loc[0],
			End:   loc[1],
		})
	}
	return out
}

func copyEntities(entities []Entity) []Entity {
	out := make([]Entity, len(entities))
	copy(out, entities)
	return out
}
