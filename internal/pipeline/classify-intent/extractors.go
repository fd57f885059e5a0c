// internal/pipeline/classify-intent/extractors.go
package classifyintent

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// EntityExtractor pulls typed spans out of raw turn text. Extractors
// are pluggable: the handler takes any set and merges their output,
// earlier extractors winning span conflicts.
type EntityExtractor interface {
	Extract(text string) []Entity
}

// RegexExtractor emits one entity per pattern match. When the pattern
// has a capture group, the first group provides the value and span;
// otherwise the full match does.
type RegexExtractor struct {
	entityType string
	re         *regexp.Regexp
}

func NewRegexExtractor(entityType, pattern string) (*RegexExtractor, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("extractor %s: %w", entityType, err)
	}
	return &RegexExtractor{entityType: entityType, re: re}, nil
}

func (x *RegexExtractor) Extract(text string) []Entity {
	var entities []Entity
	for _, loc := range x.re.FindAllStringSubmatchIndex(text, -1) {
		start, end := loc[0], loc[1]
		if x.re.NumSubexp() > 0 && loc[2] >= 0 {
			start, end = loc[2], loc[3]
		}
		entities = append(entities, Entity{
			Type:  x.entityType,
			Value: strings.TrimSpace(text[start:end]),
			Start: start,
			End:   end,
		})
	}
	return entities
}

// DefaultExtractors covers the arguments the built-in tools consume:
// the rewrite body, journal content, the study subject, timer
// durations, and study-plan days/hours. The free-text captures come
// first so their spans win over the numeric slots they may contain.
func DefaultExtractors() []EntityExtractor {
	rewrite, _ := NewRegexExtractor("rewrite_text", `(?i)^\s*(?:rewrite|paraphrase)\s+kindly\s*:\s*(.+)$`)
	journal, _ := NewRegexExtractor("journal_text", `(?i)\b(?:journal|note)\b\s*[:\-]\s*(.+)$`)
	subject, _ := NewRegexExtractor("subject", `(?i)\b(?:for|on|about)\s+(?:my\s+|the\s+)?([a-zA-Z][a-zA-Z ]{0,40}?)\s+(?:exam|test|final|class|course)s?\b`)
	duration, _ := NewRegexExtractor("duration_minutes", `(?i)(\d+)\s*(?:min|minute|minutes|m)\b`)
	days, _ := NewRegexExtractor("days", `(?i)(\d+)\s*days?\b`)
	hours, _ := NewRegexExtractor("hours_per_day", `(?i)(\d+(?:\.\d+)?)\s*(?:hours?|hrs?)\b`)
	return []EntityExtractor{rewrite, journal, subject, duration, days, hours}
}

// validateSpans rejects out-of-bounds, inverted, or mutually
// overlapping spans within one extractor's output.
func validateSpans(text string, entities []Entity) error {
	for _, e := range entities {
		if e.Start < 0 || e.End <= e.Start || e.End > len(text) {
			return fmt.Errorf("%w: entity %s span [%d,%d) out of bounds for text length %d",
				ErrMalformedExtraction, e.Type, e.Start, e.End, len(text))
		}
	}

	ordered := make([]Entity, len(entities))
	copy(ordered, entities)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].Start < ordered[j].Start })
	for i := 1; i < len(ordered); i++ {
		if ordered[i].Start < ordered[i-1].End {
			return fmt.Errorf("%w: entity %s span [%d,%d) overlaps %s span [%d,%d)",
				ErrMalformedExtraction,
				ordered[i].Type, ordered[i].Start, ordered[i].End,
				ordered[i-1].Type, ordered[i-1].Start, ordered[i-1].End)
		}
	}
	return nil
}

// mergeNonOverlapping adds candidates that do not collide with spans
// already kept.
func mergeNonOverlapping(kept, candidates []Entity) []Entity {
	for _, c := range candidates {
		collides := false
		for _, k := range kept {
			if c.Start < k.End && k.Start < c.End {
				collides = true
				break
			}
		}
		if !collides {
			kept = append(kept, c)
		}
	}
	return kept
}
