// internal/pipeline/assess-risk/handler.go
//
// Package assessrisk is the first pipeline stage on every turn. It is
// purely deterministic pattern matching: crisis patterns first, then
// the mood lexicon, then a sustained-distress check over the recent
// history window. It reads session history but never mutates anything.
package assessrisk

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"clarity-agent/internal/common/logger"
	"clarity-agent/internal/models"
)

const StageName = "assess-risk"

var (
	ErrInvalidRiskPattern   = errors.New("INVALID_RISK_PATTERN")
	ErrRiskAssessmentFailed = errors.New("RISK_ASSESSMENT_FAILURE")
)

type Input struct {
	Text string `json:"text"`
	// RecentHistory holds prior user turn texts, oldest first.
	RecentHistory []string `json:"recentHistory,omitempty"`
}

// Assessment is the stage's read-only verdict for one turn.
type Assessment struct {
	Level          models.RiskLevel `json:"level"`
	MatchedSignals []string         `json:"matchedSignals,omitempty"`
	Rationale      string           `json:"rationale"`
}

type moodPattern struct {
	label string
	re    *regexp.Regexp
}

type Handler struct {
	config   *Config
	crisis   []*regexp.Regexp
	elevated []moodPattern
	logger   logger.Logger
}

// NewHandler compiles the lexicon up front; a bad pattern is a
// deployment error, not a per-turn one.
func NewHandler(config *Config, log logger.Logger) (*Handler, error) {
	if config == nil {
		config = DefaultConfig()
	}

	h := &Handler{
		config: config,
		logger: log.WithFields(map[string]interface{}{"stage": StageName}),
	}

	for _, p := range config.CrisisPatterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("%w: crisis pattern %q: %v", ErrInvalidRiskPattern, p, err)
		}
		h.crisis = append(h.crisis, re)
	}

	labels := make([]string, 0, len(config.ElevatedPatterns))
	for label := range config.ElevatedPatterns {
		labels = append(labels, label)
	}
	sort.Strings(labels)
	for _, label := range labels {
		re, err := regexp.Compile(config.ElevatedPatterns[label])
		if err != nil {
			return nil, fmt.Errorf("%w: elevated pattern %q: %v", ErrInvalidRiskPattern, label, err)
		}
		h.elevated = append(h.elevated, moodPattern{label: label, re: re})
	}

	return h, nil
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Assessment, error) {
	ctx, cancel := context.WithTimeout(ctx, h.config.Timeout)
	defer cancel()
	return h.execute(ctx, input)
}

func (h *Handler) execute(ctx context.Context, input *Input) (*Assessment, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRiskAssessmentFailed, err)
	}

	crisisPhrases := h.matchCrisis(input.Text)
	moodLabels := h.matchMoods(input.Text)

	assessment := &Assessment{Level: models.RiskNone, Rationale: "no risk signals"}

	switch {
	case len(crisisPhrases) > 0:
		assessment.Level = models.RiskCrisis
		assessment.MatchedSignals = dedupeSorted(crisisPhrases)
		assessment.Rationale = "crisis signal matched: " + strings.Join(assessment.MatchedSignals, ", ")

	case len(moodLabels) > 0:
		assessment.Level = models.RiskElevated
		assessment.MatchedSignals = dedupeSorted(moodLabels)
		assessment.Rationale = "mood signals: " + strings.Join(assessment.MatchedSignals, ", ")

		if distressed := h.countDistressed(input.RecentHistory) + 1; distressed >= h.config.HistoryEscalationThreshold {
			assessment.Level = models.RiskCrisis
			assessment.Rationale = fmt.Sprintf("%d distressed turns within the last %d",
				distressed, h.config.HistoryWindow)
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRiskAssessmentFailed, err)
	}

	h.logger.Debug("risk assessed", map[string]interface{}{
		"level":       string(assessment.Level),
		"signalCount": len(assessment.MatchedSignals),
	})
	return assessment, nil
}

func (h *Handler) matchCrisis(text string) []string {
	var phrases []string
	for _, re := range h.crisis {
		for _, m := range re.FindAllString(text, -1) {
			phrases = append(phrases, strings.ToLower(m))
		}
	}
	return phrases
}

func (h *Handler) matchMoods(text string) []string {
	var labels []string
	for _, mood := range h.elevated {
		if mood.re.MatchString(text) {
			labels = append(labels, mood.label)
		}
	}
	return labels
}

// countDistressed scans the last HistoryWindow turns for any risk
// signal, crisis or mood.
func (h *Handler) countDistressed(history []string) int {
	if len(history) > h.config.HistoryWindow {
		history = history[len(history)-h.config.HistoryWindow:]
	}

	count := 0
	for _, text := range history {
		if len(h.matchCrisis(text)) > 0 || len(h.matchMoods(text)) > 0 {
			count++
		}
	}
	return count
}

func dedupeSorted(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}
