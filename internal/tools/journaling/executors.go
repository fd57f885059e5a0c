// internal/tools/journaling/executors.go
//
// Package journaling exposes the journal store as conversational
// tools: saving an entry with detected theme tags, and a weekly
// roll-up.
package journaling

import (
	"context"
	"fmt"
	"strings"

	"clarity-agent/internal/common/logger"
	"clarity-agent/internal/journal"
	"clarity-agent/pkg/tools"
)

// themeKeywords maps a theme tag to the substrings that signal it.
// Order determines tag order on an entry.
var themeKeywords = []struct {
	tag      string
	keywords []string
}{
	{"exams", []string{"exam", "test", "quiz", "assignment"}},
	{"sleep", []string{"sleep", "tired"}},
	{"focus", []string{"focus", "phone", "distraction"}},
	{"anxiety", []string{"anxiety", "panic"}},
	{"stress", []string{"stress", "overwhelm"}},
}

// Executors binds the journal tools to a journal store.
type Executors struct {
	store  *journal.Store
	config *Config
	logger logger.Logger
}

func NewExecutors(store *journal.Store, cfg *Config, log logger.Logger) *Executors {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	return &Executors{
		store:  store,
		config: cfg,
		logger: log.WithFields(map[string]interface{}{"component": "journal-tools"}),
	}
}

// Register wires save_journal_entry and journal_summary into the
// registry.
func Register(reg *tools.Registry, e *Executors) error {
	if err := reg.Register(tools.SaveJournalEntryDefinition(), e.SaveEntryExecutor()); err != nil {
		return err
	}
	return reg.Register(tools.JournalSummaryDefinition(), e.SummaryExecutor())
}

// SaveEntryExecutor handles save_journal_entry.
func (e *Executors) SaveEntryExecutor() tools.Executor {
	return tools.ExecutorFunc(func(ctx context.Context, inv *tools.Invocation) (*tools.Result, error) {
		text, _ := inv.Arguments["text"].(string)
		mood, _ := inv.Arguments["mood"].(string)
		tags := detectThemeTags(text, e.config.MaxTags)

		entry, err := e.store.AddEntry(ctx, inv.ConversationID, text, mood, tags)
		if err != nil {
			return nil, err
		}

		return &tools.Result{
			Message: "Added to your journal. Want a weekly summary?",
			Data: map[string]interface{}{
				"entry_id": entry.ID,
				"mood":     entry.Mood,
				"tags":     tags,
			},
		}, nil
	})
}

// SummaryExecutor handles journal_summary.
func (e *Executors) SummaryExecutor() tools.Executor {
	return tools.ExecutorFunc(func(ctx context.Context, inv *tools.Invocation) (*tools.Result, error) {
		sum, err := e.store.WeeklySummary(ctx, inv.ConversationID, e.config.SummaryDays)
		if err != nil {
			return nil, err
		}

		if sum.TotalEntries == 0 {
			return &tools.Result{
				Message: "No journal entries yet. Try writing a one-line note each day—then I can summarize your week.",
				Data:    map[string]interface{}{"total_entries": 0},
			}, nil
		}

		return &tools.Result{
			Message: renderSummary(sum),
			Data: map[string]interface{}{
				"total_entries": sum.TotalEntries,
				"active_days":   sum.ActiveDays,
				"themes":        sum.Themes,
			},
		}, nil
	})
}

// detectThemeTags scans the entry text for theme keywords, capped at
// max tags.
func detectThemeTags(text string, max int) []string {
	t := strings.ToLower(text)
	tags := []string{}
	for _, theme := range themeKeywords {
		if len(tags) >= max {
			break
		}
		for _, kw := range theme.keywords {
			if strings.Contains(t, kw) {
				tags = append(tags, theme.tag)
				break
			}
		}
	}
	return tags
}

func renderSummary(sum *journal.Summary) string {
	themes := "varied"
	if len(sum.Themes) > 0 {
		themes = strings.Join(sum.Themes, ", ")
	}

	lines := []string{
		"**This week at a glance**",
		fmt.Sprintf("- %d entries across %d day(s). Latest entry: %s.",
			sum.TotalEntries, sum.ActiveDays, sum.LatestAt.Format("Mon Jan 02 15:04")),
		fmt.Sprintf("- Common themes: %s.", themes),
		fmt.Sprintf("- Recent note: _%s_", sum.LatestText),
		"",
		"**Tiny next steps**",
		"- Keep a one-line journal daily for momentum.",
		"- Run one 10–25 minute focus block on something that matters.",
		"- If stressed: brain-dump for 2 minutes, then choose one small next move.",
	}
	return strings.Join(lines, "\n")
}
