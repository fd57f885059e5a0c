// internal/pipeline/classify-intent/rules.go
package classifyintent

import (
	"regexp"
	"strings"
)

// Intent labels emitted by the classifier.
const (
	IntentRewriteKindly  = "rewrite_kindly"
	IntentJournalAdd     = "journal_add"
	IntentJournalSummary = "journal_summary"
	IntentFocusPhoneTips = "focus_phone_tips"
	IntentPomodoroStart  = "pomodoro_start"
	IntentPomodoroStop   = "pomodoro_stop"
	IntentPomodoroPause  = "pomodoro_pause"
	IntentPomodoroResume = "pomodoro_resume"
	IntentPomodoroStatus = "pomodoro_status"
	IntentExamStudyPlan  = "exam_study_plan"
	IntentGreeting       = "greeting"
	IntentGoodbye        = "goodbye"
	IntentAffirm         = "affirm"
	IntentVentDistress   = "vent_distress"
	IntentUnknown        = "unknown"
)

// Rule patterns operate on the trimmed, lowercased text. Most-specific
// rules come first; explicit commands carry more confidence than
// implicit signals.
var (
	journalAddRx     = regexp.MustCompile(`\b(add|save|put|log)\b.*\b(journal|note)\b`)
	journalSummaryRx = regexp.MustCompile(`\b(summarize|summary)\b.*\b(week|weekly)\b`)
	startTimerRx     = regexp.MustCompile(`\b(start|begin|run|set)\b.*\b(timer|pomodoro)\b`)
	stopTimerRx      = regexp.MustCompile(`\b(stop|end|cancel)\b.*\b(timer|pomodoro)\b`)
	pauseTimerRx     = regexp.MustCompile(`\b(pause|hold)\b.*\b(timer|pomodoro)\b`)
	resumeTimerRx    = regexp.MustCompile(`\b(resume|continue|unpause)\b.*\b(timer|pomodoro)\b`)
	statusTimerRx    = regexp.MustCompile(`\b(status|remaining|how much|left)\b.*\b(timer|pomodoro)\b`)
	durationHintRx   = regexp.MustCompile(`(\d+)\s*(min|minute|minutes|m)\b`)
	greetingRx       = regexp.MustCompile(`\b(hi|hello|hey)\b`)
	goodbyeRx        = regexp.MustCompile(`\b(bye|goodbye|see you)\b`)
	affirmRx         = regexp.MustCompile(`^\s*(sure|ok|okay|yes|yeah|yup|go ahead|please)\s*\.?\s*$`)
)

type rule struct {
	label      string
	confidence float64
	match      func(t string) bool
}

// intentRules returns the rule set in evaluation order. The mood
// matcher arrives compiled from the handler's config.
func intentRules(moods []moodPattern) []rule {
	return []rule{
		{IntentRewriteKindly, 0.95, func(t string) bool {
			return strings.HasPrefix(t, "rewrite kindly") || strings.HasPrefix(t, "paraphrase kindly")
		}},
		{IntentJournalAdd, 0.9, journalAddRx.MatchString},
		{IntentJournalSummary, 0.9, func(t string) bool {
			return journalSummaryRx.MatchString(t) || t == "summarize my week"
		}},
		{IntentFocusPhoneTips, 0.85, matchFocusPhoneTips},
		{IntentPomodoroStart, 0.9, func(t string) bool {
			if strings.Contains(t, "/timer") || startTimerRx.MatchString(t) {
				return true
			}
			return (strings.Contains(t, "timer") || strings.Contains(t, "pomodoro")) &&
				durationHintRx.MatchString(t)
		}},
		{IntentPomodoroStop, 0.9, stopTimerRx.MatchString},
		{IntentPomodoroPause, 0.9, pauseTimerRx.MatchString},
		{IntentPomodoroResume, 0.9, resumeTimerRx.MatchString},
		{IntentPomodoroStatus, 0.85, statusTimerRx.MatchString},
		{IntentExamStudyPlan, 0.7, func(t string) bool {
			return strings.Contains(t, "exam") || strings.Contains(t, "test") ||
				strings.Contains(t, "study plan") || strings.Contains(t, "revision")
		}},
		{IntentGreeting, 0.6, greetingRx.MatchString},
		{IntentGoodbye, 0.6, goodbyeRx.MatchString},
		{IntentAffirm, 0.8, affirmRx.MatchString},
		{IntentVentDistress, 0.8, func(t string) bool {
			for _, mood := range moods {
				if mood.re.MatchString(t) {
					return true
				}
			}
			return false
		}},
	}
}

// matchFocusPhoneTips requires a focus word, a phone word, and a
// negation, so plain timer requests mentioning focus stay out.
func matchFocusPhoneTips(t string) bool {
	if !strings.Contains(t, "focus") {
		return false
	}
	phone := strings.Contains(t, "phone") || strings.Contains(t, "mobile")
	neg := strings.Contains(t, "without") || strings.Contains(t, "w/o") ||
		strings.Contains(t, "no ")
	return phone && neg
}
