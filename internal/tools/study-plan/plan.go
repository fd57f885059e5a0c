// internal/tools/study-plan/plan.go
//
// Package studyplan builds deterministic day-by-day study sprints.
// The split is fixed: 45% active recall, 35% practice, 20% review of
// each day's minutes, with an optional mini-mock on even days.
package studyplan

import (
	"fmt"
	"strings"
	"unicode"
)

const (
	DefaultSubject     = "your subject"
	DefaultDays        = 3
	DefaultHoursPerDay = 2.0

	minDays        = 1
	minHoursPerDay = 1.0
)

// BuildPlan renders a study sprint for the subject. Days floor at 1
// and hours per day at 1.0 so every plan has workable blocks.
func BuildPlan(subject string, days int, hoursPerDay float64) string {
	subject = strings.TrimSpace(subject)
	if subject == "" {
		subject = DefaultSubject
	}
	if days < minDays {
		days = minDays
	}
	if hoursPerDay < minHoursPerDay {
		hoursPerDay = minHoursPerDay
	}
	perDay := int(hoursPerDay * 60)

	var lines []string
	for d := 1; d <= days; d++ {
		lines = append(lines,
			fmt.Sprintf("**Day %d — %s**", d, titleCase(subject)),
			fmt.Sprintf("- %d min **Active recall**: brain dump → read to fill gaps.", int(float64(perDay)*0.45)),
			fmt.Sprintf("- %d min **Practice**: past questions/problems; keep an error log.", int(float64(perDay)*0.35)),
			fmt.Sprintf("- %d min **Review**: 1-page summary or flashcards.", int(float64(perDay)*0.20)),
			"- Breaks: 5–10 min between blocks; water + stretch.",
		)
		if d%2 == 0 && d != days {
			lines = append(lines, "- Optional 20-min **mini-mock** in the evening.")
		}
		lines = append(lines, "")
	}
	lines = append(lines, "**Exam-eve tips**: light review, pack materials, 20–30 min phone-free wind-down.")
	return strings.Join(lines, "\n")
}

// DailyMinutes reports the total planned minutes per day after the
// same flooring BuildPlan applies.
func DailyMinutes(hoursPerDay float64) int {
	if hoursPerDay < minHoursPerDay {
		hoursPerDay = minHoursPerDay
	}
	return int(hoursPerDay * 60)
}

func titleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		runes := []rune(strings.ToLower(w))
		runes[0] = unicode.ToUpper(runes[0])
		words[i] = string(runes)
	}
	return strings.Join(words, " ")
}
