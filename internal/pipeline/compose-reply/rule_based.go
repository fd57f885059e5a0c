// internal/pipeline/compose-reply/rule_based.go
package composereply

import (
	"context"
	"fmt"
	"strings"
	"unicode"

	"clarity-agent/internal/common/logger"
	"clarity-agent/internal/corpus"
)

const (
	greetingReply = "Hi! I can help with focus routines, journaling, quick tips, or a weekly summary."
	goodbyeReply  = "Take care! Come back anytime."
	notSureReply  = "I'm not fully sure yet, but I can help you set a 10-minute focus block or record a one-line journal."
	degradedAck   = "I didn't quite catch that, but I'm here. Want to tell me a bit more about what's going on?"
)

var moodTitles = map[string]string{
	"anxious":  "It makes sense to feel anxious.",
	"sad":      "I'm sorry you're feeling low.",
	"stressed": "That sounds like a lot to carry.",
	"lonely":   "Feeling disconnected can sting.",
}

var moodSteps = map[string][2]string{
	"anxious":  {"Try 4-7-8 breathing once.", "Write the top worry and a 10-minute first step."},
	"sad":      {"Do one gentle thing: water, stretch, or step outside.", "Note one small win from today."},
	"stressed": {"Dump everything into a quick 2-minute brain-dump.", "Pick a single 10-minute task and start a timer."},
	"lonely":   {"Send a 'thinking of you' message to one person.", "Sit near people (library/cafe) for 15–20 minutes."},
}

const defaultMoodTitle = "I'm listening."

var defaultMoodSteps = [2]string{"Take a slow 4-4-6 breath.", "Pick a tiny next step."}

var focusPhoneTips = []string{
	"Put phone in another room; disable notifications.",
	"Full-screen your work; close unrelated tabs.",
	"Run 10–25 min blocks (Pomodoro 25/5); take real breaks.",
	"Write a 1-line target before you start.",
	"If stuck, start with a 10-minute 'quick win'.",
}

var stressTips = []string{
	"2-minute brain-dump to park everything.",
	"Sort items: do now (<10m), schedule, or drop.",
	"Breathe 4-4-6 for one minute.",
	"Pick one tiny next step and start a 10-minute focus block.",
}

// Softening pairs applied in order; longer forms come before their
// stems so the stem replacement cannot preempt them.
var softenings = []struct{ harsh, kinder string }{
	{"failing", "not going the way I hoped"},
	{"fail", "not going as planned"},
	{"stupid", "discouraged"},
	{"idiot", "really frustrated"},
	{"hopeless", "really tough"},
	{"useless", "stuck"},
}

// RuleBasedComposer builds deterministic replies from small content
// tables. It never fails and needs no backing service.
type RuleBasedComposer struct {
	logger logger.Logger
}

func NewRuleBasedComposer(log logger.Logger) *RuleBasedComposer {
	return &RuleBasedComposer{
		logger: log.WithFields(map[string]interface{}{"stage": StageName, "composer": SourceRuleBased}),
	}
}

func (c *RuleBasedComposer) Compose(ctx context.Context, input *Input) (*Reply, error) {
	text := c.text(input)
	c.logger.Debug("Reply composed", map[string]interface{}{
		"intent":   input.Intent,
		"mood":     input.Mood,
		"passages": len(input.Passages),
	})
	return &Reply{Text: text, Source: SourceRuleBased}, nil
}

func (c *RuleBasedComposer) text(input *Input) string {
	if input.Clarification != nil {
		return clarificationPrompt(input.Clarification)
	}
	if input.Degraded {
		return degradedAck
	}

	switch input.Intent {
	case "greeting":
		return greetingReply
	case "goodbye":
		return goodbyeReply
	case "focus_phone_tips":
		return tipsReply("Focus without your phone — quick playbook", focusPhoneTips)
	case "stress_tips":
		return tipsReply("Handling stress — try these", stressTips)
	case "rewrite_kindly":
		return kindRewrite(rewriteBody(input))
	}

	if input.Mood != "" {
		return empathetic(input.Mood, input.Passages)
	}
	if len(input.Passages) > 0 {
		return passageReply(input.Passages)
	}
	return notSureReply
}

// empathetic acknowledges the mood, offers two tiny steps, and weaves
// in the best grounding passage when one was retrieved.
func empathetic(mood string, passages []corpus.ScoredPassage) string {
	title, ok := moodTitles[mood]
	if !ok {
		title = defaultMoodTitle
	}
	steps, ok := moodSteps[mood]
	if !ok {
		steps = defaultMoodSteps
	}

	var b strings.Builder
	fmt.Fprintf(&b, "**%s**\n\n", title)
	b.WriteString("Two tiny moves to try:\n")
	fmt.Fprintf(&b, "1) %s\n", steps[0])
	fmt.Fprintf(&b, "2) %s\n", steps[1])
	if len(passages) > 0 {
		fmt.Fprintf(&b, "\n%s\n", passages[0].Text())
	}
	b.WriteString("\nIf it helps, I can start a 10-minute focus timer or add a quick journal note.")
	return b.String()
}

func tipsReply(header string, tips []string) string {
	lines := make([]string, 0, len(tips))
	for _, t := range tips {
		lines = append(lines, "- "+t)
	}
	return "**" + header + "**\n\n" + strings.Join(lines, "\n")
}

func passageReply(passages []corpus.ScoredPassage) string {
	chunks := make([]string, 0, len(passages))
	for _, p := range passages {
		chunks = append(chunks, p.Text())
	}
	return strings.Join(chunks, "\n\n") + "\n\n*Want me to tailor a tiny 3-step plan for today?*"
}

// rewriteBody prefers the extracted slot and falls back to whatever
// follows the first colon of the raw text.
func rewriteBody(input *Input) string {
	if body, ok := input.Slots["rewrite_text"]; ok && strings.TrimSpace(body) != "" {
		return body
	}
	if i := strings.Index(input.Text, ":"); i >= 0 {
		return input.Text[i+1:]
	}
	return input.Text
}

func kindRewrite(body string) string {
	s := strings.TrimSpace(body)
	if s == "" {
		return "Here's a gentler way to put that: I'm having a hard time right now, but I'm learning and trying again."
	}
	out := s
	for _, r := range softenings {
		out = strings.ReplaceAll(out, r.harsh, r.kinder)
		out = strings.ReplaceAll(out, capitalize(r.harsh), r.kinder)
	}
	return "Here's a kinder way to put that:\n\n**\"" + out + ".\"**\n\nYou're not alone—progress is messy. What's one tiny step you could try next?"
}

func clarificationPrompt(c *Clarification) string {
	if len(c.Fields) == 0 {
		return "I can't run that one yet. I can help with the focus timer, journaling, or a study plan instead."
	}
	fields := make([]string, len(c.Fields))
	for i, f := range c.Fields {
		fields[i] = humanize(f)
	}
	return fmt.Sprintf("I can set up %s once I know: %s. One line is plenty.",
		humanize(c.Tool), strings.Join(fields, ", "))
}

func humanize(name string) string {
	return strings.ReplaceAll(name, "_", " ")
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	r := []rune(s)
	r[0] = unicode.ToUpper(r[0])
	return string(r)
}
