// internal/corpus/seed.go
package corpus

import "context"

// SeedPassages returns the built-in wellness knowledge base.
func SeedPassages() []Passage {
	return []Passage{
		{
			ID:    "kb-exam-stress",
			Title: "Managing exam stress",
			Body: "Feeling stressed before exams is normal. Break revision into short blocks, " +
				"test yourself with past questions, and plan each week so every exam gets focused time. " +
				"A short walk and a full night of sleep protect recall better than late cramming.",
			Tags: []string{"exams", "stress"},
		},
		{
			ID:    "kb-phone-focus",
			Title: "Phone-free focus",
			Body: "Put the phone in another room and disable notifications. Full-screen your work, " +
				"close unrelated tabs, and write a one-line target before you start. " +
				"If you are stuck, begin with a ten-minute quick win.",
			Tags: []string{"focus", "phone"},
		},
		{
			ID:    "kb-pomodoro",
			Title: "The pomodoro method",
			Body: "Work in 25-minute blocks with 5-minute breaks, and take a longer break after four blocks. " +
				"Real breaks away from the screen keep the next block sharp.",
			Tags: []string{"focus", "pomodoro", "timer"},
		},
		{
			ID:    "kb-sleep",
			Title: "Sleep and memory",
			Body: "Consistent sleep beats extra study hours. Keep a regular bedtime, avoid screens in the " +
				"last half hour, and park tomorrow's worries in a quick note before bed.",
			Tags: []string{"sleep"},
		},
		{
			ID:    "kb-breathing",
			Title: "Calming your breath",
			Body: "Try 4-7-8 breathing: inhale for four counts, hold for seven, exhale for eight. " +
				"One minute of slow 4-4-6 breathing also settles a racing mind before study or sleep.",
			Tags: []string{"anxiety", "breathing"},
		},
		{
			ID:    "kb-brain-dump",
			Title: "The two-minute brain dump",
			Body: "When everything feels like too much, dump every open task onto paper for two minutes. " +
				"Sort items into do now, schedule, or drop, then start a ten-minute focus block on one tiny step.",
			Tags: []string{"stress", "overwhelm"},
		},
		{
			ID:    "kb-journal",
			Title: "Why tiny journal entries help",
			Body: "A few honest lines a day track mood patterns and shrink worries. Note one small win " +
				"daily; a week of entries read back shows progress you cannot feel in the moment.",
			Tags: []string{"journal", "mood"},
		},
		{
			ID:    "kb-connect",
			Title: "Feeling connected",
			Body: "Loneliness fades with small touches. Send a thinking-of-you message to one person, " +
				"or sit near people in a library or cafe for a while. Shared quiet counts as company.",
			Tags: []string{"lonely", "connection"},
		},
	}
}

// Seed loads the built-in passages into an empty index. A non-empty
// index is left untouched so reseeding on restart is safe.
func Seed(ctx context.Context, idx Index) error {
	n, err := idx.Count(ctx)
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}
	return idx.Add(ctx, SeedPassages()...)
}
