// pkg/tools/definitions.go
package tools

// Built-in tool definitions. A registry file can override any of these at
// deploy time; the schemas here are the fallback contract.

func emptyObjectSchema() map[string]interface{} {
	return map[string]interface{}{
		"type":                 "object",
		"properties":           map[string]interface{}{},
		"additionalProperties": false,
	}
}

// StartTimerDefinition starts the per-conversation focus timer.
func StartTimerDefinition() Definition {
	return Definition{
		Name:        "start_timer",
		DisplayName: "Start Focus Timer",
		Description: "Starts a focus timer for the conversation. Starting an already-running timer returns its current state.",
		Category:    "focus",
		Version:     "1.0.0",
		InputSchema: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"duration_minutes": map[string]interface{}{
					"type":    "number",
					"minimum": 1,
				},
			},
			"required":             []interface{}{"duration_minutes"},
			"additionalProperties": false,
		},
		OutputSchema: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"status":           map[string]interface{}{"type": "string"},
				"duration_minutes": map[string]interface{}{"type": "number"},
				"remaining":        map[string]interface{}{"type": "string"},
			},
		},
		Timeout:    "5s",
		Idempotent: true,
		Tags:       []string{"timer", "pomodoro"},
	}
}

// StopTimerDefinition stops and clears the focus timer.
func StopTimerDefinition() Definition {
	return Definition{
		Name:        "stop_timer",
		DisplayName: "Stop Focus Timer",
		Description: "Stops the running focus timer. Stopping an idle timer reports idle.",
		Category:    "focus",
		Version:     "1.0.0",
		InputSchema: emptyObjectSchema(),
		OutputSchema: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"status": map[string]interface{}{"type": "string"},
			},
		},
		Timeout:    "5s",
		Idempotent: true,
		Tags:       []string{"timer", "pomodoro"},
	}
}

// TimerStatusDefinition reports timer progress.
func TimerStatusDefinition() Definition {
	return Definition{
		Name:        "timer_status",
		DisplayName: "Focus Timer Status",
		Description: "Reports the focus timer's progress and remaining time.",
		Category:    "focus",
		Version:     "1.0.0",
		InputSchema: emptyObjectSchema(),
		OutputSchema: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"status":         map[string]interface{}{"type": "string"},
				"remaining":      map[string]interface{}{"type": "string"},
				"progress_ratio": map[string]interface{}{"type": "number"},
			},
		},
		Timeout:    "5s",
		Idempotent: true,
		Tags:       []string{"timer", "pomodoro"},
	}
}

// PauseTimerDefinition pauses a running timer.
func PauseTimerDefinition() Definition {
	return Definition{
		Name:        "pause_timer",
		DisplayName: "Pause Focus Timer",
		Description: "Pauses the running focus timer, keeping its remaining time.",
		Category:    "focus",
		Version:     "1.0.0",
		InputSchema: emptyObjectSchema(),
		Timeout:     "5s",
		Tags:        []string{"timer", "pomodoro"},
	}
}

// ResumeTimerDefinition resumes a paused timer.
func ResumeTimerDefinition() Definition {
	return Definition{
		Name:        "resume_timer",
		DisplayName: "Resume Focus Timer",
		Description: "Resumes a paused focus timer.",
		Category:    "focus",
		Version:     "1.0.0",
		InputSchema: emptyObjectSchema(),
		Timeout:     "5s",
		Tags:        []string{"timer", "pomodoro"},
	}
}

// SaveJournalEntryDefinition persists a journal entry.
func SaveJournalEntryDefinition() Definition {
	return Definition{
		Name:        "save_journal_entry",
		DisplayName: "Save Journal Entry",
		Description: "Saves a journal entry with its detected mood and theme tags.",
		Category:    "journal",
		Version:     "1.0.0",
		InputSchema: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"text": map[string]interface{}{
					"type":      "string",
					"minLength": 1,
					"maxLength": 4000,
				},
				"mood": map[string]interface{}{
					"type": "string",
				},
			},
			"required":             []interface{}{"text"},
			"additionalProperties": false,
		},
		OutputSchema: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"entry_id": map[string]interface{}{"type": "string"},
				"mood":     map[string]interface{}{"type": "string"},
			},
		},
		Timeout: "5s",
		Tags:    []string{"journal", "mood"},
	}
}

// JournalSummaryDefinition rolls up the recent journal.
func JournalSummaryDefinition() Definition {
	return Definition{
		Name:        "journal_summary",
		DisplayName: "Journal Summary",
		Description: "Summarizes the last week of journal entries: counts, themes, and a small next step.",
		Category:    "journal",
		Version:     "1.0.0",
		InputSchema: emptyObjectSchema(),
		Timeout:     "5s",
		Idempotent:  true,
		Tags:        []string{"journal", "summary"},
	}
}

// CreateStudyPlanDefinition builds a deterministic study sprint.
func CreateStudyPlanDefinition() Definition {
	return Definition{
		Name:        "create_study_plan",
		DisplayName: "Create Study Plan",
		Description: "Builds a day-by-day study sprint for a subject with recall, practice, and review blocks.",
		Category:    "planning",
		Version:     "1.0.0",
		InputSchema: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"subject": map[string]interface{}{
					"type":      "string",
					"minLength": 1,
					"maxLength": 120,
				},
				"days": map[string]interface{}{
					"type":    "integer",
					"minimum": 1,
					"maximum": 30,
				},
				"hours_per_day": map[string]interface{}{
					"type":    "number",
					"minimum": 0.5,
					"maximum": 12,
				},
			},
			"required":             []interface{}{"subject", "days", "hours_per_day"},
			"additionalProperties": false,
		},
		Timeout:    "5s",
		Idempotent: true,
		Tags:       []string{"study", "planning"},
	}
}
