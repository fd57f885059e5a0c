// internal/tools/study-plan/executor.go
package studyplan

import (
	"context"

	"clarity-agent/pkg/tools"
)

// Register wires create_study_plan into the registry.
func Register(reg *tools.Registry) error {
	return reg.Register(tools.CreateStudyPlanDefinition(), Executor())
}

// Executor handles create_study_plan.
func Executor() tools.Executor {
	return tools.ExecutorFunc(func(ctx context.Context, inv *tools.Invocation) (*tools.Result, error) {
		subject := DefaultSubject
		if s, ok := inv.Arguments["subject"].(string); ok && s != "" {
			subject = s
		}
		days := DefaultDays
		if d, ok := tools.IntArg(inv.Arguments, "days"); ok {
			days = d
		}
		hours := DefaultHoursPerDay
		if h, ok := tools.FloatArg(inv.Arguments, "hours_per_day"); ok {
			hours = h
		}

		return &tools.Result{
			Message: BuildPlan(subject, days, hours),
			Data: map[string]interface{}{
				"subject":       subject,
				"days":          days,
				"hours_per_day": hours,
				"daily_minutes": DailyMinutes(hours),
			},
		}, nil
	})
}
