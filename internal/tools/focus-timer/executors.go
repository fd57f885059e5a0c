// internal/tools/focus-timer/executors.go
package focustimer

import (
	"context"
	"fmt"

	"clarity-agent/pkg/tools"
)

// Register wires the five timer tools into the registry against a
// shared Timer instance.
func Register(reg *tools.Registry, t *Timer) error {
	pairs := []struct {
		def  tools.Definition
		exec tools.Executor
	}{
		{tools.StartTimerDefinition(), t.StartExecutor()},
		{tools.StopTimerDefinition(), t.StopExecutor()},
		{tools.TimerStatusDefinition(), t.StatusExecutor()},
		{tools.PauseTimerDefinition(), t.PauseExecutor()},
		{tools.ResumeTimerDefinition(), t.ResumeExecutor()},
	}
	for _, p := range pairs {
		if err := reg.Register(p.def, p.exec); err != nil {
			return err
		}
	}
	return nil
}

// StartExecutor handles start_timer.
func (t *Timer) StartExecutor() tools.Executor {
	return tools.ExecutorFunc(func(ctx context.Context, inv *tools.Invocation) (*tools.Result, error) {
		minutes := t.config.DefaultMinutes
		if n, ok := tools.IntArg(inv.Arguments, "duration_minutes"); ok {
			minutes = n
		}

		snap, err := t.Start(ctx, inv.ConversationID, minutes)
		if err != nil {
			return nil, err
		}

		message := fmt.Sprintf("Focus timer started for %d minutes.", snap.DurationMinutes)
		if snap.AlreadyRunning {
			if snap.State == statusPaused {
				message = fmt.Sprintf("Your focus timer is paused with %s remaining. Say resume to continue.", snap.Remaining)
			} else {
				message = fmt.Sprintf("A focus timer is already running with %s remaining.", snap.Remaining)
			}
		}

		return &tools.Result{
			Message: message,
			Data: map[string]interface{}{
				"status":           snap.State,
				"duration_minutes": snap.DurationMinutes,
				"remaining":        snap.Remaining,
			},
		}, nil
	})
}

// StopExecutor handles stop_timer.
func (t *Timer) StopExecutor() tools.Executor {
	return tools.ExecutorFunc(func(ctx context.Context, inv *tools.Invocation) (*tools.Result, error) {
		stopped, err := t.Stop(ctx, inv.ConversationID)
		if err != nil {
			return nil, err
		}

		message := "Timer is idle."
		status := "idle"
		if stopped {
			message = "Stopped the focus timer."
			status = "stopped"
		}
		return &tools.Result{
			Message: message,
			Data:    map[string]interface{}{"status": status},
		}, nil
	})
}

// StatusExecutor handles timer_status.
func (t *Timer) StatusExecutor() tools.Executor {
	return tools.ExecutorFunc(func(ctx context.Context, inv *tools.Invocation) (*tools.Result, error) {
		snap, err := t.Status(ctx, inv.ConversationID)
		if err != nil {
			return nil, err
		}
		return &tools.Result{
			Message: statusMessage(snap),
			Data: map[string]interface{}{
				"status":         snap.State,
				"remaining":      snap.Remaining,
				"progress_ratio": snap.ProgressRatio,
			},
		}, nil
	})
}

// PauseExecutor handles pause_timer.
func (t *Timer) PauseExecutor() tools.Executor {
	return tools.ExecutorFunc(func(ctx context.Context, inv *tools.Invocation) (*tools.Result, error) {
		snap, err := t.Pause(ctx, inv.ConversationID)
		if err != nil {
			return nil, err
		}
		return &tools.Result{
			Message: statusMessage(snap),
			Data: map[string]interface{}{
				"status":    snap.State,
				"remaining": snap.Remaining,
			},
		}, nil
	})
}

// ResumeExecutor handles resume_timer.
func (t *Timer) ResumeExecutor() tools.Executor {
	return tools.ExecutorFunc(func(ctx context.Context, inv *tools.Invocation) (*tools.Result, error) {
		snap, err := t.Resume(ctx, inv.ConversationID)
		if err != nil {
			return nil, err
		}

		var message string
		switch {
		case snap.State == "idle":
			message = "Timer is idle."
		case snap.State == "finished":
			message = "Time's up! Take a short break."
		case snap.AlreadyRunning:
			message = fmt.Sprintf("Timer is already running — %s remaining.", snap.Remaining)
		default:
			message = fmt.Sprintf("Resumed — %s remaining.", snap.Remaining)
		}
		return &tools.Result{
			Message: message,
			Data: map[string]interface{}{
				"status":    snap.State,
				"remaining": snap.Remaining,
			},
		}, nil
	})
}

// statusMessage mirrors the timer's spoken status lines.
func statusMessage(snap *Snapshot) string {
	switch snap.State {
	case "idle":
		return "Timer is idle."
	case "finished":
		return "Time's up! Take a short break."
	case statusPaused:
		return fmt.Sprintf("Paused — %s remaining.", snap.Remaining)
	default:
		return fmt.Sprintf("%s remaining.", snap.Remaining)
	}
}
