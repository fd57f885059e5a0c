// internal/tools/focus-timer/timer.go
//
// Package focustimer keeps one focus (pomodoro) timer per conversation
// in Redis. Starting is idempotent: a second start while a timer is
// running returns the existing timer instead of resetting it.
package focustimer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"clarity-agent/internal/common/logger"
)

// ErrTimerBackend wraps Redis failures so callers can treat the timer
// as temporarily unavailable rather than broken input.
var ErrTimerBackend = errors.New("TIMER_BACKEND_ERROR")

const (
	statusRunning = "running"
	statusPaused  = "paused"
)

// timerState is the JSON document stored per conversation.
type timerState struct {
	Status           string    `json:"status"`
	DurationSeconds  int       `json:"durationSeconds"`
	StartedAt        time.Time `json:"startedAt"`
	EndsAt           time.Time `json:"endsAt,omitempty"`
	RemainingSeconds int       `json:"remainingSeconds,omitempty"`
}

// Snapshot is a point-in-time view of a conversation's timer.
type Snapshot struct {
	// State is one of idle, running, paused, finished.
	State            string  `json:"state"`
	DurationMinutes  int     `json:"durationMinutes,omitempty"`
	RemainingSeconds int     `json:"remainingSeconds,omitempty"`
	// Remaining is rendered as MM:SS for user-facing messages.
	Remaining     string  `json:"remaining,omitempty"`
	ProgressRatio float64 `json:"progressRatio"`
	// AlreadyRunning marks a start or resume that found the timer
	// already in motion and left it untouched.
	AlreadyRunning bool `json:"alreadyRunning,omitempty"`
}

// Timer manages per-conversation focus timers on top of Redis.
type Timer struct {
	config *Config
	client *redis.Client
	logger logger.Logger
	now    func() time.Time
}

func NewTimer(cfg *Config, client *redis.Client, log logger.Logger) *Timer {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	return &Timer{
		config: cfg,
		client: client,
		logger: log.WithFields(map[string]interface{}{"component": "focus-timer"}),
		now:    time.Now,
	}
}

// Start begins a timer of the given length, flooring at MinSeconds and
// capping at MaxMinutes. If a timer is already running or paused, the
// existing timer is returned untouched with AlreadyRunning set.
func (t *Timer) Start(ctx context.Context, conversationID string, minutes int) (*Snapshot, error) {
	now := t.now()

	state, err := t.load(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if state != nil {
		snap := t.snapshot(state, now)
		if snap.State == statusRunning || snap.State == statusPaused {
			snap.AlreadyRunning = true
			return snap, nil
		}
		// A finished timer that was never acknowledged is replaced.
	}

	seconds := minutes * 60
	if seconds < t.config.MinSeconds {
		seconds = t.config.MinSeconds
	}
	if t.config.MaxMinutes > 0 && seconds > t.config.MaxMinutes*60 {
		seconds = t.config.MaxMinutes * 60
	}

	state = &timerState{
		Status:          statusRunning,
		DurationSeconds: seconds,
		StartedAt:       now,
		EndsAt:          now.Add(time.Duration(seconds) * time.Second),
	}
	if err := t.save(ctx, conversationID, state); err != nil {
		return nil, err
	}

	t.logger.Debug("focus timer started", map[string]interface{}{
		"conversationId":  conversationID,
		"durationSeconds": seconds,
	})
	return t.snapshot(state, now), nil
}

// Stop clears the conversation's timer. It reports whether a live
// timer was actually stopped, so callers can word the reply.
func (t *Timer) Stop(ctx context.Context, conversationID string) (bool, error) {
	state, err := t.load(ctx, conversationID)
	if err != nil {
		return false, err
	}
	if state == nil {
		return false, nil
	}

	snap := t.snapshot(state, t.now())
	if err := t.clear(ctx, conversationID); err != nil {
		return false, err
	}
	return snap.State == statusRunning || snap.State == statusPaused, nil
}

// Status reports the current timer. A timer whose time has run out is
// reported as finished exactly once, then cleared.
func (t *Timer) Status(ctx context.Context, conversationID string) (*Snapshot, error) {
	state, err := t.load(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if state == nil {
		return idleSnapshot(), nil
	}

	snap := t.snapshot(state, t.now())
	if snap.State == "finished" {
		if err := t.clear(ctx, conversationID); err != nil {
			return nil, err
		}
	}
	return snap, nil
}

// Pause freezes a running timer at its current remaining time. Pausing
// an already-paused timer is a no-op that returns the paused state.
func (t *Timer) Pause(ctx context.Context, conversationID string) (*Snapshot, error) {
	now := t.now()

	state, err := t.load(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if state == nil {
		return idleSnapshot(), nil
	}
	if state.Status == statusPaused {
		return t.snapshot(state, now), nil
	}

	snap := t.snapshot(state, now)
	if snap.State == "finished" {
		if err := t.clear(ctx, conversationID); err != nil {
			return nil, err
		}
		return snap, nil
	}

	state.Status = statusPaused
	state.RemainingSeconds = snap.RemainingSeconds
	state.EndsAt = time.Time{}
	if err := t.save(ctx, conversationID, state); err != nil {
		return nil, err
	}
	return t.snapshot(state, now), nil
}

// Resume restarts a paused timer from its frozen remaining time. On a
// timer that is already running, it reports AlreadyRunning.
func (t *Timer) Resume(ctx context.Context, conversationID string) (*Snapshot, error) {
	now := t.now()

	state, err := t.load(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if state == nil {
		return idleSnapshot(), nil
	}
	if state.Status == statusRunning {
		snap := t.snapshot(state, now)
		if snap.State == "finished" {
			if err := t.clear(ctx, conversationID); err != nil {
				return nil, err
			}
			return snap, nil
		}
		snap.AlreadyRunning = true
		return snap, nil
	}

	state.Status = statusRunning
	state.EndsAt = now.Add(time.Duration(state.RemainingSeconds) * time.Second)
	state.RemainingSeconds = 0
	if err := t.save(ctx, conversationID, state); err != nil {
		return nil, err
	}
	return t.snapshot(state, now), nil
}

// snapshot derives the externally visible view of a stored state.
func (t *Timer) snapshot(state *timerState, now time.Time) *Snapshot {
	total := state.DurationSeconds
	if total < 1 {
		total = 1
	}

	remaining := state.RemainingSeconds
	if state.Status == statusRunning {
		remaining = int(state.EndsAt.Sub(now) / time.Second)
	}
	if remaining <= 0 && state.Status == statusRunning {
		return &Snapshot{
			State:           "finished",
			DurationMinutes: state.DurationSeconds / 60,
			Remaining:       formatClock(0),
			ProgressRatio:   1.0,
		}
	}
	if remaining < 0 {
		remaining = 0
	}

	ratio := float64(total-remaining) / float64(total)
	if ratio < 0 {
		ratio = 0
	}
	if ratio > 1 {
		ratio = 1
	}

	return &Snapshot{
		State:            state.Status,
		DurationMinutes:  state.DurationSeconds / 60,
		RemainingSeconds: remaining,
		Remaining:        formatClock(remaining),
		ProgressRatio:    ratio,
	}
}

func idleSnapshot() *Snapshot {
	return &Snapshot{State: "idle"}
}

func formatClock(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%02d:%02d", seconds/60, seconds%60)
}

func timerKey(conversationID string) string {
	return fmt.Sprintf("timer:%s", conversationID)
}

func (t *Timer) load(ctx context.Context, conversationID string) (*timerState, error) {
	raw, err := t.client.Get(ctx, timerKey(conversationID)).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: load timer state: %v", ErrTimerBackend, err)
	}

	var state timerState
	if err := json.Unmarshal([]byte(raw), &state); err != nil {
		return nil, fmt.Errorf("%w: decode timer state: %v", ErrTimerBackend, err)
	}
	return &state, nil
}

func (t *Timer) save(ctx context.Context, conversationID string, state *timerState) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("%w: encode timer state: %v", ErrTimerBackend, err)
	}
	if err := t.client.Set(ctx, timerKey(conversationID), data, t.config.StateTTL).Err(); err != nil {
		return fmt.Errorf("%w: store timer state: %v", ErrTimerBackend, err)
	}
	return nil
}

func (t *Timer) clear(ctx context.Context, conversationID string) error {
	if err := t.client.Del(ctx, timerKey(conversationID)).Err(); err != nil {
		return fmt.Errorf("%w: clear timer state: %v", ErrTimerBackend, err)
	}
	return nil
}
