// pkg/tools/registry_test.go
package tools

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"clarity-agent/internal/common/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// ==========================
// Test Helper Functions
// ==========================

func createTestLogger(t *testing.T) logger.Logger {
	return logger.NewZapAdapter(zaptest.NewLogger(t))
}

func echoExecutor() Executor {
	return ExecutorFunc(func(_ context.Context, inv *Invocation) (*Result, error) {
		return &Result{
			Message: "ok",
			Data:    map[string]interface{}{"arguments": inv.Arguments},
		}, nil
	})
}

func newTestRegistry(t *testing.T) *Registry {
	reg := NewRegistry(createTestLogger(t))
	require.NoError(t, reg.Register(StartTimerDefinition(), echoExecutor()))
	require.NoError(t, reg.Register(StopTimerDefinition(), echoExecutor()))
	return reg
}

// ==========================
// Registration Tests
// ==========================

func TestRegistry_Register(t *testing.T) {
	tests := []struct {
		name    string
		def     Definition
		exec    Executor
		wantErr bool
		errMsg  string
	}{
		{
			name: "valid definition",
			def:  StartTimerDefinition(),
			exec: echoExecutor(),
		},
		{
			name:    "name not snake_case",
			def:     Definition{Name: "Start-Timer"},
			exec:    echoExecutor(),
			wantErr: true,
			errMsg:  "snake_case",
		},
		{
			name:    "empty name",
			def:     Definition{Name: ""},
			exec:    echoExecutor(),
			wantErr: true,
		},
		{
			name:    "nil executor",
			def:     StopTimerDefinition(),
			exec:    nil,
			wantErr: true,
			errMsg:  "executor is required",
		},
		{
			name: "uncompilable schema",
			def: Definition{
				Name: "broken_tool",
				InputSchema: map[string]interface{}{
					"type":       "object",
					"properties": "not an object",
				},
			},
			exec:    echoExecutor(),
			wantErr: true,
			errMsg:  "compile input schema",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reg := NewRegistry(createTestLogger(t))
			err := reg.Register(tt.def, tt.exec)

			if tt.wantErr {
				require.Error(t, err)
				if tt.errMsg != "" {
					assert.Contains(t, err.Error(), tt.errMsg)
				}
				assert.False(t, reg.Has(tt.def.Name))
			} else {
				require.NoError(t, err)
				assert.True(t, reg.Has(tt.def.Name))
			}
		})
	}
}

func TestRegistry_Register_Duplicate(t *testing.T) {
	reg := NewRegistry(createTestLogger(t))
	require.NoError(t, reg.Register(StartTimerDefinition(), echoExecutor()))

	err := reg.Register(StartTimerDefinition(), echoExecutor())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already registered")
}

func TestRegistry_BuiltinDefinitionsRegister(t *testing.T) {
	defs := []Definition{
		StartTimerDefinition(),
		StopTimerDefinition(),
		TimerStatusDefinition(),
		PauseTimerDefinition(),
		ResumeTimerDefinition(),
		SaveJournalEntryDefinition(),
		JournalSummaryDefinition(),
		CreateStudyPlanDefinition(),
	}

	reg := NewRegistry(createTestLogger(t))
	for _, def := range defs {
		assert.NoError(t, reg.Register(def, echoExecutor()), "definition %s must register cleanly", def.Name)
	}
	assert.Len(t, reg.List(), len(defs))
}

func TestRegistry_List_SortedByName(t *testing.T) {
	reg := newTestRegistry(t)
	require.NoError(t, reg.Register(CreateStudyPlanDefinition(), echoExecutor()))

	defs := reg.List()
	require.Len(t, defs, 3)
	assert.Equal(t, "create_study_plan", defs[0].Name)
	assert.Equal(t, "start_timer", defs[1].Name)
	assert.Equal(t, "stop_timer", defs[2].Name)
}

// ==========================
// Invoke Tests
// ==========================

func TestRegistry_Invoke_Success(t *testing.T) {
	reg := newTestRegistry(t)

	result, err := reg.Invoke(context.Background(), "start_timer", &Invocation{
		ConversationID: "conv-1",
		Arguments:      map[string]interface{}{"duration_minutes": 25},
	})

	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, "ok", result.Message)
}

func TestRegistry_Invoke_UnknownTool(t *testing.T) {
	reg := newTestRegistry(t)

	_, err := reg.Invoke(context.Background(), "summon_dragon", &Invocation{ConversationID: "conv-1"})

	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnknownTool))
	assert.Contains(t, err.Error(), "summon_dragon")
}

func TestRegistry_Invoke_SchemaValidation(t *testing.T) {
	tests := []struct {
		name       string
		tool       string
		args       map[string]interface{}
		wantField  string
		wantDetail string
	}{
		{
			name:      "missing required argument",
			tool:      "start_timer",
			args:      map[string]interface{}{},
			wantField: "duration_minutes",
		},
		{
			name:      "wrong argument type",
			tool:      "start_timer",
			args:      map[string]interface{}{"duration_minutes": "twenty"},
			wantField: "duration_minutes",
		},
		{
			name:      "below minimum",
			tool:      "start_timer",
			args:      map[string]interface{}{"duration_minutes": 0},
			wantField: "duration_minutes",
		},
		{
			name: "unexpected argument rejected",
			tool: "stop_timer",
			args: map[string]interface{}{"force": true},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			executed := false
			reg := NewRegistry(createTestLogger(t))
			track := ExecutorFunc(func(_ context.Context, _ *Invocation) (*Result, error) {
				executed = true
				return &Result{Message: "ran"}, nil
			})
			require.NoError(t, reg.Register(StartTimerDefinition(), track))
			require.NoError(t, reg.Register(StopTimerDefinition(), track))

			_, err := reg.Invoke(context.Background(), tt.tool, &Invocation{
				ConversationID: "conv-1",
				Arguments:      tt.args,
			})

			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidArguments))
			assert.False(t, executed, "executor must never run on invalid arguments")

			var argErr *ArgumentError
			require.True(t, errors.As(err, &argErr))
			assert.Equal(t, tt.tool, argErr.Tool)
			assert.NotEmpty(t, argErr.Details)
			if tt.wantField != "" {
				assert.Contains(t, argErr.Fields, tt.wantField)
			}
		})
	}
}

func TestRegistry_Invoke_NilArgumentsTreatedAsEmpty(t *testing.T) {
	reg := newTestRegistry(t)

	// stop_timer takes no arguments, so nil passes its schema.
	result, err := reg.Invoke(context.Background(), "stop_timer", &Invocation{ConversationID: "conv-1"})
	require.NoError(t, err)
	assert.NotNil(t, result)

	// start_timer requires duration_minutes, so nil fails it.
	_, err = reg.Invoke(context.Background(), "start_timer", &Invocation{ConversationID: "conv-1"})
	assert.True(t, errors.Is(err, ErrInvalidArguments))
}

func TestRegistry_Invoke_ExecutorError(t *testing.T) {
	reg := NewRegistry(createTestLogger(t))
	boom := errors.New("timer backend unavailable")
	require.NoError(t, reg.Register(StopTimerDefinition(), ExecutorFunc(func(_ context.Context, _ *Invocation) (*Result, error) {
		return nil, boom
	})))

	_, err := reg.Invoke(context.Background(), "stop_timer", &Invocation{ConversationID: "conv-1"})

	require.Error(t, err)
	assert.True(t, errors.Is(err, boom))
	assert.False(t, errors.Is(err, ErrInvalidArguments))
}

func TestRegistry_Invoke_AppliesDefinitionTimeout(t *testing.T) {
	def := StopTimerDefinition()
	def.Timeout = "250ms"

	reg := NewRegistry(createTestLogger(t))
	require.NoError(t, reg.Register(def, ExecutorFunc(func(ctx context.Context, _ *Invocation) (*Result, error) {
		deadline, ok := ctx.Deadline()
		require.True(t, ok, "executor context must carry a deadline")
		assert.LessOrEqual(t, time.Until(deadline), 250*time.Millisecond)
		return &Result{Message: "ok"}, nil
	})))

	_, err := reg.Invoke(context.Background(), "stop_timer", &Invocation{ConversationID: "conv-1"})
	require.NoError(t, err)
}

func TestRegistry_Invoke_Hooks(t *testing.T) {
	reg := newTestRegistry(t)

	var before, after []string
	reg.SetHook(&Hook{
		BeforeInvoke: func(tool string, _ *Invocation) {
			before = append(before, tool)
		},
		AfterInvoke: func(tool string, result *Result, err error, elapsed time.Duration) {
			after = append(after, tool)
			assert.NoError(t, err)
			assert.NotNil(t, result)
			assert.GreaterOrEqual(t, elapsed, time.Duration(0))
		},
	})

	_, err := reg.Invoke(context.Background(), "stop_timer", &Invocation{ConversationID: "conv-1"})
	require.NoError(t, err)

	assert.Equal(t, []string{"stop_timer"}, before)
	assert.Equal(t, []string{"stop_timer"}, after)

	// Rejected arguments never reach the hooks.
	_, err = reg.Invoke(context.Background(), "start_timer", &Invocation{ConversationID: "conv-1"})
	require.Error(t, err)
	assert.Len(t, before, 1)
	assert.Len(t, after, 1)
}

// ==========================
// Registry File Tests
// ==========================

func TestLoadRegistryFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tool-registry.json")

	file := RegistryFile{
		Version:     "1.2.0",
		LastUpdated: "2025-05-01T10:00:00Z",
		Tools:       []Definition{StartTimerDefinition()},
	}
	data, err := json.MarshalIndent(file, "", "  ")
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0644))

	loaded, err := LoadRegistryFile(path)
	require.NoError(t, err)
	assert.Equal(t, "1.2.0", loaded.Version)
	require.Len(t, loaded.Tools, 1)
	assert.Equal(t, "start_timer", loaded.Tools[0].Name)
}

func TestLoadRegistryFile_Missing(t *testing.T) {
	_, err := LoadRegistryFile(filepath.Join(t.TempDir(), "absent.json"))
	assert.Error(t, err)
}

func TestRegistry_ApplyOverrides(t *testing.T) {
	reg := newTestRegistry(t)

	override := StartTimerDefinition()
	override.Description = "Deployment-tuned focus timer"
	override.Version = "2.0.0"
	override.Timeout = "2s"

	err := reg.ApplyOverrides(&RegistryFile{
		Version: "2.0.0",
		Tools: []Definition{
			override,
			CreateStudyPlanDefinition(), // no executor registered, must be skipped
		},
	})
	require.NoError(t, err)

	def, ok := reg.Get("start_timer")
	require.True(t, ok)
	assert.Equal(t, "Deployment-tuned focus timer", def.Description)
	assert.Equal(t, "2.0.0", def.Version)

	assert.False(t, reg.Has("create_study_plan"), "overrides must not register new tools")

	// The overridden tool still validates and executes.
	result, err := reg.Invoke(context.Background(), "start_timer", &Invocation{
		ConversationID: "conv-1",
		Arguments:      map[string]interface{}{"duration_minutes": 10},
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", result.Message)
}

// ==========================
// Definition Tests
// ==========================

func TestDefinition_TimeoutOrDefault(t *testing.T) {
	tests := []struct {
		name     string
		timeout  string
		expected time.Duration
	}{
		{name: "empty uses default", timeout: "", expected: 10 * time.Second},
		{name: "valid duration", timeout: "3s", expected: 3 * time.Second},
		{name: "unparseable uses default", timeout: "soon", expected: 10 * time.Second},
		{name: "non-positive uses default", timeout: "-1s", expected: 10 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			def := Definition{Timeout: tt.timeout}
			assert.Equal(t, tt.expected, def.TimeoutOrDefault(10*time.Second))
		})
	}
}

// ==========================
// Benchmark Tests
// ==========================

func BenchmarkRegistry_Invoke(b *testing.B) {
	reg := NewRegistry(logger.NewNoOpLogger())
	reg.Register(StartTimerDefinition(), echoExecutor())

	inv := &Invocation{
		ConversationID: "conv-bench",
		Arguments:      map[string]interface{}{"duration_minutes": 25},
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		reg.Invoke(context.Background(), "start_timer", inv)
	}
}
