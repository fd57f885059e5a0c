// internal/session/store_test.go
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"clarity-agent/internal/common/logger"
	"clarity-agent/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redismock/v9"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// ==========================
// Test Helper Functions
// ==========================

const testHistoryLimit = 6

func setupRedis(t *testing.T) *redis.Client {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	return redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})
}

func createTestLogger(t *testing.T) logger.Logger {
	return logger.NewZapAdapter(zaptest.NewLogger(t))
}

// newTestStores builds one store per backend so every behavior is checked
// against both implementations.
func newTestStores(t *testing.T) map[string]Store {
	return map[string]Store{
		"memory": NewMemoryStore(testHistoryLimit),
		"redis":  NewRedisStore(setupRedis(t), time.Hour, testHistoryLimit, createTestLogger(t)),
	}
}

func userTurn(conversationID, text string) models.Turn {
	return models.Turn{
		TurnID:         fmt.Sprintf("turn-%d", time.Now().UnixNano()),
		ConversationID: conversationID,
		RawText:        text,
		Role:           models.RoleUser,
		Timestamp:      time.Now().UTC(),
	}
}

// ==========================
// Core Functionality Tests
// ==========================

func TestStore_GetOrCreate(t *testing.T) {
	for name, store := range newTestStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			s, err := store.GetOrCreate(ctx, "conv-1")
			require.NoError(t, err)
			require.NotNil(t, s)
			assert.Equal(t, "conv-1", s.ConversationID)
			assert.Equal(t, models.StateIdle, s.State)
			assert.Equal(t, models.RiskNone, s.RiskLevel)
			assert.Empty(t, s.History)

			// A second call must return the same conversation, not a
			// fresh one.
			_, err = store.AppendTurn(ctx, "conv-1", userTurn("conv-1", "hello"), nil)
			require.NoError(t, err)

			again, err := store.GetOrCreate(ctx, "conv-1")
			require.NoError(t, err)
			assert.Len(t, again.History, 1)
		})
	}
}

func TestStore_AppendTurn(t *testing.T) {
	for name, store := range newTestStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			_, err := store.AppendTurn(ctx, "conv-2", userTurn("conv-2", "hi"), nil)
			require.NoError(t, err)

			decision := &models.DecisionRecord{
				TurnID:    "turn-agent-1",
				Kind:      models.DecisionDirectReply,
				Timestamp: time.Now().UTC(),
			}
			agent := models.Turn{
				TurnID:         "turn-agent-1",
				ConversationID: "conv-2",
				RawText:        "hello there",
				Role:           models.RoleAgent,
				Timestamp:      time.Now().UTC(),
			}

			s, err := store.AppendTurn(ctx, "conv-2", agent, decision)
			require.NoError(t, err)
			require.Len(t, s.History, 2)
			assert.Equal(t, models.RoleUser, s.History[0].Role)
			assert.Equal(t, models.RoleAgent, s.History[1].Role)
			require.Len(t, s.Decisions, 1)
			assert.Equal(t, models.DecisionDirectReply, s.Decisions[0].Kind)
			assert.False(t, s.UpdatedAt.IsZero())
		})
	}
}

func TestStore_AppendTurn_TrimsHistory(t *testing.T) {
	for name, store := range newTestStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			var s *models.Session
			var err error
			for i := 0; i < testHistoryLimit+4; i++ {
				s, err = store.AppendTurn(ctx, "conv-trim", userTurn("conv-trim", fmt.Sprintf("message %d", i)), nil)
				require.NoError(t, err)
			}

			require.Len(t, s.History, testHistoryLimit)
			// Oldest turns fall off the front.
			assert.Equal(t, "message 4", s.History[0].RawText)
			assert.Equal(t, fmt.Sprintf("message %d", testHistoryLimit+3), s.History[len(s.History)-1].RawText)
		})
	}
}

// ==========================
// Risk Latch Tests
// ==========================

func TestStore_LatchRisk_Monotonic(t *testing.T) {
	for name, store := range newTestStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			s, err := store.LatchRisk(ctx, "conv-risk", models.RiskElevated, "distress signals")
			require.NoError(t, err)
			assert.Equal(t, models.RiskElevated, s.RiskLevel)
			require.Len(t, s.RiskAudit, 1)
			assert.Equal(t, models.RiskNone, s.RiskAudit[0].From)
			assert.Equal(t, models.RiskElevated, s.RiskAudit[0].To)
			assert.Equal(t, RiskDetectorActor, s.RiskAudit[0].Actor)

			s, err = store.LatchRisk(ctx, "conv-risk", models.RiskCrisis, "crisis language")
			require.NoError(t, err)
			assert.Equal(t, models.RiskCrisis, s.RiskLevel)
			assert.Len(t, s.RiskAudit, 2)

			// A lower assessment must never lower the latch, and must
			// not add audit noise.
			s, err = store.LatchRisk(ctx, "conv-risk", models.RiskNone, "calm turn")
			require.NoError(t, err)
			assert.Equal(t, models.RiskCrisis, s.RiskLevel)
			assert.Len(t, s.RiskAudit, 2)

			s, err = store.LatchRisk(ctx, "conv-risk", models.RiskCrisis, "still crisis")
			require.NoError(t, err)
			assert.Equal(t, models.RiskCrisis, s.RiskLevel)
			assert.Len(t, s.RiskAudit, 2, "re-latching the same level is not a change")
		})
	}
}

func TestStore_ResetRisk(t *testing.T) {
	for name, store := range newTestStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			_, err := store.LatchRisk(ctx, "conv-reset", models.RiskCrisis, "crisis language")
			require.NoError(t, err)

			s, err := store.ResetRisk(ctx, "conv-reset", "oncall@example.com", "reviewed transcript, false positive")
			require.NoError(t, err)
			assert.Equal(t, models.RiskNone, s.RiskLevel)

			last := s.RiskAudit[len(s.RiskAudit)-1]
			assert.Equal(t, models.RiskCrisis, last.From)
			assert.Equal(t, models.RiskNone, last.To)
			assert.Equal(t, "oncall@example.com", last.Actor)
			assert.Equal(t, "reviewed transcript, false positive", last.Reason)
		})
	}
}

func TestStore_ResetRisk_UnknownConversation(t *testing.T) {
	for name, store := range newTestStores(t) {
		t.Run(name, func(t *testing.T) {
			_, err := store.ResetRisk(context.Background(), "never-seen", "oncall@example.com", "typo")
			assert.ErrorIs(t, err, ErrNotFound)
		})
	}
}

// ==========================
// Pending Tool Tests
// ==========================

func TestStore_SetPendingTool(t *testing.T) {
	for name, store := range newTestStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			pending := &models.PendingToolRequest{
				ToolName:      "start_timer",
				Arguments:     map[string]interface{}{},
				MissingFields: []string{"duration_minutes"},
				RequestedAt:   time.Now().UTC(),
			}
			require.NoError(t, store.SetPendingTool(ctx, "conv-tool", pending))

			s, err := store.GetOrCreate(ctx, "conv-tool")
			require.NoError(t, err)
			require.NotNil(t, s.PendingTool)
			assert.Equal(t, "start_timer", s.PendingTool.ToolName)
			assert.Equal(t, []string{"duration_minutes"}, s.PendingTool.MissingFields)

			require.NoError(t, store.SetPendingTool(ctx, "conv-tool", nil))
			s, err = store.GetOrCreate(ctx, "conv-tool")
			require.NoError(t, err)
			assert.Nil(t, s.PendingTool)
		})
	}
}

// ==========================
// Redis Store Tests
// ==========================

func TestRedisStore_DocumentExpires(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := NewRedisStore(client, 30*time.Minute, testHistoryLimit, createTestLogger(t))

	_, err = store.GetOrCreate(context.Background(), "conv-ttl")
	require.NoError(t, err)

	assert.Equal(t, 30*time.Minute, mr.TTL("session:conv-ttl"))

	mr.FastForward(31 * time.Minute)
	assert.False(t, mr.Exists("session:conv-ttl"))
}

func TestRedisStore_SurvivesReconnect(t *testing.T) {
	client := setupRedis(t)

	first := NewRedisStore(client, time.Hour, testHistoryLimit, createTestLogger(t))
	_, err := first.LatchRisk(context.Background(), "conv-persist", models.RiskElevated, "distress signals")
	require.NoError(t, err)

	// A new store over the same backend sees the latched level.
	second := NewRedisStore(client, time.Hour, testHistoryLimit, createTestLogger(t))
	s, err := second.GetOrCreate(context.Background(), "conv-persist")
	require.NoError(t, err)
	assert.Equal(t, models.RiskElevated, s.RiskLevel)
}

func TestRedisStore_BackendFailure(t *testing.T) {
	client, mock := redismock.NewClientMock()
	store := NewRedisStore(client, time.Hour, testHistoryLimit, createTestLogger(t))

	mock.ExpectGet("session:conv-down").SetErr(errors.New("connection refused"))

	_, err := store.GetOrCreate(context.Background(), "conv-down")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load session")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisStore_CorruptDocument(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	require.NoError(t, mr.Set("session:conv-bad", "{not json"))

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := NewRedisStore(client, time.Hour, testHistoryLimit, createTestLogger(t))

	_, err = store.GetOrCreate(context.Background(), "conv-bad")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to decode session")
}

// ==========================
// Edge Cases
// ==========================

func TestMemoryStore_ReturnsCopies(t *testing.T) {
	store := NewMemoryStore(testHistoryLimit)
	ctx := context.Background()

	s1, err := store.AppendTurn(ctx, "conv-copy", userTurn("conv-copy", "original"), nil)
	require.NoError(t, err)

	// Mutating the returned session must not leak into the store.
	s1.History[0].RawText = "tampered"
	s1.RiskLevel = models.RiskCrisis

	s2, err := store.GetOrCreate(ctx, "conv-copy")
	require.NoError(t, err)
	assert.Equal(t, "original", s2.History[0].RawText)
	assert.Equal(t, models.RiskNone, s2.RiskLevel)
}

func TestMemoryStore_ConcurrentConversations(t *testing.T) {
	store := NewMemoryStore(testHistoryLimit)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			id := fmt.Sprintf("conv-%d", n)
			_, err := store.AppendTurn(ctx, id, userTurn(id, "hello"), nil)
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	for i := 0; i < 20; i++ {
		s, err := store.GetOrCreate(ctx, fmt.Sprintf("conv-%d", i))
		require.NoError(t, err)
		assert.Len(t, s.History, 1)
	}
}

// ==========================
// Benchmark Tests
// ==========================

func BenchmarkMemoryStore_AppendTurn(b *testing.B) {
	store := NewMemoryStore(50)
	ctx := context.Background()
	turn := userTurn("conv-bench", "benchmark message")

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		store.AppendTurn(ctx, "conv-bench", turn, nil)
	}
}
