// internal/pipeline/retrieve-context/handler_test.go
package retrievecontext

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"clarity-agent/internal/common/logger"
	"clarity-agent/internal/corpus"
)

// ==========================
// Test Helper Functions
// ==========================

func setupRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return mr, client
}

func createTestLogger(t *testing.T) logger.Logger {
	return logger.NewZapAdapter(zaptest.NewLogger(t))
}

func testConfig() *Config {
	return &Config{
		TopK:     2,
		CacheTTL: time.Minute,
		Timeout:  time.Second,
	}
}

func seededIndex(t *testing.T) *corpus.MemoryIndex {
	idx := corpus.NewMemoryIndex()
	base := time.Date(2025, 1, 10, 8, 0, 0, 0, time.UTC)
	err := idx.Add(context.Background(),
		corpus.Passage{
			ID:        "exam-stress",
			Title:     "Exam stress",
			Body:      "Break revision into short blocks and test yourself out loud.",
			IndexedAt: base.Add(2 * time.Hour),
		},
		corpus.Passage{
			ID:        "stress-basics",
			Title:     "Stress basics",
			Body:      "Name the stressor, then pick one small next step.",
			IndexedAt: base.Add(time.Hour),
		},
		corpus.Passage{
			ID:        "sleep",
			Title:     "Sleep habits",
			Body:      "Wind down away from screens before bed.",
			IndexedAt: base,
		},
	)
	require.NoError(t, err)
	return idx
}

// failingIndex simulates an unreachable corpus backend.
type failingIndex struct{}

func (failingIndex) Add(context.Context, ...corpus.Passage) error { return errors.New("index down") }
func (failingIndex) Search(context.Context, string, int) ([]corpus.ScoredPassage, error) {
	return nil, errors.New("index down")
}
func (failingIndex) Count(context.Context) (int, error) { return 0, errors.New("index down") }

// ==========================
// Core Functionality Tests
// ==========================

func TestHandler_RetrievesRankedPassages(t *testing.T) {
	h := NewHandler(testConfig(), seededIndex(t), nil, createTestLogger(t))

	out, err := h.Execute(context.Background(), &Input{Query: "exam stress"})
	require.NoError(t, err)

	require.Len(t, out.Passages, 2)
	assert.Equal(t, "exam-stress", out.Passages[0].ID)
	assert.Equal(t, "stress-basics", out.Passages[1].ID)
	assert.Greater(t, out.Passages[0].Score, out.Passages[1].Score)
	assert.False(t, out.CacheHit)
}

func TestHandler_TopKOverride(t *testing.T) {
	h := NewHandler(testConfig(), seededIndex(t), nil, createTestLogger(t))

	out, err := h.Execute(context.Background(), &Input{Query: "exam stress", TopK: 1})
	require.NoError(t, err)

	require.Len(t, out.Passages, 1)
	assert.Equal(t, "exam-stress", out.Passages[0].ID)
}

func TestHandler_EmptyCorpusReturnsEmpty(t *testing.T) {
	h := NewHandler(testConfig(), corpus.NewMemoryIndex(), nil, createTestLogger(t))

	out, err := h.Execute(context.Background(), &Input{Query: "anything at all"})
	require.NoError(t, err)

	assert.NotNil(t, out.Passages)
	assert.Empty(t, out.Passages)
}

func TestHandler_NoMatchesReturnsEmpty(t *testing.T) {
	h := NewHandler(testConfig(), seededIndex(t), nil, createTestLogger(t))

	out, err := h.Execute(context.Background(), &Input{Query: "quantum chromodynamics"})
	require.NoError(t, err)
	assert.Empty(t, out.Passages)
}

func TestHandler_BlankQuerySkipsIndex(t *testing.T) {
	// A failing index proves blank queries never reach the backend.
	h := NewHandler(testConfig(), failingIndex{}, nil, createTestLogger(t))

	for _, query := range []string{"", "   "} {
		out, err := h.Execute(context.Background(), &Input{Query: query})
		require.NoError(t, err)
		assert.Empty(t, out.Passages)
	}
}

// ==========================
// Cache Tests
// ==========================

func TestHandler_CacheRoundTrip(t *testing.T) {
	mr, client := setupRedis(t)
	cfg := testConfig()
	cfg.CacheEnabled = true
	idx := seededIndex(t)
	h := NewHandler(cfg, idx, client, createTestLogger(t))

	first, err := h.Execute(context.Background(), &Input{Query: "exam stress"})
	require.NoError(t, err)
	assert.False(t, first.CacheHit)
	assert.True(t, mr.Exists(h.cacheKey("exam stress", 2)))

	// Overwrite the best passage so a fresh search could no longer find
	// it; the cached result must still come back intact.
	require.NoError(t, idx.Add(context.Background(), corpus.Passage{
		ID:    "exam-stress",
		Title: "Renamed",
		Body:  "Nothing relevant here.",
	}))

	second, err := h.Execute(context.Background(), &Input{Query: "exam stress"})
	require.NoError(t, err)
	assert.True(t, second.CacheHit)
	require.Len(t, second.Passages, 2)
	assert.Equal(t, "exam-stress", second.Passages[0].ID)
	assert.Equal(t, "Exam stress", second.Passages[0].Title)
}

func TestHandler_CacheExpires(t *testing.T) {
	mr, client := setupRedis(t)
	cfg := testConfig()
	cfg.CacheEnabled = true
	h := NewHandler(cfg, seededIndex(t), client, createTestLogger(t))

	_, err := h.Execute(context.Background(), &Input{Query: "exam stress"})
	require.NoError(t, err)

	mr.FastForward(cfg.CacheTTL + time.Second)

	out, err := h.Execute(context.Background(), &Input{Query: "exam stress"})
	require.NoError(t, err)
	assert.False(t, out.CacheHit)
}

func TestHandler_CorruptCacheFallsThrough(t *testing.T) {
	mr, client := setupRedis(t)
	cfg := testConfig()
	cfg.CacheEnabled = true
	h := NewHandler(cfg, seededIndex(t), client, createTestLogger(t))

	require.NoError(t, mr.Set(h.cacheKey("exam stress", 2), "{not json"))

	out, err := h.Execute(context.Background(), &Input{Query: "exam stress"})
	require.NoError(t, err)
	assert.False(t, out.CacheHit)
	assert.Len(t, out.Passages, 2)
}

func TestHandler_EmptyResultsNotCached(t *testing.T) {
	mr, client := setupRedis(t)
	cfg := testConfig()
	cfg.CacheEnabled = true
	h := NewHandler(cfg, seededIndex(t), client, createTestLogger(t))

	_, err := h.Execute(context.Background(), &Input{Query: "quantum chromodynamics"})
	require.NoError(t, err)
	assert.Empty(t, mr.Keys())
}

func TestHandler_CacheDisabledNeverTouchesRedis(t *testing.T) {
	mr, client := setupRedis(t)
	h := NewHandler(testConfig(), seededIndex(t), client, createTestLogger(t))

	out, err := h.Execute(context.Background(), &Input{Query: "exam stress"})
	require.NoError(t, err)
	assert.False(t, out.CacheHit)
	assert.Empty(t, mr.Keys())
}

// ==========================
// Edge Cases
// ==========================

func TestHandler_IndexFailure(t *testing.T) {
	h := NewHandler(testConfig(), failingIndex{}, nil, createTestLogger(t))

	_, err := h.Execute(context.Background(), &Input{Query: "exam stress"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRetrievalUnavailable)
}

func TestHandler_CancelledContext(t *testing.T) {
	h := NewHandler(testConfig(), seededIndex(t), nil, createTestLogger(t))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := h.Execute(ctx, &Input{Query: "exam stress"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRetrievalUnavailable)
}

// ==========================
// Benchmark Tests
// ==========================

func BenchmarkHandler_Execute(b *testing.B) {
	idx := corpus.NewMemoryIndex()
	if err := corpus.Seed(context.Background(), idx); err != nil {
		b.Fatal(err)
	}
	h := NewHandler(DefaultConfig(), idx, nil, logger.NewNoOpLogger())
	input := &Input{Query: "stressed about exams"}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := h.Execute(context.Background(), input); err != nil {
			b.Fatal(err)
		}
	}
}
