// internal/corpus/memory_test.go
package corpus

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ==========================
// Test Helper Functions
// ==========================

func buildIndex(t *testing.T, passages ...Passage) *MemoryIndex {
	t.Helper()
	idx := NewMemoryIndex()
	require.NoError(t, idx.Add(context.Background(), passages...))
	return idx
}

// ==========================
// Core Functionality Tests
// ==========================

func TestMemoryIndex_Search_Ranking(t *testing.T) {
	idx := buildIndex(t,
		Passage{ID: "p1", Title: "Sleep and memory", Body: "Consistent sleep beats extra study hours."},
		Passage{ID: "p2", Title: "Managing exam stress", Body: "Feeling stressed before exams is normal. Plan each week."},
		Passage{ID: "p3", Title: "Phone-free focus", Body: "Put the phone in another room."},
	)

	results, err := idx.Search(context.Background(), "stressed about my exams this week", 3)

	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Equal(t, "p2", results[0].ID)
	assert.True(t, results[0].Score >= 3, "exam passage should match stressed, exams, and week")
	for _, r := range results[1:] {
		assert.True(t, r.Score <= results[0].Score)
	}
}

func TestMemoryIndex_Search_TieBrokenByRecency(t *testing.T) {
	older := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	newer := time.Date(2025, 3, 2, 10, 0, 0, 0, time.UTC)

	idx := buildIndex(t,
		Passage{ID: "p-old", Title: "Breathing basics", Body: "Slow breathing settles the mind.", IndexedAt: older},
		Passage{ID: "p-new", Title: "Breathing for sleep", Body: "Slow exhales help before bed.", IndexedAt: newer},
	)

	results, err := idx.Search(context.Background(), "breathing", 2)

	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, results[0].Score, results[1].Score)
	assert.Equal(t, "p-new", results[0].ID, "more recently indexed passage wins the tie")
	assert.Equal(t, "p-old", results[1].ID)
}

func TestMemoryIndex_Search_TieBrokenByIDWhenSameTimestamp(t *testing.T) {
	ts := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

	idx := buildIndex(t,
		Passage{ID: "p-b", Title: "Focus later", Body: "One target per focus block.", IndexedAt: ts},
		Passage{ID: "p-a", Title: "Focus first", Body: "One line before each focus block.", IndexedAt: ts},
	)

	results, err := idx.Search(context.Background(), "focus", 2)

	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "p-a", results[0].ID)
	assert.Equal(t, "p-b", results[1].ID)
}

func TestMemoryIndex_Search_DeduplicatesNormalizedText(t *testing.T) {
	idx := buildIndex(t,
		Passage{ID: "p1", Title: "Pomodoro", Body: "Work in 25-minute   blocks with breaks."},
		Passage{ID: "p2", Title: "Pomodoro", Body: "Work in 25-minute blocks with breaks."},
	)

	results, err := idx.Search(context.Background(), "pomodoro blocks", 5)

	require.NoError(t, err)
	assert.Len(t, results, 1, "whitespace-normalized duplicates collapse to one passage")
}

func TestMemoryIndex_Search_TruncatesToK(t *testing.T) {
	idx := buildIndex(t,
		Passage{ID: "p1", Title: "Focus one", Body: "focus"},
		Passage{ID: "p2", Title: "Focus two", Body: "focus"},
		Passage{ID: "p3", Title: "Focus three", Body: "focus"},
		Passage{ID: "p4", Title: "Focus four", Body: "focus"},
	)

	results, err := idx.Search(context.Background(), "focus", 2)

	require.NoError(t, err)
	assert.Len(t, results, 2)
}

func TestMemoryIndex_Add_ReplacesByID(t *testing.T) {
	idx := buildIndex(t,
		Passage{ID: "p1", Title: "Old title", Body: "old body text"},
	)
	require.NoError(t, idx.Add(context.Background(), Passage{ID: "p1", Title: "New title", Body: "fresh body text"}))

	count, err := idx.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	results, err := idx.Search(context.Background(), "fresh", 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "New title", results[0].Title)
}

// ==========================
// Edge Cases
// ==========================

func TestMemoryIndex_Search_EdgeCases(t *testing.T) {
	t.Run("empty corpus returns empty result, not an error", func(t *testing.T) {
		idx := NewMemoryIndex()

		results, err := idx.Search(context.Background(), "anything at all", 3)

		require.NoError(t, err)
		assert.Empty(t, results)
	})

	t.Run("no matching passages returns empty result", func(t *testing.T) {
		idx := buildIndex(t, Passage{ID: "p1", Title: "Sleep", Body: "Keep a regular bedtime."})

		results, err := idx.Search(context.Background(), "quantum chromodynamics", 3)

		require.NoError(t, err)
		assert.Empty(t, results)
	})

	t.Run("blank query returns empty result", func(t *testing.T) {
		idx := buildIndex(t, Passage{ID: "p1", Title: "Sleep", Body: "Keep a regular bedtime."})

		results, err := idx.Search(context.Background(), "   ", 3)

		require.NoError(t, err)
		assert.Empty(t, results)
	})

	t.Run("k of zero returns empty result", func(t *testing.T) {
		idx := buildIndex(t, Passage{ID: "p1", Title: "Sleep", Body: "Keep a regular bedtime."})

		results, err := idx.Search(context.Background(), "sleep", 0)

		require.NoError(t, err)
		assert.Empty(t, results)
	})

	t.Run("query matching is case-insensitive", func(t *testing.T) {
		idx := buildIndex(t, Passage{ID: "p1", Title: "Sleep and memory", Body: "Keep a regular bedtime."})

		results, err := idx.Search(context.Background(), "SLEEP", 3)

		require.NoError(t, err)
		require.Len(t, results, 1)
		assert.Equal(t, "p1", results[0].ID)
	})
}

// ==========================
// Seed Tests
// ==========================

func TestSeed_PopulatesEmptyIndexOnce(t *testing.T) {
	idx := NewMemoryIndex()

	require.NoError(t, Seed(context.Background(), idx))

	count, err := idx.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, len(SeedPassages()), count)

	// Reseeding must not duplicate anything.
	require.NoError(t, Seed(context.Background(), idx))
	count, err = idx.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, len(SeedPassages()), count)
}

func TestSeed_ExamStressQueryFindsExamPassage(t *testing.T) {
	idx := NewMemoryIndex()
	require.NoError(t, Seed(context.Background(), idx))

	results, err := idx.Search(context.Background(), "I'm really stressed about my exams next week", 3)

	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Equal(t, "kb-exam-stress", results[0].ID)
}

// ==========================
// Benchmark Tests
// ==========================

func BenchmarkMemoryIndex_Search(b *testing.B) {
	idx := NewMemoryIndex()
	idx.Add(context.Background(), SeedPassages()...)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		idx.Search(context.Background(), "stressed about exams and sleep", 3)
	}
}
