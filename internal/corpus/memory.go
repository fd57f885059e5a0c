// internal/corpus/memory.go
package corpus

import (
	"context"
	"strings"
	"sync"
	"time"
)

// MemoryIndex is an in-process Index guarded by a RWMutex. Scoring is
// word overlap: one point per query word contained in the passage text,
// case-insensitive. Passages that match no word are dropped.
type MemoryIndex struct {
	mu       sync.RWMutex
	passages []Passage
	byID     map[string]int
}

func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{byID: make(map[string]int)}
}

// Add inserts passages, replacing any existing passage with the same ID.
func (m *MemoryIndex) Add(ctx context.Context, passages ...Passage) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, p := range passages {
		if p.IndexedAt.IsZero() {
			p.IndexedAt = time.Now()
		}
		if idx, exists := m.byID[p.ID]; exists {
			m.passages[idx] = p
			continue
		}
		m.byID[p.ID] = len(m.passages)
		m.passages = append(m.passages, p)
	}
	return nil
}

func (m *MemoryIndex) Search(ctx context.Context, query string, k int) ([]ScoredPassage, error) {
	if k <= 0 {
		return []ScoredPassage{}, nil
	}
	words := strings.Fields(strings.ToLower(query))
	if len(words) == 0 {
		return []ScoredPassage{}, nil
	}

	m.mu.RLock()
	scored := make([]ScoredPassage, 0, len(m.passages))
	for _, p := range m.passages {
		text := strings.ToLower(p.Text())
		score := 0
		for _, w := range words {
			if strings.Contains(text, w) {
				score++
			}
		}
		if score > 0 {
			scored = append(scored, ScoredPassage{Passage: p, Score: float64(score)})
		}
	}
	m.mu.RUnlock()

	SortDeterministic(scored)
	if len(scored) > k {
		scored = scored[:k]
	}
	return DedupeNormalized(scored), nil
}

func (m *MemoryIndex) Count(ctx context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.passages), nil
}
