// internal/corpus/corpus.go
package corpus

import (
	"context"
	"sort"
	"strings"
	"time"
)

// Passage is a unit of retrievable knowledge.
type Passage struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	Tags      []string  `json:"tags,omitempty"`
	IndexedAt time.Time `json:"indexedAt"`
}

// Text returns the passage in "Title: Body" form, the shape used for
// scoring and for weaving passages into replies.
func (p Passage) Text() string {
	if p.Title == "" {
		return p.Body
	}
	return p.Title + ": " + p.Body
}

// ScoredPassage pairs a passage with its relevance score for a query.
type ScoredPassage struct {
	Passage
	Score float64 `json:"score"`
}

// Index is the passage store consulted by the context retriever.
type Index interface {
	Add(ctx context.Context, passages ...Passage) error
	Search(ctx context.Context, query string, k int) ([]ScoredPassage, error)
	Count(ctx context.Context) (int, error)
}

// SortDeterministic orders passages by score descending, then most
// recently indexed first, then ID ascending, so equal-score results come
// back in the same order regardless of backend.
func SortDeterministic(passages []ScoredPassage) {
	sort.SliceStable(passages, func(i, j int) bool {
		if passages[i].Score != passages[j].Score {
			return passages[i].Score > passages[j].Score
		}
		if !passages[i].IndexedAt.Equal(passages[j].IndexedAt) {
			return passages[i].IndexedAt.After(passages[j].IndexedAt)
		}
		return passages[i].ID < passages[j].ID
	})
}

// DedupeNormalized drops passages whose whitespace-normalized text has
// already been seen, keeping the higher-ranked occurrence.
func DedupeNormalized(passages []ScoredPassage) []ScoredPassage {
	seen := make(map[string]struct{}, len(passages))
	out := make([]ScoredPassage, 0, len(passages))
	for _, p := range passages {
		key := strings.Join(strings.Fields(p.Text()), " ")
		if _, exists := seen[key]; exists {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, p)
	}
	return out
}
