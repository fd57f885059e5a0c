// Package journal persists journal entries to Postgres and rolls them up
// into weekly summaries for the journal tools.
package journal

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"clarity-agent/internal/common/logger"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

const defaultEntryLimit = 50

// Entry is one saved journal entry.
type Entry struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversationId"`
	Text           string    `json:"text"`
	Mood           string    `json:"mood,omitempty"`
	Tags           []string  `json:"tags,omitempty"`
	CreatedAt      time.Time `json:"createdAt"`
}

// Summary is the weekly roll-up a conversation gets back.
type Summary struct {
	WindowDays   int       `json:"windowDays"`
	TotalEntries int       `json:"totalEntries"`
	ActiveDays   int       `json:"activeDays"`
	LatestAt     time.Time `json:"latestAt,omitempty"`
	LatestText   string    `json:"latestText,omitempty"`
	Themes       []string  `json:"themes,omitempty"`
}

type Store struct {
	db     *sql.DB
	logger logger.Logger
}

func NewStore(db *sql.DB, log logger.Logger) *Store {
	return &Store{
		db:     db,
		logger: log.WithFields(map[string]interface{}{"component": "journal-store"}),
	}
}

// EnsureSchema creates the journal table and its lookup index. Safe to run
// on every boot.
func (s *Store) EnsureSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS journal_entries (
			id UUID PRIMARY KEY,
			conversation_id TEXT NOT NULL,
			entry_text TEXT NOT NULL,
			mood TEXT NOT NULL DEFAULT '',
			tags TEXT[] NOT NULL DEFAULT '{}',
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`)
	if err != nil {
		return fmt.Errorf("create journal_entries table: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		CREATE INDEX IF NOT EXISTS idx_journal_entries_conversation
		ON journal_entries (conversation_id, created_at DESC)`)
	if err != nil {
		return fmt.Errorf("create journal_entries index: %w", err)
	}
	return nil
}

// AddEntry stores one entry and returns it with its generated ID.
func (s *Store) AddEntry(ctx context.Context, conversationID, text, mood string, tags []string) (*Entry, error) {
	entry := &Entry{
		ID:             uuid.NewString(),
		ConversationID: conversationID,
		Text:           text,
		Mood:           mood,
		Tags:           tags,
		CreatedAt:      time.Now().UTC(),
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO journal_entries (id, conversation_id, entry_text, mood, tags, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		entry.ID, entry.ConversationID, entry.Text, entry.Mood, pq.Array(entry.Tags), entry.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert journal entry: %w", err)
	}

	s.logger.Debug("journal entry saved", map[string]interface{}{
		"conversationId": conversationID,
		"entryId":        entry.ID,
		"mood":           mood,
	})
	return entry, nil
}

// Entries returns the most recent entries for a conversation, newest first.
func (s *Store) Entries(ctx context.Context, conversationID string, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = defaultEntryLimit
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, conversation_id, entry_text, mood, tags, created_at
		FROM journal_entries
		WHERE conversation_id = $1
		ORDER BY created_at DESC
		LIMIT $2`,
		conversationID, limit)
	if err != nil {
		return nil, fmt.Errorf("query journal entries: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.ConversationID, &e.Text, &e.Mood, pq.Array(&e.Tags), &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan journal entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// WeeklySummary aggregates the last windowDays of entries: totals, active
// days, the latest entry (truncated), and the most frequent theme tags.
func (s *Store) WeeklySummary(ctx context.Context, conversationID string, windowDays int) (*Summary, error) {
	if windowDays <= 0 {
		windowDays = 7
	}
	since := time.Now().UTC().AddDate(0, 0, -windowDays)
	summary := &Summary{WindowDays: windowDays}

	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COUNT(DISTINCT DATE(created_at))
		FROM journal_entries
		WHERE conversation_id = $1 AND created_at >= $2`,
		conversationID, since).Scan(&summary.TotalEntries, &summary.ActiveDays)
	if err != nil {
		return nil, fmt.Errorf("count journal entries: %w", err)
	}

	if summary.TotalEntries == 0 {
		return summary, nil
	}

	var latestText string
	var latestAt time.Time
	err = s.db.QueryRowContext(ctx, `
		SELECT entry_text, created_at
		FROM journal_entries
		WHERE conversation_id = $1 AND created_at >= $2
		ORDER BY created_at DESC
		LIMIT 1`,
		conversationID, since).Scan(&latestText, &latestAt)
	if err != nil && err != sql.ErrNoRows {
		return nil, fmt.Errorf("fetch latest journal entry: %w", err)
	}
	summary.LatestAt = latestAt
	summary.LatestText = truncateText(latestText, 100)

	rows, err := s.db.QueryContext(ctx, `
		SELECT tag, COUNT(*) AS uses
		FROM journal_entries, UNNEST(tags) AS tag
		WHERE conversation_id = $1 AND created_at >= $2
		GROUP BY tag
		ORDER BY uses DESC, tag ASC
		LIMIT 5`,
		conversationID, since)
	if err != nil {
		return nil, fmt.Errorf("aggregate journal themes: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var tag string
		var uses int
		if err := rows.Scan(&tag, &uses); err != nil {
			return nil, fmt.Errorf("scan journal theme: %w", err)
		}
		summary.Themes = append(summary.Themes, tag)
	}
	return summary, rows.Err()
}

func truncateText(text string, max int) string {
	text = strings.TrimSpace(text)
	runes := []rune(text)
	if len(runes) <= max {
		return text
	}
	return strings.TrimSpace(string(runes[:max])) + "..."
}
