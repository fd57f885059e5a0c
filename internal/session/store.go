// Package session persists per-conversation dialogue state. The dialogue
// manager serializes writers per conversation, so each store only has to
// make individual operations atomic against its own backend.
package session

import (
	"context"
	"errors"
	"time"

	"clarity-agent/internal/models"
)

// RiskDetectorActor is the audit actor recorded when the pipeline latches
// a risk level. Human resets record the operator identity instead.
const RiskDetectorActor = "risk-detector"

// ErrNotFound is returned by operations that require an existing
// conversation, such as a risk reset.
var ErrNotFound = errors.New("SESSION_NOT_FOUND")

// Store is the persistence surface the dialogue manager works against.
type Store interface {
	// GetOrCreate returns the session for a conversation, creating an
	// idle one on first contact.
	GetOrCreate(ctx context.Context, conversationID string) (*models.Session, error)

	// AppendTurn appends a turn (and, for agent turns, the decision that
	// produced it) to the conversation history.
	AppendTurn(ctx context.Context, conversationID string, turn models.Turn, decision *models.DecisionRecord) (*models.Session, error)

	// LatchRisk raises the stored risk level. Lower or equal levels are
	// ignored; a raise writes an audit entry. The returned session always
	// carries the effective level.
	LatchRisk(ctx context.Context, conversationID string, level models.RiskLevel, reason string) (*models.Session, error)

	// ResetRisk is the explicit, auditable return to a clean risk level.
	// It fails with ErrNotFound for conversations that were never seen.
	ResetRisk(ctx context.Context, conversationID, actor, reason string) (*models.Session, error)

	// SetPendingTool stores (or, with nil, clears) the tool call held
	// back for clarification.
	SetPendingTool(ctx context.Context, conversationID string, pending *models.PendingToolRequest) error
}

// applyTurn mutates a session for AppendTurn, trimming history and the
// decision log to the configured limit.
func applyTurn(s *models.Session, turn models.Turn, decision *models.DecisionRecord, historyLimit int) {
	s.History = append(s.History, turn)
	if decision != nil {
		s.Decisions = append(s.Decisions, *decision)
	}
	if historyLimit > 0 {
		if len(s.History) > historyLimit {
			s.History = s.History[len(s.History)-historyLimit:]
		}
		if len(s.Decisions) > historyLimit {
			s.Decisions = s.Decisions[len(s.Decisions)-historyLimit:]
		}
	}
}

// applyLatch raises the risk level monotonically. Raises append an audit
// entry; anything else is a no-op.
func applyLatch(s *models.Session, level models.RiskLevel, reason string) {
	if level.Severity() <= s.RiskLevel.Severity() {
		return
	}
	s.RiskAudit = append(s.RiskAudit, models.RiskAuditEntry{
		From:      s.RiskLevel,
		To:        level,
		Actor:     RiskDetectorActor,
		Reason:    reason,
		Timestamp: time.Now().UTC(),
	})
	s.RiskLevel = level
}

// applyReset records the reset even when the level was already none, so
// the audit trail shows every operator action.
func applyReset(s *models.Session, actor, reason string) {
	s.RiskAudit = append(s.RiskAudit, models.RiskAuditEntry{
		From:      s.RiskLevel,
		To:        models.RiskNone,
		Actor:     actor,
		Reason:    reason,
		Timestamp: time.Now().UTC(),
	})
	s.RiskLevel = models.RiskNone
}
