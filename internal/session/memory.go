// internal/session/memory.go
package session

import (
	"context"
	"sync"
	"time"

	"clarity-agent/internal/models"
)

// MemoryStore keeps sessions in a mutex-guarded map. Used in tests and in
// redis-less deployments; state does not survive a restart.
type MemoryStore struct {
	mu           sync.RWMutex
	sessions     map[string]*models.Session
	historyLimit int
}

func NewMemoryStore(historyLimit int) *MemoryStore {
	return &MemoryStore{
		sessions:     make(map[string]*models.Session),
		historyLimit: historyLimit,
	}
}

func (m *MemoryStore) GetOrCreate(_ context.Context, conversationID string) (*models.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return cloneSession(m.getOrCreateLocked(conversationID)), nil
}

func (m *MemoryStore) AppendTurn(_ context.Context, conversationID string, turn models.Turn, decision *models.DecisionRecord) (*models.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := m.getOrCreateLocked(conversationID)
	applyTurn(s, turn, decision, m.historyLimit)
	s.UpdatedAt = time.Now().UTC()
	return cloneSession(s), nil
}

func (m *MemoryStore) LatchRisk(_ context.Context, conversationID string, level models.RiskLevel, reason string) (*models.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := m.getOrCreateLocked(conversationID)
	applyLatch(s, level, reason)
	s.UpdatedAt = time.Now().UTC()
	return cloneSession(s), nil
}

func (m *MemoryStore) ResetRisk(_ context.Context, conversationID, actor, reason string) (*models.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[conversationID]
	if !ok {
		return nil, ErrNotFound
	}
	applyReset(s, actor, reason)
	s.UpdatedAt = time.Now().UTC()
	return cloneSession(s), nil
}

func (m *MemoryStore) SetPendingTool(_ context.Context, conversationID string, pending *models.PendingToolRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := m.getOrCreateLocked(conversationID)
	if pending == nil {
		s.PendingTool = nil
	} else {
		p := *pending
		s.PendingTool = &p
	}
	s.UpdatedAt = time.Now().UTC()
	return nil
}

func (m *MemoryStore) getOrCreateLocked(conversationID string) *models.Session {
	if s, ok := m.sessions[conversationID]; ok {
		return s
	}
	s := models.NewSession(conversationID)
	m.sessions[conversationID] = s
	return s
}

// cloneSession hands callers an independent copy so nothing outside the
// store can mutate shared state.
func cloneSession(s *models.Session) *models.Session {
	out := *s
	out.History = append([]models.Turn(nil), s.History...)
	out.Decisions = append([]models.DecisionRecord(nil), s.Decisions...)
	out.RiskAudit = append([]models.RiskAuditEntry(nil), s.RiskAudit...)
	if s.PendingTool != nil {
		p := *s.PendingTool
		out.PendingTool = &p
	}
	return &out
}
