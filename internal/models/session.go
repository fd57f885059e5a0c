package models

import "time"

// State is the dialogue state machine position for a conversation. Between
// turns a conversation always rests at StateIdle; the intermediate states
// exist for the duration of one ProcessTurn call.
type State string

const (
	StateIdle             State = "idle"
	StateAwaitingResponse State = "awaiting_response"
	StateDirect           State = "direct"
	StateToolPending      State = "tool_pending"
	StateEscalated        State = "escalated"
)

// Session holds everything the dialogue manager remembers about one
// conversation. Mutated only by the dialogue manager.
type Session struct {
	ConversationID string              `json:"conversationId"`
	History        []Turn              `json:"history"`
	Decisions      []DecisionRecord    `json:"decisions,omitempty"`
	RiskLevel      RiskLevel           `json:"riskLevel"`
	State          State               `json:"state"`
	PendingTool    *PendingToolRequest `json:"pendingTool,omitempty"`
	RiskAudit      []RiskAuditEntry    `json:"riskAudit,omitempty"`
	CreatedAt      time.Time           `json:"createdAt"`
	UpdatedAt      time.Time           `json:"updatedAt"`
}

// DecisionRecord is the per-turn outcome kept alongside the history.
type DecisionRecord struct {
	TurnID    string       `json:"turnId"`
	Kind      DecisionKind `json:"kind"`
	ToolName  string       `json:"toolName,omitempty"`
	Timestamp time.Time    `json:"timestamp"`
}

// PendingToolRequest remembers a tool call that was held back for
// clarification so a follow-up turn can complete it.
type PendingToolRequest struct {
	ToolName      string                 `json:"toolName"`
	Arguments     map[string]interface{} `json:"arguments,omitempty"`
	MissingFields []string               `json:"missingFields,omitempty"`
	RequestedAt   time.Time              `json:"requestedAt"`
}

// RiskAuditEntry records every change of the latched risk level, including
// the explicit human reset.
type RiskAuditEntry struct {
	From      RiskLevel `json:"from"`
	To        RiskLevel `json:"to"`
	Actor     string    `json:"actor"` // "risk-detector" or the resetting human
	Reason    string    `json:"reason,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// NewSession creates an idle session with no history.
func NewSession(conversationID string) *Session {
	now := time.Now().UTC()
	return &Session{
		ConversationID: conversationID,
		History:        []Turn{},
		RiskLevel:      RiskNone,
		State:          StateIdle,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// RecentUserTexts returns up to n most recent user-authored texts, oldest
// first, for the risk detector's history window.
func (s *Session) RecentUserTexts(n int) []string {
	if n <= 0 {
		return nil
	}
	texts := make([]string, 0, n)
	for i := len(s.History) - 1; i >= 0 && len(texts) < n; i-- {
		if s.History[i].Role == RoleUser {
			texts = append(texts, s.History[i].RawText)
		}
	}
	// reverse into chronological order
	for i, j := 0, len(texts)-1; i < j; i, j = i+1, j-1 {
		texts[i], texts[j] = texts[j], texts[i]
	}
	return texts
}

// UserTurnCount counts user-authored turns in the history.
func (s *Session) UserTurnCount() int {
	count := 0
	for _, t := range s.History {
		if t.Role == RoleUser {
			count++
		}
	}
	return count
}

// Summary builds the caller-facing view of the session.
func (s *Session) Summary() SessionSummary {
	summary := SessionSummary{
		ConversationID: s.ConversationID,
		State:          s.State,
		RiskLevel:      s.RiskLevel,
		TurnCount:      s.UserTurnCount(),
	}
	if s.PendingTool != nil {
		summary.PendingTool = s.PendingTool.ToolName
	}
	return summary
}
