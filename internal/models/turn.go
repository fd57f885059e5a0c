package models

import "time"

// Role identifies who produced a turn.
type Role string

const (
	RoleUser  Role = "user"
	RoleAgent Role = "agent"
)

// Turn is one message in a conversation. Immutable once appended to a
// session's history.
type Turn struct {
	TurnID         string    `json:"turnId"`
	ConversationID string    `json:"conversationId"`
	RawText        string    `json:"rawText"`
	Timestamp      time.Time `json:"timestamp"`
	Role           Role      `json:"role"`
}
