// internal/escalation/models.go
package escalation

// Triggers name why a conversation escalated. The same values label the
// policy decision, the on-call alert, and the escalation metrics.
const (
	// TriggerDetector marks a crisis signal matched on the current turn.
	TriggerDetector = "detector"
	// TriggerLatched marks a conversation still escalated from an
	// earlier turn.
	TriggerLatched = "latched"
	// TriggerFailSafe marks a refusal issued because risk assessment
	// itself failed. Fail-safe turns are never alerted; they page nobody.
	TriggerFailSafe = "fail_safe"
)

// Delivery statuses.
const (
	StatusSent     = "sent"
	StatusPartial  = "partial"
	StatusFailed   = "failed"
	StatusDisabled = "disabled"
)

// Alert is one crisis notification for the humans behind the agent.
type Alert struct {
	ConversationID string   `json:"conversationId"`
	Trigger        string   `json:"trigger"`
	Signals        []string `json:"signals,omitempty"`
	Rationale      string   `json:"rationale,omitempty"`
	// Excerpt is the raw user text; it is truncated before rendering.
	Excerpt string `json:"excerpt,omitempty"`
}

// Receipt records one dispatch attempt.
type Receipt struct {
	AlertID string `json:"alertId"`
	Status  string `json:"status"` // "sent", "partial", "failed", "disabled"
	SentAt  string `json:"sentAt"` // ISO 8601
}
