package models

// DecisionKind discriminates the policy decision variants.
type DecisionKind string

const (
	DecisionDirectReply    DecisionKind = "direct_reply"
	DecisionToolInvocation DecisionKind = "tool_invocation"
	DecisionEscalation     DecisionKind = "escalation"
)

// PolicyDecision is the single decision a turn produces. Exactly one of the
// variant fields matching Kind is set.
type PolicyDecision struct {
	Kind       DecisionKind    `json:"kind"`
	Reply      *DirectReply    `json:"reply,omitempty"`
	Tool       *ToolInvocation `json:"tool,omitempty"`
	Escalation *Escalation     `json:"escalation,omitempty"`
}

// DirectReply carries a composed reply and the passages that grounded it.
type DirectReply struct {
	Text             string   `json:"text"`
	SourcePassageIDs []string `json:"sourcePassageIds,omitempty"`
	Degraded         bool     `json:"degraded,omitempty"`
}

// ToolInvocation records a validated, executed tool call.
type ToolInvocation struct {
	ToolName  string                 `json:"toolName"`
	Arguments map[string]interface{} `json:"arguments"`
	Result    map[string]interface{} `json:"result,omitempty"`
	Message   string                 `json:"message,omitempty"`
}

// Escalation is the safety-first terminal path. Resources is never empty in
// a correctly configured deployment.
type Escalation struct {
	Message   string     `json:"message"`
	Resources []Resource `json:"resources"`
	Trigger   string     `json:"trigger,omitempty"` // detector, latched, fail_safe
}

// Resource points a user at concrete help.
type Resource struct {
	Name    string `json:"name"`
	Contact string `json:"contact,omitempty"`
	URL     string `json:"url,omitempty"`
}

// NewDirectReplyDecision wraps a reply in its tagged variant.
func NewDirectReplyDecision(reply *DirectReply) PolicyDecision {
	return PolicyDecision{Kind: DecisionDirectReply, Reply: reply}
}

// NewToolDecision wraps an invocation in its tagged variant.
func NewToolDecision(tool *ToolInvocation) PolicyDecision {
	return PolicyDecision{Kind: DecisionToolInvocation, Tool: tool}
}

// NewEscalationDecision wraps an escalation in its tagged variant.
func NewEscalationDecision(esc *Escalation) PolicyDecision {
	return PolicyDecision{Kind: DecisionEscalation, Escalation: esc}
}

// TurnOutcome is what ProcessTurn returns to the caller.
type TurnOutcome struct {
	TurnID         string         `json:"turnId"`
	ConversationID string         `json:"conversationId"`
	Decision       PolicyDecision `json:"decision"`
	Session        SessionSummary `json:"session"`
}

// SessionSummary is the caller-facing view of a conversation's state after
// a turn completes.
type SessionSummary struct {
	ConversationID string    `json:"conversationId"`
	State          State     `json:"state"`
	RiskLevel      RiskLevel `json:"riskLevel"`
	TurnCount      int       `json:"turnCount"`
	PendingTool    string    `json:"pendingTool,omitempty"`
}
