// internal/dialogue/manager.go
//
// Package dialogue orchestrates one conversation turn end to end. The
// manager is the single writer of session state and the only component
// that sees every stage: risk assessment gates the turn before anything
// user-visible is composed, intent classification and context retrieval
// run concurrently behind that gate, policy selection picks exactly one
// decision, and the exchange is appended to the session before the
// outcome is returned.
package dialogue

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	commonerrors "clarity-agent/internal/common/errors"
	"clarity-agent/internal/common/logger"
	"clarity-agent/internal/common/metrics"
	"clarity-agent/internal/common/observability"
	"clarity-agent/internal/common/validation"
	"clarity-agent/internal/corpus"
	"clarity-agent/internal/escalation"
	"clarity-agent/internal/models"
	assessrisk "clarity-agent/internal/pipeline/assess-risk"
	classifyintent "clarity-agent/internal/pipeline/classify-intent"
	composereply "clarity-agent/internal/pipeline/compose-reply"
	retrievecontext "clarity-agent/internal/pipeline/retrieve-context"
	"clarity-agent/internal/session"
	"clarity-agent/pkg/tools"
)

const componentName = "dialogue-manager"

// sessionStoreStage labels store failures in the stage metrics next to
// the pipeline stages.
const sessionStoreStage = "session-store"

// fallbackReplyText is the last-resort acknowledgment when the composer
// itself fails. The turn still completes with a structured outcome.
const fallbackReplyText = "Thanks for sharing that with me. I'm here and listening; tell me more whenever you're ready."

var (
	// ErrRiskStageRequired rejects construction without a risk handler.
	// The gate is not optional: without it every turn would have to be
	// refused fail-safe.
	ErrRiskStageRequired = errors.New("RISK_STAGE_REQUIRED")
	ErrComposerRequired  = errors.New("COMPOSER_REQUIRED")
	ErrStoreRequired     = errors.New("SESSION_STORE_REQUIRED")
)

// Deps are the collaborators a manager orchestrates. Risk, Composer and
// Store are mandatory; a nil Classifier or Retriever degrades those
// turns gracefully, a nil Registry disables tool routing, and a nil
// Notifier skips crisis alerting.
type Deps struct {
	Risk       *assessrisk.Handler
	Classifier *classifyintent.Handler
	Retriever  *retrievecontext.Handler
	Composer   composereply.Composer
	Registry   *tools.Registry
	Store      session.Store
	Notifier   *escalation.Notifier
	Tracing    *observability.Tracing
	Obs        *observability.Observability
}

// Manager drives the per-turn state machine
// idle -> awaiting_response -> (direct | tool_pending | escalated) -> idle.
type Manager struct {
	config     *Config
	risk       *assessrisk.Handler
	classifier *classifyintent.Handler
	retriever  *retrievecontext.Handler
	composer   composereply.Composer
	registry   *tools.Registry
	store      session.Store
	notifier   *escalation.Notifier
	tracing    *observability.Tracing
	obs        *observability.Observability
	locks      *conversationLocks
	logger     logger.Logger
}

func NewManager(config *Config, deps Deps, log logger.Logger) (*Manager, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if deps.Risk == nil {
		return nil, ErrRiskStageRequired
	}
	if deps.Composer == nil {
		return nil, ErrComposerRequired
	}
	if deps.Store == nil {
		return nil, ErrStoreRequired
	}

	return &Manager{
		config:     config,
		risk:       deps.Risk,
		classifier: deps.Classifier,
		retriever:  deps.Retriever,
		composer:   deps.Composer,
		registry:   deps.Registry,
		store:      deps.Store,
		notifier:   deps.Notifier,
		tracing:    deps.Tracing,
		obs:        deps.Obs,
		locks:      newConversationLocks(),
		logger:     log.WithFields(map[string]interface{}{"component": componentName}),
	}, nil
}

// turnContext carries one turn's intermediate products between the
// pipeline phases.
type turnContext struct {
	sess     *models.Session
	userTurn models.Turn
	decision models.PolicyDecision
	top      classifyintent.IntentResult
	slots    map[string]string
	mood     string
	passages []corpus.ScoredPassage
	degraded bool
	log      logger.Logger
}

// ProcessTurn runs one user turn through the pipeline and returns the
// structured outcome. Turns within a conversation are strictly
// sequential; distinct conversations proceed concurrently. The risk
// gate always completes before any reply is composed or delivered, and
// a cancelled caller context discards the turn without persisting.
//
// ProcessTurn can return both an outcome and an error: a fail-safe
// refusal surfaces RISK_ASSESSMENT_FAILURE and a misrouted intent
// surfaces UNKNOWN_TOOL, yet in both cases the user still receives a
// structured decision.
func (m *Manager) ProcessTurn(ctx context.Context, conversationID, rawText string) (*models.TurnOutcome, error) {
	if err := validateTurnRequest(conversationID, rawText); err != nil {
		return nil, err
	}

	unlock := m.locks.Lock(conversationID)
	defer unlock()

	metrics.ActiveConversations.Inc()
	defer metrics.ActiveConversations.Dec()

	ctx, span := m.tracing.StartSpan(ctx, "dialogue.process_turn",
		attribute.String("conversation.id", conversationID))
	defer span.End()

	start := time.Now()

	sess, err := m.store.GetOrCreate(ctx, conversationID)
	if err != nil {
		metrics.StageFailures.WithLabelValues(sessionStoreStage, string(commonerrors.ErrCodeSessionStore)).Inc()
		return nil, commonerrors.NewSessionStoreError("get_or_create", err)
	}
	sess.State = models.StateAwaitingResponse

	tc := &turnContext{
		sess: sess,
		userTurn: models.Turn{
			TurnID:         uuid.New().String(),
			ConversationID: conversationID,
			RawText:        rawText,
			Timestamp:      time.Now().UTC(),
			Role:           models.RoleUser,
		},
		top: classifyintent.IntentResult{Label: classifyintent.IntentUnknown},
		log: m.logger.WithFields(map[string]interface{}{
			"conversationId": conversationID,
		}),
	}

	var turnErr error

	assessment, riskErr := m.assessRisk(ctx, tc)
	switch {
	case riskErr != nil:
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		tc.decision = m.failSafe(tc, riskErr)
		turnErr = commonerrors.NewRiskAssessmentFailureError(riskErr)

	case models.MaxRiskLevel(assessment.Level, sess.RiskLevel) == models.RiskCrisis:
		if err := m.escalate(ctx, tc, assessment); err != nil {
			return nil, err
		}

	default:
		m.classifyAndRetrieve(ctx, tc)
		turnErr = m.selectPolicy(ctx, tc)
	}

	outcome, err := m.deliver(ctx, tc)
	if err != nil {
		return nil, err
	}

	elapsed := time.Since(start)
	metrics.TurnsProcessed.WithLabelValues(string(tc.decision.Kind), tc.top.Label).Inc()
	if m.obs != nil {
		m.obs.RecordTurnProcessed(ctx, string(tc.decision.Kind))
		m.obs.RecordTurnDuration(ctx, elapsed, string(tc.decision.Kind))
	}
	span.SetAttributes(
		attribute.String("decision.kind", string(tc.decision.Kind)),
		attribute.String("intent.label", tc.top.Label),
	)
	tc.log.Info("turn processed", map[string]interface{}{
		"turnId":     tc.userTurn.TurnID,
		"decision":   string(tc.decision.Kind),
		"intent":     tc.top.Label,
		"riskLevel":  string(outcome.Session.RiskLevel),
		"durationMs": elapsed.Milliseconds(),
	})

	return outcome, turnErr
}

// ResetRisk is the explicit, audited way a conversation's latched risk
// level returns to none. It is an operator action; the pipeline itself
// never lowers a level.
func (m *Manager) ResetRisk(ctx context.Context, conversationID, actor, reason string) (*models.SessionSummary, error) {
	if strings.TrimSpace(conversationID) == "" || strings.TrimSpace(actor) == "" {
		return nil, commonerrors.NewValidationError("conversation_id and actor are required")
	}

	unlock := m.locks.Lock(conversationID)
	defer unlock()

	sess, err := m.store.ResetRisk(ctx, conversationID, actor, reason)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			return nil, err
		}
		metrics.StageFailures.WithLabelValues(sessionStoreStage, string(commonerrors.ErrCodeSessionStore)).Inc()
		return nil, commonerrors.NewSessionStoreError("reset_risk", err)
	}

	m.logger.Info("risk level reset", map[string]interface{}{
		"conversationId": conversationID,
		"actor":          actor,
		"reason":         reason,
	})
	summary := sess.Summary()
	return &summary, nil
}

// assessRisk runs the gate stage over the turn text plus the bounded
// history window.
func (m *Manager) assessRisk(ctx context.Context, tc *turnContext) (*assessrisk.Assessment, error) {
	ctx, span := m.tracing.StartSpan(ctx, "dialogue.assess_risk")
	defer span.End()

	start := time.Now()
	assessment, err := m.risk.Execute(ctx, &assessrisk.Input{
		Text:          tc.userTurn.RawText,
		RecentHistory: tc.sess.RecentUserTexts(m.config.HistoryWindow),
	})
	metrics.StageDuration.WithLabelValues(assessrisk.StageName).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.StageFailures.WithLabelValues(assessrisk.StageName, string(commonerrors.ErrCodeRiskAssessmentFailure)).Inc()
		return nil, err
	}
	return assessment, nil
}

// failSafe refuses the turn without guessing a risk level. The session
// latch is left untouched, because a transient detector fault must not
// permanently poison the conversation, and nobody is paged for it.
func (m *Manager) failSafe(tc *turnContext, cause error) models.PolicyDecision {
	tc.log.WithError(cause).Error("risk assessment failed, refusing turn", nil)
	tc.sess.State = models.StateEscalated
	metrics.Escalations.WithLabelValues(escalation.TriggerFailSafe).Inc()
	return models.NewEscalationDecision(&models.Escalation{
		Message:   m.config.EscalationMessage,
		Resources: m.config.Resources,
		Trigger:   escalation.TriggerFailSafe,
	})
}

// escalate handles a crisis assessment or a previously latched level:
// latch the store, page the on-call best-effort, and short-circuit the
// reply to the configured escalation message. Later stages never
// override it.
func (m *Manager) escalate(ctx context.Context, tc *turnContext, assessment *assessrisk.Assessment) error {
	trigger := escalation.TriggerDetector
	if assessment.Level != models.RiskCrisis {
		trigger = escalation.TriggerLatched
	}
	tc.sess.State = models.StateEscalated

	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := m.store.LatchRisk(ctx, tc.sess.ConversationID, models.RiskCrisis, assessment.Rationale); err != nil {
		metrics.StageFailures.WithLabelValues(sessionStoreStage, string(commonerrors.ErrCodeSessionStore)).Inc()
		return commonerrors.NewSessionStoreError("latch_risk", err)
	}

	if m.notifier != nil {
		alert := &escalation.Alert{
			ConversationID: tc.sess.ConversationID,
			Trigger:        trigger,
			Signals:        assessment.MatchedSignals,
			Rationale:      assessment.Rationale,
			Excerpt:        tc.userTurn.RawText,
		}
		if _, err := m.notifier.Notify(ctx, alert); err != nil {
			// Alerting never blocks the escalation decision.
			tc.log.WithError(err).Warn("crisis alert dispatch failed", nil)
		}
	}

	metrics.Escalations.WithLabelValues(trigger).Inc()
	tc.decision = models.NewEscalationDecision(&models.Escalation{
		Message:   m.config.EscalationMessage,
		Resources: m.config.Resources,
		Trigger:   trigger,
	})
	return nil
}

// classifyAndRetrieve fans out the two independent stages and waits for
// both. Their failures degrade the turn instead of failing it; the risk
// gate has already passed by the time these run.
func (m *Manager) classifyAndRetrieve(ctx context.Context, tc *turnContext) {
	var (
		wg             sync.WaitGroup
		mu             sync.Mutex
		intents        *classifyintent.Output
		passages       []corpus.ScoredPassage
		classifyFailed bool
		retrieveFailed bool
	)
	errChan := make(chan error, 2)

	if m.classifier != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			out, err := m.classifyTurn(ctx, tc.userTurn.RawText)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				classifyFailed = true
				errChan <- fmt.Errorf("%s: %w", classifyintent.StageName, err)
				return
			}
			intents = out
		}()
	}

	if m.retriever != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			out, err := m.retrievePassages(ctx, tc.userTurn.RawText)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				retrieveFailed = true
				errChan <- fmt.Errorf("%s: %w", retrievecontext.StageName, err)
				return
			}
			passages = out.Passages
		}()
	}

	go func() {
		wg.Wait()
		close(errChan)
	}()

	for err := range errChan {
		tc.log.WithError(err).Warn("pipeline stage degraded", nil)
	}

	if intents != nil {
		tc.top = intents.Top()
	}
	tc.slots, tc.mood = slotsFromEntities(tc.top.Entities)
	tc.passages = passages
	tc.degraded = classifyFailed && retrieveFailed
}

func (m *Manager) classifyTurn(ctx context.Context, text string) (*classifyintent.Output, error) {
	ctx, span := m.tracing.StartSpan(ctx, "dialogue.classify_intent")
	defer span.End()

	start := time.Now()
	out, err := m.classifier.Execute(ctx, &classifyintent.Input{Text: text})
	metrics.StageDuration.WithLabelValues(classifyintent.StageName).Observe(time.Since(start).Seconds())
	if err != nil {
		code := commonerrors.ErrCodeClassificationUnavailable
		if errors.Is(err, classifyintent.ErrMalformedExtraction) {
			code = commonerrors.ErrCodeMalformedExtraction
		}
		metrics.StageFailures.WithLabelValues(classifyintent.StageName, string(code)).Inc()
		return nil, err
	}
	return out, nil
}

func (m *Manager) retrievePassages(ctx context.Context, text string) (*retrievecontext.Output, error) {
	ctx, span := m.tracing.StartSpan(ctx, "dialogue.retrieve_context")
	defer span.End()

	start := time.Now()
	out, err := m.retriever.Execute(ctx, &retrievecontext.Input{Query: text, TopK: m.config.ContextK})
	metrics.StageDuration.WithLabelValues(retrievecontext.StageName).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.StageFailures.WithLabelValues(retrievecontext.StageName, string(commonerrors.ErrCodeRetrievalUnavailable)).Inc()
		return nil, err
	}
	return out, nil
}

// selectPolicy picks the turn's decision once the gate has passed: a
// held-back tool call has first claim on this turn's slots, then a
// confident tool-mapped intent, then a direct reply.
func (m *Manager) selectPolicy(ctx context.Context, tc *turnContext) error {
	if tc.sess.PendingTool != nil && m.registry != nil {
		if handled, err := m.resumePendingTool(ctx, tc); handled {
			return err
		}
	}

	if toolName, ok := m.toolFor(tc.top); ok {
		return m.invokeToolPolicy(ctx, tc, toolName, buildToolArguments(toolName, tc.slots))
	}

	tc.sess.State = models.StateDirect
	tc.decision = models.NewDirectReplyDecision(m.compose(ctx, tc, nil))
	return nil
}

// toolFor maps a confident intent to its registered tool.
func (m *Manager) toolFor(top classifyintent.IntentResult) (string, bool) {
	if m.registry == nil || top.Confidence < m.config.IntentConfidenceThreshold {
		return "", false
	}
	name, ok := m.config.IntentToolMap[top.Label]
	if !ok || name == "" {
		return "", false
	}
	return name, true
}

// resumePendingTool tries to finish the call held back on an earlier
// turn. It reports handled=false when this turn contributes none of the
// outstanding fields, so unrelated turns flow through normal policy and
// the pending request stays put.
func (m *Manager) resumePendingTool(ctx context.Context, tc *turnContext) (bool, error) {
	pending := tc.sess.PendingTool
	args, ok := mergePendingArguments(pending, tc.slots)
	if !ok {
		return false, nil
	}

	err := m.invokeToolPolicy(ctx, tc, pending.ToolName, args)
	cleared := tc.decision.Kind == models.DecisionToolInvocation ||
		commonerrors.HasCode(err, commonerrors.ErrCodeUnknownTool)
	if cleared {
		if storeErr := m.store.SetPendingTool(ctx, tc.sess.ConversationID, nil); storeErr != nil {
			tc.log.WithError(storeErr).Warn("pending tool not cleared", nil)
		}
	}
	return true, err
}

// invokeToolPolicy validates and runs a tool call, translating each
// failure class into the decision the policy demands: argument problems
// become a clarification prompt plus a recorded pending call, a
// misrouted intent surfaces the configuration fault while still
// answering, and runtime failures fall back to a degraded direct reply.
func (m *Manager) invokeToolPolicy(ctx context.Context, tc *turnContext, toolName string, args map[string]interface{}) error {
	result, err := m.invokeTool(ctx, tc.sess.ConversationID, toolName, args)
	if err == nil {
		metrics.ToolInvocations.WithLabelValues(toolName, "success").Inc()
		tc.sess.State = models.StateToolPending
		tc.decision = models.NewToolDecision(&models.ToolInvocation{
			ToolName:  toolName,
			Arguments: args,
			Result:    result.Data,
			Message:   result.Message,
		})
		return nil
	}

	var argErr *tools.ArgumentError
	switch {
	case errors.As(err, &argErr):
		metrics.ToolInvocations.WithLabelValues(toolName, "rejected").Inc()
		pending := &models.PendingToolRequest{
			ToolName:      toolName,
			Arguments:     args,
			MissingFields: argErr.Fields,
			RequestedAt:   time.Now().UTC(),
		}
		if storeErr := m.store.SetPendingTool(ctx, tc.sess.ConversationID, pending); storeErr != nil {
			tc.log.WithError(storeErr).Warn("pending tool not recorded", nil)
		}
		tc.log.Info("tool call held for clarification", map[string]interface{}{
			"tool":          toolName,
			"missingFields": argErr.Fields,
		})
		tc.sess.State = models.StateDirect
		tc.decision = models.NewDirectReplyDecision(
			m.compose(ctx, tc, &composereply.Clarification{Tool: toolName, Fields: argErr.Fields}))
		return nil

	case errors.Is(err, tools.ErrUnknownTool):
		metrics.ToolInvocations.WithLabelValues(toolName, "unknown").Inc()
		tc.log.WithError(err).Error("intent routed to unregistered tool", map[string]interface{}{
			"tool": toolName,
		})
		tc.sess.State = models.StateDirect
		tc.decision = models.NewDirectReplyDecision(
			m.compose(ctx, tc, &composereply.Clarification{Tool: toolName}))
		return commonerrors.NewUnknownToolError(toolName)

	default:
		metrics.ToolInvocations.WithLabelValues(toolName, "error").Inc()
		metrics.StageFailures.WithLabelValues("tools", string(commonerrors.ErrCodeToolExecution)).Inc()
		tc.log.WithError(err).Warn("tool execution failed, replying directly", map[string]interface{}{
			"tool": toolName,
		})
		tc.degraded = true
		tc.sess.State = models.StateDirect
		tc.decision = models.NewDirectReplyDecision(m.compose(ctx, tc, nil))
		return nil
	}
}

func (m *Manager) invokeTool(ctx context.Context, conversationID, toolName string, args map[string]interface{}) (*tools.Result, error) {
	ctx, span := m.tracing.StartSpan(ctx, "dialogue.invoke_tool",
		attribute.String("tool.name", toolName))
	defer span.End()

	start := time.Now()
	result, err := m.registry.Invoke(ctx, toolName, &tools.Invocation{
		ConversationID: conversationID,
		Arguments:      args,
	})
	metrics.StageDuration.WithLabelValues("tools").Observe(time.Since(start).Seconds())
	return result, err
}

// compose runs the reply composer. A composer fault can never drop the
// turn: it degrades to a generic acknowledgment instead.
func (m *Manager) compose(ctx context.Context, tc *turnContext, clar *composereply.Clarification) *models.DirectReply {
	ctx, span := m.tracing.StartSpan(ctx, "dialogue.compose_reply")
	defer span.End()

	input := &composereply.Input{
		Text:          tc.userTurn.RawText,
		Intent:        tc.top.Label,
		Mood:          tc.mood,
		Slots:         tc.slots,
		Passages:      tc.passages,
		Clarification: clar,
		Degraded:      tc.degraded,
	}

	start := time.Now()
	reply, err := m.composer.Compose(ctx, input)
	metrics.StageDuration.WithLabelValues(composereply.StageName).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.StageFailures.WithLabelValues(composereply.StageName, string(commonerrors.ErrCodeComposerFailed)).Inc()
		tc.log.WithError(err).Warn("composer failed, using fallback acknowledgment", nil)
		return &models.DirectReply{Text: fallbackReplyText, Degraded: true}
	}

	out := &models.DirectReply{Text: reply.Text, Degraded: tc.degraded}
	if clar == nil {
		for _, p := range tc.passages {
			out.SourcePassageIDs = append(out.SourcePassageIDs, p.ID)
		}
	}
	return out
}

// deliver persists the exchange and builds the caller-facing outcome.
// Nothing is persisted once the caller has gone away, and the stored
// session returns to idle the moment the outcome exists.
func (m *Manager) deliver(ctx context.Context, tc *turnContext) (*models.TurnOutcome, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if _, err := m.store.AppendTurn(ctx, tc.sess.ConversationID, tc.userTurn, nil); err != nil {
		metrics.StageFailures.WithLabelValues(sessionStoreStage, string(commonerrors.ErrCodeSessionStore)).Inc()
		return nil, commonerrors.NewSessionStoreError("append_turn", err)
	}

	now := time.Now().UTC()
	agentTurn := models.Turn{
		TurnID:         uuid.New().String(),
		ConversationID: tc.sess.ConversationID,
		RawText:        decisionText(tc.decision),
		Timestamp:      now,
		Role:           models.RoleAgent,
	}
	record := &models.DecisionRecord{
		TurnID:    tc.userTurn.TurnID,
		Kind:      tc.decision.Kind,
		Timestamp: now,
	}
	if tc.decision.Tool != nil {
		record.ToolName = tc.decision.Tool.ToolName
	}

	updated, err := m.store.AppendTurn(ctx, tc.sess.ConversationID, agentTurn, record)
	if err != nil {
		metrics.StageFailures.WithLabelValues(sessionStoreStage, string(commonerrors.ErrCodeSessionStore)).Inc()
		return nil, commonerrors.NewSessionStoreError("append_turn", err)
	}

	return &models.TurnOutcome{
		TurnID:         tc.userTurn.TurnID,
		ConversationID: tc.sess.ConversationID,
		Decision:       tc.decision,
		Session:        updated.Summary(),
	}, nil
}

// decisionText is the user-visible text a decision carries.
func decisionText(d models.PolicyDecision) string {
	switch d.Kind {
	case models.DecisionDirectReply:
		if d.Reply != nil {
			return d.Reply.Text
		}
	case models.DecisionToolInvocation:
		if d.Tool != nil {
			return d.Tool.Message
		}
	case models.DecisionEscalation:
		if d.Escalation != nil {
			return d.Escalation.Message
		}
	}
	return ""
}

func validateTurnRequest(conversationID, rawText string) error {
	result := validation.ValidateInput(map[string]interface{}{
		"conversation_id": conversationID,
		"text":            rawText,
	}, validation.TurnRequestSchema())
	if !result.Valid {
		return commonerrors.NewValidationError(strings.Join(result.GetErrorMessages(), "; "))
	}
	return nil
}

// slotsFromEntities keeps the first value per entity type. Mood
// mentions travel separately so they never collide with tool slots.
func slotsFromEntities(entities []classifyintent.Entity) (map[string]string, string) {
	slots := make(map[string]string, len(entities))
	mood := ""
	for _, e := range entities {
		if e.Type == "mood" {
			if mood == "" {
				mood = e.Value
			}
			continue
		}
		if _, ok := slots[e.Type]; !ok {
			slots[e.Type] = e.Value
		}
	}
	return slots, mood
}

// subjectStopwords filters pronoun and article captures from phrasings
// like "a plan for my exam", which name no actual subject.
var subjectStopwords = map[string]struct{}{
	"my": {}, "the": {}, "a": {}, "an": {}, "this": {}, "that": {},
}

// buildToolArguments maps this turn's slots onto the named tool's
// argument fields. Fields without a usable slot stay absent so schema
// validation reports exactly what is missing.
func buildToolArguments(toolName string, slots map[string]string) map[string]interface{} {
	args := map[string]interface{}{}
	switch toolName {
	case "start_timer":
		if n, ok := intSlot(slots, "duration_minutes"); ok {
			args["duration_minutes"] = n
		}
	case "save_journal_entry":
		if v, ok := slots["journal_text"]; ok && v != "" {
			args["text"] = v
		}
	case "create_study_plan":
		if v, ok := slots["subject"]; ok {
			if _, stop := subjectStopwords[strings.ToLower(strings.TrimSpace(v))]; !stop && v != "" {
				args["subject"] = v
			}
		}
		if n, ok := intSlot(slots, "days"); ok {
			args["days"] = n
		}
		if f, ok := floatSlot(slots, "hours_per_day"); ok {
			args["hours_per_day"] = f
		}
	}
	return args
}

// mergePendingArguments overlays this turn's slots onto the held-back
// arguments. ok is false when the turn fills none of the outstanding
// fields: an unrelated turn must not keep re-triggering the same
// validation failure. Partial fills are returned as-is so re-validation
// can narrow the clarification to what is still missing.
func mergePendingArguments(pending *models.PendingToolRequest, slots map[string]string) (map[string]interface{}, bool) {
	fresh := buildToolArguments(pending.ToolName, slots)

	contributes := false
	for _, field := range pending.MissingFields {
		if _, ok := fresh[field]; ok {
			contributes = true
			break
		}
	}
	if !contributes {
		return nil, false
	}

	args := make(map[string]interface{}, len(pending.Arguments)+len(fresh))
	for k, v := range pending.Arguments {
		args[k] = v
	}
	for k, v := range fresh {
		args[k] = v
	}
	return args, true
}

func intSlot(slots map[string]string, key string) (int, bool) {
	v, ok := slots[key]
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return 0, false
	}
	return n, true
}

func floatSlot(slots map[string]string, key string) (float64, bool) {
	v, ok := slots[key]
	if !ok {
		return 0, false
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		return 0, false
	}
	return f, true
}
