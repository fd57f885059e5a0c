// internal/dialogue/manager_test.go
package dialogue

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	commonerrors "clarity-agent/internal/common/errors"
	"clarity-agent/internal/common/logger"
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

// ==========================
// Test Helper Functions
// ==========================

func createTestLogger(t *testing.T) logger.Logger {
	return logger.NewZapAdapter(zaptest.NewLogger(t))
}

type fixtureParams struct {
	cfg         *Config
	failRisk    bool
	failStages  bool
	bareStages  bool
	noRegistry  bool
	failingTool string
}

type fixtureOption func(*fixtureParams)

func withConfig(cfg *Config) fixtureOption {
	return func(p *fixtureParams) { p.cfg = cfg }
}

// withFailingRisk gives the risk stage an already-expired deadline so
// every assessment fails while the caller's context stays live.
func withFailingRisk() fixtureOption {
	return func(p *fixtureParams) { p.failRisk = true }
}

// withFailingStages does the same to the classifier and the retriever.
func withFailingStages() fixtureOption {
	return func(p *fixtureParams) { p.failStages = true }
}

// withoutStages builds a manager with no classifier and no retriever.
func withoutStages() fixtureOption {
	return func(p *fixtureParams) { p.bareStages = true }
}

func withoutRegistry() fixtureOption {
	return func(p *fixtureParams) { p.noRegistry = true }
}

// withFailingTool swaps the named tool's executor for one that always
// errors at runtime; its arguments still validate normally.
func withFailingTool(name string) fixtureOption {
	return func(p *fixtureParams) { p.failingTool = name }
}

// fixture wires a manager against in-memory collaborators. Tool
// executors are spies so tests can assert whether a side effect ran.
type fixture struct {
	manager *Manager
	store   *session.MemoryStore

	mu    sync.Mutex
	calls map[string]int
}

func newFixture(t *testing.T, opts ...fixtureOption) *fixture {
	t.Helper()

	p := &fixtureParams{}
	for _, opt := range opts {
		opt(p)
	}

	log := createTestLogger(t)

	riskCfg := assessrisk.DefaultConfig()
	if p.failRisk {
		riskCfg.Timeout = -time.Millisecond
	}
	risk, err := assessrisk.NewHandler(riskCfg, log)
	require.NoError(t, err)

	store := session.NewMemoryStore(50)
	f := &fixture{store: store, calls: make(map[string]int)}

	deps := Deps{
		Risk:     risk,
		Composer: composereply.NewRuleBasedComposer(log),
		Store:    store,
	}

	if !p.bareStages {
		classifierCfg := classifyintent.DefaultConfig()
		retrieverCfg := retrievecontext.DefaultConfig()
		if p.failStages {
			classifierCfg.Timeout = -time.Millisecond
			retrieverCfg.Timeout = -time.Millisecond
		}

		classifier, err := classifyintent.NewHandler(classifierCfg, log)
		require.NoError(t, err)
		deps.Classifier = classifier

		idx := corpus.NewMemoryIndex()
		require.NoError(t, corpus.Seed(context.Background(), idx))
		deps.Retriever = retrievecontext.NewHandler(retrieverCfg, idx, nil, log)
	}

	if !p.noRegistry {
		registry := tools.NewRegistry(log)
		for _, def := range []tools.Definition{
			tools.StartTimerDefinition(),
			tools.StopTimerDefinition(),
			tools.SaveJournalEntryDefinition(),
			tools.JournalSummaryDefinition(),
			tools.CreateStudyPlanDefinition(),
		} {
			executor := f.spyExecutor(def.Name)
			if def.Name == p.failingTool {
				executor = tools.ExecutorFunc(func(context.Context, *tools.Invocation) (*tools.Result, error) {
					return nil, errors.New("backend offline")
				})
			}
			require.NoError(t, registry.Register(def, executor))
		}
		deps.Registry = registry
	}

	m, err := NewManager(p.cfg, deps, log)
	require.NoError(t, err)
	f.manager = m
	return f
}

func (f *fixture) spyExecutor(name string) tools.Executor {
	return tools.ExecutorFunc(func(_ context.Context, inv *tools.Invocation) (*tools.Result, error) {
		f.mu.Lock()
		f.calls[name]++
		f.mu.Unlock()
		return &tools.Result{
			Message: "done: " + name,
			Data:    map[string]interface{}{"status": "ok"},
		}, nil
	})
}

func (f *fixture) callCount(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[name]
}

func (f *fixture) session(t *testing.T, conversationID string) *models.Session {
	t.Helper()
	s, err := f.store.GetOrCreate(context.Background(), conversationID)
	require.NoError(t, err)
	return s
}

// ==========================
// Construction Tests
// ==========================

func TestNewManager_RequiredDeps(t *testing.T) {
	log := createTestLogger(t)
	risk, err := assessrisk.NewHandler(nil, log)
	require.NoError(t, err)
	composer := composereply.NewRuleBasedComposer(log)
	store := session.NewMemoryStore(10)

	tests := []struct {
		name string
		deps Deps
		want error
	}{
		{"missing risk stage", Deps{Composer: composer, Store: store}, ErrRiskStageRequired},
		{"missing composer", Deps{Risk: risk, Store: store}, ErrComposerRequired},
		{"missing store", Deps{Risk: risk, Composer: composer}, ErrStoreRequired},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewManager(nil, tt.deps, log)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

// ==========================
// Core Turn Processing Tests
// ==========================

func TestManager_DirectReplyGroundedInCorpus(t *testing.T) {
	f := newFixture(t)

	out, err := f.manager.ProcessTurn(context.Background(), "conv-stress", "I'm stressed about exams")
	require.NoError(t, err)

	assert.Equal(t, models.DecisionDirectReply, out.Decision.Kind)
	require.NotNil(t, out.Decision.Reply)
	assert.Contains(t, out.Decision.Reply.Text, "Managing exam stress")
	assert.Equal(t, []string{"kb-exam-stress"}, out.Decision.Reply.SourcePassageIDs)
	assert.False(t, out.Decision.Reply.Degraded)

	assert.Equal(t, models.StateIdle, out.Session.State)
	assert.Equal(t, models.RiskNone, out.Session.RiskLevel)
	assert.Equal(t, 1, out.Session.TurnCount)
}

func TestManager_AppendsExchangeToHistory(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	out, err := f.manager.ProcessTurn(ctx, "conv-history", "hello there")
	require.NoError(t, err)
	require.NotNil(t, out.Decision.Reply)

	sess := f.session(t, "conv-history")
	require.Len(t, sess.History, 2)
	assert.Equal(t, models.RoleUser, sess.History[0].Role)
	assert.Equal(t, "hello there", sess.History[0].RawText)
	assert.Equal(t, out.TurnID, sess.History[0].TurnID)
	assert.Equal(t, models.RoleAgent, sess.History[1].Role)
	assert.Equal(t, out.Decision.Reply.Text, sess.History[1].RawText)

	require.Len(t, sess.Decisions, 1)
	assert.Equal(t, out.TurnID, sess.Decisions[0].TurnID)
	assert.Equal(t, models.DecisionDirectReply, sess.Decisions[0].Kind)
}

func TestManager_RejectsInvalidRequest(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name           string
		conversationID string
		text           string
	}{
		{"empty conversation id", "", "hello"},
		{"oversized text", "conv-1", strings.Repeat("x", 8001)},
		{"oversized conversation id", strings.Repeat("c", 129), "hello"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := f.manager.ProcessTurn(context.Background(), tt.conversationID, tt.text)
			require.Error(t, err)
			assert.Nil(t, out)
			assert.True(t, commonerrors.HasCode(err, commonerrors.ErrCodeValidation))
		})
	}
}

func TestManager_CancelledContextDiscardsTurn(t *testing.T) {
	f := newFixture(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	out, err := f.manager.ProcessTurn(ctx, "conv-cancelled", "hello")
	require.Error(t, err)
	assert.Nil(t, out)
	assert.ErrorIs(t, err, context.Canceled)

	sess := f.session(t, "conv-cancelled")
	assert.Empty(t, sess.History)
}

// ==========================
// Risk Gate Tests
// ==========================

func TestManager_CrisisEscalation(t *testing.T) {
	f := newFixture(t)

	out, err := f.manager.ProcessTurn(context.Background(), "conv-crisis", "I feel like hurting myself")
	require.NoError(t, err)

	assert.Equal(t, models.DecisionEscalation, out.Decision.Kind)
	require.NotNil(t, out.Decision.Escalation)
	assert.Equal(t, escalation.TriggerDetector, out.Decision.Escalation.Trigger)
	assert.NotEmpty(t, out.Decision.Escalation.Resources)
	assert.Contains(t, out.Decision.Escalation.Message, "988")

	assert.Equal(t, models.RiskCrisis, out.Session.RiskLevel)

	sess := f.session(t, "conv-crisis")
	require.Len(t, sess.RiskAudit, 1)
	assert.Equal(t, session.RiskDetectorActor, sess.RiskAudit[0].Actor)
	assert.Equal(t, models.RiskNone, sess.RiskAudit[0].From)
	assert.Equal(t, models.RiskCrisis, sess.RiskAudit[0].To)
}

func TestManager_LatchedCrisisPersists(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.manager.ProcessTurn(ctx, "conv-latched", "I keep thinking about suicide")
	require.NoError(t, err)

	// The follow-up has no crisis signals of its own.
	out, err := f.manager.ProcessTurn(ctx, "conv-latched", "thanks, feeling a bit calmer today")
	require.NoError(t, err)

	assert.Equal(t, models.DecisionEscalation, out.Decision.Kind)
	require.NotNil(t, out.Decision.Escalation)
	assert.Equal(t, escalation.TriggerLatched, out.Decision.Escalation.Trigger)
	assert.Equal(t, models.RiskCrisis, out.Session.RiskLevel)

	// Re-latching at the same level writes no second audit entry.
	sess := f.session(t, "conv-latched")
	assert.Len(t, sess.RiskAudit, 1)
}

func TestManager_EscalationSuppressesTools(t *testing.T) {
	f := newFixture(t)

	out, err := f.manager.ProcessTurn(context.Background(), "conv-suppress",
		"start a 25 minute timer, I want to end my life")
	require.NoError(t, err)

	assert.Equal(t, models.DecisionEscalation, out.Decision.Kind)
	assert.Zero(t, f.callCount("start_timer"))
}

func TestManager_SustainedDistressEscalates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for _, text := range []string{
		"I'm so stressed about everything",
		"still stressed and exhausted",
	} {
		out, err := f.manager.ProcessTurn(ctx, "conv-sustained", text)
		require.NoError(t, err)
		assert.Equal(t, models.DecisionDirectReply, out.Decision.Kind)
	}

	out, err := f.manager.ProcessTurn(ctx, "conv-sustained", "completely overwhelmed again")
	require.NoError(t, err)

	assert.Equal(t, models.DecisionEscalation, out.Decision.Kind)
	assert.Equal(t, models.RiskCrisis, out.Session.RiskLevel)
}

func TestManager_FailSafeOnRiskFailure(t *testing.T) {
	f := newFixture(t, withFailingRisk())

	out, err := f.manager.ProcessTurn(context.Background(), "conv-failsafe", "hello")
	require.Error(t, err)
	assert.True(t, commonerrors.HasCode(err, commonerrors.ErrCodeRiskAssessmentFailure))

	// The caller still gets a structured refusal.
	require.NotNil(t, out)
	assert.Equal(t, models.DecisionEscalation, out.Decision.Kind)
	require.NotNil(t, out.Decision.Escalation)
	assert.Equal(t, escalation.TriggerFailSafe, out.Decision.Escalation.Trigger)
	assert.NotEmpty(t, out.Decision.Escalation.Resources)

	// A detector fault must not latch the conversation.
	assert.Equal(t, models.RiskNone, out.Session.RiskLevel)
	sess := f.session(t, "conv-failsafe")
	assert.Empty(t, sess.RiskAudit)
	assert.Len(t, sess.History, 2)
}

func TestManager_ResetRisk(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.manager.ProcessTurn(ctx, "conv-reset", "I want to end my life")
	require.NoError(t, err)

	summary, err := f.manager.ResetRisk(ctx, "conv-reset", "oncall-clinician", "reviewed transcript with user")
	require.NoError(t, err)
	assert.Equal(t, models.RiskNone, summary.RiskLevel)

	sess := f.session(t, "conv-reset")
	require.Len(t, sess.RiskAudit, 2)
	assert.Equal(t, "oncall-clinician", sess.RiskAudit[1].Actor)
	assert.Equal(t, models.RiskCrisis, sess.RiskAudit[1].From)
	assert.Equal(t, models.RiskNone, sess.RiskAudit[1].To)

	// After the reset the conversation flows normally again.
	out, err := f.manager.ProcessTurn(ctx, "conv-reset", "hello again")
	require.NoError(t, err)
	assert.Equal(t, models.DecisionDirectReply, out.Decision.Kind)
}

func TestManager_ResetRiskValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.manager.ResetRisk(ctx, "conv-x", "  ", "no actor")
	require.Error(t, err)
	assert.True(t, commonerrors.HasCode(err, commonerrors.ErrCodeValidation))

	_, err = f.manager.ResetRisk(ctx, "conv-never-seen", "oncall-clinician", "typo")
	assert.ErrorIs(t, err, session.ErrNotFound)
}

// ==========================
// Tool Policy Tests
// ==========================

func TestManager_ToolInvocation(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		tool     string
		wantArgs map[string]interface{}
	}{
		{
			"timer with duration",
			"start a 25 minute focus timer",
			"start_timer",
			map[string]interface{}{"duration_minutes": 25},
		},
		{
			"journal entry",
			"save a journal note: rough day but I took a walk",
			"save_journal_entry",
			map[string]interface{}{"text": "rough day but I took a walk"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)

			out, err := f.manager.ProcessTurn(context.Background(), "conv-tool", tt.text)
			require.NoError(t, err)

			assert.Equal(t, models.DecisionToolInvocation, out.Decision.Kind)
			require.NotNil(t, out.Decision.Tool)
			assert.Equal(t, tt.tool, out.Decision.Tool.ToolName)
			assert.Equal(t, tt.wantArgs, out.Decision.Tool.Arguments)
			assert.NotEmpty(t, out.Decision.Tool.Message)
			assert.Equal(t, 1, f.callCount(tt.tool))

			sess := f.session(t, "conv-tool")
			require.Len(t, sess.Decisions, 1)
			assert.Equal(t, tt.tool, sess.Decisions[0].ToolName)
		})
	}
}

func TestManager_ArgumentClarificationHoldsTool(t *testing.T) {
	f := newFixture(t)

	out, err := f.manager.ProcessTurn(context.Background(), "conv-clarify", "start a pomodoro")
	require.NoError(t, err)

	assert.Equal(t, models.DecisionDirectReply, out.Decision.Kind)
	require.NotNil(t, out.Decision.Reply)
	assert.Contains(t, out.Decision.Reply.Text, "duration minutes")

	// Validation failed, so the executor never ran.
	assert.Zero(t, f.callCount("start_timer"))

	assert.Equal(t, "start_timer", out.Session.PendingTool)
	sess := f.session(t, "conv-clarify")
	require.NotNil(t, sess.PendingTool)
	assert.Equal(t, []string{"duration_minutes"}, sess.PendingTool.MissingFields)
}

func TestManager_PendingToolCompletion(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.manager.ProcessTurn(ctx, "conv-pending", "start a pomodoro")
	require.NoError(t, err)

	out, err := f.manager.ProcessTurn(ctx, "conv-pending", "25 minutes please")
	require.NoError(t, err)

	assert.Equal(t, models.DecisionToolInvocation, out.Decision.Kind)
	require.NotNil(t, out.Decision.Tool)
	assert.Equal(t, "start_timer", out.Decision.Tool.ToolName)
	assert.Equal(t, 25, out.Decision.Tool.Arguments["duration_minutes"])
	assert.Equal(t, 1, f.callCount("start_timer"))

	assert.Empty(t, out.Session.PendingTool)
	sess := f.session(t, "conv-pending")
	assert.Nil(t, sess.PendingTool)
}

func TestManager_UnrelatedTurnKeepsPending(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.manager.ProcessTurn(ctx, "conv-keep", "start a pomodoro")
	require.NoError(t, err)

	out, err := f.manager.ProcessTurn(ctx, "conv-keep", "hello there")
	require.NoError(t, err)

	assert.Equal(t, models.DecisionDirectReply, out.Decision.Kind)
	assert.Contains(t, out.Decision.Reply.Text, "focus routines")
	assert.Zero(t, f.callCount("start_timer"))

	// The held-back call waits for a turn that actually fills its gap.
	assert.Equal(t, "start_timer", out.Session.PendingTool)
}

func TestManager_UnknownToolRouting(t *testing.T) {
	cfg := DefaultConfig()
	cfg.IntentToolMap = map[string]string{"pomodoro_start": "breathing_coach"}
	f := newFixture(t, withConfig(cfg))

	out, err := f.manager.ProcessTurn(context.Background(), "conv-unknown", "start a 25 minute focus timer")
	require.Error(t, err)
	assert.True(t, commonerrors.HasCode(err, commonerrors.ErrCodeUnknownTool))

	// The configuration fault surfaces, but the user still gets a reply.
	require.NotNil(t, out)
	assert.Equal(t, models.DecisionDirectReply, out.Decision.Kind)
	assert.Contains(t, out.Decision.Reply.Text, "can't run that one yet")
}

func TestManager_ToolRuntimeFailureFallsBack(t *testing.T) {
	f := newFixture(t, withFailingTool("start_timer"))

	out, err := f.manager.ProcessTurn(context.Background(), "conv-broken", "start a 25 minute focus timer")
	require.NoError(t, err)

	assert.Equal(t, models.DecisionDirectReply, out.Decision.Kind)
	require.NotNil(t, out.Decision.Reply)
	assert.True(t, out.Decision.Reply.Degraded)
	assert.NotEmpty(t, out.Decision.Reply.Text)
}

func TestManager_NoRegistryDisablesTools(t *testing.T) {
	f := newFixture(t, withoutRegistry())

	out, err := f.manager.ProcessTurn(context.Background(), "conv-noreg", "start a 25 minute focus timer")
	require.NoError(t, err)

	assert.Equal(t, models.DecisionDirectReply, out.Decision.Kind)
	assert.Empty(t, out.Session.PendingTool)
}

// ==========================
// Degraded Mode Tests
// ==========================

func TestManager_DegradedWhenStagesFail(t *testing.T) {
	f := newFixture(t, withFailingStages())

	out, err := f.manager.ProcessTurn(context.Background(), "conv-degraded", "I'm stressed about exams")
	require.NoError(t, err)

	assert.Equal(t, models.DecisionDirectReply, out.Decision.Kind)
	require.NotNil(t, out.Decision.Reply)
	assert.True(t, out.Decision.Reply.Degraded)
	assert.Empty(t, out.Decision.Reply.SourcePassageIDs)
}

func TestManager_RunsWithoutOptionalStages(t *testing.T) {
	f := newFixture(t, withoutStages())

	out, err := f.manager.ProcessTurn(context.Background(), "conv-bare", "I'm stressed about exams")
	require.NoError(t, err)

	assert.Equal(t, models.DecisionDirectReply, out.Decision.Kind)
	require.NotNil(t, out.Decision.Reply)
	assert.False(t, out.Decision.Reply.Degraded)
	assert.NotEmpty(t, out.Decision.Reply.Text)
}

// ==========================
// Concurrency Tests
// ==========================

func TestManager_ConcurrentConversations(t *testing.T) {
	f := newFixture(t)

	const conversations = 8
	var wg sync.WaitGroup
	errChan := make(chan error, conversations)

	for i := 0; i < conversations; i++ {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			out, err := f.manager.ProcessTurn(context.Background(), id, "hello, any focus tips?")
			if err == nil && out.Decision.Kind != models.DecisionDirectReply {
				err = fmt.Errorf("unexpected decision %s", out.Decision.Kind)
			}
			errChan <- err
		}(fmt.Sprintf("conv-concurrent-%d", i))
	}
	wg.Wait()
	close(errChan)

	for err := range errChan {
		require.NoError(t, err)
	}

	for i := 0; i < conversations; i++ {
		sess := f.session(t, fmt.Sprintf("conv-concurrent-%d", i))
		assert.Len(t, sess.History, 2)
	}
}

func TestConversationLocks_SerializesSameConversation(t *testing.T) {
	locks := newConversationLocks()
	release := locks.Lock("conv-1")

	acquired := make(chan struct{})
	go func() {
		unlock := locks.Lock("conv-1")
		close(acquired)
		unlock()
	}()

	select {
	case <-acquired:
		t.Fatal("second holder acquired the lock while the first still held it")
	case <-time.After(50 * time.Millisecond):
	}

	release()
	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("second holder never acquired the lock after release")
	}
}

func TestConversationLocks_IndependentConversations(t *testing.T) {
	locks := newConversationLocks()

	unlockA := locks.Lock("conv-a")
	unlockB := locks.Lock("conv-b")
	unlockB()
	unlockA()
}

// ==========================
// Benchmark Tests
// ==========================

func BenchmarkManager_ProcessTurn(b *testing.B) {
	log := logger.NewNoOpLogger()

	risk, err := assessrisk.NewHandler(nil, log)
	if err != nil {
		b.Fatalf("risk handler: %v", err)
	}
	classifier, err := classifyintent.NewHandler(nil, log)
	if err != nil {
		b.Fatalf("classifier: %v", err)
	}
	idx := corpus.NewMemoryIndex()
	if err := corpus.Seed(context.Background(), idx); err != nil {
		b.Fatalf("seed corpus: %v", err)
	}

	m, err := NewManager(nil, Deps{
		Risk:       risk,
		Classifier: classifier,
		Retriever:  retrievecontext.NewHandler(nil, idx, nil, log),
		Composer:   composereply.NewRuleBasedComposer(log),
		Store:      session.NewMemoryStore(50),
	}, log)
	if err != nil {
		b.Fatalf("new manager: %v", err)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := m.ProcessTurn(context.Background(), "bench-conversation", "I'm stressed about my exams"); err != nil {
			b.Fatalf("process turn: %v", err)
		}
	}
}
