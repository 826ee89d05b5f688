package usecase

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"hearthledger/internal/domain"
)

type routerFixture struct {
	router        *Router
	llm           *mockLLM
	conversations *mockConversations
	contexts      *mockContexts
	states        *mockStates
	insights      *mockInsights
	params        *mockParams
}

type mockInsights struct {
	stored []domain.Insight
	listed []domain.Insight
	err    error
}

func (m *mockInsights) PutInsight(_ context.Context, insight domain.Insight) error {
	if m.err != nil {
		return m.err
	}
	m.stored = append(m.stored, insight)
	return nil
}

func (m *mockInsights) ListInsights(_ context.Context, _ string, _ int) ([]domain.Insight, error) {
	return m.listed, m.err
}

func newRouterFixture(t *testing.T) *routerFixture {
	t.Helper()
	f := &routerFixture{
		llm:           &mockLLM{},
		conversations: newMockConversations(),
		contexts:      newMockContexts(),
		states:        newMockStates(),
		insights:      &mockInsights{},
		params:        defaultParams(),
	}
	query := &mockQuery{}

	onboarding, err := NewOnboardingAgent(f.llm, f.conversations, f.contexts, f.states, query, 20, 8, testLogger())
	require.NoError(t, err)
	chat, err := NewChatAgent(f.llm, f.conversations, f.contexts, &mockLedger{}, query, 20, 8, testLogger())
	require.NoError(t, err)
	insight, err := NewInsightAgent(f.llm, query, f.contexts, f.insights, testLogger())
	require.NoError(t, err)

	f.router, err = NewRouter(onboarding, chat, insight, f.contexts, f.states, f.params, "/prefix", testLogger())
	require.NoError(t, err)
	return f
}

func (f *routerFixture) markOnboarded(userID string) {
	f.contexts.contexts[userID] = domain.DefaultUserContext()
	f.contexts.onboarded[userID] = true
	state := domain.NewOnboardingState(userID)
	state.Phase = domain.PhaseComplete
	f.states.states[userID] = state
}

func TestOrchestrateValidatesInput(t *testing.T) {
	f := newRouterFixture(t)

	cases := []struct {
		name   string
		input  OrchestrateInput
		reason string
	}{
		{"empty message", OrchestrateInput{UserID: "u1", Message: "   "}, "empty_message"},
		{"too long", OrchestrateInput{UserID: "u1", Message: string(make([]byte, maxMessageLen+1))}, "message_too_long"},
		{"missing user", OrchestrateInput{Message: "hello"}, "missing_user"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.router.Orchestrate(context.Background(), tc.input)
			var ucErr *Error
			require.ErrorAs(t, err, &ucErr)
			require.Equal(t, ErrorInvalidInput, ucErr.Code)
			require.Equal(t, tc.reason, ucErr.Reason)
		})
	}
}

func TestOrchestrateRoutesNewUserToOnboarding(t *testing.T) {
	f := newRouterFixture(t)
	f.llm.responses = []domain.ChatMessage{textReply("Welcome! Tell me about your household.")}

	out, err := f.router.Orchestrate(context.Background(), OrchestrateInput{UserID: "u1", Message: "hi"})

	require.NoError(t, err)
	require.Equal(t, RouteOnboarding, out.Route)
	require.NotEmpty(t, out.ConversationID)
	require.False(t, out.ContextUpdated)
	require.Equal(t, domain.AgentOnboarding, f.conversations.metas[out.ConversationID].AgentType)
}

func TestOrchestrateResumesActiveInterviewEvenWhenOnboarded(t *testing.T) {
	f := newRouterFixture(t)
	f.contexts.contexts["u1"] = domain.DefaultUserContext()
	f.contexts.onboarded["u1"] = true
	state := domain.NewOnboardingState("u1")
	state.Phase = domain.PhaseGroceries
	f.states.states["u1"] = state
	f.llm.responses = []domain.ChatMessage{textReply("Back to groceries, then.")}

	out, err := f.router.Orchestrate(context.Background(), OrchestrateInput{UserID: "u1", Message: "give me a summary"})

	require.NoError(t, err)
	require.Equal(t, RouteOnboarding, out.Route)
}

func TestOrchestrateRoutesInsightKeywords(t *testing.T) {
	f := newRouterFixture(t)
	f.markOnboarded("u1")
	f.llm.responses = []domain.ChatMessage{textReply("You are on track this month.")}

	out, err := f.router.Orchestrate(context.Background(), OrchestrateInput{UserID: "u1", Message: "How am I doing this month?"})

	require.NoError(t, err)
	require.Equal(t, RouteInsight, out.Route)
	require.Equal(t, "You are on track this month.", out.Response)
	require.Len(t, f.insights.stored, 1)
	require.Empty(t, out.ConversationID)
}

func TestOrchestrateDefaultsToChat(t *testing.T) {
	f := newRouterFixture(t)
	f.markOnboarded("u1")
	f.llm.responses = []domain.ChatMessage{textReply("You spent $84 on coffee.")}

	out, err := f.router.Orchestrate(context.Background(), OrchestrateInput{UserID: "u1", Message: "what did I spend on coffee?"})

	require.NoError(t, err)
	require.Equal(t, RouteChat, out.Route)
	require.NotEmpty(t, out.ConversationID)
	require.Equal(t, domain.AgentChat, f.conversations.metas[out.ConversationID].AgentType)
	require.Empty(t, f.insights.stored)
}

func TestOrchestrateOnboardingCompletionSavesContext(t *testing.T) {
	f := newRouterFixture(t)
	state := domain.NewOnboardingState("u1")
	state.Phase = domain.PhaseSynthesis
	state.ConversationID = "conv-1"
	f.states.states["u1"] = state
	require.NoError(t, f.conversations.CreateConversation(context.Background(), "conv-1", "u1", domain.AgentOnboarding))

	final := domain.DefaultUserContext()
	final.ContextNarrative = "two adults, one toddler, single income"
	args, err := json.Marshal(completeArgs{Context: final})
	require.NoError(t, err)

	f.llm.responses = []domain.ChatMessage{
		toolCallReply(domain.ToolCall{ID: "c1", Name: toolCompleteOnboarding, Arguments: string(args)}),
		textReply("All set. Ask me anything."),
	}

	out, err := f.router.Orchestrate(context.Background(), OrchestrateInput{UserID: "u1", Message: "yes, that is everything", ConversationID: "conv-1"})

	require.NoError(t, err)
	require.Equal(t, RouteOnboarding, out.Route)
	require.True(t, out.ContextUpdated)
	require.Equal(t, "two adults, one toddler, single income", f.contexts.contexts["u1"].ContextNarrative)
	require.True(t, f.contexts.onboarded["u1"])
	require.Equal(t, domain.PhaseComplete, f.states.states["u1"].Phase)
	// Finalize tool wrote once, the router confirmed once.
	require.Equal(t, 2, f.contexts.saves)
}

func TestOrchestrateCachesModelParameter(t *testing.T) {
	f := newRouterFixture(t)
	f.markOnboarded("u1")
	f.llm.responses = []domain.ChatMessage{textReply("ok")}

	_, err := f.router.Orchestrate(context.Background(), OrchestrateInput{UserID: "u1", Message: "hello"})
	require.NoError(t, err)

	// Break the parameter store; the cached model keeps serving.
	f.params.err = context.DeadlineExceeded
	_, err = f.router.Orchestrate(context.Background(), OrchestrateInput{UserID: "u1", Message: "hello again"})
	require.NoError(t, err)
}

func TestNeedsOnboarding(t *testing.T) {
	f := newRouterFixture(t)

	needs, err := f.router.NeedsOnboarding(context.Background(), "u1")
	require.NoError(t, err)
	require.True(t, needs)

	f.markOnboarded("u1")
	needs, err = f.router.NeedsOnboarding(context.Background(), "u1")
	require.NoError(t, err)
	require.False(t, needs)
}

func TestClassifyIntent(t *testing.T) {
	cases := []struct {
		message string
		want    string
	}{
		{"give me a summary", RouteInsight},
		{"How am I doing?", RouteInsight},
		{"any insight today?", RouteInsight},
		{"spending OVERVIEW please", RouteInsight},
		{"status", RouteInsight},
		{"time for a check in", RouteInsight},
		{"what did I spend at Costco?", RouteChat},
		{"categorize that transaction", RouteChat},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, classifyIntent(tc.message), "message: %s", tc.message)
	}
}

func TestNewRouterRejectsNilDependencies(t *testing.T) {
	f := newRouterFixture(t)
	onboarding := f.router.onboarding
	chat := f.router.chat
	insight := f.router.insight

	_, err := NewRouter(nil, chat, insight, f.contexts, f.states, f.params, "/prefix", testLogger())
	require.Error(t, err)
	_, err = NewRouter(onboarding, nil, insight, f.contexts, f.states, f.params, "/prefix", testLogger())
	require.Error(t, err)
	_, err = NewRouter(onboarding, chat, nil, f.contexts, f.states, f.params, "/prefix", testLogger())
	require.Error(t, err)
	_, err = NewRouter(onboarding, chat, insight, f.contexts, f.states, f.params, "  ", testLogger())
	require.Error(t, err)
}
