package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/rs/zerolog"

	"hearthledger/internal/domain"
	"hearthledger/internal/logger"
	"hearthledger/internal/txquery"
)

// mockLLM replays scripted responses and captures every message list it was
// called with.
type mockLLM struct {
	responses []domain.ChatMessage
	errs      []error
	calls     [][]domain.ChatMessage
	tools     [][]domain.ToolSchema
}

func (m *mockLLM) Chat(_ context.Context, _ string, messages []domain.ChatMessage, tools []domain.ToolSchema) (domain.ChatMessage, error) {
	idx := len(m.calls)
	m.calls = append(m.calls, messages)
	m.tools = append(m.tools, tools)
	if idx < len(m.errs) && m.errs[idx] != nil {
		return domain.ChatMessage{}, m.errs[idx]
	}
	if idx >= len(m.responses) {
		if len(m.responses) == 0 {
			return domain.ChatMessage{}, errors.New("no llm response configured")
		}
		idx = len(m.responses) - 1
	}
	return m.responses[idx], nil
}

func textReply(content string) domain.ChatMessage {
	return domain.ChatMessage{Role: domain.RoleAssistant, Content: content}
}

func toolCallReply(calls ...domain.ToolCall) domain.ChatMessage {
	return domain.ChatMessage{Role: domain.RoleAssistant, ToolCalls: calls}
}

type savedTurn struct {
	conversationID string
	userID         string
	agent          domain.AgentType
	userText       string
	assistantText  string
	turns          int
}

// mockConversations keeps conversation metadata and history in memory.
type mockConversations struct {
	metas      map[string]domain.ConversationMeta
	history    []domain.Message
	saved      []savedTurn
	createErr  error
	historyErr error
	saveErr    error
}

func newMockConversations() *mockConversations {
	return &mockConversations{metas: map[string]domain.ConversationMeta{}}
}

func (m *mockConversations) CreateConversation(_ context.Context, conversationID, userID string, agent domain.AgentType) error {
	if m.createErr != nil {
		return m.createErr
	}
	m.metas[conversationID] = domain.ConversationMeta{
		ConversationID: conversationID,
		UserID:         userID,
		AgentType:      agent,
	}
	return nil
}

func (m *mockConversations) GetConversation(_ context.Context, conversationID string) (domain.ConversationMeta, error) {
	meta, ok := m.metas[conversationID]
	if !ok {
		return domain.ConversationMeta{}, fmt.Errorf("conversation %s not found", conversationID)
	}
	return meta, nil
}

func (m *mockConversations) GetHistory(_ context.Context, _ string, _ int) ([]domain.Message, error) {
	return m.history, m.historyErr
}

func (m *mockConversations) SaveTurn(_ context.Context, conversationID, userID string, agent domain.AgentType, userText, assistantText string, turns int) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	m.saved = append(m.saved, savedTurn{conversationID, userID, agent, userText, assistantText, turns})
	return nil
}

// mockContexts stores one context record per user.
type mockContexts struct {
	contexts  map[string]domain.UserContext
	onboarded map[string]bool
	getErr    error
	saveErr   error
	saves     int
}

func newMockContexts() *mockContexts {
	return &mockContexts{
		contexts:  map[string]domain.UserContext{},
		onboarded: map[string]bool{},
	}
}

func (m *mockContexts) GetUserContext(_ context.Context, userID string) (domain.UserContext, bool, error) {
	if m.getErr != nil {
		return domain.UserContext{}, false, m.getErr
	}
	uc, ok := m.contexts[userID]
	if !ok {
		return domain.DefaultUserContext(), false, nil
	}
	return uc, m.onboarded[userID], nil
}

func (m *mockContexts) SaveUserContext(_ context.Context, userID string, uc domain.UserContext) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	m.contexts[userID] = uc
	m.onboarded[userID] = true
	m.saves++
	return nil
}

// mockStates stores one onboarding state per user.
type mockStates struct {
	states map[string]domain.OnboardingState
	getErr error
	putErr error
	puts   int
}

func newMockStates() *mockStates {
	return &mockStates{states: map[string]domain.OnboardingState{}}
}

func (m *mockStates) GetOnboardingState(_ context.Context, userID string) (domain.OnboardingState, bool, error) {
	if m.getErr != nil {
		return domain.OnboardingState{}, false, m.getErr
	}
	state, ok := m.states[userID]
	if !ok {
		return domain.NewOnboardingState(userID), false, nil
	}
	return state, true, nil
}

func (m *mockStates) PutOnboardingState(_ context.Context, state domain.OnboardingState) error {
	if m.putErr != nil {
		return m.putErr
	}
	m.states[state.UserID] = state
	m.puts++
	return nil
}

// mockLedger records mutation passthroughs.
type mockLedger struct {
	categorized []string
	mappings    []domain.MerchantMapping
	err         error
}

func (m *mockLedger) SetTransactionCategory(_ context.Context, _, transactionID, _ string, _ domain.Classification) error {
	if m.err != nil {
		return m.err
	}
	m.categorized = append(m.categorized, transactionID)
	return nil
}

func (m *mockLedger) UpsertMerchantMapping(_ context.Context, _ string, mapping domain.MerchantMapping) error {
	if m.err != nil {
		return m.err
	}
	m.mappings = append(m.mappings, mapping)
	return nil
}

// mockQuery returns canned aggregation results.
type mockQuery struct {
	queryResult txquery.QueryResult
	summary     txquery.Summary
	activity    txquery.Activity
	err         error
	queryCalls  int
}

func (m *mockQuery) Query(_ context.Context, _ string, _ txquery.Filter) (txquery.QueryResult, error) {
	m.queryCalls++
	return m.queryResult, m.err
}

func (m *mockQuery) SpendingSummary(_ context.Context, _, startDate, endDate string, _ txquery.GroupBy) (txquery.Summary, error) {
	if m.err != nil {
		return txquery.Summary{}, m.err
	}
	s := m.summary
	s.StartDate = startDate
	s.EndDate = endDate
	return s, nil
}

func (m *mockQuery) RecentActivity(_ context.Context, _ string, windowDays int) (txquery.Activity, error) {
	if m.err != nil {
		return txquery.Activity{}, m.err
	}
	a := m.activity
	a.WindowDays = windowDays
	return a, nil
}

// mockParams returns the configured model name.
type mockParams struct {
	vals map[string]string
	err  error
}

func defaultParams() *mockParams {
	return &mockParams{vals: map[string]string{
		"/prefix/config/openai_model": "gpt-4o-mini",
	}}
}

func (m *mockParams) GetParameter(_ context.Context, name string) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	v, ok := m.vals[name]
	if !ok {
		return "", fmt.Errorf("param not found: %s", name)
	}
	return v, nil
}

func testLogger() zerolog.Logger {
	return logger.NewWithWriter(io.Discard)
}
