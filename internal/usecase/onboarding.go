package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"hearthledger/internal/domain"
)

// OnboardingAgent drives one turn of the phase-based interview.
type OnboardingAgent struct {
	llm           LLMClient
	conversations ConversationStore
	contexts      ContextStore
	states        OnboardingStore
	query         QueryService
	maxContext    int
	maxIterations int
	log           zerolog.Logger
}

// OnboardingTurn is the outcome of one interview turn. Completed reports
// whether the finalize tool fired this turn; FinalContext is only meaningful
// when it did.
type OnboardingTurn struct {
	Reply          string
	ConversationID string
	Completed      bool
	FinalContext   domain.UserContext
}

// NewOnboardingAgent wires an interview agent.
func NewOnboardingAgent(llm LLMClient, conversations ConversationStore, contexts ContextStore, states OnboardingStore, query QueryService, maxContext, maxIterations int, log zerolog.Logger) (*OnboardingAgent, error) {
	if llm == nil {
		return nil, errors.New("usecase: llm client must not be nil")
	}
	if conversations == nil {
		return nil, errors.New("usecase: conversation store must not be nil")
	}
	if contexts == nil {
		return nil, errors.New("usecase: context store must not be nil")
	}
	if states == nil {
		return nil, errors.New("usecase: onboarding store must not be nil")
	}
	if query == nil {
		return nil, errors.New("usecase: query service must not be nil")
	}
	if maxContext <= 0 {
		maxContext = defaultMaxContext
	}
	return &OnboardingAgent{
		llm:           llm,
		conversations: conversations,
		contexts:      contexts,
		states:        states,
		query:         query,
		maxContext:    maxContext,
		maxIterations: maxIterations,
		log:           log,
	}, nil
}

type transitionArgs struct {
	NextPhase      string         `json:"next_phase"`
	ContextUpdates map[string]any `json:"context_updates"`
	QuestionAsked  string         `json:"question_asked"`
}

type completeArgs struct {
	Context domain.UserContext `json:"context"`
}

// HandleTurn runs one interview turn for the user's latest message.
func (a *OnboardingAgent) HandleTurn(ctx context.Context, model, userID, message, conversationID string) (OnboardingTurn, error) {
	state, _, err := a.states.GetOnboardingState(ctx, userID)
	if err != nil {
		return OnboardingTurn{}, newError(ErrorInternal, "onboarding_state_read_error", err)
	}
	if conversationID == "" {
		conversationID = state.ConversationID
	}

	turns := 0
	if conversationID == "" {
		conversationID = newUUID()
		if err := a.conversations.CreateConversation(ctx, conversationID, userID, domain.AgentOnboarding); err != nil {
			return OnboardingTurn{}, newError(ErrorInternal, "conversation_create_error", err)
		}
		state.ConversationID = conversationID
		if err := a.states.PutOnboardingState(ctx, state); err != nil {
			return OnboardingTurn{}, newError(ErrorInternal, "onboarding_state_write_error", err)
		}
	} else {
		meta, err := a.conversations.GetConversation(ctx, conversationID)
		if err != nil {
			return OnboardingTurn{}, newError(ErrorInternal, "conversation_read_error", err)
		}
		if meta.UserID != userID {
			return OnboardingTurn{}, newError(ErrorInvalidInput, "conversation_not_owned", nil)
		}
		turns = meta.Turns
	}

	history, err := a.conversations.GetHistory(ctx, conversationID, a.maxContext)
	if err != nil {
		return OnboardingTurn{}, newError(ErrorInternal, "conversation_history_error", err)
	}

	messages := []domain.ChatMessage{{Role: domain.RoleSystem, Content: onboardingSystemPrompt(state)}}
	messages = append(messages, historyToPromptMessages(history)...)
	messages = append(messages, domain.ChatMessage{Role: domain.RoleUser, Content: message})

	turn := OnboardingTurn{ConversationID: conversationID}
	loop := &toolLoop{
		llm:           a.llm,
		model:         model,
		maxIterations: a.maxIterations,
		execute: func(ctx context.Context, call domain.ToolCall) string {
			return a.executeTool(ctx, userID, &state, &turn, call)
		},
	}

	tools := append(queryToolSchemas(), onboardingToolSchemas()...)
	reply, err := loop.run(ctx, messages, tools)
	if err != nil {
		return OnboardingTurn{}, err
	}
	turn.Reply = reply

	if err := a.conversations.SaveTurn(ctx, conversationID, userID, domain.AgentOnboarding, message, reply, turns+1); err != nil {
		return OnboardingTurn{}, newError(ErrorInternal, "conversation_write_error", err)
	}

	a.log.Info().
		Str("userId", userID).
		Str("phase", string(state.Phase)).
		Bool("completed", turn.Completed).
		Msg("onboarding turn handled")
	return turn, nil
}

func (a *OnboardingAgent) executeTool(ctx context.Context, userID string, state *domain.OnboardingState, turn *OnboardingTurn, call domain.ToolCall) string {
	switch call.Name {
	case toolTransitionPhase:
		var args transitionArgs
		if err := json.Unmarshal([]byte(call.Arguments), &args); err != nil {
			return toolError(fmt.Errorf("invalid %s arguments: %w", call.Name, err))
		}
		return a.transition(ctx, state, args)

	case toolCompleteOnboarding:
		var args completeArgs
		if err := json.Unmarshal([]byte(call.Arguments), &args); err != nil {
			return toolError(fmt.Errorf("invalid %s arguments: %w", call.Name, err))
		}
		return a.finalize(ctx, userID, state, turn, args.Context)
	}

	if result, ok := runQueryTool(ctx, a.query, userID, call); ok {
		return result
	}
	return toolError(fmt.Errorf("unknown tool %q", call.Name))
}

// transition validates a forward move through the interview, merges the
// phase's findings, and persists the state before the loop continues.
// Forward jumps past phases are allowed; backward or unknown moves are not.
func (a *OnboardingAgent) transition(ctx context.Context, state *domain.OnboardingState, args transitionArgs) string {
	next := domain.OnboardingPhase(args.NextPhase)
	nextIdx := domain.PhaseIndex(next)
	if nextIdx < 0 {
		return toolError(fmt.Errorf("unknown phase %q", args.NextPhase))
	}
	if next == domain.PhaseComplete {
		return toolError(errors.New("use complete_onboarding to finish the interview"))
	}
	if nextIdx <= domain.PhaseIndex(state.Phase) {
		return toolError(fmt.Errorf("cannot move backward from %s to %s", state.Phase, next))
	}

	state.Phase = next
	if state.GatheredContext == nil {
		state.GatheredContext = map[string]any{}
	}
	// Shallow merge: new keys overwrite.
	for key, value := range args.ContextUpdates {
		state.GatheredContext[key] = value
	}
	if args.QuestionAsked != "" {
		state.QuestionsAsked = append(state.QuestionsAsked, args.QuestionAsked)
	}

	if err := a.states.PutOnboardingState(ctx, *state); err != nil {
		return toolError(err)
	}
	return toolJSON(map[string]any{"ok": true, "phase": string(next)})
}

// finalize writes the supplied complete context through the finalize path,
// which overrides whatever was incrementally gathered, and marks the
// interview terminal.
func (a *OnboardingAgent) finalize(ctx context.Context, userID string, state *domain.OnboardingState, turn *OnboardingTurn, final domain.UserContext) string {
	if domain.PhaseIndex(state.Phase) < domain.PhaseIndex(domain.PhaseSynthesis) {
		return toolError(fmt.Errorf("cannot complete onboarding from phase %s; reach synthesis first", state.Phase))
	}
	if err := a.contexts.SaveUserContext(ctx, userID, final); err != nil {
		return toolError(err)
	}
	state.Phase = domain.PhaseComplete
	if err := a.states.PutOnboardingState(ctx, *state); err != nil {
		return toolError(err)
	}
	turn.Completed = true
	turn.FinalContext = final
	return toolJSON(map[string]any{"ok": true, "phase": string(domain.PhaseComplete)})
}
