package usecase

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"hearthledger/internal/domain"
)

const (
	defaultMaxContext = 20
	maxMessageLen     = 2000
)

// Route names returned to the caller.
const (
	RouteOnboarding = "onboarding"
	RouteChat       = "chat"
	RouteInsight    = "insight"
)

// insightKeywords trigger the insight route for an onboarded user. Substring
// match over the lowercased message; brittle on purpose, and isolated in
// classifyIntent so a structured classifier can replace it later.
var insightKeywords = []string{
	"summary",
	"how am i doing",
	"insight",
	"overview",
	"status",
	"check in",
}

// Router is the top-level orchestrator: a pure function of persisted state
// plus the current message, deciding which agent handles each turn. It makes
// no model calls itself.
type Router struct {
	onboarding *OnboardingAgent
	chat       *ChatAgent
	insight    *InsightAgent
	contexts   ContextStore
	states     OnboardingStore
	params     ParamGetter

	paramPrefix string
	log         zerolog.Logger

	cacheMu     sync.RWMutex
	cacheLoaded bool
	model       string
}

// OrchestrateInput is one inbound chat message.
type OrchestrateInput struct {
	UserID         string
	Message        string
	ConversationID string
}

// OrchestrateOutput is the routed response.
type OrchestrateOutput struct {
	Response       string
	Route          string
	ConversationID string
	ContextUpdated bool
}

// NewRouter wires the orchestrator.
func NewRouter(onboarding *OnboardingAgent, chat *ChatAgent, insight *InsightAgent, contexts ContextStore, states OnboardingStore, params ParamGetter, paramPrefix string, log zerolog.Logger) (*Router, error) {
	if onboarding == nil {
		return nil, errors.New("usecase: onboarding agent must not be nil")
	}
	if chat == nil {
		return nil, errors.New("usecase: chat agent must not be nil")
	}
	if insight == nil {
		return nil, errors.New("usecase: insight agent must not be nil")
	}
	if contexts == nil {
		return nil, errors.New("usecase: context store must not be nil")
	}
	if states == nil {
		return nil, errors.New("usecase: onboarding store must not be nil")
	}
	if params == nil {
		return nil, errors.New("usecase: param getter must not be nil")
	}
	paramPrefix = strings.TrimRight(strings.TrimSpace(paramPrefix), "/")
	if paramPrefix == "" {
		return nil, errors.New("usecase: parameter prefix must not be empty")
	}
	return &Router{
		onboarding:  onboarding,
		chat:        chat,
		insight:     insight,
		contexts:    contexts,
		states:      states,
		params:      params,
		paramPrefix: paramPrefix,
		log:         log,
	}, nil
}

// Orchestrate handles one inbound message: onboarding takes precedence until
// complete, then intent keywords pick insight over chat.
func (r *Router) Orchestrate(ctx context.Context, in OrchestrateInput) (OrchestrateOutput, error) {
	message := strings.TrimSpace(in.Message)
	if message == "" {
		return OrchestrateOutput{}, newError(ErrorInvalidInput, "empty_message", nil)
	}
	if len(message) > maxMessageLen {
		return OrchestrateOutput{}, newError(ErrorInvalidInput, "message_too_long", nil)
	}
	if strings.TrimSpace(in.UserID) == "" {
		return OrchestrateOutput{}, newError(ErrorInvalidInput, "missing_user", nil)
	}
	model, err := r.ensureModel(ctx)
	if err != nil {
		return OrchestrateOutput{}, newError(ErrorInternal, "ssm_load_error", err)
	}

	_, onboarded, err := r.contexts.GetUserContext(ctx, in.UserID)
	if err != nil {
		return OrchestrateOutput{}, newError(ErrorInternal, "context_read_error", err)
	}
	state, hasState, err := r.states.GetOnboardingState(ctx, in.UserID)
	if err != nil {
		return OrchestrateOutput{}, newError(ErrorInternal, "onboarding_state_read_error", err)
	}

	// A missing state record counts as an active interview for anyone not
	// yet onboarded; a persisted incomplete interview resumes even if the
	// context was somehow finalized out of band.
	needsOnboarding := !onboarded || (hasState && state.Active())
	if needsOnboarding {
		turn, err := r.onboarding.HandleTurn(ctx, model, in.UserID, message, in.ConversationID)
		if err != nil {
			return OrchestrateOutput{}, err
		}
		out := OrchestrateOutput{
			Response:       turn.Reply,
			Route:          RouteOnboarding,
			ConversationID: turn.ConversationID,
		}
		if turn.Completed {
			// Confirming side effect: the finalize tool already saved,
			// and saving again with the same payload is harmless. The
			// router needs the synchronous signal to change its future
			// routing.
			if err := r.contexts.SaveUserContext(ctx, in.UserID, turn.FinalContext); err != nil {
				return OrchestrateOutput{}, newError(ErrorInternal, "context_write_error", err)
			}
			out.ContextUpdated = true
		}
		r.log.Info().Str("userId", in.UserID).Str("route", out.Route).Bool("contextUpdated", out.ContextUpdated).Msg("message routed")
		return out, nil
	}

	if classifyIntent(message) == RouteInsight {
		insight, err := r.insight.Generate(ctx, model, in.UserID)
		if err != nil {
			return OrchestrateOutput{}, err
		}
		r.log.Info().Str("userId", in.UserID).Str("route", RouteInsight).Msg("message routed")
		return OrchestrateOutput{Response: insight.Content, Route: RouteInsight}, nil
	}

	turn, err := r.chat.HandleTurn(ctx, model, in.UserID, message, in.ConversationID)
	if err != nil {
		return OrchestrateOutput{}, err
	}
	r.log.Info().Str("userId", in.UserID).Str("route", RouteChat).Msg("message routed")
	return OrchestrateOutput{
		Response:       turn.Reply,
		Route:          RouteChat,
		ConversationID: turn.ConversationID,
	}, nil
}

// NeedsOnboarding reports whether the user still has to finish the interview.
func (r *Router) NeedsOnboarding(ctx context.Context, userID string) (bool, error) {
	_, onboarded, err := r.contexts.GetUserContext(ctx, userID)
	if err != nil {
		return false, newError(ErrorInternal, "context_read_error", err)
	}
	return !onboarded, nil
}

// GenerateInsight triggers the insight agent outside the chat path.
func (r *Router) GenerateInsight(ctx context.Context, userID string) (string, error) {
	model, err := r.ensureModel(ctx)
	if err != nil {
		return "", newError(ErrorInternal, "ssm_load_error", err)
	}
	insight, err := r.insight.Generate(ctx, model, userID)
	if err != nil {
		return "", err
	}
	return insight.Content, nil
}

// InsightHistory returns the last archived insights for the user.
func (r *Router) InsightHistory(ctx context.Context, userID string, limit int) ([]domain.Insight, error) {
	return r.insight.History(ctx, userID, limit)
}

// classifyIntent picks insight or chat for an onboarded user's message.
func classifyIntent(message string) string {
	lowered := strings.ToLower(message)
	for _, keyword := range insightKeywords {
		if strings.Contains(lowered, keyword) {
			return RouteInsight
		}
	}
	return RouteChat
}

func (r *Router) ensureModel(ctx context.Context) (string, error) {
	r.cacheMu.RLock()
	if r.cacheLoaded {
		defer r.cacheMu.RUnlock()
		return r.model, nil
	}
	r.cacheMu.RUnlock()

	r.cacheMu.Lock()
	defer r.cacheMu.Unlock()
	if r.cacheLoaded {
		return r.model, nil
	}

	model, err := r.params.GetParameter(ctx, r.paramPrefix+"/config/openai_model")
	if err != nil {
		return "", err
	}
	r.model = strings.TrimSpace(model)
	r.cacheLoaded = true
	return r.model, nil
}

var newUUID = func() string {
	return uuid.NewString()
}
