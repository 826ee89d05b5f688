package usecase

import (
	"context"

	"hearthledger/internal/domain"
	"hearthledger/internal/txquery"
)

// LLMClient is the language-model collaborator: one call with declared tools,
// returning either final text or requested tool invocations.
type LLMClient interface {
	Chat(ctx context.Context, model string, messages []domain.ChatMessage, tools []domain.ToolSchema) (domain.ChatMessage, error)
}

// ParamGetter resolves runtime configuration from the parameter store.
type ParamGetter interface {
	GetParameter(ctx context.Context, name string) (string, error)
}

// ConversationStore persists conversation metadata and message logs.
type ConversationStore interface {
	CreateConversation(ctx context.Context, conversationID, userID string, agent domain.AgentType) error
	GetConversation(ctx context.Context, conversationID string) (domain.ConversationMeta, error)
	GetHistory(ctx context.Context, conversationID string, limit int) ([]domain.Message, error)
	SaveTurn(ctx context.Context, conversationID, userID string, agent domain.AgentType, userText, assistantText string, turns int) error
}

// ContextStore persists the per-user financial context record.
type ContextStore interface {
	GetUserContext(ctx context.Context, userID string) (domain.UserContext, bool, error)
	SaveUserContext(ctx context.Context, userID string, uc domain.UserContext) error
}

// OnboardingStore persists the per-user interview state.
type OnboardingStore interface {
	GetOnboardingState(ctx context.Context, userID string) (domain.OnboardingState, bool, error)
	PutOnboardingState(ctx context.Context, state domain.OnboardingState) error
}

// LedgerMutator is the narrow mutation surface on the external ledger.
type LedgerMutator interface {
	SetTransactionCategory(ctx context.Context, userID, transactionID, category string, classification domain.Classification) error
	UpsertMerchantMapping(ctx context.Context, userID string, mapping domain.MerchantMapping) error
}

// InsightStore archives generated insights.
type InsightStore interface {
	PutInsight(ctx context.Context, insight domain.Insight) error
	ListInsights(ctx context.Context, userID string, limit int) ([]domain.Insight, error)
}

// QueryService is the read-only transaction aggregation surface consumed by
// every agent.
type QueryService interface {
	Query(ctx context.Context, userID string, f txquery.Filter) (txquery.QueryResult, error)
	SpendingSummary(ctx context.Context, userID, startDate, endDate string, groupBy txquery.GroupBy) (txquery.Summary, error)
	RecentActivity(ctx context.Context, userID string, windowDays int) (txquery.Activity, error)
}
