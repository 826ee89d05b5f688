package usecase

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"

	"hearthledger/internal/domain"
	"hearthledger/internal/txquery"
)

// Tool names declared to the model.
const (
	toolGetTransactions       = "get_transactions"
	toolGetSpendingSummary    = "get_spending_summary"
	toolGetRecentActivity     = "get_recent_activity"
	toolGetUserContext        = "get_user_context"
	toolUpdateUserContext     = "update_user_context"
	toolCategorizeTransaction = "categorize_transaction"
	toolAddMerchantMapping    = "add_merchant_mapping"
	toolTransitionPhase       = "transition_phase"
	toolCompleteOnboarding    = "complete_onboarding"
)

// queryToolSchemas are the read-only transaction tools shared by the chat and
// onboarding agents.
func queryToolSchemas() []domain.ToolSchema {
	return []domain.ToolSchema{
		{
			Name:        toolGetTransactions,
			Description: "Fetch the user's transactions, newest first. All filters are optional and combined with AND.",
			Parameters: json.RawMessage(`{
				"type": "object",
				"properties": {
					"category": {"type": "string", "description": "Exact category name"},
					"classification": {"type": "string", "enum": ["Essential", "Discretionary", "Non-Spending", "Income"]},
					"merchant": {"type": "string", "description": "Case-insensitive merchant substring"},
					"min_amount": {"type": "number"},
					"max_amount": {"type": "number"},
					"start_date": {"type": "string", "description": "YYYY-MM-DD inclusive"},
					"end_date": {"type": "string", "description": "YYYY-MM-DD inclusive"},
					"needs_review": {"type": "boolean"},
					"limit": {"type": "integer", "description": "Max results, default 50"}
				}
			}`),
		},
		{
			Name:        toolGetSpendingSummary,
			Description: "Summarize spending between two dates grouped by category, classification or merchant. Income is excluded.",
			Parameters: json.RawMessage(`{
				"type": "object",
				"properties": {
					"start_date": {"type": "string", "description": "YYYY-MM-DD inclusive"},
					"end_date": {"type": "string", "description": "YYYY-MM-DD inclusive"},
					"group_by": {"type": "string", "enum": ["category", "classification", "merchant"]}
				},
				"required": ["start_date", "end_date", "group_by"]
			}`),
		},
		{
			Name:        toolGetRecentActivity,
			Description: "Snapshot of the last N days: totals, discretionary share, average spend on active days, top merchants.",
			Parameters: json.RawMessage(`{
				"type": "object",
				"properties": {
					"window_days": {"type": "integer", "description": "Trailing window, default 14"}
				}
			}`),
		},
	}
}

// contextToolSchemas are the context read/update and ledger mutation tools
// available only to the chat agent.
func contextToolSchemas() []domain.ToolSchema {
	return []domain.ToolSchema{
		{
			Name:        toolGetUserContext,
			Description: "Read the user's saved financial context: household, trade-offs, non-negotiables, watch patterns, targets, narrative.",
			Parameters:  json.RawMessage(`{"type": "object", "properties": {}}`),
		},
		{
			Name:        toolUpdateUserContext,
			Description: "Mutate one field of the user's context. Actions: set (replace), append (add one list element), remove (by index or by {\"item\": name}).",
			Parameters: json.RawMessage(`{
				"type": "object",
				"properties": {
					"field": {"type": "string", "enum": ["household_members", "deliberate_tradeoffs", "non_negotiables", "watch_patterns", "seasonal_patterns", "spending_targets", "context_narrative"]},
					"action": {"type": "string", "enum": ["set", "append", "remove"]},
					"value": {"description": "Replacement value, element to append, or remove selector"}
				},
				"required": ["field", "action", "value"]
			}`),
		},
		{
			Name:        toolCategorizeTransaction,
			Description: "Assign a category and classification to a transaction and clear its needs-review flag.",
			Parameters: json.RawMessage(`{
				"type": "object",
				"properties": {
					"transaction_id": {"type": "string"},
					"category": {"type": "string"},
					"classification": {"type": "string", "enum": ["Essential", "Discretionary", "Non-Spending", "Income"]}
				},
				"required": ["transaction_id", "category", "classification"]
			}`),
		},
		{
			Name:        toolAddMerchantMapping,
			Description: "Save a merchant-pattern to category rule applied to future imports.",
			Parameters: json.RawMessage(`{
				"type": "object",
				"properties": {
					"pattern": {"type": "string", "description": "Merchant name substring to match"},
					"category": {"type": "string"},
					"classification": {"type": "string", "enum": ["Essential", "Discretionary", "Non-Spending", "Income"]}
				},
				"required": ["pattern", "category"]
			}`),
		},
	}
}

// onboardingToolSchemas are the interview control tools.
func onboardingToolSchemas() []domain.ToolSchema {
	return []domain.ToolSchema{
		{
			Name:        toolTransitionPhase,
			Description: "Advance the interview to a later phase once the current one is covered, merging what was learned so far.",
			Parameters: json.RawMessage(`{
				"type": "object",
				"properties": {
					"next_phase": {"type": "string", "enum": ["household", "groceries", "transport", "subscriptions", "bnpl", "lifestyle", "synthesis"]},
					"context_updates": {"type": "object", "description": "Partial context learned in the finished phase"},
					"question_asked": {"type": "string", "description": "The question just asked, recorded to avoid repeats"}
				},
				"required": ["next_phase"]
			}`),
		},
		{
			Name:        toolCompleteOnboarding,
			Description: "Finish the interview after synthesis by supplying the complete user context.",
			Parameters: json.RawMessage(`{
				"type": "object",
				"properties": {
					"context": {"type": "object", "description": "The complete user context with every field populated"}
				},
				"required": ["context"]
			}`),
		},
	}
}

// toolJSON renders a tool result payload. Marshal failures fall back to an
// error payload so the loop always has something to hand the model.
func toolJSON(v any) string {
	raw, err := json.Marshal(v)
	if err != nil {
		return toolError(err)
	}
	return string(raw)
}

// toolError renders a failure as a structured tool result, letting the model
// narrate the failure instead of aborting the turn.
func toolError(err error) string {
	raw, _ := json.Marshal(map[string]string{"error": err.Error()})
	return string(raw)
}

type getTransactionsArgs struct {
	Category       string   `json:"category"`
	Classification string   `json:"classification"`
	Merchant       string   `json:"merchant"`
	MinAmount      *float64 `json:"min_amount"`
	MaxAmount      *float64 `json:"max_amount"`
	StartDate      string   `json:"start_date"`
	EndDate        string   `json:"end_date"`
	NeedsReview    *bool    `json:"needs_review"`
	Limit          int      `json:"limit"`
}

type getSpendingSummaryArgs struct {
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
	GroupBy   string `json:"group_by"`
}

type getRecentActivityArgs struct {
	WindowDays int `json:"window_days"`
}

// runQueryTool executes one of the shared read-only transaction tools. The
// second return value reports whether the call named a query tool at all.
func runQueryTool(ctx context.Context, q QueryService, userID string, call domain.ToolCall) (string, bool) {
	switch call.Name {
	case toolGetTransactions:
		var args getTransactionsArgs
		if err := json.Unmarshal([]byte(call.Arguments), &args); err != nil {
			return toolError(fmt.Errorf("invalid %s arguments: %w", call.Name, err)), true
		}
		filter := txquery.Filter{
			Category:       args.Category,
			Classification: args.Classification,
			Merchant:       args.Merchant,
			StartDate:      args.StartDate,
			EndDate:        args.EndDate,
			NeedsReview:    args.NeedsReview,
			Limit:          args.Limit,
		}
		if args.MinAmount != nil {
			min := decimal.NewFromFloat(*args.MinAmount)
			filter.MinAmount = &min
		}
		if args.MaxAmount != nil {
			max := decimal.NewFromFloat(*args.MaxAmount)
			filter.MaxAmount = &max
		}
		result, err := q.Query(ctx, userID, filter)
		if err != nil {
			return toolError(err), true
		}
		return toolJSON(result), true

	case toolGetSpendingSummary:
		var args getSpendingSummaryArgs
		if err := json.Unmarshal([]byte(call.Arguments), &args); err != nil {
			return toolError(fmt.Errorf("invalid %s arguments: %w", call.Name, err)), true
		}
		summary, err := q.SpendingSummary(ctx, userID, args.StartDate, args.EndDate, txquery.GroupBy(args.GroupBy))
		if err != nil {
			return toolError(err), true
		}
		return toolJSON(summary), true

	case toolGetRecentActivity:
		var args getRecentActivityArgs
		if err := json.Unmarshal([]byte(call.Arguments), &args); err != nil {
			return toolError(fmt.Errorf("invalid %s arguments: %w", call.Name, err)), true
		}
		activity, err := q.RecentActivity(ctx, userID, args.WindowDays)
		if err != nil {
			return toolError(err), true
		}
		return toolJSON(activity), true
	}
	return "", false
}
