package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"hearthledger/internal/domain"
)

// ChatAgent answers free-form questions grounded in transaction data and the
// user's saved context.
type ChatAgent struct {
	llm           LLMClient
	conversations ConversationStore
	contexts      ContextStore
	ledger        LedgerMutator
	query         QueryService
	maxContext    int
	maxIterations int
	log           zerolog.Logger
}

// ChatTurn is the outcome of one chat turn.
type ChatTurn struct {
	Reply          string
	ConversationID string
}

// NewChatAgent wires a chat agent.
func NewChatAgent(llm LLMClient, conversations ConversationStore, contexts ContextStore, ledger LedgerMutator, query QueryService, maxContext, maxIterations int, log zerolog.Logger) (*ChatAgent, error) {
	if llm == nil {
		return nil, errors.New("usecase: llm client must not be nil")
	}
	if conversations == nil {
		return nil, errors.New("usecase: conversation store must not be nil")
	}
	if contexts == nil {
		return nil, errors.New("usecase: context store must not be nil")
	}
	if ledger == nil {
		return nil, errors.New("usecase: ledger mutator must not be nil")
	}
	if query == nil {
		return nil, errors.New("usecase: query service must not be nil")
	}
	if maxContext <= 0 {
		maxContext = defaultMaxContext
	}
	return &ChatAgent{
		llm:           llm,
		conversations: conversations,
		contexts:      contexts,
		ledger:        ledger,
		query:         query,
		maxContext:    maxContext,
		maxIterations: maxIterations,
		log:           log,
	}, nil
}

// HandleTurn answers one user message, creating a chat conversation when no
// id is supplied.
func (a *ChatAgent) HandleTurn(ctx context.Context, model, userID, message, conversationID string) (ChatTurn, error) {
	uc, _, err := a.contexts.GetUserContext(ctx, userID)
	if err != nil {
		return ChatTurn{}, newError(ErrorInternal, "context_read_error", err)
	}

	turns := 0
	if conversationID == "" {
		conversationID = newUUID()
		if err := a.conversations.CreateConversation(ctx, conversationID, userID, domain.AgentChat); err != nil {
			return ChatTurn{}, newError(ErrorInternal, "conversation_create_error", err)
		}
	} else {
		meta, err := a.conversations.GetConversation(ctx, conversationID)
		if err != nil {
			return ChatTurn{}, newError(ErrorInternal, "conversation_read_error", err)
		}
		if meta.UserID != userID {
			return ChatTurn{}, newError(ErrorInvalidInput, "conversation_not_owned", nil)
		}
		turns = meta.Turns
	}

	history, err := a.conversations.GetHistory(ctx, conversationID, a.maxContext)
	if err != nil {
		return ChatTurn{}, newError(ErrorInternal, "conversation_history_error", err)
	}

	messages := []domain.ChatMessage{{Role: domain.RoleSystem, Content: chatSystemPrompt(uc)}}
	messages = append(messages, historyToPromptMessages(history)...)
	messages = append(messages, domain.ChatMessage{Role: domain.RoleUser, Content: message})

	loop := &toolLoop{
		llm:           a.llm,
		model:         model,
		maxIterations: a.maxIterations,
		execute: func(ctx context.Context, call domain.ToolCall) string {
			return a.executeTool(ctx, userID, call)
		},
	}

	tools := append(queryToolSchemas(), contextToolSchemas()...)
	reply, err := loop.run(ctx, messages, tools)
	if err != nil {
		return ChatTurn{}, err
	}

	if err := a.conversations.SaveTurn(ctx, conversationID, userID, domain.AgentChat, message, reply, turns+1); err != nil {
		return ChatTurn{}, newError(ErrorInternal, "conversation_write_error", err)
	}

	a.log.Info().Str("userId", userID).Str("conversationId", conversationID).Msg("chat turn handled")
	return ChatTurn{Reply: reply, ConversationID: conversationID}, nil
}

type categorizeArgs struct {
	TransactionID  string `json:"transaction_id"`
	Category       string `json:"category"`
	Classification string `json:"classification"`
}

type merchantMappingArgs struct {
	Pattern        string `json:"pattern"`
	Category       string `json:"category"`
	Classification string `json:"classification"`
}

func (a *ChatAgent) executeTool(ctx context.Context, userID string, call domain.ToolCall) string {
	switch call.Name {
	case toolGetUserContext:
		uc, _, err := a.contexts.GetUserContext(ctx, userID)
		if err != nil {
			return toolError(err)
		}
		return toolJSON(uc)

	case toolUpdateUserContext:
		var upd ContextUpdate
		if err := json.Unmarshal([]byte(call.Arguments), &upd); err != nil {
			return toolError(fmt.Errorf("invalid %s arguments: %w", call.Name, err))
		}
		return a.updateContext(ctx, userID, upd)

	case toolCategorizeTransaction:
		var args categorizeArgs
		if err := json.Unmarshal([]byte(call.Arguments), &args); err != nil {
			return toolError(fmt.Errorf("invalid %s arguments: %w", call.Name, err))
		}
		if args.TransactionID == "" {
			return toolError(errors.New("transaction_id is required"))
		}
		if !domain.ValidClassification(args.Classification) {
			return toolError(fmt.Errorf("unknown classification %q", args.Classification))
		}
		if err := a.ledger.SetTransactionCategory(ctx, userID, args.TransactionID, args.Category, domain.Classification(args.Classification)); err != nil {
			return toolError(err)
		}
		return toolJSON(map[string]any{"ok": true})

	case toolAddMerchantMapping:
		var args merchantMappingArgs
		if err := json.Unmarshal([]byte(call.Arguments), &args); err != nil {
			return toolError(fmt.Errorf("invalid %s arguments: %w", call.Name, err))
		}
		if args.Pattern == "" || args.Category == "" {
			return toolError(errors.New("pattern and category are required"))
		}
		if args.Classification != "" && !domain.ValidClassification(args.Classification) {
			return toolError(fmt.Errorf("unknown classification %q", args.Classification))
		}
		mapping := domain.MerchantMapping{
			Pattern:        args.Pattern,
			Category:       args.Category,
			Classification: domain.Classification(args.Classification),
		}
		if err := a.ledger.UpsertMerchantMapping(ctx, userID, mapping); err != nil {
			return toolError(err)
		}
		return toolJSON(map[string]any{"ok": true})
	}

	if result, ok := runQueryTool(ctx, a.query, userID, call); ok {
		return result
	}
	return toolError(fmt.Errorf("unknown tool %q", call.Name))
}

// updateContext is read-modify-write without locking; concurrent edits to the
// same user can lose updates, an accepted race for a single-household product.
func (a *ChatAgent) updateContext(ctx context.Context, userID string, upd ContextUpdate) string {
	uc, _, err := a.contexts.GetUserContext(ctx, userID)
	if err != nil {
		return toolError(err)
	}
	if err := ApplyContextUpdate(&uc, upd); err != nil {
		return toolError(err)
	}
	if err := a.contexts.SaveUserContext(ctx, userID, uc); err != nil {
		return toolError(err)
	}
	return toolJSON(map[string]any{"ok": true, "field": upd.Field, "action": upd.Action})
}
