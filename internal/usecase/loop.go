package usecase

import (
	"context"

	"hearthledger/internal/domain"
)

const defaultMaxToolIterations = 8

// toolLoop drives the model until it answers in plain text: while the
// response requests tool calls, each is executed and its result appended as
// the next round's input. The iteration cap fails the turn closed rather than
// letting an uncooperative model spin forever.
type toolLoop struct {
	llm           LLMClient
	model         string
	maxIterations int
	execute       func(ctx context.Context, call domain.ToolCall) string
}

func (l *toolLoop) run(ctx context.Context, messages []domain.ChatMessage, tools []domain.ToolSchema) (string, error) {
	maxIterations := l.maxIterations
	if maxIterations <= 0 {
		maxIterations = defaultMaxToolIterations
	}

	for i := 0; i < maxIterations; i++ {
		reply, err := l.llm.Chat(ctx, l.model, messages, tools)
		if err != nil {
			if status, ok := upstreamStatusCode(err); ok && status == 429 {
				return "", newError(ErrorRateLimited, "openai_rate_limited", err)
			}
			return "", newError(ErrorUpstream, "openai_error", err)
		}
		if len(reply.ToolCalls) == 0 {
			return reply.Content, nil
		}

		messages = append(messages, reply)
		for _, call := range reply.ToolCalls {
			messages = append(messages, domain.ChatMessage{
				Role:       domain.RoleTool,
				Content:    l.execute(ctx, call),
				ToolCallID: call.ID,
			})
		}
	}
	return "", newError(ErrorToolLoopLimit, "tool_loop_limit", nil)
}
