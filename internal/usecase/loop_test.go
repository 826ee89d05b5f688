package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"hearthledger/internal/domain"
)

type fakeStatusError struct{ status int }

func (e *fakeStatusError) Error() string       { return "upstream status" }
func (e *fakeStatusError) HTTPStatusCode() int { return e.status }

func TestToolLoopReturnsPlainText(t *testing.T) {
	llm := &mockLLM{responses: []domain.ChatMessage{textReply("done")}}
	loop := &toolLoop{llm: llm, model: "gpt-4o-mini"}

	reply, err := loop.run(context.Background(), []domain.ChatMessage{{Role: domain.RoleUser, Content: "hi"}}, nil)

	require.NoError(t, err)
	require.Equal(t, "done", reply)
	require.Len(t, llm.calls, 1)
}

func TestToolLoopExecutesToolsAndFeedsResultsBack(t *testing.T) {
	llm := &mockLLM{responses: []domain.ChatMessage{
		toolCallReply(domain.ToolCall{ID: "call-1", Name: "get_recent_activity", Arguments: "{}"}),
		textReply("answer"),
	}}
	var executed []string
	loop := &toolLoop{
		llm:   llm,
		model: "gpt-4o-mini",
		execute: func(_ context.Context, call domain.ToolCall) string {
			executed = append(executed, call.Name)
			return `{"ok": true}`
		},
	}

	reply, err := loop.run(context.Background(), []domain.ChatMessage{{Role: domain.RoleUser, Content: "hi"}}, nil)

	require.NoError(t, err)
	require.Equal(t, "answer", reply)
	require.Equal(t, []string{"get_recent_activity"}, executed)

	// Second round must carry the assistant tool call plus its result.
	second := llm.calls[1]
	require.Len(t, second, 3)
	require.Equal(t, domain.RoleAssistant, second[1].Role)
	require.Equal(t, domain.RoleTool, second[2].Role)
	require.Equal(t, "call-1", second[2].ToolCallID)
	require.Equal(t, `{"ok": true}`, second[2].Content)
}

func TestToolLoopCapFailsClosed(t *testing.T) {
	// The model never stops asking for tools.
	llm := &mockLLM{responses: []domain.ChatMessage{
		toolCallReply(domain.ToolCall{ID: "c", Name: "get_recent_activity", Arguments: "{}"}),
	}}
	loop := &toolLoop{
		llm:           llm,
		model:         "gpt-4o-mini",
		maxIterations: 3,
		execute:       func(context.Context, domain.ToolCall) string { return "{}" },
	}

	_, err := loop.run(context.Background(), []domain.ChatMessage{{Role: domain.RoleUser, Content: "hi"}}, nil)

	var ucErr *Error
	require.ErrorAs(t, err, &ucErr)
	require.Equal(t, ErrorToolLoopLimit, ucErr.Code)
	require.Len(t, llm.calls, 3)
}

func TestToolLoopMapsRateLimit(t *testing.T) {
	llm := &mockLLM{errs: []error{&fakeStatusError{status: 429}}}
	loop := &toolLoop{llm: llm, model: "gpt-4o-mini"}

	_, err := loop.run(context.Background(), nil, nil)

	var ucErr *Error
	require.ErrorAs(t, err, &ucErr)
	require.Equal(t, ErrorRateLimited, ucErr.Code)
}

func TestToolLoopMapsUpstreamError(t *testing.T) {
	llm := &mockLLM{errs: []error{errors.New("connection reset")}}
	loop := &toolLoop{llm: llm, model: "gpt-4o-mini"}

	_, err := loop.run(context.Background(), nil, nil)

	var ucErr *Error
	require.ErrorAs(t, err, &ucErr)
	require.Equal(t, ErrorUpstream, ucErr.Code)
}
