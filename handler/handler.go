// Package handler adapts API Gateway events to the agent core: request
// parsing, identity extraction, routing, and error-code to status mapping.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/aws/aws-lambda-go/events"
	"github.com/google/uuid"

	"hearthledger/internal/domain"
	"hearthledger/internal/usecase"
)

const defaultHistoryLimit = 10

// Orchestrator is the core surface the handler dispatches into.
type Orchestrator interface {
	Orchestrate(ctx context.Context, in usecase.OrchestrateInput) (usecase.OrchestrateOutput, error)
	NeedsOnboarding(ctx context.Context, userID string) (bool, error)
	GenerateInsight(ctx context.Context, userID string) (string, error)
	InsightHistory(ctx context.Context, userID string, limit int) ([]domain.Insight, error)
}

// Handler serves the chat, onboarding-status and insight endpoints.
type Handler struct {
	core Orchestrator
}

// NewHandler creates a Handler over the orchestrator core.
func NewHandler(core Orchestrator) (*Handler, error) {
	if core == nil {
		return nil, errors.New("handler: orchestrator must not be nil")
	}
	return &Handler{core: core}, nil
}

type chatRequest struct {
	Message        string `json:"message"`
	ConversationID string `json:"conversationId"`
}

type chatResponse struct {
	Response       string `json:"response"`
	Route          string `json:"route"`
	ConversationID string `json:"conversationId,omitempty"`
	ContextUpdated bool   `json:"contextUpdated,omitempty"`
}

type statusResponse struct {
	NeedsOnboarding bool `json:"needsOnboarding"`
}

type insightResponse struct {
	Insight string `json:"insight"`
}

type insightRecord struct {
	Content   string `json:"content"`
	Priority  string `json:"priority"`
	CreatedAt string `json:"createdAt"`
}

type insightHistoryResponse struct {
	Insights []insightRecord `json:"insights"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// Handle routes one API Gateway event.
func (h *Handler) Handle(ctx context.Context, event events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	correlationID := resolveCorrelationID(event.Headers)

	userID := userIDFromRequest(event)
	if userID == "" {
		return respond(http.StatusUnauthorized, errorResponse{Error: "UNAUTHORIZED"}, correlationID), nil
	}

	switch {
	case event.HTTPMethod == http.MethodPost && event.Path == "/chat":
		return h.handleChat(ctx, event, userID, correlationID), nil
	case event.HTTPMethod == http.MethodGet && event.Path == "/onboarding/status":
		return h.handleStatus(ctx, userID, correlationID), nil
	case event.HTTPMethod == http.MethodPost && event.Path == "/insights":
		return h.handleInsights(ctx, event, userID, correlationID), nil
	}
	return respond(http.StatusNotFound, errorResponse{Error: "NOT_FOUND"}, correlationID), nil
}

func (h *Handler) handleChat(ctx context.Context, event events.APIGatewayProxyRequest, userID, correlationID string) events.APIGatewayProxyResponse {
	var req chatRequest
	if err := json.Unmarshal([]byte(event.Body), &req); err != nil {
		return respond(http.StatusBadRequest, errorResponse{Error: string(usecase.ErrorInvalidInput)}, correlationID)
	}

	out, err := h.core.Orchestrate(ctx, usecase.OrchestrateInput{
		UserID:         userID,
		Message:        req.Message,
		ConversationID: req.ConversationID,
	})
	if err != nil {
		return errorToResponse(err, correlationID)
	}
	return respond(http.StatusOK, chatResponse{
		Response:       out.Response,
		Route:          out.Route,
		ConversationID: out.ConversationID,
		ContextUpdated: out.ContextUpdated,
	}, correlationID)
}

func (h *Handler) handleStatus(ctx context.Context, userID, correlationID string) events.APIGatewayProxyResponse {
	needed, err := h.core.NeedsOnboarding(ctx, userID)
	if err != nil {
		return errorToResponse(err, correlationID)
	}
	return respond(http.StatusOK, statusResponse{NeedsOnboarding: needed}, correlationID)
}

func (h *Handler) handleInsights(ctx context.Context, event events.APIGatewayProxyRequest, userID, correlationID string) events.APIGatewayProxyResponse {
	if raw, ok := event.QueryStringParameters["history"]; ok {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit <= 0 {
			limit = defaultHistoryLimit
		}
		insights, err := h.core.InsightHistory(ctx, userID, limit)
		if err != nil {
			return errorToResponse(err, correlationID)
		}
		records := make([]insightRecord, 0, len(insights))
		for _, in := range insights {
			records = append(records, insightRecord{
				Content:   in.Content,
				Priority:  string(in.Priority),
				CreatedAt: in.CreatedAt,
			})
		}
		return respond(http.StatusOK, insightHistoryResponse{Insights: records}, correlationID)
	}

	insight, err := h.core.GenerateInsight(ctx, userID)
	if err != nil {
		return errorToResponse(err, correlationID)
	}
	return respond(http.StatusOK, insightResponse{Insight: insight}, correlationID)
}

// userIDFromRequest reads the authorizer's subject claim. The hosting
// boundary authenticates; the core only needs a stable user id.
func userIDFromRequest(event events.APIGatewayProxyRequest) string {
	claims, ok := event.RequestContext.Authorizer["claims"].(map[string]any)
	if !ok {
		return ""
	}
	sub, _ := claims["sub"].(string)
	return strings.TrimSpace(sub)
}

func errorToResponse(err error, correlationID string) events.APIGatewayProxyResponse {
	var ucErr *usecase.Error
	if !errors.As(err, &ucErr) {
		return respond(http.StatusInternalServerError, errorResponse{Error: string(usecase.ErrorInternal)}, correlationID)
	}
	status := http.StatusInternalServerError
	switch ucErr.Code {
	case usecase.ErrorInvalidInput:
		status = http.StatusBadRequest
	case usecase.ErrorRateLimited:
		status = http.StatusTooManyRequests
	case usecase.ErrorUpstream, usecase.ErrorToolLoopLimit:
		status = http.StatusBadGateway
	}
	return respond(status, errorResponse{Error: string(ucErr.Code)}, correlationID)
}

func respond(status int, body any, correlationID string) events.APIGatewayProxyResponse {
	raw, err := json.Marshal(body)
	if err != nil {
		raw = []byte(`{"error":"INTERNAL_ERROR"}`)
		status = http.StatusInternalServerError
	}
	return events.APIGatewayProxyResponse{
		StatusCode: status,
		Headers: map[string]string{
			"Content-Type":     "application/json",
			"X-Correlation-Id": correlationID,
		},
		Body: string(raw),
	}
}

func resolveCorrelationID(headers map[string]string) string {
	for key, value := range headers {
		if strings.EqualFold(key, "x-correlation-id") && strings.TrimSpace(value) != "" {
			return value
		}
	}
	return uuid.NewString()
}
