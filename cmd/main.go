package main

import (
	"context"
	"log/slog"
	"os"
	"strconv"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/config"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awsssm "github.com/aws/aws-sdk-go-v2/service/ssm"

	"hearthledger/handler"
	"hearthledger/internal/integrations/openai"
	"hearthledger/internal/integrations/paramstore"
	"hearthledger/internal/logger"
	"hearthledger/internal/repository"
	"hearthledger/internal/txquery"
	"hearthledger/internal/usecase"
)

func main() {
	ctx := context.Background()

	// ---- Configuration (read only here) ----
	stateTable := mustEnv("STATE_TABLE")
	paramPrefix := mustEnv("PARAM_PREFIX")
	maxContextItems := envInt("MAX_CONTEXT_ITEMS", 20)
	maxToolIterations := envInt("MAX_TOOL_ITERATIONS", 8)

	// ---- AWS SDK config ----
	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		slog.Error("failed to load AWS config", "err", err)
		os.Exit(1)
	}

	// ---- Clients ----
	ssmClient, err := paramstore.New(awsssm.NewFromConfig(cfg))
	if err != nil {
		slog.Error("failed to create SSM client", "err", err)
		os.Exit(1)
	}
	store, err := repository.New(awsdynamodb.NewFromConfig(cfg), stateTable)
	if err != nil {
		slog.Error("failed to create repository client", "err", err)
		os.Exit(1)
	}
	openaiClient, err := openai.NewClient(ssmClient, paramPrefix)
	if err != nil {
		slog.Error("failed to create OpenAI client", "err", err)
		os.Exit(1)
	}
	queries, err := txquery.New(store)
	if err != nil {
		slog.Error("failed to create query service", "err", err)
		os.Exit(1)
	}

	// ---- Agents ----
	log := logger.New()
	onboardingAgent, err := usecase.NewOnboardingAgent(openaiClient, store, store, store, queries, maxContextItems, maxToolIterations, log)
	if err != nil {
		slog.Error("failed to create onboarding agent", "err", err)
		os.Exit(1)
	}
	chatAgent, err := usecase.NewChatAgent(openaiClient, store, store, store, queries, maxContextItems, maxToolIterations, log)
	if err != nil {
		slog.Error("failed to create chat agent", "err", err)
		os.Exit(1)
	}
	insightAgent, err := usecase.NewInsightAgent(openaiClient, queries, store, store, log)
	if err != nil {
		slog.Error("failed to create insight agent", "err", err)
		os.Exit(1)
	}
	router, err := usecase.NewRouter(onboardingAgent, chatAgent, insightAgent, store, store, ssmClient, paramPrefix, log)
	if err != nil {
		slog.Error("failed to create router", "err", err)
		os.Exit(1)
	}

	// ---- Handler ----
	h, err := handler.NewHandler(router)
	if err != nil {
		slog.Error("failed to create handler", "err", err)
		os.Exit(1)
	}

	lambda.Start(h.Handle)
}

func mustEnv(key string) string {
	v := os.Getenv(key)
	if v == "" {
		slog.Error("required environment variable is not set", "key", key)
		os.Exit(1)
	}
	return v
}

func envInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}
