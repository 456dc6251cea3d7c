package main

import (
	"context"
	"log/slog"
	"os"
	"strconv"

	"github.com/aws/aws-lambda-go/lambda"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awsssm "github.com/aws/aws-sdk-go-v2/service/ssm"

	"support-agent/handler"
	"support-agent/internal/agents"
	"support-agent/internal/config"
	"support-agent/internal/integrations/openai"
	"support-agent/internal/integrations/paramstore"
	"support-agent/internal/intent"
	"support-agent/internal/memory"
	"support-agent/internal/repository"
	"support-agent/internal/router"
	"support-agent/internal/session"
	"support-agent/internal/usecase"
)

func main() {
	ctx := context.Background()

	// ---- Configuration (read only here) ----
	stateTable := mustEnv("STATE_TABLE")
	paramPrefix := mustEnv("PARAM_PREFIX")
	maxInputLen := envInt("MAX_INPUT_LENGTH", 2000)
	cfg := loadConfig(os.Getenv("CONFIG_FILE"))

	// ---- AWS SDK config ----
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		slog.Error("failed to load AWS config", "err", err)
		os.Exit(1)
	}

	// ---- Clients ----
	ssmClient, err := paramstore.New(awsssm.NewFromConfig(awsCfg))
	if err != nil {
		slog.Error("failed to create SSM client", "err", err)
		os.Exit(1)
	}
	stateClient, err := repository.New(awsdynamodb.NewFromConfig(awsCfg), stateTable)
	if err != nil {
		slog.Error("failed to create state client", "err", err)
		os.Exit(1)
	}
	openaiClient, err := openai.NewClient(ssmClient, paramPrefix)
	if err != nil {
		slog.Error("failed to create OpenAI client", "err", err)
		os.Exit(1)
	}

	// ---- Pipeline ----
	classifier, err := intent.NewClassifier(openaiClient,
		intent.WithThreshold(cfg.Classifier.FuzzyThreshold),
		intent.WithLLMTimeout(cfg.LLMTimeout()),
	)
	if err != nil {
		slog.Error("failed to create classifier", "err", err)
		os.Exit(1)
	}
	sessions := session.NewStore(
		session.WithTTL(cfg.SessionTTL()),
		session.WithMaxEntries(cfg.Sessions.MaxEntries),
	)

	general, err := agents.NewGeneral(openaiClient)
	if err != nil {
		slog.Error("failed to create general agent", "err", err)
		os.Exit(1)
	}
	dispatcher, err := router.New(general, router.WithTimeout(cfg.HandlerTimeout()))
	if err != nil {
		slog.Error("failed to create dispatcher", "err", err)
		os.Exit(1)
	}
	if err := dispatcher.Register(intent.LiveAgent, agents.Live()); err != nil {
		slog.Error("failed to register live agent", "err", err)
		os.Exit(1)
	}
	if err := dispatcher.Register(intent.Memory, agents.History()); err != nil {
		slog.Error("failed to register history agent", "err", err)
		os.Exit(1)
	}

	service, err := usecase.NewService(classifier, sessions, dispatcher, stateClient,
		usecase.WithMaxInputLength(maxInputLen),
		usecase.WithIndexer(memory.Indexer{
			Window: cfg.Memory.WindowSize,
			TopK:   cfg.Memory.TopK,
			Weights: memory.Weights{
				TokenOverlap:  cfg.Memory.TokenWeight,
				EntityOverlap: cfg.Memory.EntityWeight,
				TagOverlap:    cfg.Memory.TagWeight,
			},
		}),
	)
	if err != nil {
		slog.Error("failed to create turn service", "err", err)
		os.Exit(1)
	}

	h, err := handler.NewHandler(service)
	if err != nil {
		slog.Error("failed to create handler", "err", err)
		os.Exit(1)
	}

	lambda.Start(h.Handle)
}

func loadConfig(path string) config.Config {
	if path == "" {
		return config.Default()
	}
	cfg, err := config.Load(path)
	if err != nil {
		slog.Error("failed to load config file", "path", path, "err", err)
		os.Exit(1)
	}
	return cfg
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
