package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"

	api "github.com/OvyFlash/telegram-bot-api"
	"github.com/google/uuid"
	"github.com/iamvkosarev/ai-widget-builder/config"
	"github.com/iamvkosarev/ai-widget-builder/internal/preview"
	in_memory "github.com/iamvkosarev/ai-widget-builder/internal/storage/in-memory"
	key_value "github.com/iamvkosarev/ai-widget-builder/internal/storage/key-value"
	"github.com/iamvkosarev/ai-widget-builder/internal/usecase"
	openai_tools "github.com/iamvkosarev/ai-widget-builder/pkg/openai-tools"
	"github.com/redis/go-redis/v9"
	"github.com/sourcegraph/conc"
)

func Run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	storage, closeStorage, err := newSessionStorage(ctx, cfg.Redis, logger)
	if err != nil {
		return err
	}
	defer closeStorage()

	generator, critic, err := newBackend(cfg, logger)
	if err != nil {
		return err
	}

	sessions := usecase.NewSessionUsecase(
		usecase.SessionUsecaseDeps{
			Storage:   storage,
			Generator: generator,
			Critic:    critic,
			Tokens:    openai_tools.NewCounter(cfg.Builder.TokenModel),
			Logger:    logger,
		}, cfg.Builder,
	)
	defer sessions.Close()

	previewServer := preview.NewServer(
		cfg.Preview, func(ctx context.Context, sessionID uuid.UUID) (preview.Widget, error) {
			b, err := sessions.Lookup(ctx, sessionID)
			if err != nil {
				return nil, err
			}
			return b, nil
		}, logger,
	)

	bot, err := api.NewBotAPI(cfg.Telegram.TelegramAPIToken)
	if err != nil {
		return fmt.Errorf("failed to create new bot: %w", err)
	}
	logger.Info("authorized on telegram", "account", bot.Self.UserName)

	telegramUsecase, err := usecase.NewTelegramUsecase(
		cfg.Telegram, usecase.TelegramUsecaseDeps{
			Bot:        bot,
			Sessions:   sessions,
			PreviewURL: previewServer.URL,
			Logger:     logger,
		},
	)
	if err != nil {
		return fmt.Errorf("failed to create telegram usecase: %w", err)
	}

	var previewErr, telegramErr error
	wg := conc.NewWaitGroup()
	wg.Go(
		func() {
			defer cancel()
			previewErr = previewServer.Run(ctx)
		},
	)
	wg.Go(
		func() {
			defer cancel()
			telegramErr = telegramUsecase.Run(ctx)
		},
	)
	wg.Wait()

	if previewErr != nil {
		return previewErr
	}
	return telegramErr
}

func newSessionStorage(
	ctx context.Context,
	cfg config.Redis,
	logger *slog.Logger,
) (usecase.SessionStorage, func(), error) {
	if cfg.Endpoint == "" {
		logger.Warn("redis endpoint is not set, sessions are kept in memory")
		return in_memory.NewSessionStorage(), func() {}, nil
	}
	rdb := redis.NewClient(
		&redis.Options{
			Addr:     cfg.Endpoint,
			Password: cfg.Password,
			DB:       cfg.DB,
		},
	)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, nil, fmt.Errorf("failed to ping redis: %w", err)
	}
	closeFn := func() {
		if err := rdb.Close(); err != nil {
			logger.Warn("failed to close redis client", "error", err)
		}
	}
	return key_value.NewSessionStorage(rdb, cfg.SessionTTL), closeFn, nil
}

func newBackend(cfg *config.Config, logger *slog.Logger) (usecase.Generator, usecase.Critic, error) {
	switch cfg.Endpoints.Backend {
	case config.BackendOpenAI:
		openAICfg := cfg.OpenAI
		if openAICfg.OpenAIBaseURL != "" {
			baseURL, err := url.JoinPath(openAICfg.OpenAIBaseURL, "/v1")
			if err != nil {
				return nil, nil, fmt.Errorf("failed to build openai base url: %w", err)
			}
			openAICfg.OpenAIBaseURL = baseURL
		}
		openAIUsecase := usecase.NewOpenAIUsecase(openAICfg, logger)
		return openAIUsecase, openAIUsecase, nil
	case config.BackendHTTP:
		client := &http.Client{}
		return usecase.NewGenerateUsecase(cfg.Endpoints, client, logger),
			usecase.NewCritiqueUsecase(cfg.Endpoints, client, logger),
			nil
	default:
		return nil, nil, fmt.Errorf("unknown generation backend %q", cfg.Endpoints.Backend)
	}
}
