package main

import (
	"context"
	"os/signal"
	"syscall"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"tg-downloader-bot/internal/adapters/platform"
	"tg-downloader-bot/internal/adapters/telegram"
	"tg-downloader-bot/internal/infra/cache"
	"tg-downloader-bot/internal/infra/config"
	"tg-downloader-bot/internal/infra/httpclient"
	applog "tg-downloader-bot/internal/infra/log"
	"tg-downloader-bot/internal/infra/metrics"
	"tg-downloader-bot/internal/infra/queue"
	"tg-downloader-bot/internal/infra/retry"
	"tg-downloader-bot/internal/usecase/download"
)

func main() {
	cfg := config.Load()
	logger := applog.NewLogger(cfg.AppEnv)

	metrics.MustRegister(prometheus.DefaultRegisterer)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metrics.StartServer(ctx, logger.With().Str("component", "metrics").Logger(), cfg.MetricsAddr)

	var redisClient *redis.Client
	if cfg.Queues.Backend != queue.BackendRabbitMQ {
		client, err := cache.Connect(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			logger.Fatal().Err(err).Msg("worker: нет подключения к Redis")
		}
		defer client.Close()
		redisClient = client
	}

	jobs, closeQueue, err := queue.Open(queue.Settings{
		Backend:   cfg.Queues.Backend,
		Name:      cfg.Queues.Download,
		RabbitURL: cfg.RabbitURL,
		Prefetch:  cfg.Worker.Concurrency,
		Options: queue.Options{
			MaxAttempts:  cfg.Worker.MaxAttempts,
			RetryBackoff: cfg.Worker.RetryBackoff,
		},
	}, redisClient, logger.With().Str("component", "queue").Logger())
	if err != nil {
		logger.Fatal().Err(err).Msg("worker: не удалось открыть очередь")
	}
	defer func() {
		if err := closeQueue(); err != nil {
			logger.Warn().Err(err).Msg("worker: ошибка закрытия очереди")
		}
	}()

	if cfg.Telegram.Token == "" {
		logger.Fatal().Msg("worker: не указан токен Telegram (TG_BOT_TOKEN)")
	}
	botAPI, err := tgbotapi.NewBotAPI(cfg.Telegram.Token)
	if err != nil {
		logger.Fatal().Err(err).Msg("worker: не удалось создать бота")
	}
	notifier := telegram.NewNotifier(botAPI, cfg.Telegram.RPS, logger.With().Str("component", "notifier").Logger())

	upstream := httpclient.New(httpclient.Config{
		Timeout: cfg.Upstream.Timeout,
		Retry: retry.Policy{
			MaxAttempts:  cfg.Upstream.MaxAttempts,
			InitialDelay: cfg.Upstream.InitialDelay,
		},
	}, logger.With().Str("component", "upstream").Logger())
	registry := platform.NewDefaultRegistry(upstream, cfg.Upstream.TikTokURL, logger.With().Str("component", "registry").Logger())

	processor := download.NewProcessor(registry, notifier, logger.With().Str("component", "processor").Logger())
	pool := download.NewPool(jobs, processor, cfg.Worker.Concurrency, logger.With().Str("component", "pool").Logger())

	logger.Info().Str("backend", cfg.Queues.Backend).Int("concurrency", cfg.Worker.Concurrency).Msg("worker: запуск обработки очереди")
	pool.Run(ctx)
	logger.Info().Msg("worker: остановлен")
}
