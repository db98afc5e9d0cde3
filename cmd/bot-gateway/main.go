package main

import (
	"context"
	"encoding/json"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"tg-downloader-bot/internal/adapters/bot"
	"tg-downloader-bot/internal/adapters/platform"
	"tg-downloader-bot/internal/adapters/repo"
	"tg-downloader-bot/internal/domain"
	"tg-downloader-bot/internal/infra/cache"
	"tg-downloader-bot/internal/infra/config"
	"tg-downloader-bot/internal/infra/db"
	httpinfra "tg-downloader-bot/internal/infra/http"
	"tg-downloader-bot/internal/infra/httpclient"
	applog "tg-downloader-bot/internal/infra/log"
	"tg-downloader-bot/internal/infra/metrics"
	"tg-downloader-bot/internal/infra/queue"
	"tg-downloader-bot/internal/infra/retry"
	"tg-downloader-bot/internal/usecase/download"
	"tg-downloader-bot/internal/usecase/limits"
	"tg-downloader-bot/internal/usecase/subscription"
	"tg-downloader-bot/internal/usecase/users"
)

const webhookPath = "/bot/webhook"

func main() {
	cfg := config.Load()
	logger := applog.NewLogger(cfg.AppEnv)

	metrics.MustRegister(prometheus.DefaultRegisterer)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metrics.StartServer(ctx, logger.With().Str("component", "metrics").Logger(), cfg.MetricsAddr)

	redisClient, err := cache.Connect(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		logger.Fatal().Err(err).Msg("gateway: нет подключения к Redis")
	}
	defer redisClient.Close()
	redisCache := cache.NewRedis(redisClient)

	userRepo, closeRepo := openUserRepo(cfg, logger)
	defer closeRepo()

	userService := users.NewService(userRepo, redisCache, cfg.Limits.UserCacheTTL, logger.With().Str("component", "users").Logger())
	subService := subscription.NewService(userService, logger.With().Str("component", "subscription").Logger())
	dedup := limits.NewDedup(redisCache, cfg.Limits.DedupTTL, logger.With().Str("component", "dedup").Logger())
	limiter := limits.NewRateLimiter(redisCache, subService, cfg.Limits.FreePerHour, logger.With().Str("component", "ratelimit").Logger())

	upstream := httpclient.New(httpclient.Config{
		Timeout: cfg.Upstream.Timeout,
		Retry: retry.Policy{
			MaxAttempts:  cfg.Upstream.MaxAttempts,
			InitialDelay: cfg.Upstream.InitialDelay,
		},
	}, logger.With().Str("component", "upstream").Logger())
	registry := platform.NewDefaultRegistry(upstream, cfg.Upstream.TikTokURL, logger.With().Str("component", "registry").Logger())

	jobs, closeQueue, err := queue.Open(queue.Settings{
		Backend:   cfg.Queues.Backend,
		Name:      cfg.Queues.Download,
		RabbitURL: cfg.RabbitURL,
		Options: queue.Options{
			MaxAttempts:  cfg.Worker.MaxAttempts,
			RetryBackoff: cfg.Worker.RetryBackoff,
		},
	}, redisClient, logger.With().Str("component", "queue").Logger())
	if err != nil {
		logger.Fatal().Err(err).Msg("gateway: не удалось открыть очередь")
	}
	defer func() {
		if err := closeQueue(); err != nil {
			logger.Warn().Err(err).Msg("gateway: ошибка закрытия очереди")
		}
	}()

	admission := download.NewAdmission(userService, subService, dedup, limiter, registry, jobs, logger.With().Str("component", "admission").Logger())

	if cfg.Telegram.Token == "" {
		logger.Fatal().Msg("gateway: не указан токен Telegram (TG_BOT_TOKEN)")
	}
	botAPI, err := tgbotapi.NewBotAPI(cfg.Telegram.Token)
	if err != nil {
		logger.Fatal().Err(err).Msg("gateway: не удалось создать бота")
	}
	if _, err := botAPI.Request(bot.Commands()); err != nil {
		logger.Warn().Err(err).Msg("gateway: не удалось зарегистрировать команды")
	}

	h := bot.NewHandler(botAPI, logger.With().Str("component", "bot").Logger(), userService, subService, limiter, admission, registry)

	server := httpinfra.NewServer(logger.With().Str("component", "http").Logger())
	if cfg.Telegram.WebhookURL != "" {
		server.Router.Post(webhookPath, func(w http.ResponseWriter, r *http.Request) {
			var update tgbotapi.Update
			if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
				httpinfra.WriteError(w, http.StatusBadRequest, "invalid update")
				return
			}
			h.HandleUpdate(r.Context(), update)
			w.WriteHeader(http.StatusOK)
		})
		webhook, err := tgbotapi.NewWebhook(cfg.Telegram.WebhookURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("gateway: некорректный адрес вебхука")
		}
		if _, err := botAPI.Request(webhook); err != nil {
			logger.Fatal().Err(err).Msg("gateway: не удалось установить вебхук")
		}
		logger.Info().Str("url", cfg.Telegram.WebhookURL).Msg("gateway: режим вебхука")
	} else {
		if _, err := botAPI.Request(tgbotapi.DeleteWebhookConfig{}); err != nil {
			logger.Warn().Err(err).Msg("gateway: не удалось снять вебхук")
		}
		go poll(ctx, botAPI, h, logger)
	}

	go func() {
		if err := server.Start(httpAddr(cfg.Port)); err != nil {
			logger.Error().Err(err).Msg("gateway: HTTP сервер остановлен")
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("gateway: остановка")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = server.Shutdown(shutdownCtx)
}

// poll читает апдейты через getUpdates, пока не отменён ctx.
func poll(ctx context.Context, botAPI *tgbotapi.BotAPI, h *bot.Handler, logger zerolog.Logger) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30
	updates := botAPI.GetUpdatesChan(u)
	logger.Info().Msg("gateway: режим long polling")
	for {
		select {
		case <-ctx.Done():
			botAPI.StopReceivingUpdates()
			return
		case upd, ok := <-updates:
			if !ok {
				return
			}
			go h.HandleUpdate(ctx, upd)
		}
	}
}

func openUserRepo(cfg config.AppConfig, logger zerolog.Logger) (domain.UserRepo, func()) {
	if cfg.PGDSN == "" {
		if cfg.AppEnv != "dev" {
			logger.Fatal().Msg("gateway: не указан PG_DSN")
		}
		logger.Warn().Msg("gateway: PG_DSN не задан, пользователи хранятся в памяти")
		return repo.NewMemory(), func() {}
	}
	pool, err := db.Connect(cfg.PGDSN, 10)
	if err != nil {
		logger.Fatal().Err(err).Msg("gateway: нет подключения к БД")
	}
	if err := db.Migrate(pool); err != nil {
		logger.Fatal().Err(err).Msg("gateway: не удалось применить миграции")
	}
	return repo.NewPostgres(pool), pool.Close
}

func httpAddr(port int) string {
	return ":" + strconv.Itoa(port)
}
