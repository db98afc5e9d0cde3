package main

import (
	"context"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"tg-downloader-bot/internal/adapters/admin"
	"tg-downloader-bot/internal/adapters/repo"
	"tg-downloader-bot/internal/infra/cache"
	"tg-downloader-bot/internal/infra/config"
	"tg-downloader-bot/internal/infra/db"
	httpinfra "tg-downloader-bot/internal/infra/http"
	applog "tg-downloader-bot/internal/infra/log"
	"tg-downloader-bot/internal/infra/metrics"
	"tg-downloader-bot/internal/usecase/subscription"
	"tg-downloader-bot/internal/usecase/users"
)

func main() {
	cfg := config.Load()
	logger := applog.NewLogger(cfg.AppEnv)

	metrics.MustRegister(prometheus.DefaultRegisterer)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.AdminToken == "" {
		logger.Warn().Msg("api: ADMIN_TOKEN не задан, административные методы закрыты")
	}

	pool, err := db.Connect(cfg.PGDSN, 5)
	if err != nil {
		logger.Fatal().Err(err).Msg("api: нет подключения к БД")
	}
	defer pool.Close()
	if err := db.Migrate(pool); err != nil {
		logger.Fatal().Err(err).Msg("api: не удалось применить миграции")
	}

	redisClient, err := cache.Connect(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		logger.Fatal().Err(err).Msg("api: нет подключения к Redis")
	}
	defer redisClient.Close()

	userService := users.NewService(repo.NewPostgres(pool), cache.NewRedis(redisClient), cfg.Limits.UserCacheTTL, logger.With().Str("component", "users").Logger())
	subService := subscription.NewService(userService, logger.With().Str("component", "subscription").Logger())

	server := httpinfra.NewServer(logger.With().Str("component", "http").Logger())
	admin.NewHandler(subService, logger.With().Str("component", "admin").Logger()).Mount(server.Router, cfg.AdminToken)

	go func() {
		logger.Info().Msg("api: старт")
		if err := server.Start(":" + strconv.Itoa(cfg.Port)); err != nil {
			logger.Error().Err(err).Msg("api: сервер остановлен")
			stop()
		}
	}()
	<-ctx.Done()
	logger.Info().Msg("api: остановка")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = server.Shutdown(shutdownCtx)
}
