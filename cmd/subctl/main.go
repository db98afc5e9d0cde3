package main

import (
	"context"
	"os"

	"github.com/urfave/cli/v3"

	"tg-downloader-bot/internal/adapters/repo"
	"tg-downloader-bot/internal/infra/cache"
	"tg-downloader-bot/internal/infra/config"
	"tg-downloader-bot/internal/infra/db"
	applog "tg-downloader-bot/internal/infra/log"
	"tg-downloader-bot/internal/usecase/subscription"
	"tg-downloader-bot/internal/usecase/users"
)

func main() {
	cfg := config.Load()
	logger := applog.NewLogger(cfg.AppEnv)

	runner := &Runner{out: os.Stdout}
	runner.open = func() (Subscriptions, func(), error) {
		pool, err := db.Connect(cfg.PGDSN, 2)
		if err != nil {
			return nil, nil, err
		}
		redisClient, err := cache.Connect(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			pool.Close()
			return nil, nil, err
		}
		userService := users.NewService(repo.NewPostgres(pool), cache.NewRedis(redisClient), cfg.Limits.UserCacheTTL, logger)
		closeFn := func() {
			_ = redisClient.Close()
			pool.Close()
		}
		return subscription.NewService(userService, logger), closeFn, nil
	}
	runner.migrate = func() error {
		pool, err := db.Connect(cfg.PGDSN, 1)
		if err != nil {
			return err
		}
		defer pool.Close()
		return db.Migrate(pool)
	}

	app := &cli.Command{
		Name:     "subctl",
		Usage:    "Manage premium subscriptions of bot users",
		Commands: runner.register(),
	}
	if err := app.Run(context.Background(), os.Args); err != nil {
		logger.Fatal().Err(err).Msg("subctl: ошибка выполнения")
	}
}
