package config

import (
	"log"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// AppConfig описывает конфигурацию сервисов.
type AppConfig struct {
	AppEnv      string `envconfig:"APP_ENV" default:"dev"`
	Port        int    `envconfig:"PORT" default:"8080"`
	MetricsAddr string `envconfig:"METRICS_ADDR" default:":9090"`
	AdminToken  string `envconfig:"ADMIN_TOKEN"`

	Telegram struct {
		Token      string  `envconfig:"TG_BOT_TOKEN"`
		WebhookURL string  `envconfig:"TG_WEBHOOK_URL"`
		RPS        float64 `envconfig:"TG_RPS" default:"25"`
	} `envconfig:""`

	PGDSN string `envconfig:"PG_DSN"`

	Redis struct {
		Addr     string `envconfig:"REDIS_ADDR" default:"localhost:6379"`
		Password string `envconfig:"REDIS_PASSWORD"`
		DB       int    `envconfig:"REDIS_DB" default:"0"`
	} `envconfig:""`

	RabbitURL string `envconfig:"RABBITMQ_URL"`

	Queues struct {
		Backend  string `envconfig:"QUEUE_BACKEND" default:"redis"`
		Download string `envconfig:"DOWNLOAD_QUEUE_KEY" default:"download_jobs"`
	} `envconfig:""`

	Worker struct {
		Concurrency  int           `envconfig:"WORKER_CONCURRENCY" default:"5"`
		MaxAttempts  int           `envconfig:"JOB_MAX_ATTEMPTS" default:"3"`
		RetryBackoff time.Duration `envconfig:"JOB_RETRY_BACKOFF" default:"5s"`
	} `envconfig:""`

	Limits struct {
		FreePerHour  int           `envconfig:"FREE_REQUESTS_PER_HOUR" default:"3"`
		DedupTTL     time.Duration `envconfig:"DEDUP_TTL" default:"60s"`
		UserCacheTTL time.Duration `envconfig:"USER_CACHE_TTL" default:"300s"`
	} `envconfig:""`

	Upstream struct {
		TikTokURL    string        `envconfig:"TIKTOK_API_URL" default:"https://api.tiklydown.eu.org/api/download"`
		Timeout      time.Duration `envconfig:"UPSTREAM_TIMEOUT" default:"10s"`
		MaxAttempts  int           `envconfig:"UPSTREAM_MAX_ATTEMPTS" default:"3"`
		InitialDelay time.Duration `envconfig:"UPSTREAM_INITIAL_DELAY" default:"300ms"`
	} `envconfig:""`
}

// Load загружает конфиг из окружения.
func Load() AppConfig {
	var cfg AppConfig
	if err := envconfig.Process("", &cfg); err != nil {
		log.Fatalf("не удалось загрузить конфиг: %v", err)
	}
	return cfg
}
