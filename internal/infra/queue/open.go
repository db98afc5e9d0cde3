package queue

import (
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"tg-downloader-bot/internal/domain"
)

const (
	BackendRedis    = "redis"
	BackendRabbitMQ = "rabbitmq"
)

// Settings выбирает реализацию очереди задач.
type Settings struct {
	Backend   string
	Name      string
	RabbitURL string
	Prefetch  int
	Options   Options
}

// Open создаёт очередь выбранного типа. Возвращённую функцию нужно вызвать при остановке.
func Open(s Settings, client *redis.Client, logger zerolog.Logger) (domain.DownloadQueue, func() error, error) {
	switch s.Backend {
	case "", BackendRedis:
		if client == nil {
			return nil, nil, fmt.Errorf("redis queue requires a redis client")
		}
		return NewRedisDownloadQueue(client, s.Name, s.Options, logger), func() error { return nil }, nil
	case BackendRabbitMQ:
		q, err := NewRabbitDownloadQueue(s.RabbitURL, s.Name, s.Prefetch, s.Options, logger)
		if err != nil {
			return nil, nil, err
		}
		return q, q.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown queue backend %q", s.Backend)
	}
}
