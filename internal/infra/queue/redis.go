package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"tg-downloader-bot/internal/domain"
	"tg-downloader-bot/internal/infra/metrics"
)

const (
	// priorityStride разводит приоритеты по диапазонам score, внутри диапазона порядок FIFO.
	priorityStride = 1e13
	popTimeout     = time.Second
)

// Options задаёт политику повторов очереди.
type Options struct {
	MaxAttempts  int
	RetryBackoff time.Duration
}

func (o Options) normalized() Options {
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = 3
	}
	if o.RetryBackoff < 0 {
		o.RetryBackoff = 0
	}
	return o
}

// retry возвращает следующую попытку задачи и задержку перед ней.
// false означает, что попытки исчерпаны и задача отбрасывается.
func (o Options) retry(job domain.DownloadJob) (domain.DownloadJob, time.Duration, bool) {
	next := job.Retry()
	if next.Attempt >= o.MaxAttempts {
		return next, 0, false
	}
	return next, o.RetryBackoff * time.Duration(next.Attempt), true
}

// RedisDownloadQueue реализует приоритетную очередь на sorted set.
// Отложенные повторы лежат в отдельном sorted set и переносятся в основной по наступлении срока.
type RedisDownloadQueue struct {
	client  *redis.Client
	key     string
	delayed string
	opts    Options
	logger  zerolog.Logger
	now     func() time.Time
}

var _ domain.DownloadQueue = (*RedisDownloadQueue)(nil)

// NewRedisDownloadQueue создаёт очередь по указанному ключу.
func NewRedisDownloadQueue(client *redis.Client, key string, opts Options, logger zerolog.Logger) *RedisDownloadQueue {
	return &RedisDownloadQueue{
		client:  client,
		key:     key,
		delayed: key + ":delayed",
		opts:    opts.normalized(),
		logger:  logger,
		now:     time.Now,
	}
}

func (q *RedisDownloadQueue) score(job domain.DownloadJob) float64 {
	priority := job.Priority
	if priority < 0 {
		priority = 0
	}
	if priority > domain.MaxPriority {
		priority = domain.MaxPriority
	}
	enqueued := job.EnqueuedAt
	if enqueued.IsZero() {
		enqueued = q.now()
	}
	return float64(domain.MaxPriority-priority)*priorityStride + float64(enqueued.UnixMilli())
}

// Enqueue публикует задачу в очередь.
func (q *RedisDownloadQueue) Enqueue(ctx context.Context, job domain.DownloadJob) error {
	if job.EnqueuedAt.IsZero() {
		job.EnqueuedAt = q.now()
	}
	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}
	start := time.Now()
	err = q.client.ZAdd(ctx, q.key, redis.Z{Score: q.score(job), Member: payload}).Err()
	metrics.ObserveNetworkRequest("redis", "zadd", q.key, start, err)
	if err != nil {
		return fmt.Errorf("push job: %w", err)
	}
	return nil
}

var promoteScript = redis.NewScript(`
local due = redis.call("ZRANGEBYSCORE", KEYS[1], "-inf", ARGV[1], "LIMIT", 0, 100)
for _, raw in ipairs(due) do
  local job = cjson.decode(raw)
  local priority = tonumber(job["priority"]) or 0
  local score = (tonumber(ARGV[2]) - priority) * tonumber(ARGV[3]) + tonumber(ARGV[1])
  redis.call("ZADD", KEYS[2], score, raw)
  redis.call("ZREM", KEYS[1], raw)
end
return #due
`)

func (q *RedisDownloadQueue) promoteDue(ctx context.Context) error {
	now := q.now().UnixMilli()
	return promoteScript.Run(ctx, q.client, []string{q.delayed, q.key},
		strconv.FormatInt(now, 10),
		strconv.Itoa(int(domain.MaxPriority)),
		strconv.FormatFloat(priorityStride, 'f', 0, 64),
	).Err()
}

// Receive блокирующе читает задачу с наивысшим приоритетом.
func (q *RedisDownloadQueue) Receive(ctx context.Context) (domain.DownloadJob, domain.AckFunc, error) {
	for {
		if err := ctx.Err(); err != nil {
			return domain.DownloadJob{}, nil, err
		}
		if err := q.promoteDue(ctx); err != nil && ctx.Err() == nil {
			q.logger.Warn().Err(err).Msg("redis queue: не удалось перенести отложенные задачи")
		}

		res, err := q.client.BZPopMin(ctx, popTimeout, q.key).Result()
		if err != nil {
			if ctx.Err() != nil {
				return domain.DownloadJob{}, nil, ctx.Err()
			}
			if errors.Is(err, redis.Nil) || errors.Is(err, context.DeadlineExceeded) {
				continue
			}
			return domain.DownloadJob{}, nil, err
		}
		raw, ok := res.Member.(string)
		if !ok {
			return domain.DownloadJob{}, nil, errors.New("redis queue: unexpected member type")
		}
		var job domain.DownloadJob
		if err := json.Unmarshal([]byte(raw), &job); err != nil {
			q.logger.Error().Err(err).Msg("redis queue: повреждённая задача, пропускаем")
			continue
		}
		return job, q.ackFunc(job), nil
	}
}

func (q *RedisDownloadQueue) ackFunc(job domain.DownloadJob) domain.AckFunc {
	return func(success bool) error {
		if success {
			return nil
		}
		next, delay, ok := q.opts.retry(job)
		if !ok {
			q.logger.Warn().Str("job_id", job.ID).Int("attempts", next.Attempt).Msg("redis queue: попытки исчерпаны, задача отброшена")
			return nil
		}
		payload, err := json.Marshal(next)
		if err != nil {
			return fmt.Errorf("marshal job: %w", err)
		}
		due := q.now().Add(delay)
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		start := time.Now()
		err = q.client.ZAdd(ctx, q.delayed, redis.Z{Score: float64(due.UnixMilli()), Member: payload}).Err()
		metrics.ObserveNetworkRequest("redis", "zadd", q.delayed, start, err)
		if err != nil {
			return fmt.Errorf("schedule retry: %w", err)
		}
		return nil
	}
}
