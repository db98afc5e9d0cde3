package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"

	"tg-downloader-bot/internal/domain"
	"tg-downloader-bot/internal/infra/metrics"
)

// RabbitDownloadQueue реализует приоритетную очередь на RabbitMQ.
// Повторы публикуются в очередь ожидания с TTL, откуда dead-letter возвращает их в основную.
type RabbitDownloadQueue struct {
	conn   *amqp.Connection
	ch     *amqp.Channel
	queue  string
	retry  string
	opts   Options
	logger zerolog.Logger

	mu         sync.Mutex
	deliveries <-chan amqp.Delivery
}

var _ domain.DownloadQueue = (*RabbitDownloadQueue)(nil)

// NewRabbitDownloadQueue подключается к брокеру и объявляет очереди.
func NewRabbitDownloadQueue(amqpURL, queue string, prefetch int, opts Options, logger zerolog.Logger) (*RabbitDownloadQueue, error) {
	if amqpURL == "" {
		return nil, errors.New("amqp url is empty")
	}
	if queue == "" {
		return nil, errors.New("queue name is empty")
	}
	conn, err := amqp.Dial(amqpURL)
	if err != nil {
		return nil, fmt.Errorf("dial rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	q := &RabbitDownloadQueue{
		conn:   conn,
		ch:     ch,
		queue:  queue,
		retry:  queue + ".retry",
		opts:   opts.normalized(),
		logger: logger,
	}
	if err := q.declare(prefetch); err != nil {
		_ = q.Close()
		return nil, err
	}
	return q, nil
}

func (q *RabbitDownloadQueue) declare(prefetch int) error {
	if _, err := q.ch.QueueDeclare(q.queue, true, false, false, false, amqp.Table{
		"x-max-priority": int32(domain.MaxPriority),
	}); err != nil {
		return fmt.Errorf("declare queue: %w", err)
	}
	if _, err := q.ch.QueueDeclare(q.retry, true, false, false, false, amqp.Table{
		"x-dead-letter-exchange":    "",
		"x-dead-letter-routing-key": q.queue,
	}); err != nil {
		return fmt.Errorf("declare retry queue: %w", err)
	}
	if prefetch <= 0 {
		prefetch = 1
	}
	if err := q.ch.Qos(prefetch, 0, false); err != nil {
		return fmt.Errorf("set qos: %w", err)
	}
	return nil
}

// Close закрывает канал и соединение.
func (q *RabbitDownloadQueue) Close() error {
	var errs []error
	if q.ch != nil {
		errs = append(errs, q.ch.Close())
	}
	if q.conn != nil {
		errs = append(errs, q.conn.Close())
	}
	return errors.Join(errs...)
}

// publishing собирает сообщение брокера. expiration > 0 задаёт TTL в очереди ожидания.
func publishing(job domain.DownloadJob, expiration time.Duration) (amqp.Publishing, error) {
	payload, err := json.Marshal(job)
	if err != nil {
		return amqp.Publishing{}, fmt.Errorf("marshal job: %w", err)
	}
	priority := min(max(job.Priority, 0), domain.MaxPriority)
	msg := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Priority:     uint8(priority),
		MessageId:    job.ID,
		Timestamp:    job.EnqueuedAt,
		Body:         payload,
	}
	if expiration > 0 {
		msg.Expiration = strconv.FormatInt(max(expiration.Milliseconds(), 1), 10)
	}
	return msg, nil
}

// retryDelay не даёт нулевой задержки: сообщение без TTL осталось бы в очереди ожидания навсегда.
func retryDelay(delay time.Duration) time.Duration {
	if delay < time.Millisecond {
		return time.Millisecond
	}
	return delay
}

func (q *RabbitDownloadQueue) publish(ctx context.Context, routingKey string, job domain.DownloadJob, expiration time.Duration) error {
	msg, err := publishing(job, expiration)
	if err != nil {
		return err
	}
	start := time.Now()
	q.mu.Lock()
	err = q.ch.PublishWithContext(ctx, "", routingKey, false, false, msg)
	q.mu.Unlock()
	metrics.ObserveNetworkRequest("rabbitmq", "publish", routingKey, start, err)
	if err != nil {
		return fmt.Errorf("publish job: %w", err)
	}
	return nil
}

// Enqueue публикует задачу с приоритетом брокера.
func (q *RabbitDownloadQueue) Enqueue(ctx context.Context, job domain.DownloadJob) error {
	if job.EnqueuedAt.IsZero() {
		job.EnqueuedAt = time.Now()
	}
	return q.publish(ctx, q.queue, job, 0)
}

func (q *RabbitDownloadQueue) consume() (<-chan amqp.Delivery, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.deliveries != nil {
		return q.deliveries, nil
	}
	deliveries, err := q.ch.Consume(q.queue, "", false, false, false, false, nil)
	if err != nil {
		return nil, fmt.Errorf("consume: %w", err)
	}
	q.deliveries = deliveries
	return deliveries, nil
}

// Receive блокирующе читает задачу из очереди.
func (q *RabbitDownloadQueue) Receive(ctx context.Context) (domain.DownloadJob, domain.AckFunc, error) {
	deliveries, err := q.consume()
	if err != nil {
		return domain.DownloadJob{}, nil, err
	}
	for {
		select {
		case <-ctx.Done():
			return domain.DownloadJob{}, nil, ctx.Err()
		case d, ok := <-deliveries:
			if !ok {
				return domain.DownloadJob{}, nil, errors.New("rabbitmq: delivery channel closed")
			}
			var job domain.DownloadJob
			if err := json.Unmarshal(d.Body, &job); err != nil {
				q.logger.Error().Err(err).Msg("rabbitmq queue: повреждённая задача, отбрасываем")
				_ = d.Nack(false, false)
				continue
			}
			return job, q.ackFunc(d, job), nil
		}
	}
}

func (q *RabbitDownloadQueue) ackFunc(d amqp.Delivery, job domain.DownloadJob) domain.AckFunc {
	return func(success bool) error {
		if success {
			return d.Ack(false)
		}
		next, delay, ok := q.opts.retry(job)
		if !ok {
			q.logger.Warn().Str("job_id", job.ID).Int("attempts", next.Attempt).Msg("rabbitmq queue: попытки исчерпаны, задача отброшена")
			return d.Nack(false, false)
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := q.publish(ctx, q.retry, next, retryDelay(delay)); err != nil {
			_ = d.Nack(false, true)
			return err
		}
		return d.Ack(false)
	}
}
