package queue

import (
	"encoding/json"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"tg-downloader-bot/internal/domain"
)

type recordingAcker struct {
	acks    []uint64
	nacks   []uint64
	requeue []bool
}

func (a *recordingAcker) Ack(tag uint64, _ bool) error {
	a.acks = append(a.acks, tag)
	return nil
}

func (a *recordingAcker) Nack(tag uint64, _ bool, requeue bool) error {
	a.nacks = append(a.nacks, tag)
	a.requeue = append(a.requeue, requeue)
	return nil
}

func (a *recordingAcker) Reject(tag uint64, requeue bool) error {
	return a.Nack(tag, false, requeue)
}

func TestOptionsRetry(t *testing.T) {
	opts := Options{MaxAttempts: 3, RetryBackoff: 2 * time.Second}.normalized()

	next, delay, ok := opts.retry(domain.DownloadJob{ID: "job"})
	require.True(t, ok)
	require.Equal(t, 1, next.Attempt)
	require.Equal(t, 2*time.Second, delay)

	next, delay, ok = opts.retry(next)
	require.True(t, ok)
	require.Equal(t, 2, next.Attempt)
	require.Equal(t, 4*time.Second, delay)

	next, _, ok = opts.retry(next)
	require.False(t, ok, "third failure exhausts attempts")
	require.Equal(t, 3, next.Attempt)
}

func TestOptionsNormalizedDefaults(t *testing.T) {
	opts := Options{RetryBackoff: -time.Second}.normalized()
	require.Equal(t, 3, opts.MaxAttempts)
	require.Zero(t, opts.RetryBackoff)
}

func TestRetryDelayNeverZero(t *testing.T) {
	require.Equal(t, time.Millisecond, retryDelay(0))
	require.Equal(t, 5*time.Second, retryDelay(5*time.Second))
}

func TestPublishingCarriesPriorityAndTTL(t *testing.T) {
	enqueued := time.Unix(1700000000, 0).UTC()
	job := domain.DownloadJob{ID: "job-1", ChatID: 100, URL: "https://www.tiktok.com/@a/video/1", Priority: domain.PriorityHigh, EnqueuedAt: enqueued}

	msg, err := publishing(job, 1500*time.Millisecond)
	require.NoError(t, err)
	require.Equal(t, uint8(domain.PriorityHigh), msg.Priority)
	require.Equal(t, amqp.Persistent, msg.DeliveryMode)
	require.Equal(t, "job-1", msg.MessageId)
	require.Equal(t, "1500", msg.Expiration)

	var decoded domain.DownloadJob
	require.NoError(t, json.Unmarshal(msg.Body, &decoded))
	require.Equal(t, job.URL, decoded.URL)

	msg, err = publishing(domain.DownloadJob{ID: "job-2", Priority: 42}, 0)
	require.NoError(t, err)
	require.Equal(t, uint8(domain.MaxPriority), msg.Priority)
	require.Empty(t, msg.Expiration)
}

func TestRabbitAckFunc(t *testing.T) {
	q := &RabbitDownloadQueue{opts: Options{MaxAttempts: 1}.normalized(), logger: zerolog.Nop()}

	acker := &recordingAcker{}
	ack := q.ackFunc(amqp.Delivery{Acknowledger: acker, DeliveryTag: 7}, domain.DownloadJob{ID: "ok"})
	require.NoError(t, ack(true))
	require.Equal(t, []uint64{7}, acker.acks)
	require.Empty(t, acker.nacks)

	acker = &recordingAcker{}
	ack = q.ackFunc(amqp.Delivery{Acknowledger: acker, DeliveryTag: 8}, domain.DownloadJob{ID: "last"})
	require.NoError(t, ack(false))
	require.Empty(t, acker.acks)
	require.Equal(t, []uint64{8}, acker.nacks)
	require.Equal(t, []bool{false}, acker.requeue, "exhausted job is dropped, not requeued")
}
