package download

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"tg-downloader-bot/internal/domain"
)

// JobProcessor обрабатывает одну задачу.
type JobProcessor interface {
	Process(ctx context.Context, job domain.DownloadJob) (domain.JobState, error)
}

// Pool запускает фиксированное число воркеров, читающих общую очередь.
type Pool struct {
	queue       domain.DownloadQueue
	processor   JobProcessor
	concurrency int
	log         zerolog.Logger
	idle        time.Duration
}

// NewPool создаёт пул воркеров. Число воркеров не меньше одного.
func NewPool(queue domain.DownloadQueue, processor JobProcessor, concurrency int, logger zerolog.Logger) *Pool {
	if concurrency <= 0 {
		concurrency = 1
	}
	return &Pool{
		queue:       queue,
		processor:   processor,
		concurrency: concurrency,
		log:         logger,
		idle:        time.Second,
	}
}

// Run блокируется до отмены ctx. Каждый воркер обрабатывает задачи последовательно.
func (p *Pool) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for i := range p.concurrency {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			p.work(ctx, p.log.With().Int("worker", id).Logger())
		}(i)
	}
	p.log.Info().Int("workers", p.concurrency).Msg("pool: воркеры запущены")
	wg.Wait()
	p.log.Info().Msg("pool: воркеры остановлены")
}

func (p *Pool) work(ctx context.Context, logger zerolog.Logger) {
	for {
		job, ack, err := p.queue.Receive(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || ctx.Err() != nil {
				return
			}
			logger.Error().Err(err).Msg("pool: ошибка чтения очереди")
			if !sleepCtx(ctx, p.idle) {
				return
			}
			continue
		}

		jobLog := logger.With().
			Str("job_id", job.ID).
			Int64("user", job.UserTGID).
			Int("priority", int(job.Priority)).
			Int("attempt", job.Attempt).
			Logger()

		state, err := p.processor.Process(ctx, job)
		if err != nil {
			jobLog.Warn().Err(err).Str("state", string(state)).Msg("pool: задача завершилась ошибкой, вернём в очередь")
			if ackErr := ack(false); ackErr != nil {
				jobLog.Error().Err(ackErr).Msg("pool: не удалось вернуть задачу в очередь")
			}
			continue
		}

		jobLog.Info().Str("state", string(state)).Msg("pool: задача обработана")
		if err := ack(true); err != nil {
			jobLog.Error().Err(err).Msg("pool: не удалось подтвердить задачу")
		}
	}
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
