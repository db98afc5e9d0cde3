package download

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"tg-downloader-bot/internal/domain"
	"tg-downloader-bot/internal/infra/metrics"
)

// Processor выполняет задачу скачивания: получает метаданные и доставляет медиа в чат.
type Processor struct {
	registry PlatformLookup
	notifier domain.Notifier
	log      zerolog.Logger
}

// NewProcessor создаёт обработчик задач.
func NewProcessor(registry PlatformLookup, notifier domain.Notifier, logger zerolog.Logger) *Processor {
	return &Processor{registry: registry, notifier: notifier, log: logger}
}

// Process обрабатывает задачу и возвращает её итоговое состояние.
// Ожидаемые отказы (апстрим, доставка) сообщаются пользователю и не возвращают ошибку.
// Непредвиденные ошибки и паники возвращаются, чтобы очередь повторила задачу.
// Вызовы Telegram не зависят от отмены ctx: при остановке воркера уведомление всё равно закрывается.
func (p *Processor) Process(ctx context.Context, job domain.DownloadJob) (state domain.JobState, err error) {
	start := time.Now()
	platform := ""
	logger := p.log.With().Str("job_id", job.ID).Int64("chat_id", job.ChatID).Int("attempt", job.Attempt).Logger()
	tg := context.WithoutCancel(ctx)

	var (
		ref         domain.MessageRef
		interrupted bool
	)

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("processor panic: %v", r)
		}
		if err != nil && !interrupted {
			state = domain.StateFailedUnexpected
			logger.Error().Err(err).Msg("processor: непредвиденная ошибка")
			p.notify(tg, job.ChatID, ref, msgUnexpectedError, logger)
		}
		metrics.ObserveJobFinished(platform, string(state), start)
	}()

	ref, err = p.notifier.SendText(tg, job.ChatID, msgProcessing)
	if err != nil {
		logger.Warn().Err(err).Msg("processor: не удалось отправить уведомление")
		ref, err = 0, nil
	}

	resolver, ok := p.registry.ResolverFor(job.URL)
	if !ok {
		logger.Warn().Str("url", job.URL).Msg("processor: платформа не найдена")
		p.notify(tg, job.ChatID, ref, msgUnsupported, logger)
		return domain.StateRejectedUnsupportedPlatform, nil
	}
	platform = resolver.Name()

	res, fetchErr := resolver.Fetch(ctx, job.URL)
	if fetchErr == nil {
		fetchErr = res.Validate()
	}
	if fetchErr != nil && ctx.Err() != nil {
		// Воркер останавливается: задача вернётся в очередь, уведомление убираем.
		interrupted = true
		logger.Info().Err(fetchErr).Msg("processor: получение прервано остановкой, задача будет повторена")
		p.finish(tg, job.ChatID, ref, logger)
		return domain.StateFailedUnexpected, fmt.Errorf("fetch %s interrupted: %w", platform, ctx.Err())
	}
	if fetchErr != nil {
		var upstream *domain.UpstreamError
		if !errors.As(fetchErr, &upstream) && !errors.Is(fetchErr, domain.ErrInvalidResultShape) {
			return domain.StateFailedUnexpected, fmt.Errorf("fetch %s: %w", platform, fetchErr)
		}
		logger.Warn().Err(fetchErr).Str("platform", platform).Msg("processor: апстрим не вернул медиа")
		p.notify(tg, job.ChatID, ref, msgFetchFailed(platform), logger)
		return domain.StateFailedFetch, nil
	}
	if res.Platform == "" {
		res.Platform = platform
	}

	caption := BuildCaption(res)
	if res.IsMultiItem {
		return p.deliverBatches(tg, job, ref, res, caption, logger)
	}
	return p.deliverSingle(tg, job, ref, res, caption, logger)
}

func (p *Processor) deliverSingle(ctx context.Context, job domain.DownloadJob, ref domain.MessageRef, res domain.MediaResult, caption string, logger zerolog.Logger) (domain.JobState, error) {
	primary := p.notifier.SendVideo(ctx, job.ChatID, res.DownloadURL, caption)
	if primary != nil {
		logger.Warn().Err(primary).Msg("processor: видео не отправлено, пробуем документом")
		if fallback := p.notifier.SendDocument(ctx, job.ChatID, res.DownloadURL, caption); fallback != nil {
			derr := &domain.DeliveryError{Primary: primary, Fallback: fallback}
			logger.Error().Err(derr).Msg("processor: доставка не удалась")
			p.notify(ctx, job.ChatID, ref, msgDeliveryFailed, logger)
			return domain.StateFailedDelivery, nil
		}
	}
	p.finish(ctx, job.ChatID, ref, logger)
	return domain.StateDone, nil
}

func (p *Processor) deliverBatches(ctx context.Context, job domain.DownloadJob, ref domain.MessageRef, res domain.MediaResult, caption string, logger zerolog.Logger) (domain.JobState, error) {
	images := res.Images()
	if len(images) == 0 {
		p.notify(ctx, job.ChatID, ref, msgNoDeliverable, logger)
		return domain.StateDone, nil
	}
	for i, batch := range Batches(images, domain.MaxBatchSize) {
		batchCaption := ""
		if i == 0 {
			batchCaption = caption
		}
		var err error
		if len(batch) == 1 {
			err = p.notifier.SendPhoto(ctx, job.ChatID, batch[0].URL, batchCaption)
		} else {
			err = p.notifier.SendPhotoBatch(ctx, job.ChatID, batch, batchCaption)
		}
		if err != nil {
			derr := &domain.DeliveryError{Primary: err}
			logger.Error().Err(derr).Int("batch", i).Msg("processor: не удалось отправить пачку изображений")
			p.notify(ctx, job.ChatID, ref, msgDeliveryFailed, logger)
			return domain.StateFailedDelivery, nil
		}
	}
	p.finish(ctx, job.ChatID, ref, logger)
	return domain.StateDone, nil
}

// Batches делит элементы на части не больше size с сохранением порядка.
func Batches(items []domain.MediaItem, size int) [][]domain.MediaItem {
	if size <= 0 {
		size = domain.MaxBatchSize
	}
	var out [][]domain.MediaItem
	for start := 0; start < len(items); start += size {
		end := min(start+size, len(items))
		out = append(out, items[start:end])
	}
	return out
}

// notify заменяет текст уведомления, а если его нет, отправляет новое сообщение.
func (p *Processor) notify(ctx context.Context, chatID int64, ref domain.MessageRef, text string, logger zerolog.Logger) {
	if ref != 0 {
		err := p.notifier.EditText(ctx, chatID, ref, text)
		if err == nil {
			return
		}
		logger.Warn().Err(err).Msg("processor: не удалось изменить уведомление")
	}
	if _, err := p.notifier.SendText(ctx, chatID, text); err != nil {
		logger.Warn().Err(err).Msg("processor: не удалось отправить сообщение")
	}
}

func (p *Processor) finish(ctx context.Context, chatID int64, ref domain.MessageRef, logger zerolog.Logger) {
	if ref == 0 {
		return
	}
	if err := p.notifier.DeleteMessage(ctx, chatID, ref); err != nil {
		logger.Debug().Err(err).Msg("processor: не удалось удалить уведомление")
	}
}
