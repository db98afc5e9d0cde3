package telegram

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"tg-downloader-bot/internal/domain"
	"tg-downloader-bot/internal/infra/metrics"
)

// CaptionLimit задаёт максимальную длину подписи к медиа в Telegram.
const CaptionLimit = 1024

// BotClient описывает используемую часть tgbotapi.BotAPI.
type BotClient interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	SendMediaGroup(config tgbotapi.MediaGroupConfig) ([]tgbotapi.Message, error)
}

// Notifier доставляет сообщения через Bot API с общим ограничением частоты запросов.
type Notifier struct {
	bot     BotClient
	limiter *rate.Limiter
	log     zerolog.Logger
}

var _ domain.Notifier = (*Notifier)(nil)

// NewNotifier создаёт адаптер. rps <= 0 отключает ограничение.
func NewNotifier(bot BotClient, rps float64, logger zerolog.Logger) *Notifier {
	limit := rate.Inf
	burst := 1
	if rps > 0 {
		limit = rate.Limit(rps)
		burst = int(rps)
		if burst < 1 {
			burst = 1
		}
	}
	return &Notifier{bot: bot, limiter: rate.NewLimiter(limit, burst), log: logger}
}

func (n *Notifier) send(ctx context.Context, op string, chatID int64, c tgbotapi.Chattable) (tgbotapi.Message, error) {
	if err := n.limiter.Wait(ctx); err != nil {
		return tgbotapi.Message{}, err
	}
	start := time.Now()
	msg, err := n.bot.Send(c)
	metrics.ObserveNetworkRequest("telegram_bot", op, strconv.FormatInt(chatID, 10), start, err)
	if err != nil {
		metrics.BotSendErrors.Inc()
	}
	return msg, err
}

func (n *Notifier) request(ctx context.Context, op string, chatID int64, c tgbotapi.Chattable) error {
	if err := n.limiter.Wait(ctx); err != nil {
		return err
	}
	start := time.Now()
	_, err := n.bot.Request(c)
	metrics.ObserveNetworkRequest("telegram_bot", op, strconv.FormatInt(chatID, 10), start, err)
	if err != nil {
		metrics.BotSendErrors.Inc()
	}
	return err
}

// SendText отправляет текст, разбивая его на части по лимиту Telegram.
// Возвращает ссылку на первое отправленное сообщение.
func (n *Notifier) SendText(ctx context.Context, chatID int64, text string) (domain.MessageRef, error) {
	parts := SplitMessage(text)
	if len(parts) == 0 {
		return 0, errors.New("telegram: empty message")
	}
	var first domain.MessageRef
	for i, part := range parts {
		msg, err := n.send(ctx, "send_message", chatID, tgbotapi.NewMessage(chatID, part))
		if err != nil {
			return first, fmt.Errorf("send message: %w", err)
		}
		if i == 0 {
			first = domain.MessageRef(msg.MessageID)
		}
	}
	return first, nil
}

// EditText заменяет текст ранее отправленного сообщения.
func (n *Notifier) EditText(ctx context.Context, chatID int64, ref domain.MessageRef, text string) error {
	edit := tgbotapi.NewEditMessageText(chatID, int(ref), TruncateRunes(text, MessageLimit))
	if _, err := n.send(ctx, "edit_message", chatID, edit); err != nil {
		return fmt.Errorf("edit message: %w", err)
	}
	return nil
}

// DeleteMessage удаляет сообщение.
func (n *Notifier) DeleteMessage(ctx context.Context, chatID int64, ref domain.MessageRef) error {
	if err := n.request(ctx, "delete_message", chatID, tgbotapi.NewDeleteMessage(chatID, int(ref))); err != nil {
		return fmt.Errorf("delete message: %w", err)
	}
	return nil
}

// SendVideo отправляет видео по URL с поддержкой стриминга.
func (n *Notifier) SendVideo(ctx context.Context, chatID int64, url, caption string) error {
	video := tgbotapi.NewVideo(chatID, tgbotapi.FileURL(url))
	video.Caption = TruncateRunes(caption, CaptionLimit)
	video.SupportsStreaming = true
	if _, err := n.send(ctx, "send_video", chatID, video); err != nil {
		return fmt.Errorf("send video: %w", err)
	}
	return nil
}

// SendDocument отправляет файл по URL как документ.
func (n *Notifier) SendDocument(ctx context.Context, chatID int64, url, caption string) error {
	doc := tgbotapi.NewDocument(chatID, tgbotapi.FileURL(url))
	doc.Caption = TruncateRunes(caption, CaptionLimit)
	if _, err := n.send(ctx, "send_document", chatID, doc); err != nil {
		return fmt.Errorf("send document: %w", err)
	}
	return nil
}

// SendPhoto отправляет одно изображение.
func (n *Notifier) SendPhoto(ctx context.Context, chatID int64, url, caption string) error {
	photo := tgbotapi.NewPhoto(chatID, tgbotapi.FileURL(url))
	photo.Caption = TruncateRunes(caption, CaptionLimit)
	if _, err := n.send(ctx, "send_photo", chatID, photo); err != nil {
		return fmt.Errorf("send photo: %w", err)
	}
	return nil
}

// SendPhotoBatch отправляет альбом из 2..10 изображений. Подпись ставится на первый элемент.
func (n *Notifier) SendPhotoBatch(ctx context.Context, chatID int64, items []domain.MediaItem, caption string) error {
	if len(items) == 0 || len(items) > domain.MaxBatchSize {
		return fmt.Errorf("send media group: batch size %d out of range", len(items))
	}
	media := make([]interface{}, 0, len(items))
	for i, item := range items {
		photo := tgbotapi.NewInputMediaPhoto(tgbotapi.FileURL(item.URL))
		if i == 0 {
			photo.Caption = TruncateRunes(caption, CaptionLimit)
		}
		media = append(media, photo)
	}
	if err := n.limiter.Wait(ctx); err != nil {
		return err
	}
	start := time.Now()
	_, err := n.bot.SendMediaGroup(tgbotapi.NewMediaGroup(chatID, media))
	metrics.ObserveNetworkRequest("telegram_bot", "send_media_group", strconv.FormatInt(chatID, 10), start, err)
	if err != nil {
		metrics.BotSendErrors.Inc()
		return fmt.Errorf("send media group: %w", err)
	}
	return nil
}

// TruncateRunes обрезает строку до limit символов.
func TruncateRunes(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	if limit <= 3 {
		return string(runes[:limit])
	}
	return string(runes[:limit-3]) + "..."
}
