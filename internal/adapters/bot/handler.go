package bot

import (
	"context"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"tg-downloader-bot/internal/adapters/telegram"
	"tg-downloader-bot/internal/domain"
	"tg-downloader-bot/internal/infra/metrics"
	"tg-downloader-bot/internal/usecase/download"
)

// Users отдаёт профиль пользователя.
type Users interface {
	FindOrCreate(ctx context.Context, tgUserID int64, username string) (domain.User, error)
}

// Subscriptions отдаёт состояние подписки.
type Subscriptions interface {
	DetailsFor(ctx context.Context, user *domain.User) domain.SubscriptionDetails
}

// Quota отдаёт лимит бесплатного уровня и его остаток.
type Quota interface {
	Limit() int
	Remaining(ctx context.Context, userID int64) int
}

// Submitter принимает ссылки на скачивание.
type Submitter interface {
	Submit(ctx context.Context, sub download.Submission) (domain.DownloadJob, error)
}

// Platforms перечисляет поддерживаемые платформы.
type Platforms interface {
	SupportedNames() []string
}

// Handler обслуживает апдейты бота: команды и ссылки на скачивание.
type Handler struct {
	bot       telegram.BotClient
	log       zerolog.Logger
	users     Users
	subs      Subscriptions
	quota     Quota
	admission Submitter
	platforms Platforms
}

// NewHandler создаёт обработчик.
func NewHandler(bot telegram.BotClient, log zerolog.Logger, users Users, subs Subscriptions, quota Quota, admission Submitter, platforms Platforms) *Handler {
	return &Handler{
		bot:       bot,
		log:       log,
		users:     users,
		subs:      subs,
		quota:     quota,
		admission: admission,
		platforms: platforms,
	}
}

// Commands возвращает меню команд для регистрации в Telegram.
func Commands() tgbotapi.SetMyCommandsConfig {
	return tgbotapi.NewSetMyCommands(
		tgbotapi.BotCommand{Command: "start", Description: "Start the bot"},
		tgbotapi.BotCommand{Command: "help", Description: "Get help information"},
		tgbotapi.BotCommand{Command: "premium", Description: "View premium options"},
		tgbotapi.BotCommand{Command: "subscribe", Description: "How to subscribe"},
		tgbotapi.BotCommand{Command: "subscription", Description: "View your subscription details"},
		tgbotapi.BotCommand{Command: "status", Description: "Check your account status"},
	)
}

// HandleUpdate обрабатывает входящий апдейт.
func (h *Handler) HandleUpdate(ctx context.Context, upd tgbotapi.Update) {
	if upd.Message != nil {
		h.handleMessage(ctx, upd.Message)
	} else if upd.CallbackQuery != nil {
		h.handleCallback(ctx, upd.CallbackQuery)
	}
}

func (h *Handler) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	text := strings.TrimSpace(msg.Text)
	chatID := msg.Chat.ID
	if text == "" {
		return
	}
	if msg.IsCommand() {
		switch msg.Command() {
		case "start":
			h.reply(chatID, buildStartMessage(h.quota.Limit()), mainKeyboard())
		case "help":
			h.handleHelp(chatID)
		case "premium":
			h.reply(chatID, buildPremiumMessage(), nil)
		case "subscribe":
			h.reply(chatID, buildSubscribeMessage(), nil)
		case "subscription":
			h.handleSubscription(ctx, chatID, msg.From)
		case "status":
			h.handleStatus(ctx, chatID, msg.From)
		default:
			h.reply(chatID, "Unknown command. Use /help", nil)
		}
		return
	}
	h.handleSubmission(ctx, chatID, msg.From, text)
}

func (h *Handler) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) {
	if cb.Message != nil {
		chatID := cb.Message.Chat.ID
		switch cb.Data {
		case "help_menu":
			h.handleHelp(chatID)
		case "premium_menu":
			h.reply(chatID, buildPremiumMessage(), nil)
		case "status_menu":
			h.handleStatus(ctx, chatID, cb.From)
		}
	}
	start := time.Now()
	_, err := h.bot.Request(tgbotapi.NewCallback(cb.ID, ""))
	metrics.ObserveNetworkRequest("telegram_bot", "answer_callback", strconv.FormatInt(cb.From.ID, 10), start, err)
	if err != nil {
		h.log.Error().Err(err).Msg("не удалось ответить на callback")
	}
}

func (h *Handler) handleHelp(chatID int64) {
	h.reply(chatID, buildHelpMessage(h.platforms.SupportedNames()), mainKeyboard())
}

func (h *Handler) loadUser(ctx context.Context, chatID int64, from *tgbotapi.User) (domain.User, bool) {
	if from == nil {
		h.reply(chatID, msgNoUser, nil)
		return domain.User{}, false
	}
	user, err := h.users.FindOrCreate(ctx, from.ID, from.UserName)
	if err != nil {
		h.log.Error().Err(err).Int64("user", from.ID).Msg("bot: не удалось загрузить пользователя")
		h.reply(chatID, msgError, nil)
		return domain.User{}, false
	}
	return user, true
}

func (h *Handler) handleSubscription(ctx context.Context, chatID int64, from *tgbotapi.User) {
	user, ok := h.loadUser(ctx, chatID, from)
	if !ok {
		return
	}
	h.reply(chatID, buildSubscriptionMessage(h.subs.DetailsFor(ctx, &user)), nil)
}

func (h *Handler) handleStatus(ctx context.Context, chatID int64, from *tgbotapi.User) {
	user, ok := h.loadUser(ctx, chatID, from)
	if !ok {
		return
	}
	details := h.subs.DetailsFor(ctx, &user)
	remaining := h.quota.Remaining(ctx, user.TGUserID)
	h.reply(chatID, buildStatusMessage(details, remaining, h.quota.Limit()), nil)
}

func (h *Handler) handleSubmission(ctx context.Context, chatID int64, from *tgbotapi.User, text string) {
	if from == nil {
		h.reply(chatID, msgNoUser, nil)
		return
	}
	job, err := h.admission.Submit(ctx, download.Submission{
		ChatID:   chatID,
		UserTGID: from.ID,
		Username: from.UserName,
		Text:     text,
	})
	if err != nil {
		if reason, ok := domain.RejectReason(err); ok {
			h.reply(chatID, download.RejectionText(reason, h.quota.Limit()), nil)
			return
		}
		h.log.Error().Err(err).Int64("user", from.ID).Msg("bot: не удалось принять ссылку")
		h.reply(chatID, msgError, nil)
		return
	}
	h.log.Debug().Str("job_id", job.ID).Int64("user", from.ID).Msg("bot: ссылка принята")
}

func (h *Handler) reply(chatID int64, text string, keyboard *tgbotapi.InlineKeyboardMarkup) {
	parts := telegram.SplitMessage(text)
	for i, part := range parts {
		msg := tgbotapi.NewMessage(chatID, part)
		if i == 0 && keyboard != nil {
			msg.ReplyMarkup = keyboard
		}
		start := time.Now()
		_, err := h.bot.Send(msg)
		metrics.ObserveNetworkRequest("telegram_bot", "send_message", strconv.FormatInt(chatID, 10), start, err)
		if err != nil {
			metrics.BotSendErrors.Inc()
			h.log.Error().Err(err).Msg("не удалось отправить сообщение")
			return
		}
	}
}

func mainKeyboard() *tgbotapi.InlineKeyboardMarkup {
	buttons := tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("💎 Premium", "premium_menu"),
			tgbotapi.NewInlineKeyboardButtonData("📊 Status", "status_menu"),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("ℹ️ Help", "help_menu"),
		),
	)
	return &buttons
}
