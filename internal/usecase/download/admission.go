package download

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"tg-downloader-bot/internal/domain"
	"tg-downloader-bot/internal/infra/metrics"
	"tg-downloader-bot/internal/usecase/limits"
)

var urlPattern = regexp.MustCompile(`https?://[^\s<>"]+`)

// ExtractURL возвращает первую ссылку из текста без завершающей пунктуации.
func ExtractURL(text string) string {
	raw := urlPattern.FindString(text)
	return strings.TrimRight(raw, ".,;:!?)]}'»")
}

// UserProvider отдаёт и сохраняет пользователей.
type UserProvider interface {
	FindOrCreate(ctx context.Context, tgUserID int64, username string) (domain.User, error)
	RecordRequest(ctx context.Context, tgUserID int64, count int, at time.Time) error
}

// PlatformLookup находит резолвер по ссылке.
type PlatformLookup interface {
	ResolverFor(url string) (domain.Resolver, bool)
}

// Submission описывает входящую ссылку от пользователя.
type Submission struct {
	ChatID   int64
	UserTGID int64
	Username string
	Text     string
}

// Admission синхронно проверяет заявку и ставит задачу в очередь:
// дедупликация, лимит запросов, поиск платформы, приоритет по подписке.
type Admission struct {
	users    UserProvider
	subs     limits.ActiveChecker
	dedup    *limits.Dedup
	limiter  *limits.RateLimiter
	registry PlatformLookup
	queue    domain.DownloadQueue
	log      zerolog.Logger
	now      func() time.Time
	newID    func() string
}

// NewAdmission создаёт сервис приёма заявок.
func NewAdmission(users UserProvider, subs limits.ActiveChecker, dedup *limits.Dedup, limiter *limits.RateLimiter, registry PlatformLookup, queue domain.DownloadQueue, logger zerolog.Logger) *Admission {
	return &Admission{
		users:    users,
		subs:     subs,
		dedup:    dedup,
		limiter:  limiter,
		registry: registry,
		queue:    queue,
		log:      logger,
		now:      time.Now,
		newID:    func() string { return uuid.NewString() },
	}
}

func (a *Admission) reject(sub Submission, reason domain.AdmissionReason) error {
	metrics.IncAdmissionRejected(string(reason))
	a.log.Info().Int64("user", sub.UserTGID).Str("reason", string(reason)).Msg("admission: заявка отклонена")
	return &domain.AdmissionError{Reason: reason}
}

// Submit принимает заявку. Отказ возвращается как *domain.AdmissionError, задача при этом не создаётся.
func (a *Admission) Submit(ctx context.Context, sub Submission) (domain.DownloadJob, error) {
	link := ExtractURL(sub.Text)
	if link == "" {
		return domain.DownloadJob{}, a.reject(sub, domain.ReasonUnsupportedPlatform)
	}

	user, err := a.users.FindOrCreate(ctx, sub.UserTGID, sub.Username)
	if err != nil {
		return domain.DownloadJob{}, fmt.Errorf("load user: %w", err)
	}

	if a.dedup.CheckAndMark(ctx, user.TGUserID, sub.Text) {
		return domain.DownloadJob{}, a.reject(sub, domain.ReasonDuplicate)
	}

	allowed, count := a.limiter.Reserve(ctx, &user)
	if !allowed {
		a.dedup.Release(ctx, user.TGUserID, sub.Text)
		return domain.DownloadJob{}, a.reject(sub, domain.ReasonRateLimited)
	}
	rollback := func() {
		if count > 0 {
			a.limiter.Release(ctx, &user)
		}
		a.dedup.Release(ctx, user.TGUserID, sub.Text)
	}

	if _, ok := a.registry.ResolverFor(link); !ok {
		rollback()
		return domain.DownloadJob{}, a.reject(sub, domain.ReasonUnsupportedPlatform)
	}

	now := a.now().UTC()
	priority := domain.PriorityForTier(domain.TierNormal)
	if a.subs.IsActive(ctx, &user) {
		priority = domain.PriorityForTier(domain.TierPremium)
	}
	job := domain.DownloadJob{
		ID:         a.newID(),
		ChatID:     sub.ChatID,
		UserTGID:   user.TGUserID,
		Text:       sub.Text,
		URL:        link,
		EnqueuedAt: now,
		Priority:   priority,
	}
	if err := a.queue.Enqueue(ctx, job); err != nil {
		rollback()
		return domain.DownloadJob{}, fmt.Errorf("enqueue job: %w", err)
	}
	metrics.IncJobEnqueued(int(priority))
	a.log.Info().Str("job_id", job.ID).Int64("user", job.UserTGID).Int("priority", int(priority)).Msg("admission: задача поставлена в очередь")

	a.recordRequest(ctx, user, count, now)
	return job, nil
}

// recordRequest сохраняет учёт запросов в профиле. Ошибка не влияет на приём.
func (a *Admission) recordRequest(ctx context.Context, user domain.User, count int, now time.Time) {
	if err := a.users.RecordRequest(ctx, user.TGUserID, count, now); err != nil {
		a.log.Warn().Err(err).Int64("user", user.TGUserID).Msg("admission: не удалось сохранить учёт запросов")
	}
}
