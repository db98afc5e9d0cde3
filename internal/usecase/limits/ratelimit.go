package limits

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"tg-downloader-bot/internal/domain"
)

const (
	// DefaultFreePerHour задаёт лимит запросов в час для бесплатного уровня.
	DefaultFreePerHour = 3
	// counterTTL чуть больше часа, чтобы устаревшие корзины удалялись сами.
	counterTTL = time.Hour + time.Minute
)

// ActiveChecker сообщает, действует ли подписка пользователя.
type ActiveChecker interface {
	IsActive(ctx context.Context, user *domain.User) bool
}

// RateLimiter считает запросы пользователя в часовых корзинах.
// Активная подписка снимает ограничение. Ошибки кэша не блокируют пользователя.
type RateLimiter struct {
	cache domain.Cache
	subs  ActiveChecker
	limit int
	log   zerolog.Logger
	now   func() time.Time
}

// NewRateLimiter создаёт ограничитель.
func NewRateLimiter(cache domain.Cache, subs ActiveChecker, limit int, logger zerolog.Logger) *RateLimiter {
	if limit <= 0 {
		limit = DefaultFreePerHour
	}
	return &RateLimiter{cache: cache, subs: subs, limit: limit, log: logger, now: time.Now}
}

// Limit возвращает лимит бесплатного уровня.
func (r *RateLimiter) Limit() int {
	return r.limit
}

func (r *RateLimiter) bucketKey(userID int64) string {
	bucket := r.now().Unix() / int64(time.Hour/time.Second)
	return fmt.Sprintf("requests:%d:%d", userID, bucket)
}

// Used возвращает число запросов в текущей часовой корзине.
func (r *RateLimiter) Used(ctx context.Context, userID int64) int {
	data, err := r.cache.Get(ctx, r.bucketKey(userID))
	if err != nil {
		if !errors.Is(err, domain.ErrCacheMiss) {
			r.log.Warn().Err(err).Int64("user", userID).Msg("ratelimit: кэш недоступен")
		}
		return 0
	}
	n, err := strconv.Atoi(string(data))
	if err != nil {
		return 0
	}
	return n
}

// Remaining возвращает остаток запросов в текущем часе для бесплатного уровня.
func (r *RateLimiter) Remaining(ctx context.Context, userID int64) int {
	left := r.limit - r.Used(ctx, userID)
	if left < 0 {
		return 0
	}
	return left
}

// CanSubmit сообщает, может ли пользователь отправить ещё один запрос.
// Проверка не атомарна вместе с RecordSubmission; приём заявок использует Reserve.
func (r *RateLimiter) CanSubmit(ctx context.Context, user *domain.User) bool {
	if r.subs.IsActive(ctx, user) {
		return true
	}
	return r.Used(ctx, user.TGUserID) < r.limit
}

// RecordSubmission учитывает запрос и возвращает новое значение счётчика.
// При смене часа счётчик начинается с единицы. Лимит не проверяется, для приёма заявок есть Reserve.
func (r *RateLimiter) RecordSubmission(ctx context.Context, user *domain.User) int {
	n, err := r.cache.Incr(ctx, r.bucketKey(user.TGUserID), counterTTL)
	if err != nil {
		r.log.Warn().Err(err).Int64("user", user.TGUserID).Msg("ratelimit: не удалось учесть запрос")
		return 0
	}
	return int(n)
}

// Reserve атомарно проверяет лимит и учитывает запрос: это CanSubmit и RecordSubmission
// одним шагом, без гонки между параллельными заявками одного пользователя.
// Возвращает false, если лимит исчерпан; счётчик в этом случае не меняется.
func (r *RateLimiter) Reserve(ctx context.Context, user *domain.User) (bool, int) {
	if r.subs.IsActive(ctx, user) {
		return true, 0
	}
	key := r.bucketKey(user.TGUserID)
	n, err := r.cache.Incr(ctx, key, counterTTL)
	if err != nil {
		r.log.Warn().Err(err).Int64("user", user.TGUserID).Msg("ratelimit: кэш недоступен, пропускаем")
		return true, 0
	}
	if int(n) > r.limit {
		if _, err := r.cache.Decr(ctx, key); err != nil {
			r.log.Warn().Err(err).Int64("user", user.TGUserID).Msg("ratelimit: не удалось откатить счётчик")
		}
		return false, r.limit
	}
	return true, int(n)
}

// Release возвращает ранее зарезервированный запрос.
func (r *RateLimiter) Release(ctx context.Context, user *domain.User) {
	if _, err := r.cache.Decr(ctx, r.bucketKey(user.TGUserID)); err != nil {
		r.log.Warn().Err(err).Int64("user", user.TGUserID).Msg("ratelimit: не удалось вернуть запрос")
	}
}
