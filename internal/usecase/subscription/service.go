package subscription

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog"

	"tg-downloader-bot/internal/domain"
)

// UserStore описывает доступ к пользователям с инвалидацией кэша при записи.
type UserStore interface {
	Load(ctx context.Context, tgUserID int64) (domain.User, error)
	Save(ctx context.Context, user domain.User) (domain.User, error)
	ExpireSubscription(ctx context.Context, tgUserID int64, now time.Time) (domain.User, error)
}

// Service вычисляет состояние подписки и управляет её жизненным циклом.
type Service struct {
	users UserStore
	log   zerolog.Logger
	now   func() time.Time
}

// NewService создаёт сервис подписок.
func NewService(users UserStore, logger zerolog.Logger) *Service {
	return &Service{users: users, log: logger, now: time.Now}
}

// IsActive сообщает, действует ли подписка пользователя.
// Истёкшая премиальная подписка понижается до бесплатной в хранилище.
func (s *Service) IsActive(ctx context.Context, user *domain.User) bool {
	if user == nil || !user.IsPremium() {
		return false
	}
	now := s.now()
	if activeAt(*user, now) {
		return true
	}
	return s.expire(ctx, user, now)
}

func activeAt(user domain.User, now time.Time) bool {
	return user.IsPremium() && user.SubscriptionEndDate != nil && !now.After(*user.SubscriptionEndDate)
}

// expire понижает пользователя в хранилище. Если подписку успели продлить, user обновляется
// до актуальной записи и результат true.
func (s *Service) expire(ctx context.Context, user *domain.User, now time.Time) bool {
	current, err := s.users.ExpireSubscription(ctx, user.TGUserID, now)
	if err != nil {
		s.log.Error().Err(err).Int64("user", user.TGUserID).Msg("subscription: не удалось сохранить понижение")
		user.Demote()
		return false
	}
	*user = current
	if activeAt(current, now) {
		s.log.Info().Int64("user", user.TGUserID).Msg("subscription: подписка продлена, понижение пропущено")
		return true
	}
	s.log.Info().Int64("user", user.TGUserID).Msg("subscription: срок подписки истёк, уровень понижен")
	return false
}

// Create оформляет подписку на тариф plan начиная с текущего момента.
func (s *Service) Create(ctx context.Context, tgUserID int64, rawPlan string) (domain.User, error) {
	plan, err := domain.ParsePlan(rawPlan)
	if err != nil {
		return domain.User{}, fmt.Errorf("%w: %q", err, rawPlan)
	}
	spec, _ := domain.SpecForPlan(plan)

	user, err := s.users.Load(ctx, tgUserID)
	if err != nil {
		return domain.User{}, err
	}
	now := s.now().UTC()
	end := now.Add(spec.Duration)
	user.Tier = domain.TierPremium
	user.Plan = plan
	user.SubscriptionStartDate = &now
	user.SubscriptionEndDate = &end

	saved, err := s.users.Save(ctx, user)
	if err != nil {
		return domain.User{}, fmt.Errorf("save subscription: %w", err)
	}
	s.log.Info().Int64("user", tgUserID).Str("plan", string(plan)).Time("until", end).Msg("subscription: подписка оформлена")
	return saved, nil
}

// Revoke досрочно завершает подписку.
func (s *Service) Revoke(ctx context.Context, tgUserID int64) (domain.User, error) {
	user, err := s.users.Load(ctx, tgUserID)
	if err != nil {
		return domain.User{}, err
	}
	if !user.IsPremium() {
		return user, nil
	}
	now := s.now().UTC()
	user.Demote()
	user.SubscriptionEndDate = &now
	saved, err := s.users.Save(ctx, user)
	if err != nil {
		return domain.User{}, fmt.Errorf("revoke subscription: %w", err)
	}
	s.log.Info().Int64("user", tgUserID).Msg("subscription: подписка отозвана")
	return saved, nil
}

// Details возвращает состояние подписки по данным хранилища.
func (s *Service) Details(ctx context.Context, tgUserID int64) (domain.SubscriptionDetails, error) {
	user, err := s.users.Load(ctx, tgUserID)
	if err != nil {
		return domain.SubscriptionDetails{}, err
	}
	return s.DetailsFor(ctx, &user), nil
}

// DetailsFor возвращает состояние подписки для уже загруженного пользователя.
func (s *Service) DetailsFor(ctx context.Context, user *domain.User) domain.SubscriptionDetails {
	active := s.IsActive(ctx, user)
	details := domain.SubscriptionDetails{
		Active:  active,
		Plan:    user.Plan,
		EndDate: user.SubscriptionEndDate,
	}
	if user.SubscriptionEndDate != nil {
		details.DaysRemaining = DaysRemaining(*user.SubscriptionEndDate, s.now())
	}
	return details
}

// DaysRemaining считает оставшиеся дни с округлением вверх, не меньше нуля.
func DaysRemaining(end, now time.Time) int {
	left := end.Sub(now)
	if left <= 0 {
		return 0
	}
	return int(math.Ceil(left.Hours() / 24))
}
