package users

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"tg-downloader-bot/internal/domain"
)

// Service отдаёт пользователей через кэш (cache-aside). Источник истины: хранилище,
// кэш сбрасывается при каждой записи в хранилище.
type Service struct {
	repo  domain.UserRepo
	cache domain.Cache
	ttl   time.Duration
	log   zerolog.Logger
}

// NewService создаёт сервис пользователей.
func NewService(repo domain.UserRepo, cache domain.Cache, ttl time.Duration, logger zerolog.Logger) *Service {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Service{repo: repo, cache: cache, ttl: ttl, log: logger}
}

// CacheKey возвращает ключ снимка пользователя в кэше.
func CacheKey(tgUserID int64) string {
	return "user:" + strconv.FormatInt(tgUserID, 10)
}

// FindOrCreate возвращает пользователя, создавая его при первом обращении.
func (s *Service) FindOrCreate(ctx context.Context, tgUserID int64, username string) (domain.User, error) {
	if user, ok := s.fromCache(ctx, tgUserID); ok {
		return user, nil
	}
	user, err := s.repo.FindByTGID(ctx, tgUserID)
	if errors.Is(err, domain.ErrUserNotFound) {
		if strings.TrimSpace(username) == "" {
			username = fmt.Sprintf("user_%d", tgUserID)
		}
		s.log.Info().Int64("user", tgUserID).Msg("users: создаём пользователя")
		user, err = s.repo.Create(ctx, tgUserID, username)
	}
	if err != nil {
		return domain.User{}, err
	}
	s.toCache(ctx, user)
	return user, nil
}

// Get возвращает пользователя из кэша или хранилища.
func (s *Service) Get(ctx context.Context, tgUserID int64) (domain.User, error) {
	if user, ok := s.fromCache(ctx, tgUserID); ok {
		return user, nil
	}
	user, err := s.repo.FindByTGID(ctx, tgUserID)
	if err != nil {
		return domain.User{}, err
	}
	s.toCache(ctx, user)
	return user, nil
}

// Load читает пользователя напрямую из хранилища, минуя кэш.
func (s *Service) Load(ctx context.Context, tgUserID int64) (domain.User, error) {
	return s.repo.FindByTGID(ctx, tgUserID)
}

// Save сохраняет пользователя и сбрасывает его снимок в кэше.
func (s *Service) Save(ctx context.Context, user domain.User) (domain.User, error) {
	saved, err := s.repo.Save(ctx, user)
	if err != nil {
		return domain.User{}, err
	}
	s.Invalidate(ctx, user.TGUserID)
	return saved, nil
}

// RecordRequest сохраняет учёт запросов, не затрагивая подписку.
func (s *Service) RecordRequest(ctx context.Context, tgUserID int64, count int, at time.Time) error {
	if err := s.repo.RecordRequest(ctx, tgUserID, count, at); err != nil {
		return err
	}
	s.Invalidate(ctx, tgUserID)
	return nil
}

// ExpireSubscription понижает истёкшую подписку и возвращает актуального пользователя.
func (s *Service) ExpireSubscription(ctx context.Context, tgUserID int64, now time.Time) (domain.User, error) {
	user, err := s.repo.ExpireSubscription(ctx, tgUserID, now)
	if err != nil {
		return domain.User{}, err
	}
	s.Invalidate(ctx, tgUserID)
	return user, nil
}

// Invalidate удаляет снимок пользователя из кэша.
func (s *Service) Invalidate(ctx context.Context, tgUserID int64) {
	if err := s.cache.Delete(ctx, CacheKey(tgUserID)); err != nil {
		s.log.Warn().Err(err).Int64("user", tgUserID).Msg("users: не удалось сбросить кэш")
	}
}

func (s *Service) fromCache(ctx context.Context, tgUserID int64) (domain.User, bool) {
	data, err := s.cache.Get(ctx, CacheKey(tgUserID))
	if err != nil {
		if !errors.Is(err, domain.ErrCacheMiss) {
			s.log.Warn().Err(err).Int64("user", tgUserID).Msg("users: кэш недоступен, читаем из БД")
		}
		return domain.User{}, false
	}
	var user domain.User
	if err := json.Unmarshal(data, &user); err != nil {
		s.log.Warn().Err(err).Int64("user", tgUserID).Msg("users: повреждённый снимок в кэше")
		return domain.User{}, false
	}
	return user, true
}

func (s *Service) toCache(ctx context.Context, user domain.User) {
	data, err := json.Marshal(user)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, CacheKey(user.TGUserID), data, s.ttl); err != nil {
		s.log.Warn().Err(err).Int64("user", user.TGUserID).Msg("users: не удалось записать кэш")
	}
}
