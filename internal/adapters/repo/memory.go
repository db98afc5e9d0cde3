package repo

import (
	"context"
	"strings"
	"sync"
	"time"

	"tg-downloader-bot/internal/domain"
)

// Memory хранит пользователей в памяти процесса. Используется в dev без Postgres и в тестах.
type Memory struct {
	mu     sync.Mutex
	users  map[int64]domain.User
	nextID int64
	now    func() time.Time
}

var _ domain.UserRepo = (*Memory)(nil)

// NewMemory создаёт пустое хранилище.
func NewMemory() *Memory {
	return &Memory{users: make(map[int64]domain.User), now: time.Now}
}

// FindByTGID возвращает пользователя по Telegram ID.
func (m *Memory) FindByTGID(_ context.Context, tgUserID int64) (domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, ok := m.users[tgUserID]
	if !ok {
		return domain.User{}, domain.ErrUserNotFound
	}
	return user, nil
}

// Create создаёт пользователя или возвращает существующего.
func (m *Memory) Create(_ context.Context, tgUserID int64, username string) (domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if user, ok := m.users[tgUserID]; ok {
		return user, nil
	}
	m.nextID++
	now := m.now().UTC()
	user := domain.User{
		ID:        m.nextID,
		TGUserID:  tgUserID,
		Username:  strings.TrimSpace(username),
		Tier:      domain.TierNormal,
		Plan:      domain.PlanNone,
		CreatedAt: now,
		UpdatedAt: now,
	}
	m.users[tgUserID] = user
	return user, nil
}

// Save перезаписывает пользователя целиком.
func (m *Memory) Save(_ context.Context, user domain.User) (domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.users[user.TGUserID]
	if !ok {
		return domain.User{}, domain.ErrUserNotFound
	}
	user.ID = existing.ID
	user.CreatedAt = existing.CreatedAt
	user.UpdatedAt = m.now().UTC()
	m.users[user.TGUserID] = user
	return user, nil
}

// RecordRequest обновляет учёт запросов, не трогая подписку.
func (m *Memory) RecordRequest(_ context.Context, tgUserID int64, count int, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, ok := m.users[tgUserID]
	if !ok {
		return domain.ErrUserNotFound
	}
	if count > 0 {
		user.RequestsThisHour = count
	}
	user.LastRequestAt = &at
	user.UpdatedAt = m.now().UTC()
	m.users[tgUserID] = user
	return nil
}

// ExpireSubscription понижает пользователя, если его подписка истекла к now.
func (m *Memory) ExpireSubscription(_ context.Context, tgUserID int64, now time.Time) (domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, ok := m.users[tgUserID]
	if !ok {
		return domain.User{}, domain.ErrUserNotFound
	}
	if user.IsPremium() && (user.SubscriptionEndDate == nil || now.After(*user.SubscriptionEndDate)) {
		user.Demote()
		user.UpdatedAt = m.now().UTC()
		m.users[tgUserID] = user
	}
	return user, nil
}
