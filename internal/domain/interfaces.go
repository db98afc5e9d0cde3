package domain

import (
	"context"
	"time"
)

// Resolver отвечает за одну платформу: проверяет ссылку и получает метаданные медиа.
type Resolver interface {
	Name() string
	Matches(url string) bool
	Fetch(ctx context.Context, url string) (MediaResult, error)
}

// MessageRef идентифицирует отправленное ботом сообщение.
type MessageRef int

// Notifier доставляет сообщения и медиа в чат пользователя.
type Notifier interface {
	SendText(ctx context.Context, chatID int64, text string) (MessageRef, error)
	EditText(ctx context.Context, chatID int64, ref MessageRef, text string) error
	DeleteMessage(ctx context.Context, chatID int64, ref MessageRef) error
	SendVideo(ctx context.Context, chatID int64, url, caption string) error
	SendDocument(ctx context.Context, chatID int64, url, caption string) error
	SendPhoto(ctx context.Context, chatID int64, url, caption string) error
	SendPhotoBatch(ctx context.Context, chatID int64, items []MediaItem, caption string) error
}

// UserRepo управляет пользователями. Хранилище является источником истины.
type UserRepo interface {
	FindByTGID(ctx context.Context, tgUserID int64) (User, error)
	Create(ctx context.Context, tgUserID int64, username string) (User, error)
	Save(ctx context.Context, user User) (User, error)
	// RecordRequest обновляет только учёт запросов. count == 0 оставляет счётчик без изменений.
	RecordRequest(ctx context.Context, tgUserID int64, count int, at time.Time) error
	// ExpireSubscription понижает уровень, только если подписка в хранилище всё ещё истекла к now.
	// Возвращает актуальную запись пользователя.
	ExpireSubscription(ctx context.Context, tgUserID int64, now time.Time) (User, error)
}

// Cache используется для простых TTL-хранилищ.
type Cache interface {
	// SetNX атомарно задаёт значение, если ключа нет. Возвращает true, если значение записано.
	SetNX(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// Get возвращает ErrCacheMiss, если ключ отсутствует.
	Get(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
	// Incr атомарно увеличивает счётчик и обновляет его TTL.
	Incr(ctx context.Context, key string, ttl time.Duration) (int64, error)
	Decr(ctx context.Context, key string) (int64, error)
}
