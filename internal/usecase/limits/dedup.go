package limits

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"tg-downloader-bot/internal/domain"
)

// DefaultDedupTTL задаёт окно, в течение которого повтор той же ссылки отклоняется.
const DefaultDedupTTL = 60 * time.Second

// Dedup отклоняет повторную отправку того же текста пользователем в пределах окна.
// При недоступности кэша работает в режиме fail-open: отправка считается новой.
type Dedup struct {
	cache domain.Cache
	ttl   time.Duration
	log   zerolog.Logger
}

// NewDedup создаёт дедупликатор.
func NewDedup(cache domain.Cache, ttl time.Duration, logger zerolog.Logger) *Dedup {
	if ttl <= 0 {
		ttl = DefaultDedupTTL
	}
	return &Dedup{cache: cache, ttl: ttl, log: logger}
}

func dedupKey(userID int64, text string) string {
	sum := sha256.Sum256([]byte(strings.TrimSpace(text)))
	return fmt.Sprintf("dedup:%d:%s", userID, hex.EncodeToString(sum[:]))
}

// CheckAndMark возвращает true, если текст уже отправлялся в пределах окна.
// Иначе атомарно помечает его и возвращает false. TTL существующей метки не продлевается.
func (d *Dedup) CheckAndMark(ctx context.Context, userID int64, text string) bool {
	stored, err := d.cache.SetNX(ctx, dedupKey(userID, text), []byte(text), d.ttl)
	if err != nil {
		d.log.Warn().Err(err).Int64("user", userID).Msg("dedup: кэш недоступен, пропускаем проверку")
		return false
	}
	return !stored
}

// Release снимает метку, если заявка не была принята дальше по конвейеру.
func (d *Dedup) Release(ctx context.Context, userID int64, text string) {
	if err := d.cache.Delete(ctx, dedupKey(userID, text)); err != nil {
		d.log.Warn().Err(err).Int64("user", userID).Msg("dedup: не удалось снять метку")
	}
}
