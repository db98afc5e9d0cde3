package platform

import (
	"github.com/rs/zerolog"

	"tg-downloader-bot/internal/adapters/platform/tiktok"
)

// NewDefaultRegistry регистрирует все поддерживаемые платформы.
func NewDefaultRegistry(client tiktok.JSONGetter, tiktokURL string, logger zerolog.Logger) *Registry {
	return NewRegistry(logger,
		tiktok.New(client, tiktokURL, logger.With().Str("platform", tiktok.Name).Logger()),
	)
}
