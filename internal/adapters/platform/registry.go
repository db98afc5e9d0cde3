package platform

import (
	"sync"

	"github.com/rs/zerolog"

	"tg-downloader-bot/internal/domain"
)

// Registry хранит резолверы платформ в порядке регистрации.
// Ссылка принадлежит первому резолверу, чей Matches вернул true.
type Registry struct {
	mu        sync.RWMutex
	resolvers []domain.Resolver
	log       zerolog.Logger
}

// NewRegistry создаёт реестр и регистрирует переданные резолверы по порядку.
func NewRegistry(logger zerolog.Logger, resolvers ...domain.Resolver) *Registry {
	r := &Registry{log: logger}
	for _, res := range resolvers {
		r.Register(res)
	}
	return r
}

// Register добавляет резолвер в конец списка.
func (r *Registry) Register(res domain.Resolver) *Registry {
	r.mu.Lock()
	r.resolvers = append(r.resolvers, res)
	r.mu.Unlock()
	r.log.Info().Str("platform", res.Name()).Msg("registry: платформа зарегистрирована")
	return r
}

// SupportedNames возвращает имена платформ в порядке регистрации.
func (r *Registry) SupportedNames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.resolvers))
	for _, res := range r.resolvers {
		names = append(names, res.Name())
	}
	return names
}

// ResolverFor возвращает первый подходящий резолвер.
func (r *Registry) ResolverFor(url string) (domain.Resolver, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, res := range r.resolvers {
		if res.Matches(url) {
			return res, true
		}
	}
	r.log.Debug().Str("url", url).Msg("registry: платформа не найдена")
	return nil, false
}
