package retry

import (
	"context"
	"math/rand/v2"
	"time"

	"github.com/rs/zerolog"
)

const (
	DefaultMaxAttempts  = 3
	DefaultInitialDelay = 300 * time.Millisecond
	DefaultMaxJitter    = 100 * time.Millisecond
)

// Policy описывает экспоненциальный backoff с джиттером.
type Policy struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxJitter    time.Duration
}

// DefaultPolicy возвращает политику по умолчанию: 3 попытки, старт 300ms.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:  DefaultMaxAttempts,
		InitialDelay: DefaultInitialDelay,
		MaxJitter:    DefaultMaxJitter,
	}
}

func (p Policy) normalized() Policy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = DefaultMaxAttempts
	}
	if p.InitialDelay < 0 {
		p.InitialDelay = 0
	}
	if p.MaxJitter < 0 {
		p.MaxJitter = 0
	}
	return p
}

// NextDelay возвращает паузу перед следующей попыткой: prev*2 + uniform(0, MaxJitter).
func (p Policy) NextDelay(prev time.Duration) time.Duration {
	next := prev * 2
	if p.MaxJitter > 0 {
		next += rand.N(p.MaxJitter)
	}
	return next
}

// Do выполняет op до MaxAttempts раз и возвращает первый успешный результат.
// После исчерпания попыток возвращается ошибка последней попытки.
func Do[T any](ctx context.Context, logger zerolog.Logger, policy Policy, op func(ctx context.Context) (T, error)) (T, error) {
	policy = policy.normalized()
	var zero T
	delay := policy.InitialDelay
	for attempt := 1; ; attempt++ {
		res, err := op(ctx)
		if err == nil {
			return res, nil
		}
		if attempt >= policy.MaxAttempts {
			logger.Error().Err(err).Int("attempt", attempt).Int("max_attempts", policy.MaxAttempts).Msg("retry: попытки исчерпаны")
			return zero, err
		}
		logger.Warn().Err(err).Int("attempt", attempt).Int("max_attempts", policy.MaxAttempts).Msg("retry: попытка не удалась")

		delay = policy.NextDelay(delay)
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, ctx.Err()
		case <-timer.C:
		}
	}
}
