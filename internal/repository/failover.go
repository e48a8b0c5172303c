package repository

import (
	"context"
	"strings"
	"sync/atomic"
	"time"

	"ferrybook/internal/domain"

	"github.com/rs/zerolog"
)

// fallbackTokenPrefix marks leases granted by the fallback locker so that
// Release reaches the same backend after the primary recovers.
const fallbackTokenPrefix = "fallback:"

type FailoverLocker struct {
	primary   domain.Locker
	fallback  domain.Locker
	logger    *zerolog.Logger
	isDown    atomic.Bool
	lastCheck atomic.Int64
}

func NewFailoverLocker(primary, fallback domain.Locker, logger *zerolog.Logger) *FailoverLocker {
	return &FailoverLocker{
		primary:  primary,
		fallback: fallback,
		logger:   logger,
	}
}

func (l *FailoverLocker) markDown(err error) {
	if !l.isDown.Swap(true) {
		l.logger.Error().Err(err).Msg("Primary locker failed, falling back to memory")
	}
	l.lastCheck.Store(time.Now().UnixNano())
}

func (l *FailoverLocker) usePrimary() bool {
	if !l.isDown.Load() {
		return true
	}
	// Try to recover after 1 minute
	return time.Since(time.Unix(0, l.lastCheck.Load())) > time.Minute
}

func (l *FailoverLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (string, bool, error) {
	if l.usePrimary() {
		token, ok, err := l.primary.Acquire(ctx, key, ttl)
		if err == nil {
			if l.isDown.Swap(false) {
				l.logger.Info().Msg("Primary locker recovered")
			}
			return token, ok, nil
		}
		l.markDown(err)
	}

	token, ok, err := l.fallback.Acquire(ctx, key, ttl)
	if err != nil || !ok {
		return "", ok, err
	}
	return fallbackTokenPrefix + token, true, nil
}

func (l *FailoverLocker) Release(ctx context.Context, key, token string) error {
	if strings.HasPrefix(token, fallbackTokenPrefix) {
		return l.fallback.Release(ctx, key, strings.TrimPrefix(token, fallbackTokenPrefix))
	}
	if err := l.primary.Release(ctx, key, token); err != nil {
		l.markDown(err)
		// the lease expires on its own once the primary is reachable again
		l.logger.Warn().Err(err).Str("key", key).Msg("Failed to release lock on primary")
	}
	return nil
}
