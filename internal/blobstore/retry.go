package blobstore

import (
	"context"
	"errors"
	"time"

	"github.com/avast/retry-go/v4"
	"go.uber.org/zap"
)

type retryStore struct {
	Store
	attempts uint
	delay    time.Duration
	log      *zap.Logger
}

// WithRetry retries uploads with exponential backoff. Delete and Fetch are single-shot.
func WithRetry(inner Store, attempts int, delay time.Duration, log *zap.Logger) Store {
	if attempts <= 1 {
		return inner
	}
	return &retryStore{Store: inner, attempts: uint(attempts), delay: delay, log: log}
}

func (s *retryStore) Upload(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	var url string
	err := retry.Do(
		func() error {
			u, err := s.Store.Upload(ctx, key, data, contentType)
			if err != nil {
				if errors.Is(err, ErrInvalidKey) {
					return retry.Unrecoverable(err)
				}
				return err
			}
			url = u
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(s.attempts),
		retry.Delay(s.delay),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			s.log.Debug("retrying upload", zap.String("key", key), zap.Uint("attempt", n+1), zap.Error(err))
		}),
	)
	return url, err
}
