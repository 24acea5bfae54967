package lock

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"
)

// ErrBusy is returned when a key stays held past the wait budget.
var ErrBusy = errors.New("lock_busy")

const lockReleaseScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`

// Unlock releases a held key. It is safe to call more than once.
type Unlock func()

// Locker serializes work on a key across callers.
type Locker interface {
	Acquire(ctx context.Context, key string) (Unlock, error)
}

type Options struct {
	TTL  time.Duration
	Wait time.Duration
	Poll time.Duration
}

func (o Options) withDefaults() Options {
	if o.TTL <= 0 {
		o.TTL = 30 * time.Second
	}
	if o.Wait <= 0 {
		o.Wait = 10 * time.Second
	}
	if o.Poll <= 0 {
		o.Poll = 50 * time.Millisecond
	}
	return o
}

// RedisLocker holds keys with SET NX and a per-holder token so only the owner can release.
type RedisLocker struct {
	client *redis.Client
	script *redis.Script
	opts   Options
}

func NewRedisLocker(client *redis.Client, opts Options) *RedisLocker {
	return &RedisLocker{
		client: client,
		script: redis.NewScript(lockReleaseScript),
		opts:   opts.withDefaults(),
	}
}

func (l *RedisLocker) TryLock(ctx context.Context, key string) (string, bool, error) {
	if key == "" {
		return "", false, errors.New("lock key is empty")
	}
	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, key, token, l.opts.TTL).Result()
	if err != nil {
		return "", false, err
	}
	return token, ok, nil
}

func (l *RedisLocker) Release(ctx context.Context, key, token string) error {
	if key == "" || token == "" {
		return nil
	}
	return l.script.Run(ctx, l.client, []string{key}, token).Err()
}

// Acquire polls TryLock until the key is free or the wait budget is spent.
func (l *RedisLocker) Acquire(ctx context.Context, key string) (Unlock, error) {
	var token string
	attempts := uint(l.opts.Wait/l.opts.Poll) + 1
	err := retry.Do(
		func() error {
			t, ok, err := l.TryLock(ctx, key)
			if err != nil {
				return retry.Unrecoverable(err)
			}
			if !ok {
				return ErrBusy
			}
			token = t
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(attempts),
		retry.Delay(l.opts.Poll),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		return nil, err
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			// Release on a fresh context so a cancelled request still frees the key.
			releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = l.Release(releaseCtx, key, token)
		})
	}, nil
}

// LocalLocker is an in-process per-key mutex for single-replica deployments.
type LocalLocker struct {
	mu   sync.Mutex
	keys map[string]chan struct{}
	wait time.Duration
}

func NewLocalLocker(opts Options) *LocalLocker {
	return &LocalLocker{
		keys: make(map[string]chan struct{}),
		wait: opts.withDefaults().Wait,
	}
}

func (l *LocalLocker) slot(key string) chan struct{} {
	l.mu.Lock()
	defer l.mu.Unlock()
	ch, ok := l.keys[key]
	if !ok {
		ch = make(chan struct{}, 1)
		l.keys[key] = ch
	}
	return ch
}

func (l *LocalLocker) Acquire(ctx context.Context, key string) (Unlock, error) {
	if key == "" {
		return nil, errors.New("lock key is empty")
	}
	ch := l.slot(key)

	timer := time.NewTimer(l.wait)
	defer timer.Stop()

	select {
	case ch <- struct{}{}:
	case <-timer.C:
		return nil, ErrBusy
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() { <-ch })
	}, nil
}

var (
	_ Locker = (*RedisLocker)(nil)
	_ Locker = (*LocalLocker)(nil)
)
