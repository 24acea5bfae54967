package lock

import (
	"context"

	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/labinventory/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("lock",
	fx.Provide(New),
)

// New picks the Redis locker when REDIS_ADDR is set and the in-process locker otherwise.
func New(lc fx.Lifecycle, cfg config.Config, log *zap.Logger) Locker {
	opts := Options{TTL: cfg.Redis.LockTTL}
	if cfg.Redis.Addr == "" {
		log.Info("allocation lock: in-process")
		return NewLocalLocker(opts)
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return client.Ping(ctx).Err()
		},
		OnStop: func(context.Context) error {
			return client.Close()
		},
	})

	log.Info("allocation lock: redis", zap.String("addr", cfg.Redis.Addr))
	return NewRedisLocker(client, opts)
}
