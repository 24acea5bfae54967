package blobstore

import (
	"fmt"
	"time"

	"github.com/smallbiznis/labinventory/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("blobstore",
	fx.Provide(New),
)

func New(cfg config.Config, log *zap.Logger) (Store, error) {
	var store Store
	switch cfg.Storage.Driver {
	case config.StorageDriverSupabase:
		s, err := NewSupabaseStore(SupabaseConfig{
			BaseURL:        cfg.Storage.SupabaseURL,
			ServiceRoleKey: cfg.Storage.ServiceRoleKey,
			Bucket:         cfg.Storage.Bucket,
			Timeout:        cfg.Storage.Timeout,
		}, log)
		if err != nil {
			return nil, err
		}
		store = s
	case config.StorageDriverMemory:
		log.Warn("using in-memory blob store; QR images are lost on restart")
		store = NewMemoryStore()
	default:
		return nil, fmt.Errorf("unsupported storage driver %q", cfg.Storage.Driver)
	}

	return WithRetry(store, cfg.Storage.UploadAttempts, 200*time.Millisecond, log.Named("blobstore")), nil
}
