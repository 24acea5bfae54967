package qrcode

import (
	"github.com/smallbiznis/labinventory/internal/config"
	"go.uber.org/fx"
)

var Module = fx.Module("qrcode",
	fx.Provide(func(cfg config.Config) (*Encoder, error) {
		return NewEncoder(cfg.QR.Foreground, cfg.QR.Background)
	}),
)
