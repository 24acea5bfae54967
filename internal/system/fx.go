package system

import (
	"github.com/smallbiznis/labinventory/internal/system/repository"
	"github.com/smallbiznis/labinventory/internal/system/service"
	"go.uber.org/fx"
)

var Module = fx.Module("system.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
