package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/labinventory/internal/blobstore"
	"github.com/smallbiznis/labinventory/internal/clock"
	"github.com/smallbiznis/labinventory/internal/config"
	"github.com/smallbiznis/labinventory/internal/lock"
	"github.com/smallbiznis/labinventory/internal/migration"
	"github.com/smallbiznis/labinventory/internal/observability"
	"github.com/smallbiznis/labinventory/internal/providers/pdf"
	"github.com/smallbiznis/labinventory/internal/qrcode"
	"github.com/smallbiznis/labinventory/internal/server"
	"github.com/smallbiznis/labinventory/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		migration.Module,
		clock.Module,
		lock.Module,
		blobstore.Module,
		qrcode.Module,
		pdf.Module,

		server.Module,
	)
	app.Run()
}

func RegisterSnowflake(cfg config.Config) (*snowflake.Node, error) {
	return snowflake.NewNode(cfg.NodeID)
}
