package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/labinventory/internal/blobstore"
	"github.com/smallbiznis/labinventory/internal/clock"
	"github.com/smallbiznis/labinventory/internal/config"
	"github.com/smallbiznis/labinventory/internal/lock"
	"github.com/smallbiznis/labinventory/internal/observability"
	"github.com/smallbiznis/labinventory/internal/providers/pdf"
	"github.com/smallbiznis/labinventory/internal/qrcode"
	"github.com/smallbiznis/labinventory/internal/scheduler"
	"github.com/smallbiznis/labinventory/internal/system"
	"github.com/smallbiznis/labinventory/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		lock.Module,
		blobstore.Module,
		qrcode.Module,
		pdf.Module,

		// Domain service driven by the repair job; schema is owned by the API binary.
		system.Module,
		scheduler.Module,
	)
	app.Run()
}

func RegisterSnowflake(cfg config.Config) (*snowflake.Node, error) {
	return snowflake.NewNode(cfg.NodeID)
}
