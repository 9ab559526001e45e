package main

import (
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"

	"github.com/openprocure/procura/internal/clock"
	"github.com/openprocure/procura/internal/migration"
	"github.com/openprocure/procura/internal/observability"
	"github.com/openprocure/procura/internal/server"
	"github.com/openprocure/procura/pkg/db"
)

func main() {
	app := fx.New(
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		migration.Module,
		server.Module,
	)
	app.Run()
}

func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return node
}
