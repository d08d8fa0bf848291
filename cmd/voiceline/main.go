package main

import (
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"

	"github.com/cubridge/voiceline/internal/clock"
	"github.com/cubridge/voiceline/internal/config"
	"github.com/cubridge/voiceline/internal/migration"
	"github.com/cubridge/voiceline/internal/observability"
	"github.com/cubridge/voiceline/internal/server"
	"github.com/cubridge/voiceline/pkg/db"
)

func main() {
	app := fx.New(
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		migration.Module,
		server.Module,
	)

	app.Run()
}

// RegisterSnowflake provides the row-id generator shared by every store.
func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return node
}
