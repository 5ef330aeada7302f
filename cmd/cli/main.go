package main

import (
	"context"
	"log"
	"os"

	"github.com/skyrun-game/skyrun/internal/buildinfo"
	"github.com/skyrun-game/skyrun/internal/client/cli"
	"github.com/skyrun-game/skyrun/internal/client/config"
	"github.com/skyrun-game/skyrun/internal/logging"
)

func main() {

	buildinfo.PrintBuildData(os.Stdout)

	ctx := context.Background()
	cfg := config.LoadConfig()
	logger := logging.NewJSON(os.Stderr)

	app, err := cli.NewApp(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("%v", err)
		return
	}

	app.Run(ctx)
}
