package main

import (
	"context"
	"log"
	"os"

	"github.com/skyrun-game/skyrun/internal/buildinfo"
	"github.com/skyrun-game/skyrun/internal/logging"
	"github.com/skyrun-game/skyrun/internal/server"
	"github.com/skyrun-game/skyrun/internal/server/config"
)

func main() {

	buildinfo.PrintBuildData(os.Stdout)

	ctx := context.Background()
	cfg := config.LoadConfig()
	logger := logging.NewJSON(os.Stdout)

	app, err := server.NewApp(cfg, logger)
	if err != nil {
		log.Printf("%v", err)
		return
	}

	if err := app.Run(ctx); err != nil {
		log.Printf("%v", err)
	}
}
