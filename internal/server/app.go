// Package server initializes and runs the SkyRun account server: it wires
// the Postgres (or in-memory) repositories to the account and progress
// services, runs migrations, and serves the JSON/HTTP endpoint until the
// process receives a termination signal.
package server

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/skyrun-game/skyrun/internal/logging"
	"github.com/skyrun-game/skyrun/internal/server/config"
	"github.com/skyrun-game/skyrun/internal/server/httpapi"
	"github.com/skyrun-game/skyrun/internal/server/progress"
	"github.com/skyrun-game/skyrun/internal/server/shared/db"
	"github.com/skyrun-game/skyrun/internal/server/users"
)

type App struct {
	config          *config.Config
	logger          logging.Logger
	userService     *users.Service
	progressService *progress.Service
}

func NewApp(cfg *config.Config, logger logging.Logger) (*App, error) {

	var m db.RepositoryManager
	var err error

	if cfg.DatabaseDSN == "" {
		m = db.NewInMemoryRepositoryManager()
	} else {
		m, err = db.NewPostgresRepositoryManager(cfg.DatabaseDSN)
		if err != nil {
			return nil, fmt.Errorf("db init error: %w", err)
		}
	}

	us := users.NewService(m.Users(), m.Devices())
	ps := progress.NewService(m.Progress(), m.Users())

	return &App{config: cfg, logger: logger, userService: us, progressService: ps}, nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) Run(ctx context.Context) error {

	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "starting app", "addr", app.config.EndpointAddr)

	app.initSignalHandler(cancelFunc)

	s := httpapi.NewHTTPServer(app.config.EndpointAddr, app.logger, app.userService, app.progressService)

	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, "http server stopped", "error", err)
		return err
	}

	return nil
}
