// Package cli wires the account session and the progress reconciler into an
// interactive shell. It stands in for the game's login/score screens.
package cli

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"time"

	"github.com/skyrun-game/skyrun/internal/client/config"
	"github.com/skyrun-game/skyrun/internal/client/connectivity"
	"github.com/skyrun-game/skyrun/internal/client/gateway"
	"github.com/skyrun-game/skyrun/internal/client/localdb"
	"github.com/skyrun-game/skyrun/internal/client/repositories/prefs"
	"github.com/skyrun-game/skyrun/internal/client/services"
	"github.com/skyrun-game/skyrun/internal/logging"

	_ "modernc.org/sqlite"
)

type Mode string

const (
	ModeOffline Mode = "offline"
	ModeOnline  Mode = "online"
)

type App struct {
	config   *config.Config
	logger   logging.Logger
	probe    *connectivity.Probe
	session  *services.AuthSession
	progress *services.ProgressReconciler
	sub      *services.Subscription
	reader   *bufio.Reader
	Mode     Mode
}

func NewApp(ctx context.Context, c *config.Config, logger logging.Logger) (*App, error) {
	db, err := localdb.Open(ctx, c.LocalCacheDSN)
	if err != nil {
		return nil, err
	}

	store := prefs.NewSQLiteRepository(db)

	gw := gateway.NewHTTPGateway(c.ServerBaseURL, gateway.WithTimeout(c.RequestTimeout))
	probe := connectivity.NewProbe(gw, connectivity.WithTTL(c.ProbeTTL))

	deviceID, err := services.NewInstallationID(ctx, store)
	if err != nil {
		return nil, err
	}

	reconciler := services.NewProgressReconciler(gw, probe, store, logger)
	session := services.NewAuthSession(gw, probe, store, logger, deviceID, reconciler.OnLogin)

	app := &App{
		config:   c,
		logger:   logger,
		probe:    probe,
		session:  session,
		progress: reconciler,
		reader:   bufio.NewReader(os.Stdin),
	}

	app.sub = reconciler.Subscribe(func(levelID string, score int) {
		fmt.Printf("\nBest score for %s is now %d\n", levelID, score)
	})

	return app, nil
}

func (a *App) Run(ctx context.Context) {
	defer a.sub.Cancel()
	defer a.session.Close()

	if state, err := a.session.Resume(ctx); err == nil && state == services.StateLoggedIn {
		fmt.Printf("Welcome back, %s!\n", a.session.Email())
	}

	go a.startOnlineStatusWatcher(ctx, a.config.OnlineCheckInterval)

	a.root(ctx)
}

func (a *App) setMode(mode Mode) {
	if a.Mode != mode {
		a.Mode = mode
		fmt.Printf("Switched to %s mode\n", mode)
	}
}

func (a *App) isLoggedIn() bool {
	return a.session.State() == services.StateLoggedIn
}

func (a *App) startOnlineStatusWatcher(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if a.probe.Check(ctx) {
				a.setMode(ModeOnline)
			} else {
				a.setMode(ModeOffline)
			}
		case <-ctx.Done():
			return
		}
	}
}
