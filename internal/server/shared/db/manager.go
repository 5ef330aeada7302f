package db

import (
	"context"
	"database/sql"

	"github.com/skyrun-game/skyrun/internal/server/devices"
	"github.com/skyrun-game/skyrun/internal/server/progress"
	"github.com/skyrun-game/skyrun/internal/server/users"
)

type RepositoryManager interface {
	RunMigrations(context.Context) error
	Conn() *sql.DB
	Users() users.Repository
	Devices() devices.Repository
	Progress() progress.Repository
}
