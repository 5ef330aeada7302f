package db

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/skyrun-game/skyrun/internal/server/devices"
	"github.com/skyrun-game/skyrun/internal/server/migrations"
	"github.com/skyrun-game/skyrun/internal/server/progress"
	"github.com/skyrun-game/skyrun/internal/server/users"
)

type PostgresRepositoryManager struct {
	db       *sql.DB
	users    users.Repository
	devices  devices.Repository
	progress progress.Repository
}

func (m *PostgresRepositoryManager) Conn() *sql.DB {
	return m.db
}

func (m *PostgresRepositoryManager) Users() users.Repository {
	return m.users
}

func (m *PostgresRepositoryManager) Devices() devices.Repository {
	return m.devices
}

func (m *PostgresRepositoryManager) Progress() progress.Repository {
	return m.progress
}

func (m *PostgresRepositoryManager) RunMigrations(ctx context.Context) error {
	goose.SetBaseFS(migrations.Migrations)

	if err := goose.SetDialect("postgres"); err != nil {
		return err
	}

	if err := goose.UpContext(ctx, m.db, "."); err != nil {
		return err
	}

	return nil
}

func NewPostgresRepositoryManager(dsn string) (RepositoryManager, error) {

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("db open error: %w", err)
	}

	users, err := users.NewPostgresRepository(db)
	if err != nil {
		return nil, fmt.Errorf("user repo creation error: %w", err)
	}

	devices, err := devices.NewPostgresRepository(db)
	if err != nil {
		return nil, fmt.Errorf("device repo creation error: %w", err)
	}

	progress, err := progress.NewPostgresRepository(db)
	if err != nil {
		return nil, fmt.Errorf("progress repo creation error: %w", err)
	}

	m := &PostgresRepositoryManager{
		db:       db,
		users:    users,
		devices:  devices,
		progress: progress,
	}

	err = m.RunMigrations(context.Background())
	if err != nil {
		return nil, fmt.Errorf("migration error: %w", err)
	}

	return m, nil
}
