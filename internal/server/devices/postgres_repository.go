package devices

import (
	"context"
	"database/sql"
	"fmt"
)

type PostgresRepository struct {
	db *sql.DB
}

func NewPostgresRepository(db *sql.DB) (*PostgresRepository, error) {
	return &PostgresRepository{db: db}, nil
}

func (r *PostgresRepository) Add(ctx context.Context, userEmail string, deviceIdentifier string) error {

	// re-verifying the same installation is not an error
	query :=
		`INSERT INTO devices (user_email, device_identifier)
		 VALUES ($1, $2)
		 ON CONFLICT (user_email, device_identifier) DO NOTHING
		 `

	_, err := r.db.ExecContext(ctx, query, userEmail, deviceIdentifier)
	if err != nil {
		return fmt.Errorf("error performing sql request: %w", err)
	}

	return nil
}

func (r *PostgresRepository) Exists(ctx context.Context, userEmail string, deviceIdentifier string) (bool, error) {

	query :=
		`SELECT EXISTS (
		   SELECT 1 FROM devices WHERE user_email = $1 AND device_identifier = $2
		 )`

	var exists bool
	err := r.db.QueryRowContext(ctx, query, userEmail, deviceIdentifier).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("error performing sql request: %w", err)
	}

	return exists, nil
}
