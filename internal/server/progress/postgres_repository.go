package progress

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/skyrun-game/skyrun/internal/dbx"
)

type PostgresRepository struct {
	db *sql.DB
}

func NewPostgresRepository(db *sql.DB) (*PostgresRepository, error) {
	return &PostgresRepository{db: db}, nil
}

func (r *PostgresRepository) GetByUser(ctx context.Context, userEmail string) (map[string]int, error) {

	query :=
		`SELECT level_id, best_score FROM progress
		 WHERE user_email = $1
		 `

	rows, err := r.db.QueryContext(ctx, query, userEmail)
	if err != nil {
		return nil, fmt.Errorf("error performing sql request: %w", err)
	}
	defer rows.Close()

	scores := make(map[string]int)
	for rows.Next() {
		var levelID string
		var best int
		if err := rows.Scan(&levelID, &best); err != nil {
			return nil, fmt.Errorf("error scanning row: %w", err)
		}
		scores[levelID] = best
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error reading rows: %w", err)
	}

	return scores, nil
}

// RaiseScores applies the incoming batch in one transaction. Stored
// scores only ever go up: a stale or replayed batch lowers nothing.
func (r *PostgresRepository) RaiseScores(ctx context.Context, userEmail string, scores map[string]int) error {

	query :=
		`INSERT INTO progress (user_email, level_id, best_score)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (user_email, level_id)
		 DO UPDATE SET best_score = GREATEST(progress.best_score, EXCLUDED.best_score),
		               updated_at = now()
		 `

	return dbx.WithTx(ctx, r.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		for levelID, best := range scores {
			if _, err := tx.ExecContext(ctx, query, userEmail, levelID, best); err != nil {
				return fmt.Errorf("error performing sql request: %w", err)
			}
		}
		return nil
	})
}
