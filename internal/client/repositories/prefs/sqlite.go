package prefs

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"

	"github.com/skyrun-game/skyrun/internal/dbx"
)

type SQLiteRepository struct {
	db dbx.DBTX
}

func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func (r *SQLiteRepository) GetString(ctx context.Context, key, def string) (string, error) {
	var value string
	err := r.db.QueryRowContext(ctx, `SELECT value FROM prefs WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return def, nil
	}
	if err != nil {
		return def, fmt.Errorf("failed to get prefs[%s]: %w", key, err)
	}
	return value, nil
}

func (r *SQLiteRepository) GetInt(ctx context.Context, key string, def int) (int, error) {
	s, err := r.GetString(ctx, key, strconv.Itoa(def))
	if err != nil {
		return def, err
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return def, fmt.Errorf("prefs[%s] is not an int: %w", key, err)
	}
	return v, nil
}

func (r *SQLiteRepository) GetBool(ctx context.Context, key string, def bool) (bool, error) {
	d := "0"
	if def {
		d = "1"
	}
	s, err := r.GetString(ctx, key, d)
	if err != nil {
		return def, err
	}
	return s == "1", nil
}

func (r *SQLiteRepository) SetString(ctx context.Context, key, value string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO prefs (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	if err != nil {
		return fmt.Errorf("failed to set prefs[%s]: %w", key, err)
	}
	return nil
}

func (r *SQLiteRepository) SetInt(ctx context.Context, key string, value int) error {
	return r.SetString(ctx, key, strconv.Itoa(value))
}

func (r *SQLiteRepository) SetBool(ctx context.Context, key string, value bool) error {
	v := "0"
	if value {
		v = "1"
	}
	return r.SetString(ctx, key, v)
}

func (r *SQLiteRepository) Delete(ctx context.Context, key string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM prefs WHERE key = ?`, key)
	if err != nil {
		return fmt.Errorf("failed to delete prefs[%s]: %w", key, err)
	}
	return nil
}

func (r *SQLiteRepository) ListByPrefix(ctx context.Context, prefix string) (map[string]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT key, value FROM prefs WHERE key LIKE ? ESCAPE '\'`, escapeLike(prefix)+"%")
	if err != nil {
		return nil, fmt.Errorf("failed to list prefs: %w", err)
	}
	defer rows.Close()

	result := make(map[string]string)
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, fmt.Errorf("failed to scan prefs row: %w", err)
		}
		result[key] = value
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate prefs rows: %w", err)
	}

	return result, nil
}

// escapeLike protects LIKE metacharacters in user-derived prefixes
// (emails can contain underscores).
func escapeLike(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '%', '_', '\\':
			out = append(out, '\\')
		}
		out = append(out, s[i])
	}
	return string(out)
}
