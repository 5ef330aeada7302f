package progress

import "context"

type Repository interface {
	GetByUser(ctx context.Context, userEmail string) (map[string]int, error)
	RaiseScores(ctx context.Context, userEmail string, scores map[string]int) error
}
