package progress

import (
	"context"
	"errors"
	"fmt"

	"github.com/skyrun-game/skyrun/internal/common"
	"github.com/skyrun-game/skyrun/internal/server/users"
)

type Service struct {
	repo     Repository
	userRepo users.Repository
}

func NewService(repo Repository, userRepo users.Repository) *Service {
	return &Service{repo: repo, userRepo: userRepo}
}

func (s *Service) checkUser(ctx context.Context, userEmail string) error {
	_, err := s.userRepo.GetByEmail(ctx, userEmail)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return common.ErrorNotFound
		}
		return common.ErrorInternal
	}
	return nil
}

func (s *Service) BestScores(ctx context.Context, userEmail string) (map[string]int, error) {

	if err := s.checkUser(ctx, userEmail); err != nil {
		return nil, err
	}

	scores, err := s.repo.GetByUser(ctx, userEmail)
	if err != nil {
		return nil, common.ErrorInternal
	}

	return scores, nil
}

func (s *Service) RaiseScores(ctx context.Context, userEmail string, scores map[string]int) error {

	if err := s.checkUser(ctx, userEmail); err != nil {
		return err
	}

	for levelID, best := range scores {
		if levelID == "" {
			return fmt.Errorf("%w: empty level id", common.ErrValidation)
		}
		if best < 0 {
			return fmt.Errorf("%w: negative best score for %s", common.ErrValidation, levelID)
		}
	}

	if len(scores) == 0 {
		return nil
	}

	if err := s.repo.RaiseScores(ctx, userEmail, scores); err != nil {
		return common.ErrorInternal
	}

	return nil
}
