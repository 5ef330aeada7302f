package users

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/skyrun-game/skyrun/internal/common"
	"github.com/skyrun-game/skyrun/internal/server/devices"
)

// LoginResult tells the caller whether the password checked out and,
// if so, whether this installation still has to answer the security
// question before the client may treat the session as verified.
type LoginResult struct {
	UserID               string
	RequiresVerification bool
}

type Service struct {
	repo       Repository
	deviceRepo devices.Repository
}

func NewService(repo Repository, deviceRepo devices.Repository) *Service {
	return &Service{repo: repo, deviceRepo: deviceRepo}
}

func (s *Service) hash(value string) ([]byte, error) {
	return bcrypt.GenerateFromPassword([]byte(value), bcrypt.DefaultCost)
}

func (s *Service) Register(ctx context.Context, email, password, question, answer string) (*User, error) {

	passwordHash, err := s.hash(password)
	if err != nil {
		return nil, common.ErrorInternal
	}

	// answers are compared case-insensitively, so normalize before hashing
	answerHash, err := s.hash(normalizeAnswer(answer))
	if err != nil {
		return nil, common.ErrorInternal
	}

	user := &User{
		Email:              email,
		PasswordHash:       passwordHash,
		SecurityQuestion:   question,
		SecurityAnswerHash: answerHash,
	}

	if err := s.repo.Add(ctx, user); err != nil {
		if errors.Is(err, common.ErrEmailTaken) {
			return nil, err
		}
		return nil, fmt.Errorf("error creating user: %w", err)
	}

	return user, nil
}

func (s *Service) Login(ctx context.Context, email, password, deviceIdentifier string) (*LoginResult, error) {

	user, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrorUnauthorized
		}
		return nil, common.ErrorInternal
	}

	if bcrypt.CompareHashAndPassword(user.PasswordHash, []byte(password)) != nil {
		return nil, common.ErrorUnauthorized
	}

	verified, err := s.deviceRepo.Exists(ctx, user.Email, deviceIdentifier)
	if err != nil {
		return nil, common.ErrorInternal
	}

	return &LoginResult{UserID: user.Email, RequiresVerification: !verified}, nil
}

func (s *Service) SecurityQuestion(ctx context.Context, email string) (string, error) {

	user, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return "", common.ErrorNotFound
		}
		return "", common.ErrorInternal
	}

	return user.SecurityQuestion, nil
}

// VerifyDevice checks the security answer and, on success, records the
// installation so future logins from it skip verification. A wrong
// answer is a normal outcome, not an error.
func (s *Service) VerifyDevice(ctx context.Context, email, deviceIdentifier, answer string) (bool, error) {

	user, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return false, common.ErrorNotFound
		}
		return false, common.ErrorInternal
	}

	if bcrypt.CompareHashAndPassword(user.SecurityAnswerHash, []byte(normalizeAnswer(answer))) != nil {
		return false, nil
	}

	if err := s.deviceRepo.Add(ctx, user.Email, deviceIdentifier); err != nil {
		return false, common.ErrorInternal
	}

	return true, nil
}

func normalizeAnswer(answer string) string {
	return strings.ToLower(strings.TrimSpace(answer))
}
