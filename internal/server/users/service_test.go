package users

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/skyrun-game/skyrun/internal/common"
)

type fakeUserRepo struct {
	byEmail map[string]*User
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{byEmail: make(map[string]*User)}
}

func (r *fakeUserRepo) Add(ctx context.Context, u *User) error {
	if _, ok := r.byEmail[u.Email]; ok {
		return common.ErrEmailTaken
	}
	r.byEmail[u.Email] = u
	return nil
}

func (r *fakeUserRepo) GetByEmail(ctx context.Context, email string) (*User, error) {
	u, ok := r.byEmail[email]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return u, nil
}

type fakeDeviceRepo struct {
	added map[string]bool
}

func newFakeDeviceRepo() *fakeDeviceRepo {
	return &fakeDeviceRepo{added: make(map[string]bool)}
}

func (r *fakeDeviceRepo) Add(ctx context.Context, userEmail, deviceIdentifier string) error {
	r.added[userEmail+"/"+deviceIdentifier] = true
	return nil
}

func (r *fakeDeviceRepo) Exists(ctx context.Context, userEmail, deviceIdentifier string) (bool, error) {
	return r.added[userEmail+"/"+deviceIdentifier], nil
}

func newTestService() (*Service, *fakeUserRepo, *fakeDeviceRepo) {
	ur := newFakeUserRepo()
	dr := newFakeDeviceRepo()
	return NewService(ur, dr), ur, dr
}

func TestRegisterHashesSecrets(t *testing.T) {
	ctx := context.Background()
	s, ur, _ := newTestService()

	u, err := s.Register(ctx, "bob@x.com", "hunter2", "First pet?", "Rex")
	require.NoError(t, err)
	require.NotNil(t, u)

	stored := ur.byEmail["bob@x.com"]
	require.NotNil(t, stored)
	require.NotContains(t, string(stored.PasswordHash), "hunter2")
	require.NoError(t, bcrypt.CompareHashAndPassword(stored.PasswordHash, []byte("hunter2")))
	// answer is normalized before hashing
	require.NoError(t, bcrypt.CompareHashAndPassword(stored.SecurityAnswerHash, []byte("rex")))
}

func TestRegisterDuplicateEmail(t *testing.T) {
	ctx := context.Background()
	s, _, _ := newTestService()

	_, err := s.Register(ctx, "bob@x.com", "hunter2", "First pet?", "Rex")
	require.NoError(t, err)

	_, err = s.Register(ctx, "bob@x.com", "other", "Q?", "A")
	require.ErrorIs(t, err, common.ErrEmailTaken)
}

func TestLogin(t *testing.T) {
	ctx := context.Background()
	s, _, dr := newTestService()

	_, err := s.Register(ctx, "bob@x.com", "hunter2", "First pet?", "Rex")
	require.NoError(t, err)

	t.Run("unknown device requires verification", func(t *testing.T) {
		res, err := s.Login(ctx, "bob@x.com", "hunter2", "device-1")
		require.NoError(t, err)
		require.True(t, res.RequiresVerification)
		require.Equal(t, "bob@x.com", res.UserID)
	})

	t.Run("verified device skips verification", func(t *testing.T) {
		require.NoError(t, dr.Add(ctx, "bob@x.com", "device-1"))
		res, err := s.Login(ctx, "bob@x.com", "hunter2", "device-1")
		require.NoError(t, err)
		require.False(t, res.RequiresVerification)
	})

	t.Run("wrong password", func(t *testing.T) {
		_, err := s.Login(ctx, "bob@x.com", "nope", "device-1")
		require.ErrorIs(t, err, common.ErrorUnauthorized)
	})

	t.Run("unknown email", func(t *testing.T) {
		_, err := s.Login(ctx, "ghost@x.com", "hunter2", "device-1")
		require.ErrorIs(t, err, common.ErrorUnauthorized)
	})
}

func TestVerifyDevice(t *testing.T) {
	ctx := context.Background()
	s, _, dr := newTestService()

	_, err := s.Register(ctx, "bob@x.com", "hunter2", "First pet?", "Rex")
	require.NoError(t, err)

	t.Run("wrong answer grants nothing", func(t *testing.T) {
		ok, err := s.VerifyDevice(ctx, "bob@x.com", "device-1", "Fluffy")
		require.NoError(t, err)
		require.False(t, ok)
		require.False(t, dr.added["bob@x.com/device-1"])
	})

	t.Run("answer match is case-insensitive", func(t *testing.T) {
		ok, err := s.VerifyDevice(ctx, "bob@x.com", "device-1", "  REX ")
		require.NoError(t, err)
		require.True(t, ok)
		require.True(t, dr.added["bob@x.com/device-1"])
	})

	t.Run("unknown user", func(t *testing.T) {
		_, err := s.VerifyDevice(ctx, "ghost@x.com", "device-1", "Rex")
		require.ErrorIs(t, err, common.ErrorNotFound)
	})
}

func TestSecurityQuestion(t *testing.T) {
	ctx := context.Background()
	s, _, _ := newTestService()

	_, err := s.Register(ctx, "bob@x.com", "hunter2", "First pet?", "Rex")
	require.NoError(t, err)

	q, err := s.SecurityQuestion(ctx, "bob@x.com")
	require.NoError(t, err)
	require.Equal(t, "First pet?", q)

	_, err = s.SecurityQuestion(ctx, "ghost@x.com")
	require.ErrorIs(t, err, common.ErrorNotFound)
}
