package db

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/skyrun-game/skyrun/internal/common"
	"github.com/skyrun-game/skyrun/internal/server/devices"
	"github.com/skyrun-game/skyrun/internal/server/progress"
	"github.com/skyrun-game/skyrun/internal/server/users"
)

// InMemoryRepositoryManager backs the repositories with plain maps. It is
// used by handler tests and is good enough for local experiments where a
// Postgres instance is not worth the trouble. Nothing survives a restart.
type InMemoryRepositoryManager struct {
	users    *memoryUserRepository
	devices  *memoryDeviceRepository
	progress *memoryProgressRepository
}

func NewInMemoryRepositoryManager() RepositoryManager {
	return &InMemoryRepositoryManager{
		users:    &memoryUserRepository{byEmail: make(map[string]*users.User)},
		devices:  &memoryDeviceRepository{seen: make(map[string]struct{})},
		progress: &memoryProgressRepository{scores: make(map[string]map[string]int)},
	}
}

func (m *InMemoryRepositoryManager) Conn() *sql.DB {
	return nil
}

func (m *InMemoryRepositoryManager) RunMigrations(ctx context.Context) error {
	return nil
}

func (m *InMemoryRepositoryManager) Users() users.Repository {
	return m.users
}

func (m *InMemoryRepositoryManager) Devices() devices.Repository {
	return m.devices
}

func (m *InMemoryRepositoryManager) Progress() progress.Repository {
	return m.progress
}

type memoryUserRepository struct {
	mu      sync.Mutex
	byEmail map[string]*users.User
}

func (r *memoryUserRepository) Add(ctx context.Context, u *users.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byEmail[u.Email]; ok {
		return common.ErrEmailTaken
	}

	u.ID = uuid.NewString()
	u.CreatedAt = time.Now()
	stored := *u
	r.byEmail[u.Email] = &stored
	return nil
}

func (r *memoryUserRepository) GetByEmail(ctx context.Context, email string) (*users.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.byEmail[email]
	if !ok {
		return nil, common.ErrorNotFound
	}
	found := *u
	return &found, nil
}

type memoryDeviceRepository struct {
	mu   sync.Mutex
	seen map[string]struct{}
}

func deviceKey(userEmail, deviceIdentifier string) string {
	return userEmail + "\x00" + deviceIdentifier
}

func (r *memoryDeviceRepository) Add(ctx context.Context, userEmail string, deviceIdentifier string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seen[deviceKey(userEmail, deviceIdentifier)] = struct{}{}
	return nil
}

func (r *memoryDeviceRepository) Exists(ctx context.Context, userEmail string, deviceIdentifier string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.seen[deviceKey(userEmail, deviceIdentifier)]
	return ok, nil
}

type memoryProgressRepository struct {
	mu     sync.Mutex
	scores map[string]map[string]int
}

func (r *memoryProgressRepository) GetByUser(ctx context.Context, userEmail string) (map[string]int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make(map[string]int, len(r.scores[userEmail]))
	for levelID, best := range r.scores[userEmail] {
		out[levelID] = best
	}
	return out, nil
}

func (r *memoryProgressRepository) RaiseScores(ctx context.Context, userEmail string, scores map[string]int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.scores[userEmail]
	if !ok {
		stored = make(map[string]int)
		r.scores[userEmail] = stored
	}
	for levelID, best := range scores {
		if best > stored[levelID] {
			stored[levelID] = best
		}
	}
	return nil
}
