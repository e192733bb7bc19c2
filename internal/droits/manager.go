package droits

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/redis/go-redis/v9"

	"github.com/mohamdabidi2/geox-sub001/internal/shared"
)

// RightsEpochKey is the redis key whose counter advances every time a user's
// grants mutate. Gateway replicas compare it against the epoch their cached
// resolver was built at and rebuild on mismatch.
func RightsEpochKey(userID int64) string {
	return fmt.Sprintf("droits:rights_epoch:%d", userID)
}

type managerEntry struct {
	store    *Store
	resolver *Resolver
	epoch    int64
}

// Manager hands out the per-user Store/Resolver pair for authenticated
// sessions and evicts pairs invalidated by grant mutations on any replica.
type Manager struct {
	api    API
	logger *slog.Logger
	inv    Invalidator
	redis  *redis.Client

	mu      sync.Mutex
	entries map[int64]*managerEntry
}

// NewManager constructs a Manager. redisClient may be nil, disabling
// cross-replica invalidation (tests, single instance).
func NewManager(api API, logger *slog.Logger, inv Invalidator, redisClient *redis.Client) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		api:     api,
		logger:  logger,
		inv:     inv,
		redis:   redisClient,
		entries: make(map[int64]*managerEntry),
	}
}

// ResolverFor returns the resolver bound to user, creating the pair on first
// use and rebuilding it when the rights epoch moved.
func (m *Manager) ResolverFor(ctx context.Context, user shared.UserProfile, token string) *Resolver {
	return m.entryFor(ctx, user, token).resolver
}

// StoreFor returns the store bound to user, same lifecycle as ResolverFor.
func (m *Manager) StoreFor(ctx context.Context, user shared.UserProfile, token string) *Store {
	return m.entryFor(ctx, user, token).store
}

// SubjectStore returns a store for administering another user's grants,
// detached from the session cache. Fetches for the administered subject must
// never land in the acting user's own store: their resolver derives from it,
// and foreign collections would rewrite the actor's effective rights.
func (m *Manager) SubjectStore(actor shared.UserProfile, token string, subjectID int64) *Store {
	store := NewStore(m.api, m.logger, m.inv)
	store.BindSubject(actor.ID, subjectID, token)
	return store
}

// Evict drops the cached pair for a user; the next request rebuilds and
// reloads it.
func (m *Manager) Evict(userID int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, userID)
}

func (m *Manager) entryFor(ctx context.Context, user shared.UserProfile, token string) *managerEntry {
	epoch := m.currentEpoch(ctx, user.ID)

	m.mu.Lock()
	defer m.mu.Unlock()
	if entry, ok := m.entries[user.ID]; ok && entry.epoch == epoch {
		entry.store.Bind(user.ID, token)
		return entry
	}

	store := NewStore(m.api, m.logger, m.inv)
	store.Bind(user.ID, token)
	entry := &managerEntry{
		store:    store,
		resolver: NewResolver(store, user),
		epoch:    epoch,
	}
	m.entries[user.ID] = entry
	return entry
}

func (m *Manager) currentEpoch(ctx context.Context, userID int64) int64 {
	if m.redis == nil {
		return 0
	}
	epoch, err := m.redis.Get(ctx, RightsEpochKey(userID)).Int64()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			m.logger.Warn("droits: rights epoch unavailable",
				slog.Int64("user_id", userID), slog.Any("error", err))
		}
		return 0
	}
	return epoch
}
