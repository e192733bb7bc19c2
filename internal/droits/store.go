package droits

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/mohamdabidi2/geox-sub001/internal/shared"
)

// ErrInvalidWindow rejects a grant whose expiry precedes its start. An
// inverted window would otherwise be stored and silently evaluate as inactive
// forever, so it is refused at the boundary instead.
var ErrInvalidWindow = errors.New("droits: expiry precedes start")

// Invalidator notifies other gateway replicas that a user's derived rights
// are stale. Enqueue failures are logged, never surfaced: the local store has
// already re-fetched and is consistent.
type Invalidator interface {
	InvalidateRights(ctx context.Context, userID int64) error
}

// FetchAllResult reports the per-kind outcome of a combined fetch so callers
// can tell a full load from a partial or a total failure.
type FetchAllResult struct {
	errs map[Kind]error
}

// Err returns the fetch error for one kind, nil on success.
func (r FetchAllResult) Err(kind Kind) error {
	return r.errs[kind]
}

// FullyLoaded reports that every kind fetched successfully.
func (r FetchAllResult) FullyLoaded() bool {
	return len(r.errs) == 0
}

// FullyFailed reports that no kind fetched successfully.
func (r FetchAllResult) FullyFailed() bool {
	return len(r.errs) == len(Kinds())
}

// Partial reports a mix of successes and failures.
func (r FetchAllResult) Partial() bool {
	return !r.FullyLoaded() && !r.FullyFailed()
}

// Combined joins all per-kind errors, nil when fully loaded.
func (r FetchAllResult) Combined() error {
	if len(r.errs) == 0 {
		return nil
	}
	joined := make([]error, 0, len(r.errs))
	for _, kind := range Kinds() {
		if err := r.errs[kind]; err != nil {
			joined = append(joined, err)
		}
	}
	return errors.Join(joined...)
}

// Store owns the three raw AccessRight collections for one gateway session.
// Every mutation is followed by a re-fetch so the local view always matches
// backend truth, including denormalized display fields. Reads degrade to
// last-known-good data; a failed fetch never partially overwrites a
// collection.
type Store struct {
	api    API
	logger *slog.Logger
	inv    Invalidator

	mu          sync.RWMutex
	token       string
	actorID     int64
	subjectID   int64
	epoch       uint64
	version     uint64
	collections map[Kind][]AccessRight
	fetchErrs   map[Kind]error
}

// NewStore constructs a Store. inv may be nil when cross-replica
// invalidation is not wired (tests, single instance).
func NewStore(api API, logger *slog.Logger, inv Invalidator) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		api:         api,
		logger:      logger,
		inv:         inv,
		collections: make(map[Kind][]AccessRight, 3),
		fetchErrs:   make(map[Kind]error, 3),
	}
}

// Bind points the store at an identity and credential without fetching. A
// subject change bumps the epoch so any still-in-flight fetch for the
// previous identity lands dead: its response is discarded instead of
// overwriting newer state.
func (s *Store) Bind(userID int64, token string) {
	s.BindSubject(userID, userID, token)
}

// BindSubject separates the acting identity from the administered subject.
// The actor authenticates requests and is stamped as responsible on writes;
// the subject owns the collections.
func (s *Store) BindSubject(actorID, subjectID int64, token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.subjectID != subjectID {
		s.epoch++
	}
	s.actorID = actorID
	s.subjectID = subjectID
	s.token = token
}

// SetUser switches the acting identity and auto-refreshes all collections
// for it.
func (s *Store) SetUser(ctx context.Context, userID int64, token string) FetchAllResult {
	s.Bind(userID, token)
	return s.FetchAllRights(ctx, userID)
}

// Subject returns the user id the collections currently belong to.
func (s *Store) Subject() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.subjectID
}

// Version increments on every successful collection swap; derived views use
// it as their memoization key.
func (s *Store) Version() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

// Rights returns a copy of the raw collection for one kind.
func (s *Store) Rights(kind Kind) []AccessRight {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rights := make([]AccessRight, len(s.collections[kind]))
	copy(rights, s.collections[kind])
	return rights
}

// Snapshot returns a copy of all collections together with the version they
// were read at. Derived views read through here; pairing separate Rights and
// Version calls can associate a version with data from another fetch.
func (s *Store) Snapshot() (map[Kind][]AccessRight, uint64) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	collections := make(map[Kind][]AccessRight, len(s.collections))
	for kind, rights := range s.collections {
		out := make([]AccessRight, len(rights))
		copy(out, rights)
		collections[kind] = out
	}
	return collections, s.version
}

// FetchError returns the last fetch error for one kind, nil after a
// successful fetch.
func (s *Store) FetchError(kind Kind) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.fetchErrs[kind]
}

// ActiveRights filters the in-memory collection for one kind against now.
// Purely local: expiry of already-fetched rows is observed live, additions
// and revocations need a re-fetch.
func (s *Store) ActiveRights(kind Kind, now time.Time) []AccessRight {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return ActiveRights(s.collections[kind], now)
}

// FetchCategoryRights loads the category collection. userID 0 means the
// current session user; shared.ErrMissingUser when neither is available.
func (s *Store) FetchCategoryRights(ctx context.Context, userID int64) error {
	return s.fetchKind(ctx, KindCategory, userID)
}

// FetchMagasinRights loads the magasin collection.
func (s *Store) FetchMagasinRights(ctx context.Context, userID int64) error {
	return s.fetchKind(ctx, KindMagasin, userID)
}

// FetchClientRights loads the client collection.
func (s *Store) FetchClientRights(ctx context.Context, userID int64) error {
	return s.fetchKind(ctx, KindClient, userID)
}

// FetchRights loads the collection of an arbitrary kind.
func (s *Store) FetchRights(ctx context.Context, kind Kind, userID int64) error {
	return s.fetchKind(ctx, kind, userID)
}

// FetchAllRights tries the combined endpoint first and falls back to three
// concurrent per-kind fetches. Each kind succeeds or fails independently; the
// result says which.
func (s *Store) FetchAllRights(ctx context.Context, userID int64) FetchAllResult {
	uid, token, epoch, err := s.prepareFetch(userID)
	if err != nil {
		errs := make(map[Kind]error, 3)
		for _, kind := range Kinds() {
			errs[kind] = err
		}
		return FetchAllResult{errs: errs}
	}

	if all, err := s.api.ListAllRights(ctx, token, uid); err == nil {
		s.mu.Lock()
		if epoch == s.epoch {
			s.collections[KindCategory] = all.Categories
			s.collections[KindMagasin] = all.Magasins
			s.collections[KindClient] = all.Clients
			for _, kind := range Kinds() {
				delete(s.fetchErrs, kind)
			}
			s.version++
		}
		s.mu.Unlock()
		return FetchAllResult{}
	} else {
		s.logger.Warn("droits: combined fetch failed, falling back per kind",
			slog.Int64("user_id", uid), slog.Any("error", err))
	}

	var (
		resMu sync.Mutex
		errs  = make(map[Kind]error, 3)
	)
	g, gctx := errgroup.WithContext(ctx)
	for _, kind := range Kinds() {
		kind := kind
		g.Go(func() error {
			if err := s.fetchKind(gctx, kind, uid); err != nil {
				resMu.Lock()
				errs[kind] = err
				resMu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()
	return FetchAllResult{errs: errs}
}

// CreateRight grants a new right. The responsible user is always the acting
// session identity, never the caller's choice. On success the kind's
// collection is re-fetched; on failure the error propagates untouched so the
// admin screen can surface the backend's message.
func (s *Store) CreateRight(ctx context.Context, kind Kind, in CreateInput) (AccessRight, error) {
	if in.ExpiresAt.Before(in.StartsAt) {
		return AccessRight{}, ErrInvalidWindow
	}
	if in.UserID == 0 {
		return AccessRight{}, shared.ErrMissingUser
	}
	s.mu.RLock()
	in.ResponsibleUserID = s.actorID
	token := s.token
	s.mu.RUnlock()

	created, err := s.api.CreateRight(ctx, token, kind, in)
	if err != nil {
		return AccessRight{}, err
	}
	s.refetchAfterWrite(ctx, kind, in.UserID)
	s.invalidate(ctx, in.UserID)
	return created, nil
}

// UpdateRight rewrites the validity window of an existing right. Only the
// window and the responsible user travel; user and resource are write-once.
func (s *Store) UpdateRight(ctx context.Context, kind Kind, id int64, in UpdateInput) (AccessRight, error) {
	if in.ExpiresAt.Before(in.StartsAt) {
		return AccessRight{}, ErrInvalidWindow
	}
	s.mu.RLock()
	in.ResponsibleUserID = s.actorID
	token := s.token
	s.mu.RUnlock()

	updated, err := s.api.UpdateRight(ctx, token, kind, id, in)
	if err != nil {
		return AccessRight{}, err
	}
	s.refetchAfterWrite(ctx, kind, updated.UserID)
	s.invalidate(ctx, updated.UserID)
	return updated, nil
}

// DeleteRight revokes a right by id. Final and immediate, no soft delete.
// The subject to invalidate comes from the echoed row, so deletion works on a
// store that never listed the right first.
func (s *Store) DeleteRight(ctx context.Context, kind Kind, id int64) error {
	s.mu.RLock()
	token := s.token
	s.mu.RUnlock()

	deleted, err := s.api.DeleteRight(ctx, token, kind, id)
	if err != nil {
		return err
	}
	if deleted.UserID != 0 {
		s.refetchAfterWrite(ctx, kind, deleted.UserID)
		s.invalidate(ctx, deleted.UserID)
	}
	return nil
}

// CheckUserRights asks the backend whether userID currently has access to the
// given resource combination. Any transport error fails closed.
func (s *Store) CheckUserRights(ctx context.Context, userID int64, q AccessQuery) bool {
	s.mu.RLock()
	token := s.token
	s.mu.RUnlock()
	allowed, err := s.api.CheckAccess(ctx, token, userID, q)
	if err != nil {
		s.logger.Warn("droits: access check failed closed",
			slog.Int64("user_id", userID), slog.Any("error", err))
		return false
	}
	return allowed
}

func (s *Store) prepareFetch(userID int64) (uid int64, token string, epoch uint64, err error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	uid = userID
	if uid == 0 {
		uid = s.subjectID
	}
	if uid == 0 {
		return 0, "", 0, shared.ErrMissingUser
	}
	return uid, s.token, s.epoch, nil
}

func (s *Store) fetchKind(ctx context.Context, kind Kind, userID int64) error {
	uid, token, epoch, err := s.prepareFetch(userID)
	if err != nil {
		return err
	}

	rights, err := s.api.ListRights(ctx, token, kind, uid)

	s.mu.Lock()
	defer s.mu.Unlock()
	if epoch != s.epoch {
		// Identity changed while this fetch was in flight; its payload
		// belongs to a previous user and must not land.
		s.logger.Debug("droits: dropped stale fetch",
			slog.String("kind", string(kind)), slog.Int64("user_id", uid))
		return nil
	}
	if err != nil {
		s.fetchErrs[kind] = err
		return err
	}
	s.collections[kind] = rights
	delete(s.fetchErrs, kind)
	s.version++
	return nil
}

// refetchAfterWrite reloads the written kind for the grant's subject.
func (s *Store) refetchAfterWrite(ctx context.Context, kind Kind, userID int64) {
	if err := s.fetchKind(ctx, kind, userID); err != nil {
		s.logger.Warn("droits: refetch after write failed",
			slog.String("kind", string(kind)), slog.Any("error", err))
	}
}

func (s *Store) invalidate(ctx context.Context, userID int64) {
	if s.inv == nil {
		return
	}
	if err := s.inv.InvalidateRights(ctx, userID); err != nil {
		s.logger.Warn("droits: enqueue invalidation failed",
			slog.Int64("user_id", userID), slog.Any("error", err))
	}
}
