package droits

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mohamdabidi2/geox-sub001/internal/shared"
)

// ============================================================================
// MOCK API
// ============================================================================

type mockAPI struct {
	mu     sync.Mutex
	rights map[Kind][]AccessRight
	nextID int64

	// userRights, when set, serves per-user collections instead of the
	// shared rights map.
	userRights map[int64]map[Kind][]AccessRight

	// Error injection
	allErr    error
	listErr   map[Kind]error
	createErr error
	updateErr error
	deleteErr error
	checkErr  error

	checkAllowed bool
	lastCreate   CreateInput

	// onList runs during ListRights, before the response is produced.
	onList func(kind Kind)
}

func newMockAPI() *mockAPI {
	return &mockAPI{
		rights:  make(map[Kind][]AccessRight),
		listErr: make(map[Kind]error),
		nextID:  1,
	}
}

// grant routes the mock into per-user mode and records rights for one user.
func (m *mockAPI) grant(userID int64, kind Kind, rights ...AccessRight) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.userRights == nil {
		m.userRights = make(map[int64]map[Kind][]AccessRight)
	}
	if m.userRights[userID] == nil {
		m.userRights[userID] = make(map[Kind][]AccessRight)
	}
	m.userRights[userID][kind] = append(m.userRights[userID][kind], rights...)
}

func (m *mockAPI) rightsFor(kind Kind, userID int64) []AccessRight {
	if m.userRights != nil {
		return m.userRights[userID][kind]
	}
	return m.rights[kind]
}

func (m *mockAPI) ListRights(ctx context.Context, token string, kind Kind, userID int64) ([]AccessRight, error) {
	if m.onList != nil {
		m.onList(kind)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.listErr[kind]; err != nil {
		return nil, err
	}
	return append([]AccessRight(nil), m.rightsFor(kind, userID)...), nil
}

func (m *mockAPI) ListAllRights(ctx context.Context, token string, userID int64) (AllRights, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.allErr != nil {
		return AllRights{}, m.allErr
	}
	return AllRights{
		Categories: append([]AccessRight(nil), m.rightsFor(KindCategory, userID)...),
		Magasins:   append([]AccessRight(nil), m.rightsFor(KindMagasin, userID)...),
		Clients:    append([]AccessRight(nil), m.rightsFor(KindClient, userID)...),
	}, nil
}

func (m *mockAPI) CreateRight(ctx context.Context, token string, kind Kind, in CreateInput) (AccessRight, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return AccessRight{}, m.createErr
	}
	m.lastCreate = in
	created := AccessRight{
		ID:                m.nextID,
		UserID:            in.UserID,
		CategoryID:        in.CategoryID,
		MagasinID:         in.MagasinID,
		ClientID:          in.ClientID,
		StartsAt:          in.StartsAt,
		ExpiresAt:         in.ExpiresAt,
		ResponsibleUserID: in.ResponsibleUserID,
	}
	m.nextID++
	m.rights[kind] = append(m.rights[kind], created)
	return created, nil
}

func (m *mockAPI) UpdateRight(ctx context.Context, token string, kind Kind, id int64, in UpdateInput) (AccessRight, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.updateErr != nil {
		return AccessRight{}, m.updateErr
	}
	for i, r := range m.rights[kind] {
		if r.ID == id {
			r.StartsAt = in.StartsAt
			r.ExpiresAt = in.ExpiresAt
			r.ResponsibleUserID = in.ResponsibleUserID
			m.rights[kind][i] = r
			return r, nil
		}
	}
	return AccessRight{}, errors.New("mock: right not found")
}

func (m *mockAPI) DeleteRight(ctx context.Context, token string, kind Kind, id int64) (AccessRight, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.deleteErr != nil {
		return AccessRight{}, m.deleteErr
	}
	var deleted AccessRight
	kept := m.rights[kind][:0]
	for _, r := range m.rights[kind] {
		if r.ID == id {
			deleted = r
			continue
		}
		kept = append(kept, r)
	}
	if deleted.ID == 0 {
		return AccessRight{}, errors.New("mock: right not found")
	}
	m.rights[kind] = kept
	return deleted, nil
}

func (m *mockAPI) CheckAccess(ctx context.Context, token string, userID int64, q AccessQuery) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.checkErr != nil {
		return false, m.checkErr
	}
	return m.checkAllowed, nil
}

type recordingInvalidator struct {
	mu      sync.Mutex
	userIDs []int64
}

func (r *recordingInvalidator) InvalidateRights(ctx context.Context, userID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.userIDs = append(r.userIDs, userID)
	return nil
}

func activeWindow(t *testing.T) (time.Time, time.Time) {
	t.Helper()
	now := time.Now()
	return now.Add(-time.Hour), now.Add(time.Hour)
}

// ============================================================================
// FETCH
// ============================================================================

func TestFetchRightsFailureKeepsLastKnownGood(t *testing.T) {
	api := newMockAPI()
	starts, expires := activeWindow(t)
	api.rights[KindMagasin] = []AccessRight{{ID: 1, UserID: 3, MagasinID: 10, StartsAt: starts, ExpiresAt: expires}}

	store := NewStore(api, nil, nil)
	store.Bind(3, "token")
	require.NoError(t, store.FetchMagasinRights(context.Background(), 3))
	require.Len(t, store.Rights(KindMagasin), 1)

	api.mu.Lock()
	api.listErr[KindMagasin] = errors.New("backend down")
	api.mu.Unlock()

	err := store.FetchMagasinRights(context.Background(), 3)
	require.Error(t, err)
	assert.Len(t, store.Rights(KindMagasin), 1, "failed fetch must not clobber the collection")
	assert.Error(t, store.FetchError(KindMagasin))

	api.mu.Lock()
	delete(api.listErr, KindMagasin)
	api.mu.Unlock()

	require.NoError(t, store.FetchMagasinRights(context.Background(), 3))
	assert.NoError(t, store.FetchError(KindMagasin))
}

func TestFetchAllRightsUsesCombinedEndpoint(t *testing.T) {
	api := newMockAPI()
	starts, expires := activeWindow(t)
	api.rights[KindCategory] = []AccessRight{{ID: 1, UserID: 3, CategoryID: 20, StartsAt: starts, ExpiresAt: expires}}
	api.rights[KindMagasin] = []AccessRight{{ID: 2, UserID: 3, MagasinID: 10, StartsAt: starts, ExpiresAt: expires}}

	store := NewStore(api, nil, nil)
	before := store.Version()
	result := store.SetUser(context.Background(), 3, "token")

	assert.True(t, result.FullyLoaded())
	assert.Len(t, store.Rights(KindCategory), 1)
	assert.Len(t, store.Rights(KindMagasin), 1)
	assert.Greater(t, store.Version(), before)
}

func TestFetchAllRightsPartialFallback(t *testing.T) {
	api := newMockAPI()
	starts, expires := activeWindow(t)
	api.rights[KindMagasin] = []AccessRight{{ID: 1, UserID: 3, MagasinID: 10, StartsAt: starts, ExpiresAt: expires}}
	api.allErr = errors.New("combined endpoint gone")
	api.listErr[KindClient] = errors.New("client fetch failed")

	store := NewStore(api, nil, nil)
	store.Bind(3, "token")
	result := store.FetchAllRights(context.Background(), 3)

	assert.True(t, result.Partial())
	assert.False(t, result.FullyLoaded())
	assert.False(t, result.FullyFailed())
	assert.NoError(t, result.Err(KindMagasin))
	assert.Error(t, result.Err(KindClient))
	assert.Error(t, result.Combined())
	assert.Len(t, store.Rights(KindMagasin), 1)
}

func TestFetchAllRightsWithoutUserFailsEverywhere(t *testing.T) {
	store := NewStore(newMockAPI(), nil, nil)
	result := store.FetchAllRights(context.Background(), 0)

	assert.True(t, result.FullyFailed())
	for _, kind := range Kinds() {
		assert.ErrorIs(t, result.Err(kind), shared.ErrMissingUser)
	}
}

func TestStaleFetchForPreviousIdentityIsDiscarded(t *testing.T) {
	api := newMockAPI()
	starts, expires := activeWindow(t)
	api.rights[KindMagasin] = []AccessRight{{ID: 1, UserID: 3, MagasinID: 10, StartsAt: starts, ExpiresAt: expires}}

	store := NewStore(api, nil, nil)
	store.Bind(3, "token")

	// The identity flips while the fetch is in flight; its payload belongs
	// to user 3 and must not land in user 4's store.
	api.onList = func(Kind) {
		api.onList = nil
		store.Bind(4, "token-4")
	}

	require.NoError(t, store.FetchMagasinRights(context.Background(), 3))
	assert.Empty(t, store.Rights(KindMagasin), "stale payload must be dropped")
	assert.Equal(t, int64(4), store.Subject())
}

// ============================================================================
// MUTATIONS
// ============================================================================

func TestCreateRightRejectsInvertedWindow(t *testing.T) {
	store := NewStore(newMockAPI(), nil, nil)
	store.Bind(7, "token")

	_, err := store.CreateRight(context.Background(), KindMagasin, CreateInput{
		UserID:    3,
		MagasinID: 10,
		StartsAt:  mustTime(t, "2024-06-01T00:00:00Z"),
		ExpiresAt: mustTime(t, "2024-05-01T00:00:00Z"),
	})
	assert.ErrorIs(t, err, ErrInvalidWindow)
}

func TestCreateRightRequiresSubject(t *testing.T) {
	store := NewStore(newMockAPI(), nil, nil)
	store.Bind(7, "token")

	starts, expires := activeWindow(t)
	_, err := store.CreateRight(context.Background(), KindMagasin, CreateInput{
		MagasinID: 10, StartsAt: starts, ExpiresAt: expires,
	})
	assert.ErrorIs(t, err, shared.ErrMissingUser)
}

func TestCreateRightStampsResponsibleAndRefetches(t *testing.T) {
	api := newMockAPI()
	inv := &recordingInvalidator{}
	store := NewStore(api, nil, inv)
	store.Bind(7, "token")

	starts, expires := activeWindow(t)
	created, err := store.CreateRight(context.Background(), KindMagasin, CreateInput{
		UserID:            3,
		MagasinID:         10,
		StartsAt:          starts,
		ExpiresAt:         expires,
		ResponsibleUserID: 99, // caller-supplied value must be ignored
	})
	require.NoError(t, err)

	assert.Equal(t, int64(7), created.ResponsibleUserID)
	assert.Equal(t, int64(7), api.lastCreate.ResponsibleUserID)
	assert.Len(t, store.Rights(KindMagasin), 1, "collection re-fetched after write")
	assert.Equal(t, []int64{3}, inv.userIDs)
}

func TestUpdateRightRejectsInvertedWindow(t *testing.T) {
	store := NewStore(newMockAPI(), nil, nil)
	store.Bind(7, "token")

	_, err := store.UpdateRight(context.Background(), KindMagasin, 1, UpdateInput{
		StartsAt:  mustTime(t, "2024-06-01T00:00:00Z"),
		ExpiresAt: mustTime(t, "2024-05-01T00:00:00Z"),
	})
	assert.ErrorIs(t, err, ErrInvalidWindow)
}

func TestDeleteRightInvalidatesTheRightsSubject(t *testing.T) {
	api := newMockAPI()
	starts, expires := activeWindow(t)
	api.rights[KindMagasin] = []AccessRight{{ID: 5, UserID: 3, MagasinID: 10, StartsAt: starts, ExpiresAt: expires}}

	inv := &recordingInvalidator{}
	store := NewStore(api, nil, inv)
	store.Bind(7, "token")
	require.NoError(t, store.FetchMagasinRights(context.Background(), 3))

	require.NoError(t, store.DeleteRight(context.Background(), KindMagasin, 5))
	assert.Empty(t, store.Rights(KindMagasin))
	assert.Equal(t, []int64{3}, inv.userIDs)
}

func TestDeleteRightWithoutPriorFetchStillInvalidates(t *testing.T) {
	api := newMockAPI()
	starts, expires := activeWindow(t)
	api.rights[KindMagasin] = []AccessRight{{ID: 5, UserID: 3, MagasinID: 10, StartsAt: starts, ExpiresAt: expires}}

	inv := &recordingInvalidator{}
	store := NewStore(api, nil, inv)
	store.BindSubject(7, 0, "token")

	// The subject comes from the backend's echoed row, not from a
	// previously listed collection.
	require.NoError(t, store.DeleteRight(context.Background(), KindMagasin, 5))
	assert.Equal(t, []int64{3}, inv.userIDs)
}

func TestSnapshotPairsCollectionsWithTheirVersion(t *testing.T) {
	api := newMockAPI()
	starts, expires := activeWindow(t)
	api.rights[KindMagasin] = []AccessRight{{ID: 1, UserID: 3, MagasinID: 10, StartsAt: starts, ExpiresAt: expires}}

	store := NewStore(api, nil, nil)
	store.Bind(3, "token")
	require.NoError(t, store.FetchMagasinRights(context.Background(), 3))

	collections, version := store.Snapshot()
	assert.Equal(t, store.Version(), version)
	assert.Equal(t, store.Rights(KindMagasin), collections[KindMagasin])

	// Later fetches must not reach back into an already taken snapshot.
	api.mu.Lock()
	api.rights[KindMagasin] = append(api.rights[KindMagasin],
		AccessRight{ID: 2, UserID: 3, MagasinID: 11, StartsAt: starts, ExpiresAt: expires})
	api.mu.Unlock()
	require.NoError(t, store.FetchMagasinRights(context.Background(), 3))

	assert.Len(t, collections[KindMagasin], 1)
	assert.Greater(t, store.Version(), version)
}

func TestCheckUserRightsFailsClosed(t *testing.T) {
	api := newMockAPI()
	api.checkErr = errors.New("backend unreachable")
	store := NewStore(api, nil, nil)
	store.Bind(7, "token")

	assert.False(t, store.CheckUserRights(context.Background(), 3, AccessQuery{MagasinID: 10}))

	api.mu.Lock()
	api.checkErr = nil
	api.checkAllowed = true
	api.mu.Unlock()
	assert.True(t, store.CheckUserRights(context.Background(), 3, AccessQuery{MagasinID: 10}))
}
