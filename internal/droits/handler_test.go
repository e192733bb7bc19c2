package droits

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mohamdabidi2/geox-sub001/internal/shared"
)

func handlerFixture(t *testing.T, api *mockAPI) http.Handler {
	t.Helper()
	handler := NewHandler(nil, NewManager(api, nil, nil, nil))
	r := chi.NewRouter()
	r.Route("/droits", handler.MountRoutes)
	return r
}

func doJSON(t *testing.T, h http.Handler, method, path string, user *shared.UserProfile, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	sess := &shared.Session{}
	if user != nil {
		sess.SetUser(*user, "token")
	}
	req = req.WithContext(shared.ContextWithSession(context.Background(), sess))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestHandlerRequiresSessionUser(t *testing.T) {
	h := handlerFixture(t, newMockAPI())
	rr := doJSON(t, h, http.MethodGet, "/droits/magasin/user/3", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestHandlerRejectsUnknownKind(t *testing.T) {
	h := handlerFixture(t, newMockAPI())
	actor := &shared.UserProfile{ID: 7}
	rr := doJSON(t, h, http.MethodGet, "/droits/warehouse/user/3", actor, nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestHandlerListMarksActiveRights(t *testing.T) {
	api := newMockAPI()
	now := time.Now()
	api.rights[KindMagasin] = []AccessRight{
		{ID: 1, UserID: 3, MagasinID: 10, StartsAt: now.Add(-time.Hour), ExpiresAt: now.Add(time.Hour)},
		{ID: 2, UserID: 3, MagasinID: 11, StartsAt: now.Add(-2 * time.Hour), ExpiresAt: now.Add(-time.Hour)},
	}
	h := handlerFixture(t, api)
	actor := &shared.UserProfile{ID: 7}

	rr := doJSON(t, h, http.MethodGet, "/droits/magasin/user/3", actor, nil)
	require.Equal(t, http.StatusOK, rr.Code)

	var views []struct {
		ID     int64 `json:"id"`
		Active bool  `json:"active"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &views))
	require.Len(t, views, 2)
	assert.True(t, views[0].Active)
	assert.False(t, views[1].Active)
}

func TestHandlerListActiveFiltersExpired(t *testing.T) {
	api := newMockAPI()
	now := time.Now()
	api.rights[KindMagasin] = []AccessRight{
		{ID: 1, UserID: 3, MagasinID: 10, StartsAt: now.Add(-time.Hour), ExpiresAt: now.Add(time.Hour)},
		{ID: 2, UserID: 3, MagasinID: 11, StartsAt: now.Add(-2 * time.Hour), ExpiresAt: now.Add(-time.Hour)},
	}
	h := handlerFixture(t, api)
	actor := &shared.UserProfile{ID: 7}

	rr := doJSON(t, h, http.MethodGet, "/droits/magasin/user/3/active", actor, nil)
	require.Equal(t, http.StatusOK, rr.Code)

	var views []struct {
		ID int64 `json:"id"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &views))
	require.Len(t, views, 1)
	assert.Equal(t, int64(1), views[0].ID)
}

func TestHandlerListAllReportsPartialFailure(t *testing.T) {
	api := newMockAPI()
	now := time.Now()
	api.rights[KindMagasin] = []AccessRight{
		{ID: 1, UserID: 3, MagasinID: 10, StartsAt: now.Add(-time.Hour), ExpiresAt: now.Add(time.Hour)},
	}
	api.allErr = errors.New("combined endpoint gone")
	api.listErr[KindClient] = errors.New("client fetch failed")

	h := handlerFixture(t, api)
	actor := &shared.UserProfile{ID: 7}

	rr := doJSON(t, h, http.MethodGet, "/droits/user/3/all", actor, nil)
	require.Equal(t, http.StatusOK, rr.Code)

	var payload struct {
		Magasins    []json.RawMessage `json:"magasins"`
		Partial     bool              `json:"partial"`
		FailedKinds []string          `json:"failed_kinds"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &payload))
	assert.Len(t, payload.Magasins, 1)
	assert.True(t, payload.Partial)
	assert.Equal(t, []string{"client"}, payload.FailedKinds)
}

func TestHandlerCreateRejectsResourceKindMismatch(t *testing.T) {
	h := handlerFixture(t, newMockAPI())
	actor := &shared.UserProfile{ID: 7}
	now := time.Now()

	body := CreateInput{
		UserID:    3,
		ClientID:  30, // client id on a magasin right
		StartsAt:  now,
		ExpiresAt: now.Add(time.Hour),
	}
	rr := doJSON(t, h, http.MethodPost, "/droits/magasin", actor, body)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestHandlerCreateRejectsInvertedWindow(t *testing.T) {
	h := handlerFixture(t, newMockAPI())
	actor := &shared.UserProfile{ID: 7}
	now := time.Now()

	body := CreateInput{
		UserID:    3,
		MagasinID: 10,
		StartsAt:  now,
		ExpiresAt: now.Add(-time.Hour),
	}
	rr := doJSON(t, h, http.MethodPost, "/droits/magasin", actor, body)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestHandlerCreateStampsActingResponsible(t *testing.T) {
	api := newMockAPI()
	h := handlerFixture(t, api)
	actor := &shared.UserProfile{ID: 7}
	now := time.Now().Truncate(time.Second)

	body := CreateInput{
		UserID:            3,
		MagasinID:         10,
		StartsAt:          now.Add(-time.Hour),
		ExpiresAt:         now.Add(time.Hour),
		ResponsibleUserID: 99,
	}
	rr := doJSON(t, h, http.MethodPost, "/droits/magasin", actor, body)
	require.Equal(t, http.StatusCreated, rr.Code)

	var created rightView
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &created))
	assert.Equal(t, int64(7), created.ResponsibleUserID)
	assert.True(t, created.Active)
}

func TestHandlerSubjectViewKeepsActorAccess(t *testing.T) {
	api := newMockAPI()
	starts, expires := activeWindow(t)
	api.grant(3, KindMagasin, magasinRight(1, 3, 10, starts, expires))

	manager := NewManager(api, nil, nil, nil)
	handler := NewHandler(nil, manager)
	gate := Gate{Manager: manager}
	r := chi.NewRouter()
	r.Route("/droits", func(r chi.Router) {
		r.Use(gate.Require(DefaultGateConfig()))
		handler.MountRoutes(r)
	})
	actor := &shared.UserProfile{ID: 3, MagasinID: 10}

	rr := doJSON(t, r, http.MethodGet, "/droits/magasin/user/3", actor, nil)
	require.Equal(t, http.StatusOK, rr.Code)

	// Viewing a user with no rights at all.
	rr = doJSON(t, r, http.MethodGet, "/droits/magasin/user/42", actor, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var views []rightView
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &views))
	assert.Empty(t, views)

	rr = doJSON(t, r, http.MethodGet, "/droits/magasin/user/3", actor, nil)
	assert.Equal(t, http.StatusOK, rr.Code,
		"actor access must survive viewing another user's rights")
}

func TestHandlerCheckAccess(t *testing.T) {
	api := newMockAPI()
	api.checkAllowed = true
	h := handlerFixture(t, api)
	actor := &shared.UserProfile{ID: 7}

	rr := doJSON(t, h, http.MethodGet, "/droits/check/3?magasinid=10", actor, nil)
	require.Equal(t, http.StatusOK, rr.Code)

	var result map[string]bool
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &result))
	assert.True(t, result["allowed"])
}
