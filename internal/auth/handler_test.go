package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mohamdabidi2/geox-sub001/internal/shared"
)

type stubAuthenticator struct {
	result LoginResult
	err    error

	gotEmail    string
	gotPassword string
}

func (s *stubAuthenticator) Authenticate(ctx context.Context, email, password string) (LoginResult, error) {
	s.gotEmail = email
	s.gotPassword = password
	if s.err != nil {
		return LoginResult{}, s.err
	}
	return s.result, nil
}

func authFixture(t *testing.T, service Authenticator) (http.Handler, *shared.SessionManager) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	sessions := shared.NewSessionManager(client, "geox_session", "secret", time.Hour, false)
	handler := NewHandler(nil, service, sessions, shared.NewCSRFManager("csrf-secret"))

	r := chi.NewRouter()
	r.Route("/auth", handler.MountRoutes)
	return r, sessions
}

func sessionRequest(method, path string, body any) *http.Request {
	var reader *bytes.Reader
	if body != nil {
		data, _ := json.Marshal(body)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	sess := &shared.Session{}
	return req.WithContext(shared.ContextWithSession(context.Background(), sess))
}

func TestLoginStoresUserAndToken(t *testing.T) {
	service := &stubAuthenticator{result: LoginResult{
		Token: "bearer-token",
		User:  shared.UserProfile{ID: 3, Name: "Amine", Email: "amine@geox.fr", MagasinID: 10},
	}}
	h, _ := authFixture(t, service)

	req := httptest.NewRequest(http.MethodPost, "/auth/login", bytes.NewReader(mustJSON(t, map[string]string{
		"email":    "amine@geox.fr",
		"password": "s3cret-pass",
	})))
	sess := &shared.Session{}
	req = req.WithContext(shared.ContextWithSession(context.Background(), sess))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "amine@geox.fr", service.gotEmail)
	require.NotNil(t, sess.User())
	assert.Equal(t, int64(3), sess.User().ID)
	assert.Equal(t, "bearer-token", sess.Token())
}

func TestLoginRejectsInvalidCredentials(t *testing.T) {
	service := &stubAuthenticator{err: shared.ErrInvalidCredentials}
	h, _ := authFixture(t, service)

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, sessionRequest(http.MethodPost, "/auth/login", map[string]string{
		"email":    "amine@geox.fr",
		"password": "wrong-pass-1",
	}))
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestLoginReportsBackendOutage(t *testing.T) {
	service := &stubAuthenticator{err: errors.New("connection refused")}
	h, _ := authFixture(t, service)

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, sessionRequest(http.MethodPost, "/auth/login", map[string]string{
		"email":    "amine@geox.fr",
		"password": "s3cret-pass",
	}))
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
}

func TestLoginValidatesForm(t *testing.T) {
	h, _ := authFixture(t, &stubAuthenticator{})

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, sessionRequest(http.MethodPost, "/auth/login", map[string]string{
		"email":    "not-an-email",
		"password": "short",
	}))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestMeRequiresAuthentication(t *testing.T) {
	h, _ := authFixture(t, &stubAuthenticator{})

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, sessionRequest(http.MethodGet, "/auth/me", nil))
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestMeReturnsSessionUser(t *testing.T) {
	h, _ := authFixture(t, &stubAuthenticator{})

	req := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
	sess := &shared.Session{}
	sess.SetUser(shared.UserProfile{ID: 3, Name: "Amine"}, "token")
	req = req.WithContext(shared.ContextWithSession(context.Background(), sess))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)

	var payload struct {
		User shared.UserProfile `json:"user"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &payload))
	assert.Equal(t, "Amine", payload.User.Name)
}

func TestCSRFTokenIsStableForSession(t *testing.T) {
	h, _ := authFixture(t, &stubAuthenticator{})

	sess := &shared.Session{ID: "sess-1"}
	request := func() string {
		req := httptest.NewRequest(http.MethodGet, "/auth/csrf", nil)
		req = req.WithContext(shared.ContextWithSession(context.Background(), sess))
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		require.Equal(t, http.StatusOK, rr.Code)
		var payload map[string]string
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &payload))
		return payload["csrf_token"]
	}

	first := request()
	require.NotEmpty(t, first)
	assert.Equal(t, first, request())
}

func mustJSON(t *testing.T, v any) []byte {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return data
}
