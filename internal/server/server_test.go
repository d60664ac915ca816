// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 didpoop Contributors

package server_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/samber/oops"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/didpoop/didpoop/internal/auth"
	"github.com/didpoop/didpoop/internal/graph"
	"github.com/didpoop/didpoop/internal/model"
	"github.com/didpoop/didpoop/internal/server"
)

// stubStore backs the auth service and the resolvers with in-memory
// users and tokens. Relation methods return empty sets; the server
// tests exercise transport concerns, not resolution.
type stubStore struct {
	mu     sync.Mutex
	nextID int64
	users  map[int64]*model.User
	tokens map[string]*model.AuthToken
}

func newStubStore() *stubStore {
	return &stubStore{users: make(map[int64]*model.User), tokens: make(map[string]*model.AuthToken)}
}

func (s *stubStore) UsersByIDs(_ context.Context, ids []int64) ([]*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*model.User
	for _, id := range ids {
		if u, ok := s.users[id]; ok {
			out = append(out, u)
		}
	}
	return out, nil
}

func (s *stubStore) CreatureRelationsByUserIDs(context.Context, []int64) ([]*model.CreatureRelation, error) {
	return nil, nil
}

func (s *stubStore) CreatureRelationsByPairs(context.Context, []int64, []int64) ([]*model.CreatureRelation, error) {
	return nil, nil
}

func (s *stubStore) PoopsByCreatureIDs(context.Context, []int64) ([]*model.Poop, error) {
	return nil, nil
}

func (s *stubStore) CreateCreature(context.Context, int64, string) (*model.CreatureRelation, error) {
	return nil, oops.Code("INTERNAL").Errorf("not implemented")
}

func (s *stubStore) ShareCreature(context.Context, int64, int64, int64) (*model.CreatureRelation, error) {
	return nil, oops.Code("INTERNAL").Errorf("not implemented")
}

func (s *stubStore) SoftDeleteCreature(context.Context, int64) error {
	return oops.Code("INTERNAL").Errorf("not implemented")
}

func (s *stubStore) CreatePoop(context.Context, int64, int64) (*model.Poop, error) {
	return nil, oops.Code("INTERNAL").Errorf("not implemented")
}

func (s *stubStore) RecentPoopsForUser(context.Context, int64, int) ([]*model.Poop, error) {
	return nil, nil
}

func (s *stubStore) UserByEmail(ctx context.Context, email string) (*model.User, error) {
	return s.GetByEmail(ctx, email)
}

func (s *stubStore) Create(_ context.Context, email, name, saltHex, hashHex string) (*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	u := &model.User{
		ID: s.nextID, Email: email, Name: name,
		PasswordSalt: saltHex, PasswordHash: hashHex,
		Created: time.Now(), Modified: time.Now(),
	}
	s.users[u.ID] = u
	return u, nil
}

func (s *stubStore) GetByEmail(_ context.Context, email string) (*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, oops.Code("NOT_FOUND").Wrap(auth.ErrNotFound)
}

func (s *stubStore) GetByIDs(ctx context.Context, ids []int64) ([]*model.User, error) {
	return s.UsersByIDs(ctx, ids)
}

type tokenRepo struct{ *stubStore }

func (t tokenRepo) Create(_ context.Context, userID int64, hash string, expires time.Time) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.tokens[hash] = &model.AuthToken{UserID: userID, Hash: hash, Expires: expires}
	return nil
}

func (t tokenRepo) GetUserByTokenHash(_ context.Context, hash string) (*model.User, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	tok, ok := t.tokens[hash]
	if !ok || tok.Expired(time.Now()) {
		return nil, oops.Code("NOT_FOUND").Wrap(auth.ErrNotFound)
	}
	u, ok := t.users[tok.UserID]
	if !ok {
		return nil, oops.Code("NOT_FOUND").Wrap(auth.ErrNotFound)
	}
	return u, nil
}

func newTestServer() (*server.Server, *stubStore) {
	store := newStubStore()
	cookie := auth.CookieSettings{Name: "poop_auth", Domain: "localhost", MaxAgeSec: 3600}
	svc := auth.NewService(store, tokenRepo{store}, []byte("01234567890123456789012345678901"), time.Hour, cookie)

	srv := server.New(server.Options{
		Addr:       "127.0.0.1:0",
		Version:    "test-1",
		CookieName: "poop_auth",
		Auth:       svc,
		Store:      store,
		Executor:   graph.NewExecutor(graph.NewResolver(svc, store)),
		Logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	return srv, store
}

func postGraphQL(t *testing.T, h http.Handler, body string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/graphql", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for _, c := range cookies {
		req.AddCookie(c)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decodeResponse(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestStatus(t *testing.T) {
	srv, _ := newTestServer()
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/status", nil))

	require.Equal(t, http.StatusOK, w.Code)
	body := decodeResponse(t, w)
	assert.Equal(t, "test-1", body["version"])
	assert.Equal(t, "ok", body["ok"])
}

func TestIndex(t *testing.T) {
	srv, _ := newTestServer()
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "hello", w.Body.String())
}

func TestRequestIDHeader(t *testing.T) {
	srv, _ := newTestServer()
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/status", nil))

	assert.Len(t, w.Header().Get("X-Request-Id"), 26, "expected a ULID request id")
}

func TestGraphQL_MethodNotAllowed(t *testing.T) {
	srv, _ := newTestServer()
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/graphql", nil))

	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestGraphQL_InvalidBody(t *testing.T) {
	srv, _ := newTestServer()
	w := postGraphQL(t, srv.Handler(), `{not json`)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGraphQL_AnonymousGuardedQuery(t *testing.T) {
	srv, _ := newTestServer()
	w := postGraphQL(t, srv.Handler(), `{"query": "{ user { id } }"}`)

	require.Equal(t, http.StatusOK, w.Code, "GraphQL errors ride a 200 response")
	body := decodeResponse(t, w)
	errs := body["errors"].([]any)
	require.NotEmpty(t, errs)
	ext := errs[0].(map[string]any)["extensions"].(map[string]any)
	assert.Equal(t, float64(401), ext["code"])
}

func TestGraphQL_SignUpThenAuthenticatedQuery(t *testing.T) {
	srv, _ := newTestServer()
	h := srv.Handler()

	w := postGraphQL(t, h, `{"query": "mutation { signUp(email: \"e@example.com\", name: \"E\", pw: \"pw123456\") { id email } }"}`)
	require.Equal(t, http.StatusOK, w.Code)

	body := decodeResponse(t, w)
	require.Nil(t, body["errors"], "sign up should succeed: %s", w.Body.String())

	setCookie := w.Header().Get("Set-Cookie")
	require.True(t, strings.HasPrefix(setCookie, "poop_auth="), "missing session cookie: %q", setCookie)
	assert.Contains(t, setCookie, "HttpOnly")
	assert.Contains(t, setCookie, "SameSite=Lax")

	token := strings.TrimPrefix(strings.SplitN(setCookie, ";", 2)[0], "poop_auth=")

	w = postGraphQL(t, h, `{"query": "{ user { email name } }"}`, &http.Cookie{Name: "poop_auth", Value: token})
	require.Equal(t, http.StatusOK, w.Code)

	body = decodeResponse(t, w)
	require.Nil(t, body["errors"], "authenticated query should succeed: %s", w.Body.String())
	user := body["data"].(map[string]any)["user"].(map[string]any)
	assert.Equal(t, "e@example.com", user["email"])
	assert.Equal(t, "E", user["name"])
}

func TestGraphQL_LogoutMarkerCookieIsAnonymous(t *testing.T) {
	srv, _ := newTestServer()
	h := srv.Handler()

	w := postGraphQL(t, h, `{"query": "mutation { logout }"}`)
	require.Equal(t, http.StatusOK, w.Code)

	setCookie := w.Header().Get("Set-Cookie")
	require.True(t, strings.HasPrefix(setCookie, "poop_auth=xx"), "expected logout marker: %q", setCookie)

	marker := strings.TrimPrefix(strings.SplitN(setCookie, ";", 2)[0], "poop_auth=")
	w = postGraphQL(t, h, `{"query": "{ user { id } }"}`, &http.Cookie{Name: "poop_auth", Value: marker})

	body := decodeResponse(t, w)
	errs := body["errors"].([]any)
	require.NotEmpty(t, errs, "logout marker must not authenticate")
	ext := errs[0].(map[string]any)["extensions"].(map[string]any)
	assert.Equal(t, float64(401), ext["code"])
}

func TestServer_StartStop(t *testing.T) {
	srv, _ := newTestServer()

	errCh, err := srv.Start()
	require.NoError(t, err)
	require.NotEmpty(t, srv.Addr())

	resp, err := http.Get("http://" + srv.Addr() + "/status")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, srv.Stop(ctx))

	_, open := <-errCh
	assert.False(t, open, "error channel should close on graceful stop")
}
