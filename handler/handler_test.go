package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/planmeter/planmeter/handler"
	"github.com/planmeter/planmeter/store"
	"github.com/planmeter/planmeter/store/memory"
	"github.com/planmeter/planmeter/svc/auth"
	"github.com/planmeter/planmeter/svc/catalog"
	"github.com/planmeter/planmeter/svc/subscription"
	"github.com/planmeter/planmeter/svc/usage"
)

type testAPI struct {
	srv   *httptest.Server
	auth  *auth.Service
	store *memory.Store
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	st := memory.New()
	authSvc, err := auth.NewService(auth.Config{
		SecretKey:       "test-secret-key-at-least-32-bytes!!",
		AccessTokenTTL:  15 * time.Minute,
		RefreshTokenTTL: 24 * time.Hour,
		BcryptCost:      bcrypt.MinCost,
	}, st, auth.NewMemoryTokenStore(), nil)
	require.NoError(t, err)

	h := handler.New(
		authSvc,
		catalog.NewService(st, nil),
		subscription.NewService(st, nil),
		usage.NewService(st, nil),
		nil,
	)
	srv := httptest.NewServer(h.Routes())
	t.Cleanup(srv.Close)

	return &testAPI{srv: srv, auth: authSvc, store: st}
}

// token provisions a user with the role and returns a bearer access token.
func (a *testAPI) token(t *testing.T, username string, role store.Role) string {
	t.Helper()
	_, err := a.auth.CreateUser(context.Background(), username, "s3cret-pass", role)
	require.NoError(t, err)
	pair, err := a.auth.Login(context.Background(), username, "s3cret-pass")
	require.NoError(t, err)
	return pair.AccessToken
}

func (a *testAPI) request(t *testing.T, method, path, token string, body any) *http.Response {
	t.Helper()
	var buf io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		buf = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, a.srv.URL+path, buf)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := a.srv.Client().Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func decodeBody[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func TestHealthz(t *testing.T) {
	t.Parallel()

	api := newTestAPI(t)
	resp := api.request(t, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
}

func TestTokenEndpoint(t *testing.T) {
	t.Parallel()

	api := newTestAPI(t)
	_, err := api.auth.CreateUser(context.Background(), "alice", "s3cret-pass", store.RoleUser)
	require.NoError(t, err)

	t.Run("valid credentials", func(t *testing.T) {
		resp := api.request(t, http.MethodPost, "/token", "", map[string]string{
			"username": "alice",
			"password": "s3cret-pass",
		})
		require.Equal(t, http.StatusOK, resp.StatusCode)
		pair := decodeBody[map[string]string](t, resp)
		assert.NotEmpty(t, pair["access_token"])
		assert.NotEmpty(t, pair["refresh_token"])
	})

	t.Run("wrong password", func(t *testing.T) {
		resp := api.request(t, http.MethodPost, "/token", "", map[string]string{
			"username": "alice",
			"password": "wrong",
		})
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("missing fields", func(t *testing.T) {
		resp := api.request(t, http.MethodPost, "/token", "", map[string]string{})
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
}

func TestAdminGating(t *testing.T) {
	t.Parallel()

	api := newTestAPI(t)
	userToken := api.token(t, "alice", store.RoleUser)

	t.Run("no token", func(t *testing.T) {
		resp := api.request(t, http.MethodGet, "/permissions", "", nil)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("user role rejected", func(t *testing.T) {
		resp := api.request(t, http.MethodGet, "/permissions", userToken, nil)
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	})
}

func TestCatalogEndpoints(t *testing.T) {
	t.Parallel()

	api := newTestAPI(t)
	admin := api.token(t, "root", store.RoleAdmin)

	resp := api.request(t, http.MethodPost, "/permissions", admin, map[string]string{
		"name":     "Random One",
		"endpoint": "random1",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	perm := decodeBody[store.Permission](t, resp)
	require.NotEmpty(t, perm.ID)

	t.Run("duplicate endpoint conflicts", func(t *testing.T) {
		resp := api.request(t, http.MethodPost, "/permissions", admin, map[string]string{
			"name":     "Again",
			"endpoint": "random1",
		})
		assert.Equal(t, http.StatusConflict, resp.StatusCode)
	})

	t.Run("unknown endpoint rejected", func(t *testing.T) {
		resp := api.request(t, http.MethodPost, "/permissions", admin, map[string]string{
			"name":     "Bogus",
			"endpoint": "random99",
		})
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	resp = api.request(t, http.MethodPost, "/plans", admin, map[string]any{
		"name":     "starter",
		"apilimit": map[string]int64{perm.ID: 5},
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	plan := decodeBody[store.Plan](t, resp)

	t.Run("referenced permission cannot be deleted", func(t *testing.T) {
		resp := api.request(t, http.MethodDelete, "/permissions/"+perm.ID, admin, nil)
		assert.Equal(t, http.StatusConflict, resp.StatusCode)
	})

	t.Run("missing plan is 404", func(t *testing.T) {
		resp := api.request(t, http.MethodGet, "/plans/"+store.NewID(), admin, nil)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})

	t.Run("plan fetch round trips", func(t *testing.T) {
		resp := api.request(t, http.MethodGet, "/plans/"+plan.ID, admin, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		got := decodeBody[store.Plan](t, resp)
		assert.Equal(t, plan.ID, got.ID)
		assert.Equal(t, int64(5), got.APILimit[perm.ID])
	})
}

// TestMeteredFlow drives the full user journey over HTTP: admin builds the
// catalog, the user subscribes and calls a metered endpoint until the quota
// runs out.
func TestMeteredFlow(t *testing.T) {
	t.Parallel()

	api := newTestAPI(t)
	admin := api.token(t, "root", store.RoleAdmin)
	user := api.token(t, "alice", store.RoleUser)

	resp := api.request(t, http.MethodPost, "/permissions", admin, map[string]string{
		"name":     "Random One",
		"endpoint": "random1",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	perm := decodeBody[store.Permission](t, resp)

	resp = api.request(t, http.MethodPost, "/plans", admin, map[string]any{
		"name":     "starter",
		"apilimit": map[string]int64{perm.ID: 2},
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	plan := decodeBody[store.Plan](t, resp)

	t.Run("metered call before subscribing", func(t *testing.T) {
		resp := api.request(t, http.MethodGet, "/random1", user, nil)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	resp = api.request(t, http.MethodPost, "/subscriptions/"+plan.ID, user, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	t.Run("quota admits then rejects", func(t *testing.T) {
		for i := range 2 {
			resp := api.request(t, http.MethodGet, "/random1", user, nil)
			assert.Equal(t, http.StatusOK, resp.StatusCode, fmt.Sprintf("call %d", i+1))
		}
		resp := api.request(t, http.MethodGet, "/random1", user, nil)
		assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	})

	t.Run("usage view reflects the burn", func(t *testing.T) {
		resp := api.request(t, http.MethodGet, "/me/usage", user, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		stats := decodeBody[subscription.UsageStats](t, resp)
		require.Len(t, stats.Entries, 1)
		assert.Equal(t, int64(2), stats.Entries[0].Used)
		assert.Equal(t, int64(2), stats.Entries[0].Limit)
	})

	t.Run("plan view names the subscription", func(t *testing.T) {
		resp := api.request(t, http.MethodGet, "/me/plan", user, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		details := decodeBody[subscription.PlanDetails](t, resp)
		assert.Equal(t, plan.ID, details.PlanID)
		assert.Equal(t, "starter", details.PlanName)
	})

	t.Run("admins cannot hit metered endpoints", func(t *testing.T) {
		resp := api.request(t, http.MethodGet, "/random1", admin, nil)
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	})
}

func TestChangeUserPlanEndpoint(t *testing.T) {
	t.Parallel()

	api := newTestAPI(t)
	admin := api.token(t, "root", store.RoleAdmin)
	user := api.token(t, "alice", store.RoleUser)

	resp := api.request(t, http.MethodPost, "/permissions", admin, map[string]string{
		"name":     "Random One",
		"endpoint": "random1",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	perm := decodeBody[store.Permission](t, resp)

	resp = api.request(t, http.MethodPost, "/plans", admin, map[string]any{
		"name":     "starter",
		"apilimit": map[string]int64{perm.ID: 5},
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	plan := decodeBody[store.Plan](t, resp)

	resp = api.request(t, http.MethodPost, "/subscriptions/"+plan.ID, user, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	subscribed := decodeBody[store.User](t, resp)

	t.Run("counter correction on the same plan", func(t *testing.T) {
		resp := api.request(t, http.MethodPut, "/users/"+subscribed.ID+"/plan", admin, map[string]any{
			"plan_id":        plan.ID,
			"proposed_usage": map[string]int64{perm.ID: 3},
		})
		require.Equal(t, http.StatusOK, resp.StatusCode)
		updated := decodeBody[store.User](t, resp)
		assert.Equal(t, int64(3), updated.CurrentAPIUsage[perm.ID])
	})

	t.Run("key-set mismatch is a bad request", func(t *testing.T) {
		resp := api.request(t, http.MethodPut, "/users/"+subscribed.ID+"/plan", admin, map[string]any{
			"plan_id":        plan.ID,
			"proposed_usage": map[string]int64{store.NewID(): 1},
		})
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
}

func TestCreateUserEndpoint(t *testing.T) {
	t.Parallel()

	api := newTestAPI(t)
	admin := api.token(t, "root", store.RoleAdmin)

	resp := api.request(t, http.MethodPost, "/users", admin, map[string]string{
		"username": "newbie",
		"password": "s3cret-pass",
		"role":     "user",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	created := decodeBody[map[string]any](t, resp)
	assert.Equal(t, "newbie", created["username"])
	assert.NotContains(t, created, "password")

	t.Run("bad role rejected by validation", func(t *testing.T) {
		resp := api.request(t, http.MethodPost, "/users", admin, map[string]string{
			"username": "another",
			"password": "s3cret-pass",
			"role":     "superuser",
		})
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
}
