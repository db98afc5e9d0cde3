package admin

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	chi "github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"tg-downloader-bot/internal/adapters/repo"
	"tg-downloader-bot/internal/domain"
	"tg-downloader-bot/internal/usecase/subscription"
)

const token = "secret"

type memStore struct {
	*repo.Memory
}

func (s memStore) Load(ctx context.Context, id int64) (domain.User, error) {
	return s.FindByTGID(ctx, id)
}

func newServer(t *testing.T) *httptest.Server {
	t.Helper()
	mem := repo.NewMemory()
	_, err := mem.Create(context.Background(), 42, "alice")
	require.NoError(t, err)
	subs := subscription.NewService(memStore{mem}, zerolog.Nop())

	r := chi.NewRouter()
	NewHandler(subs, zerolog.Nop()).Mount(r, token)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func do(t *testing.T, srv *httptest.Server, method, path, body string, auth bool) (*http.Response, SubscriptionResponse) {
	t.Helper()
	req, err := http.NewRequest(method, srv.URL+path, strings.NewReader(body))
	require.NoError(t, err)
	if auth {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	var out SubscriptionResponse
	if resp.StatusCode == http.StatusOK {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	}
	return resp, out
}

func TestGrantDetailsRevoke(t *testing.T) {
	srv := newServer(t)

	resp, out := do(t, srv, http.MethodPost, "/api/v1/subscriptions/", `{"user_id":42,"plan":"monthly"}`, true)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.True(t, out.Active)
	require.Equal(t, "premium", out.Tier)
	require.Equal(t, 30, out.DaysRemaining)

	resp, out = do(t, srv, http.MethodGet, "/api/v1/subscriptions/42", "", true)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.True(t, out.Active)
	require.Equal(t, "monthly", out.Plan)

	resp, out = do(t, srv, http.MethodDelete, "/api/v1/subscriptions/42", "", true)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.False(t, out.Active)
	require.Equal(t, "normal", out.Tier)

	resp, out = do(t, srv, http.MethodGet, "/api/v1/subscriptions/42", "", true)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.False(t, out.Active)
}

func TestGrantErrors(t *testing.T) {
	srv := newServer(t)
	tests := []struct {
		name   string
		body   string
		status int
	}{
		{name: "bad json", body: `{`, status: http.StatusBadRequest},
		{name: "missing user", body: `{"plan":"monthly"}`, status: http.StatusBadRequest},
		{name: "unknown plan", body: `{"user_id":42,"plan":"weekly"}`, status: http.StatusBadRequest},
		{name: "unknown user", body: `{"user_id":7,"plan":"yearly"}`, status: http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, _ := do(t, srv, http.MethodPost, "/api/v1/subscriptions/", tt.body, true)
			require.Equal(t, tt.status, resp.StatusCode)
		})
	}
}

func TestRequiresToken(t *testing.T) {
	srv := newServer(t)
	resp, _ := do(t, srv, http.MethodGet, "/api/v1/subscriptions/42", "", false)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, _ = do(t, srv, http.MethodGet, "/api/v1/subscriptions/abc", "", true)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
