package httpclient

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"tg-downloader-bot/internal/infra/retry"
)

func testClient() *Client {
	return New(Config{
		Timeout: time.Second,
		Retry:   retry.Policy{MaxAttempts: 3, InitialDelay: time.Millisecond},
	}, zerolog.Nop())
}

func TestGetJSONSendsHeadersAndQuery(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, DefaultUserAgent, r.Header.Get("User-Agent"))
		require.Equal(t, "https://www.tiktok.com/@a/video/1", r.URL.Query().Get("url"))
		_, _ = w.Write([]byte(`{"title":"hi"}`))
	}))
	defer srv.Close()

	var out struct {
		Title string `json:"title"`
	}
	err := testClient().GetJSON(context.Background(), srv.URL, url.Values{"url": {"https://www.tiktok.com/@a/video/1"}}, &out)
	require.NoError(t, err)
	require.Equal(t, "hi", out.Title)
}

func TestGetJSONRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	var out map[string]any
	require.NoError(t, testClient().GetJSON(context.Background(), srv.URL, nil, &out))
	require.Equal(t, int32(3), calls.Load())
}

func TestGetJSONReturnsStatusErrorWhenExhausted(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "down", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	var out map[string]any
	err := testClient().GetJSON(context.Background(), srv.URL, nil, &out)
	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	require.Equal(t, http.StatusServiceUnavailable, statusErr.StatusCode)
	require.Equal(t, int32(3), calls.Load())
}
