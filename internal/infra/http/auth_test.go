package http

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAdminAuthMiddleware(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	cases := []struct {
		name   string
		token  string
		header string
		status int
	}{
		{name: "valid", token: "secret", header: "Bearer secret", status: http.StatusNoContent},
		{name: "wrong token", token: "secret", header: "Bearer nope", status: http.StatusUnauthorized},
		{name: "no scheme", token: "secret", header: "secret", status: http.StatusUnauthorized},
		{name: "missing", token: "secret", header: "", status: http.StatusUnauthorized},
		{name: "disabled", token: "", header: "Bearer ", status: http.StatusForbidden},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/admin", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rec := httptest.NewRecorder()
			AdminAuthMiddleware(tc.token)(ok).ServeHTTP(rec, req)
			require.Equal(t, tc.status, rec.Code)
		})
	}
}
