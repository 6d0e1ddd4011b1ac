package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestRequestIDMiddleware(t *testing.T) {
	newServer := func(t *testing.T, seen *string) *httptest.Server {
		t.Helper()

		h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, ok := RequestIDFromContext(r.Context())
			require.True(t, ok, "request id should be in context")
			*seen = id
		})

		srv := httptest.NewServer(RequestIDMiddleware()(h))
		t.Cleanup(srv.Close)
		return srv
	}

	t.Run("generates id", func(t *testing.T) {
		var seen string
		srv := newServer(t, &seen)

		resp, err := http.Get(srv.URL + "/test")
		require.NoError(t, err)
		defer resp.Body.Close() // nolint:errcheck

		require.Equal(t, seen, resp.Header.Get(RequestIDHeader), "response header should carry the same id")

		_, err = uuid.Parse(seen)
		require.NoError(t, err, "generated id should be a valid uuid")
	})

	t.Run("reuses client id", func(t *testing.T) {
		var seen string
		srv := newServer(t, &seen)

		req, err := http.NewRequest(http.MethodGet, srv.URL+"/test", nil)
		require.NoError(t, err)
		req.Header.Set(RequestIDHeader, "client-chosen-id")

		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		defer resp.Body.Close() // nolint:errcheck

		require.Equal(t, "client-chosen-id", seen)
		require.Equal(t, "client-chosen-id", resp.Header.Get(RequestIDHeader))
	})
}
