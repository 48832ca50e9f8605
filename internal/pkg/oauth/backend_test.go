package oauth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qs3c/regflow_go_server/config"
)

func TestNewHTTPClient(t *testing.T) {
	t.Run("plain client without credentials", func(t *testing.T) {
		var auth string
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			auth = r.Header.Get("Authorization")
		}))
		defer srv.Close()

		client := NewHTTPClient(context.Background(), config.BackendConfig{Timeout: 5 * time.Second})
		assert.Equal(t, 5*time.Second, client.Timeout)

		resp, err := client.Get(srv.URL)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Empty(t, auth)
	})

	t.Run("client credentials attach a bearer token", func(t *testing.T) {
		var tokenCalls atomic.Int32
		tokenSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenCalls.Add(1)
			require.NoError(t, r.ParseForm())
			assert.Equal(t, "client_credentials", r.PostForm.Get("grant_type"))
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"access_token":"tok-1","token_type":"Bearer","expires_in":3600}`))
		}))
		defer tokenSrv.Close()

		var auth string
		apiSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			auth = r.Header.Get("Authorization")
		}))
		defer apiSrv.Close()

		client := NewHTTPClient(context.Background(), config.BackendConfig{
			Timeout:      5 * time.Second,
			TokenURL:     tokenSrv.URL,
			ClientID:     "bff",
			ClientSecret: "secret",
		})

		for i := 0; i < 2; i++ {
			resp, err := client.Get(apiSrv.URL)
			require.NoError(t, err)
			resp.Body.Close()
		}
		assert.Equal(t, "Bearer tok-1", auth)
		assert.Equal(t, int32(1), tokenCalls.Load(), "token is cached until expiry")
	})
}
