package remote

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func identityServer(t *testing.T, hits *int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(hits, 1)
		assert.Equal(t, "secret", r.Header.Get("X-Api-Key"))

		var in struct {
			Token string `json:"token"`
		}
		_ = json.NewDecoder(r.Body).Decode(&in)
		switch in.Token {
		case "good":
			_ = json.NewEncoder(w).Encode(map[string]string{"user_id": " user-1 ", "email": "u@example.com"})
		case "empty":
			_ = json.NewEncoder(w).Encode(map[string]string{})
		case "boom":
			http.Error(w, "boom", http.StatusBadGateway)
		default:
			http.Error(w, "nope", http.StatusUnauthorized)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestVerifier_VerifiesAndCaches(t *testing.T) {
	var hits int32
	srv := identityServer(t, &hits)

	v, err := NewVerifier(Config{VerifyURL: srv.URL + "/verify", APIKey: "secret"})
	require.NoError(t, err)
	now := time.Date(2025, 12, 22, 10, 0, 0, 0, time.UTC)
	v.now = func() time.Time { return now }

	c, err := v.Verify(context.Background(), "good")
	require.NoError(t, err)
	assert.Equal(t, "user-1", c.UserID)
	assert.Equal(t, "u@example.com", c.Email)

	_, err = v.Verify(context.Background(), "good")
	require.NoError(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))

	now = now.Add(2 * time.Minute)
	_, err = v.Verify(context.Background(), "good")
	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&hits))
}

func TestVerifier_Errors(t *testing.T) {
	var hits int32
	srv := identityServer(t, &hits)
	v, err := NewVerifier(Config{VerifyURL: srv.URL, APIKey: "secret", CacheTTL: -1})
	require.NoError(t, err)

	_, err = v.Verify(context.Background(), "bad")
	assert.ErrorIs(t, err, ErrUnauthorized)

	_, err = v.Verify(context.Background(), "boom")
	assert.ErrorIs(t, err, ErrUpstream)

	_, err = v.Verify(context.Background(), "empty")
	assert.ErrorIs(t, err, ErrUpstream)

	_, err = v.Verify(context.Background(), "  ")
	assert.ErrorIs(t, err, ErrTokenEmpty)
}

func TestNewVerifier_NeedsURL(t *testing.T) {
	_, err := NewVerifier(Config{})
	assert.ErrorIs(t, err, ErrNotConfigured)
}
