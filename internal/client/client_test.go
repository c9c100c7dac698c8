package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"media-access/internal/domain/accessgrants"
	"media-access/internal/domain/shares"
	"media-access/internal/gallery"

	backoff "github.com/cenkalti/backoff/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// hitServer cuenta requests y responde con fn.
func hitServer(t *testing.T, fn http.HandlerFunc) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var hits atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		fn(w, r)
	}))
	t.Cleanup(ts.Close)
	return ts, &hits
}

func newTestClient(t *testing.T, baseURL string) *Client {
	t.Helper()
	c, err := New(Config{
		BaseURL:     baseURL,
		DebugUserID: "viewer-1",
		Timeout:     2 * time.Second,
		Backoff: func() backoff.BackOff {
			return backoff.WithMaxRetries(backoff.NewConstantBackOff(time.Millisecond), 4)
		},
	})
	require.NoError(t, err)
	return c
}

func items(n int, kind string) []ShareItem {
	out := make([]ShareItem, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, ShareItem{MediaID: fmt.Sprintf("%s-%d", kind, i), Kind: kind})
	}
	return out
}

func TestCreateDirectShare_CapsCheckedBeforeNetwork(t *testing.T) {
	ts, hits := hitServer(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusCreated)
	})
	c := newTestClient(t, ts.URL)

	cases := []struct {
		name  string
		items []ShareItem
		want  error
	}{
		{"thirteen photos", items(13, "photo"), shares.ErrTooManyPhotos},
		{"four videos", items(4, "video"), shares.ErrTooManyVideos},
		{"empty", nil, shares.ErrEmptyShare},
		{"duplicate", append(items(1, "photo"), items(1, "photo")...), shares.ErrDuplicateItem},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := c.CreateDirectShare(context.Background(), DirectShareInput{
				TargetID: "target-1",
				Duration: accessgrants.Duration1h,
				Items:    tc.items,
			})
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrValidation)
			assert.ErrorIs(t, err, tc.want)
		})
	}
	assert.Equal(t, int32(0), hits.Load(), "cap violations must not reach the server")
}

func TestCreateDirectShare_AtCapsCallsServer(t *testing.T) {
	ts, hits := hitServer(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id":"s-1","kind":"private_album","sender_id":"viewer-1","target_id":"target-1","scope":"all","duration":"1h"}`))
	})
	c := newTestClient(t, ts.URL)

	sh, err := c.CreateDirectShare(context.Background(), DirectShareInput{
		TargetID: "target-1",
		Duration: accessgrants.Duration1h,
		Items:    append(items(12, "photo"), items(3, "video")...),
	})
	require.NoError(t, err)
	assert.Equal(t, "s-1", sh.ID)
	assert.Equal(t, int32(1), hits.Load())
}

func TestRead_RetriesTransientFailures(t *testing.T) {
	ts, hits := hitServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Debug-User-ID") != "viewer-1" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[]`))
	})
	c := newTestClient(t, ts.URL)

	// identidad por header en modo dev
	_, err := c.ListActiveGrants(context.Background())
	require.NoError(t, err)
	require.Equal(t, int32(1), hits.Load())

	var calls atomic.Int32
	flaky := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) <= 2 {
			http.Error(w, "store unavailable", http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"id":"g-1","viewer_id":"viewer-1","owner_id":"owner-1","scope":"all","expires_at":null}]`))
	}))
	defer flaky.Close()

	c = newTestClient(t, flaky.URL)
	grants, err := c.ListActiveGrants(context.Background())
	require.NoError(t, err)
	require.Len(t, grants, 1)
	assert.Equal(t, "g-1", grants[0].ID)
	assert.Nil(t, grants[0].ExpiresAt)
	assert.Equal(t, int32(3), calls.Load())
}

func TestRead_DoesNotRetryClientErrors(t *testing.T) {
	ts, hits := hitServer(t, func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "forbidden", http.StatusForbidden)
	})
	c := newTestClient(t, ts.URL)

	_, err := c.GetShare(context.Background(), "s-1")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrPermissionDenied)
	assert.Equal(t, int32(1), hits.Load())
}

func TestWrite_NeverRetries(t *testing.T) {
	ts, hits := hitServer(t, func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "internal error", http.StatusInternalServerError)
	})
	c := newTestClient(t, ts.URL)

	_, _, err := c.ApproveRequest(context.Background(), "r-1")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTransient)
	assert.Equal(t, int32(1), hits.Load())

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusInternalServerError, apiErr.Status)
	assert.Equal(t, "approve request", apiErr.Op)
}

func TestErrorMapping(t *testing.T) {
	cases := map[int]error{
		http.StatusBadRequest:          ErrValidation,
		http.StatusUnauthorized:        ErrUnauthorized,
		http.StatusForbidden:           ErrPermissionDenied,
		http.StatusNotFound:            ErrNotFound,
		http.StatusConflict:            ErrConflict,
		http.StatusTooManyRequests:     ErrRateLimited,
		http.StatusServiceUnavailable:  ErrTransient,
		http.StatusInternalServerError: ErrTransient,
	}
	for status, want := range cases {
		t.Run(http.StatusText(status), func(t *testing.T) {
			ts, _ := hitServer(t, func(w http.ResponseWriter, _ *http.Request) {
				http.Error(w, "nope", status)
			})
			c := newTestClient(t, ts.URL)

			_, err := c.CancelRequest(context.Background(), "r-1")
			assert.ErrorIs(t, err, want)
		})
	}
}

func TestCreateRequest_ValidatesLocally(t *testing.T) {
	ts, hits := hitServer(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusCreated)
	})
	c := newTestClient(t, ts.URL)

	_, err := c.CreateRequest(context.Background(), "owner-1", "2h", accessgrants.ScopeAll, "")
	assert.ErrorIs(t, err, ErrValidation)
	_, err = c.CreateRequest(context.Background(), "owner-1", accessgrants.Duration5m, "docs", "")
	assert.ErrorIs(t, err, ErrValidation)
	assert.Equal(t, int32(0), hits.Load())
}

func TestScope_ValidatedBeforeNetwork(t *testing.T) {
	ts, hits := hitServer(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusCreated)
	})
	c := newTestClient(t, ts.URL)
	ctx := context.Background()

	_, err := c.GrantAccess(ctx, "viewer-2", "docs", accessgrants.Duration1h)
	assert.ErrorIs(t, err, ErrValidation)
	assert.ErrorIs(t, err, accessgrants.ErrInvalidInput)

	_, err = c.CreateDirectShare(ctx, DirectShareInput{
		TargetID: "target-1",
		Scope:    "docs",
		Duration: accessgrants.Duration1h,
		Items:    items(1, "photo"),
	})
	assert.ErrorIs(t, err, ErrValidation)

	// scope photos no cubre videos
	_, err = c.CreateDirectShare(ctx, DirectShareInput{
		TargetID: "target-1",
		Scope:    accessgrants.ScopePhotos,
		Duration: accessgrants.Duration1h,
		Items:    append(items(1, "photo"), items(1, "video")...),
	})
	assert.ErrorIs(t, err, ErrValidation)
	assert.ErrorIs(t, err, accessgrants.ErrInvalidInput)

	assert.Equal(t, int32(0), hits.Load(), "invalid scopes must not reach the server")
}

func TestResolve_FailsClosed(t *testing.T) {
	cases := map[string]http.HandlerFunc{
		"server error": func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, "store unavailable", http.StatusServiceUnavailable)
		},
		"active without grant": func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`{"state":"active"}`))
		},
		"unknown state": func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`{"state":"maybe"}`))
		},
		"garbage": func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`<html>`))
		},
	}
	for name, fn := range cases {
		t.Run(name, func(t *testing.T) {
			ts, _ := hitServer(t, fn)
			c := newTestClient(t, ts.URL)

			state := c.Resolve(context.Background(), "owner-1")
			assert.Equal(t, accessgrants.StateNone, state.Kind)

			view := c.Gate(context.Background(), "viewer-1", "owner-1")
			assert.Equal(t, gallery.ModeLocked, view.Mode)
		})
	}
}

func TestResolve_Active(t *testing.T) {
	ts, _ := hitServer(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"state":"active","grant":{"id":"g-1","viewer_id":"viewer-1","owner_id":"owner-1","scope":"photos","expires_at":"2025-12-22T11:00:00Z"}}`))
	})
	c := newTestClient(t, ts.URL)

	state := c.Resolve(context.Background(), "owner-1")
	require.Equal(t, accessgrants.StateActive, state.Kind)
	require.NotNil(t, state.Grant)
	assert.Equal(t, accessgrants.ScopePhotos, state.Grant.Scope)

	view := c.Gate(context.Background(), "viewer-1", "owner-1")
	assert.Equal(t, gallery.ModeContent, view.Mode)
	assert.True(t, view.Shows("photo"))
	assert.False(t, view.Shows("video"))
}

func TestGate_OwnerSkipsResolver(t *testing.T) {
	ts, hits := hitServer(t, func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	})
	c := newTestClient(t, ts.URL)

	view := c.Gate(context.Background(), "owner-1", "owner-1")
	assert.Equal(t, gallery.ModeContent, view.Mode)
	assert.True(t, view.Owner)
	assert.Equal(t, int32(0), hits.Load())
}

func TestNew_RequiresBaseURL(t *testing.T) {
	_, err := New(Config{})
	assert.Error(t, err)
}
