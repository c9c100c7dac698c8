package client_test

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"media-access/internal/client"
	"media-access/internal/domain/accessgrants"
	"media-access/internal/domain/media"
	"media-access/internal/gallery"
	"media-access/internal/ports/notify"
	"media-access/internal/router"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startServer(t *testing.T) (*httptest.Server, *router.App) {
	t.Helper()
	app := router.Build(router.Options{})
	ts := httptest.NewServer(app.Handler)
	t.Cleanup(ts.Close)
	return ts, app
}

func as(t *testing.T, baseURL, userID string) *client.Client {
	t.Helper()
	c, err := client.New(client.Config{BaseURL: baseURL, DebugUserID: userID, Timeout: 5 * time.Second})
	require.NoError(t, err)
	return c
}

func TestClient_RequestApproveFlow(t *testing.T) {
	ts, _ := startServer(t)
	ctx := context.Background()

	owner := as(t, ts.URL, "owner-1")
	viewer := as(t, ts.URL, "viewer-1")

	_, err := owner.RegisterMedia(ctx, media.KindPhoto, "https://cdn.example.com/a.jpg", "", true)
	require.NoError(t, err)
	_, err = owner.RegisterMedia(ctx, media.KindVideo, "https://cdn.example.com/b.mp4", "", true)
	require.NoError(t, err)

	assert.Equal(t, gallery.ModeLocked, viewer.Gate(ctx, "viewer-1", "owner-1").Mode)

	req, err := viewer.CreateRequest(ctx, "owner-1", accessgrants.Duration5m, accessgrants.ScopeVideos, "hola")
	require.NoError(t, err)
	assert.Equal(t, accessgrants.RequestPending, req.Status)

	_, err = viewer.CreateRequest(ctx, "owner-1", accessgrants.Duration1h, "", "")
	assert.ErrorIs(t, err, client.ErrConflict)

	view := viewer.Gate(ctx, "viewer-1", "owner-1")
	require.Equal(t, gallery.ModeWaiting, view.Mode)
	assert.Equal(t, req.ID, view.CancelRequestID)

	pending, err := owner.ListPendingRequests(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, req.ID, pending[0].ID)

	outgoing, err := viewer.ListOutgoingRequests(ctx)
	require.NoError(t, err)
	require.Len(t, outgoing, 1)

	approved, grant, err := owner.ApproveRequest(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, accessgrants.RequestApproved, approved.Status)
	require.NotNil(t, grant.ExpiresAt)
	assert.Equal(t, accessgrants.ScopeVideos, grant.Scope)

	state := viewer.Resolve(ctx, "owner-1")
	require.Equal(t, accessgrants.StateActive, state.Kind)
	assert.Equal(t, grant.ID, state.Grant.ID)

	page, err := viewer.Gallery(ctx, "owner-1")
	require.NoError(t, err)
	assert.Equal(t, gallery.ModeContent, page.View.Mode)
	require.Len(t, page.Items, 1)
	assert.Equal(t, media.KindVideo, page.Items[0].Kind)

	active, err := owner.ListActiveGrants(ctx)
	require.NoError(t, err)
	require.Len(t, active, 1)

	_, err = owner.RevokeGrant(ctx, grant.ID)
	require.NoError(t, err)
	assert.Equal(t, accessgrants.StateNone, viewer.Resolve(ctx, "owner-1").Kind)

	// Un tercero no puede revocar
	_, err = viewer.RevokeGrant(ctx, grant.ID)
	assert.ErrorIs(t, err, client.ErrPermissionDenied)
}

func TestClient_DirectShare(t *testing.T) {
	ts, _ := startServer(t)
	ctx := context.Background()

	sender := as(t, ts.URL, "sender-1")
	target := as(t, ts.URL, "target-1")

	photo, err := sender.RegisterMedia(ctx, media.KindPhoto, "https://cdn.example.com/p.jpg", "", true)
	require.NoError(t, err)

	sh, err := sender.CreateDirectShare(ctx, client.DirectShareInput{
		TargetID: "target-1",
		Duration: accessgrants.DurationAlways,
		Items:    []client.ShareItem{{MediaID: photo.ID, Kind: string(photo.Kind)}},
	})
	require.NoError(t, err)
	assert.Nil(t, sh.ExpiresAt)
	require.Len(t, sh.Items, 1)

	received, err := target.ListReceivedShares(ctx)
	require.NoError(t, err)
	require.Len(t, received, 1)
	assert.Equal(t, sh.ID, received[0].ID)

	got, err := target.GetMedia(ctx, photo.ID)
	require.NoError(t, err)
	assert.Equal(t, photo.URL, got.URL)

	revoked, err := sender.RevokeShare(ctx, sh.ID)
	require.NoError(t, err)
	assert.NotNil(t, revoked.RevokedAt)

	_, err = target.GetMedia(ctx, photo.ID)
	assert.ErrorIs(t, err, client.ErrPermissionDenied)
	_, err = target.GetShare(ctx, sh.ID)
	assert.ErrorIs(t, err, client.ErrNotFound)

	sent, err := sender.ListSentShares(ctx)
	require.NoError(t, err)
	require.Len(t, sent, 1)
}

func TestClient_SubscribeAndInbox(t *testing.T) {
	ts, app := startServer(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	owner := as(t, ts.URL, "owner-1")
	viewer := as(t, ts.URL, "viewer-1")

	events, err := viewer.Subscribe(ctx)
	require.NoError(t, err)

	states := make(chan client.InboxState, 8)
	inbox := owner.NewInbox(func(s client.InboxState) { states <- s })
	watchErr := make(chan error, 1)
	go func() { watchErr <- inbox.Watch(ctx) }()

	// refresh inicial
	select {
	case s := <-states:
		assert.Empty(t, s.Pending)
	case <-time.After(3 * time.Second):
		t.Fatal("initial refresh not delivered")
	}
	require.Eventually(t, func() bool {
		return app.Hub.Subscribers("owner-1") == 1 && app.Hub.Subscribers("viewer-1") == 1
	}, 3*time.Second, 10*time.Millisecond)

	req, err := viewer.CreateRequest(ctx, "owner-1", accessgrants.Duration1h, accessgrants.ScopeAll, "")
	require.NoError(t, err)

	select {
	case ev := <-events:
		assert.Equal(t, notify.TopicAccessRequests, ev.Topic)
		assert.Equal(t, notify.TypeInsert, ev.Type)
		assert.Equal(t, req.ID, ev.RecordID)
	case <-time.After(3 * time.Second):
		t.Fatal("viewer did not receive the event")
	}

	select {
	case s := <-states:
		require.Len(t, s.Pending, 1)
		assert.Equal(t, req.ID, s.Pending[0].ID)
		assert.Equal(t, s, inbox.State())
	case <-time.After(3 * time.Second):
		t.Fatal("inbox did not refresh after the event")
	}

	cancel()
	select {
	case <-watchErr:
	case <-time.After(3 * time.Second):
		t.Fatal("watch did not stop")
	}
	_, open := <-events
	for open {
		_, open = <-events
	}
}
