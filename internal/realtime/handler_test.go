package realtime

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"media-access/internal/middleware"
	"media-access/internal/ports/notify"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandler_StreamsEventsForUser(t *testing.T) {
	hub := NewHub(nil)
	srv := httptest.NewServer(middleware.AuthContext(nil)(Handler(hub, nil)))
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/realtime"
	header := http.Header{}
	header.Set("X-Debug-User-ID", "viewer-1")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, header)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return hub.Subscribers("viewer-1") == 1 }, 2*time.Second, 10*time.Millisecond)

	hub.Notify(context.Background(), grantEvent())

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var ev notify.Event
	require.NoError(t, conn.ReadJSON(&ev))
	assert.Equal(t, notify.TopicAccessGrants, ev.Topic)
	assert.Equal(t, "g-1", ev.RecordID)

	// al cerrar el cliente se libera la suscripción
	_ = conn.Close()
	assert.Eventually(t, func() bool { return hub.Subscribers("viewer-1") == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestHandler_RequiresUser(t *testing.T) {
	hub := NewHub(nil)
	srv := httptest.NewServer(middleware.AuthContext(nil)(Handler(hub, nil)))
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	_, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}
