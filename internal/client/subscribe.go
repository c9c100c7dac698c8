package client

import (
	"context"
	"fmt"
	"net/http"

	"media-access/internal/ports/notify"

	"github.com/gorilla/websocket"
)

// Subscribe abre el websocket de realtime y devuelve los eventos del usuario.
// El canal se cierra cuando se corta la conexión o se cancela ctx; reconectar
// (y refrescar todo) es responsabilidad del caller.
func (c *Client) Subscribe(ctx context.Context) (<-chan notify.Event, error) {
	u := *c.baseURL
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = u.Path + "/realtime"

	header := http.Header{}
	for k, v := range c.headers {
		header.Set(k, v)
	}

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, u.String(), header)
	if err != nil {
		if resp != nil {
			return nil, &APIError{Op: "subscribe", Status: resp.StatusCode, kind: kindForStatus(resp.StatusCode), cause: err}
		}
		return nil, classify("subscribe", fmt.Errorf("dial realtime: %w", err))
	}

	out := make(chan notify.Event, 16)
	done := make(chan struct{})

	go func() {
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-done:
		}
	}()

	go func() {
		defer close(out)
		defer close(done)
		defer conn.Close()
		for {
			var ev notify.Event
			if err := conn.ReadJSON(&ev); err != nil {
				if ctx.Err() == nil {
					c.log.Debug("client: realtime closed", map[string]any{"err": err.Error()})
				}
				return
			}
			select {
			case out <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()

	return out, nil
}
