package realtime

import (
	"net/http"
	"strings"
	"time"

	"media-access/internal/middleware"
	"media-access/internal/platform/logger"

	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

// Handler abre un websocket para el usuario autenticado y le manda, como JSON,
// cada evento en el que participa.
func Handler(hub *Hub, log logger.Logger) http.HandlerFunc {
	if log == nil {
		log = logger.Nop()
	}
	upgrader := websocket.Upgrader{
		CheckOrigin: func(*http.Request) bool { return true },
	}

	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.GetClaims(r.Context())
		if !ok || strings.TrimSpace(claims.UserID) == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			// Upgrade ya respondió con el error
			return
		}
		defer conn.Close()

		sub := hub.Subscribe(claims.UserID)
		defer sub.Close()

		log.Debug("realtime: subscribed", map[string]any{"user_id": claims.UserID})

		// solo leemos para enterarnos del close y de los pongs
		done := make(chan struct{})
		go func() {
			defer close(done)
			conn.SetReadLimit(512)
			_ = conn.SetReadDeadline(time.Now().Add(pongWait))
			conn.SetPongHandler(func(string) error {
				return conn.SetReadDeadline(time.Now().Add(pongWait))
			})
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()

		ping := time.NewTicker(pingPeriod)
		defer ping.Stop()

		for {
			select {
			case <-done:
				return
			case <-r.Context().Done():
				return
			case ev, ok := <-sub.Events():
				if !ok {
					return
				}
				_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
				if err := conn.WriteJSON(ev); err != nil {
					log.Debug("realtime: write failed", map[string]any{"user_id": claims.UserID, "err": err.Error()})
					return
				}
			case <-ping.C:
				if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
					return
				}
			}
		}
	}
}
