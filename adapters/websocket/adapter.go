package websocket

import (
	"log/slog"
	"net/http"
	"time"

	"tourneykit/core"
	"tourneykit/realtime"

	gorillaws "github.com/gorilla/websocket"
)

const (
	writeWait  = 5 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

// Handler returns an http.Handler that upgrades to WebSocket and streams
// events from the hub. Repeating the user query parameter restricts the
// stream to those users.
func Handler(hub *realtime.Hub, logger *slog.Logger) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	upgrader := gorillaws.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var users []core.UserID
		for _, raw := range r.URL.Query()["user"] {
			u, err := core.NormalizeUserID(core.UserID(raw))
			if err != nil {
				http.Error(w, "invalid user filter", http.StatusBadRequest)
				return
			}
			users = append(users, u)
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logger.Debug("websocket upgrade failed", "error", err)
			return
		}
		defer conn.Close()
		id, ch := hub.Subscribe(256, users...)
		defer hub.Unsubscribe(id)

		// Reader goroutine only services control frames and notices disconnects.
		closed := make(chan struct{})
		go func() {
			defer close(closed)
			_ = conn.SetReadDeadline(time.Now().Add(pongWait))
			conn.SetPongHandler(func(string) error { return conn.SetReadDeadline(time.Now().Add(pongWait)) })
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()

		ticker := time.NewTicker(pingPeriod)
		defer ticker.Stop()
		for {
			select {
			case <-closed:
				return
			case ev, ok := <-ch:
				if !ok {
					return
				}
				_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
				if err := conn.WriteMessage(gorillaws.TextMessage, realtime.MarshalJSON(ev)); err != nil {
					return
				}
			case <-ticker.C:
				_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
				if err := conn.WriteMessage(gorillaws.PingMessage, nil); err != nil {
					return
				}
			}
		}
	})
}
