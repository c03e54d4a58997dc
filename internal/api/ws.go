package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/chirpwatch/chirpwatch/internal/broadcast"
)

const wsWriteTimeout = 5 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The stream only pushes public account state, the same data the SSE
	// endpoint serves cross-origin.
	CheckOrigin: func(r *http.Request) bool { return true },
}

type wsEnvelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// WS serves the live-update stream over a WebSocket, carrying the same
// events as GET /events.
// GET /ws
func (h *Handler) WS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	sub := h.broadcaster.Subscribe()
	if sub == nil {
		conn.Close()
		return
	}

	// Reader only detects the peer going away; inbound frames are ignored.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				h.broadcaster.Unsubscribe(sub)
				return
			}
		}
	}()

	defer func() {
		h.broadcaster.Unsubscribe(sub)
		conn.Close()
	}()

	if err := writeWS(conn, broadcast.EventConnected, []byte(`{"ok":true}`)); err != nil {
		return
	}

	for msg := range sub.C {
		if err := writeWS(conn, msg.Event, msg.Data); err != nil {
			return
		}
	}
}

func writeWS(conn *websocket.Conn, event string, data []byte) error {
	payload, err := json.Marshal(wsEnvelope{Type: event, Data: data})
	if err != nil {
		return err
	}

	conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	return conn.WriteMessage(websocket.TextMessage, payload)
}
