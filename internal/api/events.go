package api

import (
	"fmt"
	"io"
	"net/http"

	"github.com/chirpwatch/chirpwatch/internal/broadcast"
)

// Events serves the SSE live-update stream. On connect the subscriber gets a
// connected event; thereafter it sees state events after each poll cycle and
// new_post events when the change detector fires. Events emitted before the
// connection are never replayed.
// GET /events
func (h *Handler) Events(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
		return
	}

	sub := h.broadcaster.Subscribe()
	if sub == nil {
		http.Error(w, "Server shutting down", http.StatusServiceUnavailable)
		return
	}
	defer h.broadcaster.Unsubscribe(sub)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	writeSSE(w, broadcast.EventConnected, []byte(`{"ok":true}`))
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case msg, open := <-sub.C:
			if !open {
				// Dropped by the broadcaster (slow consumer or shutdown).
				return
			}
			writeSSE(w, msg.Event, msg.Data)
			flusher.Flush()
		}
	}
}

func writeSSE(w io.Writer, event string, data []byte) {
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data)
}
