package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/xid"
)

const (
	eventBuffer       = 64
	keepAliveInterval = 15 * time.Second
)

// Events handles GET /api/v1/events as a server-sent event stream.
func (h *Handler) Events(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	id := xid.New().String()
	ch := h.publisher.Subscribe(id, eventBuffer)
	defer h.publisher.Unsubscribe(id)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ticker := time.NewTicker(keepAliveInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
			fmt.Fprint(w, ": keep-alive\n\n")
			flusher.Flush()
		case env, ok := <-ch:
			if !ok {
				return
			}
			b, err := json.Marshal(env)
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "id: %s\nevent: %s\ndata: %s\n\n", env.ID, env.Type, b)
			flusher.Flush()
		}
	}
}
