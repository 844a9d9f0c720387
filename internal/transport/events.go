package transport

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rpggio/semantix/internal/domain/eventlog"
)

const keepAliveInterval = 15 * time.Second

// handleEvents streams fan-out notifications as server-sent events. Delivery
// is best-effort; clients recover gaps from /api/streams by offset.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	if s.svc.Events == nil {
		writeError(w, http.StatusNotImplemented, "events disabled")
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	var streams []eventlog.Stream
	if raw := r.URL.Query().Get("streams"); raw != "" {
		for _, name := range strings.Split(raw, ",") {
			stream := eventlog.Stream(strings.TrimSpace(name))
			if !stream.Valid() {
				writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown stream %q", stream))
				return
			}
			streams = append(streams, stream)
		}
	}

	sub := s.svc.Events.Subscribe(streams...)
	defer sub.Close()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, ": connected\n\n")
	flusher.Flush()

	keepAlive := time.NewTicker(keepAliveInterval)
	defer keepAlive.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-keepAlive.C:
			fmt.Fprint(w, ": keepalive\n\n")
			flusher.Flush()
		case n, ok := <-sub.Events:
			if !ok {
				return
			}
			data, err := json.Marshal(n)
			if err != nil {
				s.logger.Warn("encode notification", "id", n.ID, "error", err)
				continue
			}
			fmt.Fprintf(w, "id: %d\nevent: %s\ndata: %s\n\n", n.Offset, n.Stream, data)
			flusher.Flush()
		}
	}
}
