package server

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/brojonat/walletlink/service/metrics"
	"github.com/brojonat/walletlink/service/session"
)

// sseKeepalive is how often an idle stream gets a comment line.
var sseKeepalive = 10 * time.Second

// handleStreamSession streams session snapshots as Server-Sent Events. The
// first event is the current snapshot; each later event is a change.
// GET /api/v1/stream/session
func handleStreamSession(sess Session, done <-chan struct{}, m *metrics.Metrics, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		flusher, ok := w.(http.Flusher)
		if !ok {
			writeError(w, "streaming unsupported", session.KindInternal, http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		flusher.Flush()

		snapshots, cancel := sess.Subscribe(8)
		defer cancel()

		m.RecordSSEConnectionChange(1)
		defer m.RecordSSEConnectionChange(-1)

		logger.DebugContext(r.Context(), "SSE client connected", "remote_addr", r.RemoteAddr)

		keepalive := time.NewTicker(sseKeepalive)
		defer keepalive.Stop()

		for {
			select {
			case <-keepalive.C:
				fmt.Fprintf(w, ": keepalive\n\n")
				flusher.Flush()

			case snap, ok := <-snapshots:
				if !ok {
					// Session closed.
					return
				}
				data, err := json.Marshal(snapshotToResponse(snap))
				if err != nil {
					logger.WarnContext(r.Context(), "failed to marshal snapshot", "error", err)
					continue
				}
				fmt.Fprintf(w, "event: session\ndata: %s\n\n", data)
				flusher.Flush()
				m.RecordSSEEventSent("session")

			case <-r.Context().Done():
				logger.DebugContext(r.Context(), "SSE client disconnected", "remote_addr", r.RemoteAddr)
				return

			case <-done:
				return
			}
		}
	})
}
