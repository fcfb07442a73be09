package httpapi

import (
	"fmt"
	"net/http"

	"topoviz/internal/viewstate"
)

func (h *Handler) handleGetScene(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	h.writeJSON(w, http.StatusOK, h.refresher.Scene(query))
}

func (h *Handler) handleRefresh(w http.ResponseWriter, r *http.Request) {
	h.refresher.Kick()
	h.writeJSON(w, http.StatusAccepted, map[string]any{"status": "refresh_scheduled"})
}

func (h *Handler) handleDiscoveryRun(w http.ResponseWriter, r *http.Request) {
	if err := h.refresher.RunDiscovery(r.Context()); err != nil {
		// The currently rendered graph is untouched; this is a transient
		// notification for the operator.
		h.log.Warn().Err(err).Msg("discovery trigger failed")
		h.writeError(w, http.StatusBadGateway, "discovery_failed", "failed to trigger discovery", map[string]any{"error": err.Error()})
		return
	}
	h.writeJSON(w, http.StatusAccepted, map[string]any{"status": "discovery_triggered"})
}

// handleStream pushes scene-change notifications over SSE. Clients re-fetch
// the scene on each event; a freshly connected client immediately receives
// the last published update.
func (h *Handler) handleStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		h.writeError(w, http.StatusInternalServerError, "streaming_unsupported", "response writer does not support streaming", nil)
		return
	}

	sub, err := h.broker.Subscribe(r.Context(), viewstate.SceneTopic)
	if err != nil {
		h.writeError(w, http.StatusServiceUnavailable, "stream_closed", "event stream is shut down", nil)
		return
	}
	defer sub.Close()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case ev, ok := <-sub.Events():
			if !ok {
				return
			}
			fmt.Fprintf(w, "id: %d\n", ev.Version)
			fmt.Fprintf(w, "event: %s\n", ev.Type)
			fmt.Fprintf(w, "data: %s\n\n", ev.Data)
			flusher.Flush()
		}
	}
}
