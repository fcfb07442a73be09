package httpapi

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"topoviz/internal/viewstate"
)

func (h *Handler) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	sess := h.sessions.Create()
	h.writeJSON(w, http.StatusCreated, sess.View())
}

func (h *Handler) session(w http.ResponseWriter, r *http.Request) (*viewstate.Session, bool) {
	id := chi.URLParam(r, "id")
	sess, err := h.sessions.Get(id)
	if err != nil {
		if errors.Is(err, viewstate.ErrNoSession) {
			h.writeError(w, http.StatusNotFound, "not_found", "view session not found", map[string]any{"id": id})
		} else {
			h.log.Error().Err(err).Str("id", id).Msg("session lookup failed")
			h.writeError(w, http.StatusInternalServerError, "internal_error", "failed to load session", nil)
		}
		return nil, false
	}
	return sess, true
}

func (h *Handler) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	h.writeJSON(w, http.StatusOK, sess.View())
}

func (h *Handler) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.sessions.Delete(id); err != nil {
		h.writeError(w, http.StatusNotFound, "not_found", "view session not found", map[string]any{"id": id})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handlePointer(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}

	var in viewstate.PointerInput
	if err := decodeJSONStrict(r, &in); err != nil {
		h.writeError(w, http.StatusBadRequest, "validation_failed", "invalid json body", map[string]any{"error": err.Error()})
		return
	}

	res, err := sess.HandlePointer(in)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "validation_failed", err.Error(), map[string]any{"type": in.Type})
		return
	}
	h.writeJSON(w, http.StatusOK, res)
}

type zoomRequest struct {
	Delta  *float64 `json:"delta,omitempty"`
	Action *string  `json:"action,omitempty"`
}

func (h *Handler) handleZoom(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}

	var req zoomRequest
	if err := decodeJSONStrict(r, &req); err != nil {
		h.writeError(w, http.StatusBadRequest, "validation_failed", "invalid json body", map[string]any{"error": err.Error()})
		return
	}

	switch {
	case req.Delta != nil && req.Action == nil:
		h.writeJSON(w, http.StatusOK, sess.ZoomBy(*req.Delta))
	case req.Action != nil && req.Delta == nil:
		info, err := sess.ZoomAction(*req.Action)
		if err != nil {
			h.writeError(w, http.StatusBadRequest, "validation_failed", err.Error(), map[string]any{"action": *req.Action})
			return
		}
		h.writeJSON(w, http.StatusOK, info)
	default:
		h.writeError(w, http.StatusBadRequest, "validation_failed", "exactly one of delta or action must be provided", nil)
	}
}
