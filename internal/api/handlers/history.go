package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nikhilbhutani/atheer/internal/auth"
	"github.com/nikhilbhutani/atheer/internal/history"
)

type HistoryHandler struct {
	history *history.Store
}

func NewHistoryHandler(hist *history.Store) *HistoryHandler {
	return &HistoryHandler{history: hist}
}

func (h *HistoryHandler) List(w http.ResponseWriter, r *http.Request) {
	entries := h.history.List(auth.SessionID(r.Context()))
	writeJSON(w, http.StatusOK, map[string]interface{}{"items": entries, "count": len(entries)})
}

func (h *HistoryHandler) Clear(w http.ResponseWriter, r *http.Request) {
	n := h.history.Clear(r.Context(), auth.SessionID(r.Context()))
	writeJSON(w, http.StatusOK, map[string]int{"released": n})
}

func (h *HistoryHandler) Delete(w http.ResponseWriter, r *http.Request) {
	err := h.history.Remove(r.Context(), auth.SessionID(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
