package handlers

import (
	"net/http"
	"time"

	"github.com/nikhilbhutani/atheer/internal/auth"
	"github.com/nikhilbhutani/atheer/internal/history"
	"github.com/nikhilbhutani/atheer/internal/preview"
)

type SessionHandler struct {
	sessions *auth.Sessions
	history  *history.Store
	previews *preview.Cache
}

func NewSessionHandler(s *auth.Sessions, hist *history.Store, previews *preview.Cache) *SessionHandler {
	return &SessionHandler{sessions: s, history: hist, previews: previews}
}

type sessionResponse struct {
	SessionID string    `json:"session_id"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Create starts an anonymous session.
func (h *SessionHandler) Create(w http.ResponseWriter, r *http.Request) {
	id, token, expires, err := h.sessions.Issue()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "could not create session")
		return
	}
	writeJSON(w, http.StatusCreated, sessionResponse{SessionID: id, Token: token, ExpiresAt: expires})
}

// End releases every clip the session holds. The token stays valid but the
// session starts over empty.
func (h *SessionHandler) End(w http.ResponseWriter, r *http.Request) {
	session := auth.SessionID(r.Context())
	n := h.history.Clear(r.Context(), session)
	h.previews.CloseSession(r.Context(), session)
	writeJSON(w, http.StatusOK, map[string]int{"released": n})
}
