package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/nikhilbhutani/atheer/internal/audio"
	"github.com/nikhilbhutani/atheer/internal/auth"
	"github.com/nikhilbhutani/atheer/internal/preview"
	"github.com/nikhilbhutani/atheer/internal/voices"
)

type VoiceHandler struct {
	previews   *preview.Cache
	retryAfter time.Duration
}

func NewVoiceHandler(previews *preview.Cache, retryAfter time.Duration) *VoiceHandler {
	return &VoiceHandler{previews: previews, retryAfter: retryAfter}
}

type voicesResponse struct {
	Voices  []voices.Persona   `json:"voices"`
	IDs     []voices.VoiceName `json:"voice_ids"`
	Default string             `json:"default"`
}

func (h *VoiceHandler) List(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, voicesResponse{
		Voices:  voices.All(),
		IDs:     voices.Names,
		Default: voices.Default().Key,
	})
}

// Preview plays the persona's introduction sample, generating it once per
// session.
func (h *VoiceHandler) Preview(w http.ResponseWriter, r *http.Request) {
	p, ok := voices.Lookup(chi.URLParam(r, "key"))
	if !ok {
		writeError(w, http.StatusNotFound, "voice not found")
		return
	}

	entry, hit, err := h.previews.Get(r.Context(), auth.SessionID(r.Context()), p)
	if err != nil {
		writeGenerationError(w, r, err, h.retryAfter)
		return
	}

	cache := "MISS"
	if hit {
		cache = "HIT"
	}
	w.Header().Set("Content-Type", audio.ContentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(entry.WAV)))
	w.Header().Set("X-Cache", cache)
	w.Header().Set("X-Clip-Handle", string(entry.Handle))
	w.Header().Set("X-Clip-Duration", strconv.FormatFloat(entry.Duration, 'f', 3, 64))
	w.WriteHeader(http.StatusOK)
	w.Write(entry.WAV)
}

func (h *VoiceHandler) InvalidatePreview(w http.ResponseWriter, r *http.Request) {
	p, ok := voices.Lookup(chi.URLParam(r, "key"))
	if !ok {
		writeError(w, http.StatusNotFound, "voice not found")
		return
	}
	if !h.previews.Invalidate(r.Context(), auth.SessionID(r.Context()), p.Key) {
		writeError(w, http.StatusNotFound, "no cached preview")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
