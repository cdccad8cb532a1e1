package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/nikhilbhutani/atheer/internal/audio"
	"github.com/nikhilbhutani/atheer/internal/clips"
)

type ClipHandler struct {
	clips clips.Store
}

func NewClipHandler(store clips.Store) *ClipHandler {
	return &ClipHandler{clips: store}
}

// Serve streams a stored clip. With ?download=name it is sent as an
// attachment named name.wav. X-Clip-Duration carries the length in seconds
// read from the WAV header.
func (h *ClipHandler) Serve(w http.ResponseWriter, r *http.Request) {
	handle, err := clips.ParseHandle(chi.URLParam(r, "handle"))
	if err != nil {
		writeError(w, http.StatusNotFound, "clip not found")
		return
	}

	wav, err := h.clips.Get(r.Context(), handle)
	if errors.Is(err, clips.ErrNotFound) {
		writeError(w, http.StatusNotFound, "clip not found")
		return
	}
	if err != nil {
		writeGenerationError(w, r, err, 0)
		return
	}

	if name, ok := r.URL.Query()["download"]; ok {
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", downloadName(name[0], handle)))
	}
	if hdr, err := audio.ParseHeader(wav); err == nil {
		w.Header().Set("X-Clip-Duration", strconv.FormatFloat(hdr.Duration(), 'f', 3, 64))
	}
	w.Header().Set("Content-Type", audio.ContentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(wav)))
	w.Header().Set("Cache-Control", "private, max-age=3600")
	w.WriteHeader(http.StatusOK)
	w.Write(wav)
}

func downloadName(name string, h clips.Handle) string {
	name = filepath.Base(strings.TrimSpace(name))
	name = strings.Map(func(r rune) rune {
		if r == '"' || r == '\\' || r < 0x20 {
			return -1
		}
		return r
	}, name)
	name = strings.TrimSuffix(name, ".wav")
	if name == "" || name == "." || name == "/" {
		name = "atheer-" + string(h)[:8]
	}
	return name + ".wav"
}
