package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/nikhilbhutani/atheer/internal/clips"
	"github.com/nikhilbhutani/atheer/internal/history"
	"github.com/nikhilbhutani/atheer/internal/queue"
	"github.com/nikhilbhutani/atheer/internal/speech"
)

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeGenerationError maps a generation failure to a status code. Quota
// failures tell the client how long to wait before trying again.
func writeGenerationError(w http.ResponseWriter, r *http.Request, err error, retryAfter time.Duration) {
	switch {
	case errors.Is(err, history.ErrBusy):
		writeError(w, http.StatusConflict, err.Error())
		return
	case errors.Is(err, clips.ErrNotFound), errors.Is(err, history.ErrNotFound), errors.Is(err, queue.ErrJobNotFound):
		writeError(w, http.StatusNotFound, err.Error())
		return
	}

	switch speech.Kind(err) {
	case speech.KindValidation:
		writeError(w, http.StatusBadRequest, err.Error())
	case speech.KindQuota:
		secs := int(retryAfter.Round(time.Second) / time.Second)
		if secs < 1 {
			secs = 1
		}
		w.Header().Set("Retry-After", strconv.Itoa(secs))
		writeJSON(w, http.StatusTooManyRequests, map[string]interface{}{
			"error":      "speech quota exhausted, try again later",
			"detail":     err.Error(),
			"quota_wait": true,
		})
	case speech.KindUpstream:
		slog.Error("speech backend failed", "path", r.URL.Path, "error", err)
		writeError(w, http.StatusBadGateway, err.Error())
	default:
		slog.Error("request failed", "path", r.URL.Path, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
