package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/nikhilbhutani/atheer/internal/auth"
	"github.com/nikhilbhutani/atheer/internal/clips"
	"github.com/nikhilbhutani/atheer/internal/history"
	"github.com/nikhilbhutani/atheer/internal/queue"
	"github.com/nikhilbhutani/atheer/internal/speech"
	"github.com/nikhilbhutani/atheer/internal/voices"
)

type Generator interface {
	Normalize(req speech.Request) (speech.Request, error)
	Generate(ctx context.Context, req speech.Request) (*speech.Clip, error)
}

type SpeechHandler struct {
	gen        Generator
	clips      clips.Store
	history    *history.Store
	queue      queue.Enqueuer
	results    queue.Results
	retryAfter time.Duration
}

// NewSpeechHandler wires synchronous and queued generation. q and results
// may be nil, in which case the job endpoints answer 503.
func NewSpeechHandler(gen Generator, store clips.Store, hist *history.Store, q queue.Enqueuer, results queue.Results, retryAfter time.Duration) *SpeechHandler {
	return &SpeechHandler{
		gen:        gen,
		clips:      store,
		history:    hist,
		queue:      q,
		results:    results,
		retryAfter: retryAfter,
	}
}

type speechRequest struct {
	Text    string  `json:"text"`
	Persona string  `json:"persona"`
	Voice   string  `json:"voice"`
	Tone    string  `json:"tone"`
	Rate    float64 `json:"rate"`
	Pitch   float64 `json:"pitch"`
}

// resolve picks the voice: an explicit persona wins over a raw voice id.
func (b speechRequest) resolve() (speech.Request, string, error) {
	req := speech.Request{
		Text:  b.Text,
		Voice: voices.VoiceName(strings.TrimSpace(b.Voice)),
		Tone:  b.Tone,
		Rate:  b.Rate,
		Pitch: b.Pitch,
	}
	persona := ""
	if b.Persona != "" {
		p, ok := voices.Lookup(b.Persona)
		if !ok {
			return req, "", errors.New("unknown persona: " + b.Persona)
		}
		req.Voice = p.Voice
		persona = p.Key
	}
	return req, persona, nil
}

// Generate synthesizes the text, stores the clip and records it in the
// session's history.
func (h *SpeechHandler) Generate(w http.ResponseWriter, r *http.Request) {
	var body speechRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req, persona, err := body.resolve()
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	session := auth.SessionID(r.Context())
	if err := h.history.Begin(session); err != nil {
		writeGenerationError(w, r, err, h.retryAfter)
		return
	}
	defer h.history.End(session)

	clip, err := h.gen.Generate(r.Context(), req)
	if err != nil {
		writeGenerationError(w, r, err, h.retryAfter)
		return
	}

	handle, err := h.clips.Put(r.Context(), clip.WAV)
	if err != nil {
		writeGenerationError(w, r, err, h.retryAfter)
		return
	}

	entry := h.history.Add(r.Context(), session, history.AudioGeneration{
		Text:     clip.Text,
		Voice:    clip.Voice,
		Persona:  persona,
		Handle:   handle,
		Duration: clip.Duration,
	})
	writeJSON(w, http.StatusCreated, entry)
}

type jobResponse struct {
	queue.JobResult
	Entry *history.AudioGeneration `json:"entry,omitempty"`
}

// Enqueue validates the request and hands it to the worker.
func (h *SpeechHandler) Enqueue(w http.ResponseWriter, r *http.Request) {
	if h.queue == nil || h.results == nil {
		writeError(w, http.StatusServiceUnavailable, "background generation is not available")
		return
	}

	var body speechRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req, persona, err := body.resolve()
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req, err = h.gen.Normalize(req); err != nil {
		writeGenerationError(w, r, err, h.retryAfter)
		return
	}

	session := auth.SessionID(r.Context())
	job := queue.JobResult{
		ID:        uuid.NewString(),
		SessionID: session,
		Status:    queue.StatusQueued,
		Text:      req.Text,
		Voice:     string(req.Voice),
		Persona:   persona,
	}
	if err := h.results.Save(r.Context(), job); err != nil {
		writeGenerationError(w, r, err, h.retryAfter)
		return
	}

	err = h.queue.EnqueueSpeechGenerate(r.Context(), queue.SpeechGeneratePayload{
		JobID:     job.ID,
		SessionID: session,
		Text:      req.Text,
		Voice:     string(req.Voice),
		Persona:   persona,
		Tone:      req.Tone,
		Rate:      req.Rate,
		Pitch:     req.Pitch,
	})
	if err != nil {
		slog.Error("enqueue speech job", "job_id", job.ID, "error", err)
		writeError(w, http.StatusServiceUnavailable, "could not queue generation")
		return
	}

	writeJSON(w, http.StatusAccepted, jobResponse{JobResult: job})
}

// Job reports a queued generation. The first read of a finished job moves
// its clip into the session's history; history owns the handle after that.
func (h *SpeechHandler) Job(w http.ResponseWriter, r *http.Request) {
	if h.results == nil {
		writeError(w, http.StatusServiceUnavailable, "background generation is not available")
		return
	}

	session := auth.SessionID(r.Context())
	id := chi.URLParam(r, "id")
	job, err := h.results.Get(r.Context(), id)
	if err != nil || job.SessionID != session {
		writeError(w, http.StatusNotFound, "job not found")
		return
	}

	resp := jobResponse{JobResult: job}
	if job.Status == queue.StatusDone {
		claimed, err := h.results.Claim(r.Context(), job.ID)
		if err != nil {
			writeGenerationError(w, r, err, h.retryAfter)
			return
		}
		if claimed {
			entry := h.history.Add(r.Context(), session, history.AudioGeneration{
				ID:       job.ID,
				Text:     job.Text,
				Voice:    voices.VoiceName(job.Voice),
				Persona:  job.Persona,
				Handle:   job.Handle,
				Duration: job.Duration,
			})
			resp.Entry = &entry
		} else if entry, err := h.history.Get(session, job.ID); err == nil {
			resp.Entry = &entry
		}
	}
	writeJSON(w, http.StatusOK, resp)
}
