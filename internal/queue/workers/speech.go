package workers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/nikhilbhutani/atheer/internal/clips"
	"github.com/nikhilbhutani/atheer/internal/queue"
	"github.com/nikhilbhutani/atheer/internal/speech"
	"github.com/nikhilbhutani/atheer/internal/voices"
)

type Generator interface {
	Generate(ctx context.Context, req speech.Request) (*speech.Clip, error)
}

type SpeechWorker struct {
	gen     Generator
	clips   clips.Store
	results queue.Results
}

func NewSpeechWorker(gen Generator, store clips.Store, results queue.Results) *SpeechWorker {
	return &SpeechWorker{gen: gen, clips: store, results: results}
}

// ProcessTask runs one generation and records its outcome. Generation
// failures are recorded on the job and never retried by asynq.
func (w *SpeechWorker) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload queue.SpeechGeneratePayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %w: %w", err, asynq.SkipRetry)
	}

	result := queue.JobResult{
		ID:        payload.JobID,
		SessionID: payload.SessionID,
		Status:    queue.StatusRunning,
		Text:      payload.Text,
		Voice:     payload.Voice,
		Persona:   payload.Persona,
	}
	if err := w.results.Save(ctx, result); err != nil {
		return fmt.Errorf("save running status: %w", err)
	}

	slog.Info("generating speech", "job_id", payload.JobID, "voice", payload.Voice)

	clip, err := w.gen.Generate(ctx, speech.Request{
		Text:  payload.Text,
		Voice: voices.VoiceName(payload.Voice),
		Tone:  payload.Tone,
		Rate:  payload.Rate,
		Pitch: payload.Pitch,
	})
	if err != nil {
		return w.fail(ctx, result, err)
	}

	h, err := w.clips.Put(ctx, clip.WAV)
	if err != nil {
		return w.fail(ctx, result, fmt.Errorf("store clip: %w", err))
	}

	result.Status = queue.StatusDone
	result.Text = clip.Text
	result.Voice = string(clip.Voice)
	result.Handle = h
	result.Duration = clip.Duration
	if err := w.results.Save(ctx, result); err != nil {
		if rerr := w.clips.Release(context.WithoutCancel(ctx), h); rerr != nil {
			slog.Warn("failed to release clip", "job_id", payload.JobID, "handle", h, "error", rerr)
		}
		return fmt.Errorf("save result: %w", err)
	}

	slog.Info("speech job done", "job_id", payload.JobID, "duration", clip.Duration)
	return nil
}

func (w *SpeechWorker) fail(ctx context.Context, result queue.JobResult, cause error) error {
	result.Status = queue.StatusFailed
	result.Error = cause.Error()
	result.Kind = string(speech.Kind(cause))
	// The task deadline may already have passed; the failure must still be recorded.
	if err := w.results.Save(context.WithoutCancel(ctx), result); err != nil {
		slog.Error("failed to record job failure", "job_id", result.ID, "error", err)
	}
	return fmt.Errorf("generate speech: %w: %w", cause, asynq.SkipRetry)
}
