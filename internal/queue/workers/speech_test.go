package workers

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/hibiken/asynq"

	"github.com/nikhilbhutani/atheer/internal/clips"
	"github.com/nikhilbhutani/atheer/internal/queue"
	"github.com/nikhilbhutani/atheer/internal/speech"
	"github.com/nikhilbhutani/atheer/internal/tts"
)

type stubGenerator struct {
	clip *speech.Clip
	err  error
	got  speech.Request
}

func (s *stubGenerator) Generate(_ context.Context, req speech.Request) (*speech.Clip, error) {
	s.got = req
	return s.clip, s.err
}

func newTask(t *testing.T, p queue.SpeechGeneratePayload) *asynq.Task {
	t.Helper()
	data, err := json.Marshal(p)
	if err != nil {
		t.Fatal(err)
	}
	return asynq.NewTask(queue.TypeSpeechGenerate, data)
}

func TestSpeechWorkerSuccess(t *testing.T) {
	gen := &stubGenerator{clip: &speech.Clip{WAV: []byte("wav"), Duration: 1.5, Voice: "Kore", Text: "مرحبا"}}
	mem := clips.NewMemoryStore()
	results := queue.NewMemoryResults()
	w := NewSpeechWorker(gen, mem, results)

	err := w.ProcessTask(context.Background(), newTask(t, queue.SpeechGeneratePayload{
		JobID: "job-1", SessionID: "s1", Text: "مرحبا", Voice: "Kore", Tone: "news anchor", Rate: 1.2,
	}))
	if err != nil {
		t.Fatalf("ProcessTask() error = %v", err)
	}

	if gen.got.Tone != "news anchor" || gen.got.Rate != 1.2 || gen.got.Voice != "Kore" {
		t.Errorf("generator request = %+v", gen.got)
	}

	r, err := results.Get(context.Background(), "job-1")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if r.Status != queue.StatusDone || r.Duration != 1.5 || r.SessionID != "s1" {
		t.Errorf("result = %+v", r)
	}
	if _, err := mem.Get(context.Background(), r.Handle); err != nil {
		t.Errorf("clip for handle %q not stored: %v", r.Handle, err)
	}
}

func TestSpeechWorkerRecordsFailureKind(t *testing.T) {
	quota := &tts.APIError{Provider: "gemini-tts", StatusCode: 429, Status: "RESOURCE_EXHAUSTED"}
	gen := &stubGenerator{err: quota}
	mem := clips.NewMemoryStore()
	results := queue.NewMemoryResults()
	w := NewSpeechWorker(gen, mem, results)

	err := w.ProcessTask(context.Background(), newTask(t, queue.SpeechGeneratePayload{JobID: "job-2", SessionID: "s1", Text: "x"}))
	if !errors.Is(err, asynq.SkipRetry) {
		t.Errorf("ProcessTask() error = %v, want SkipRetry", err)
	}
	if !errors.Is(err, quota) {
		t.Errorf("ProcessTask() error does not wrap the cause: %v", err)
	}

	r, _ := results.Get(context.Background(), "job-2")
	if r.Status != queue.StatusFailed || r.Kind != string(speech.KindQuota) {
		t.Errorf("result = %+v, want failed/quota", r)
	}
	if r.Text != "x" {
		t.Errorf("failed result Text = %q, want %q", r.Text, "x")
	}
	if mem.Len() != 0 {
		t.Errorf("live clips = %d, want 0", mem.Len())
	}
}

func TestSpeechWorkerBadPayload(t *testing.T) {
	w := NewSpeechWorker(&stubGenerator{}, clips.NewMemoryStore(), queue.NewMemoryResults())
	err := w.ProcessTask(context.Background(), asynq.NewTask(queue.TypeSpeechGenerate, []byte("{")))
	if !errors.Is(err, asynq.SkipRetry) {
		t.Errorf("ProcessTask() error = %v, want SkipRetry", err)
	}
}

type doneRejectingResults struct {
	*queue.MemoryResults
}

func (d doneRejectingResults) Save(ctx context.Context, r queue.JobResult) error {
	if r.Status == queue.StatusDone {
		return errors.New("redis: connection refused")
	}
	return d.MemoryResults.Save(ctx, r)
}

func TestSpeechWorkerReleasesClipWhenResultNotSaved(t *testing.T) {
	gen := &stubGenerator{clip: &speech.Clip{WAV: []byte("wav"), Duration: 1, Voice: "Kore", Text: "مرحبا"}}
	mem := clips.NewMemoryStore()
	results := doneRejectingResults{queue.NewMemoryResults()}
	w := NewSpeechWorker(gen, mem, results)

	err := w.ProcessTask(context.Background(), newTask(t, queue.SpeechGeneratePayload{JobID: "job-3", SessionID: "s1", Text: "مرحبا"}))
	if err == nil {
		t.Fatal("ProcessTask() error = nil, want save failure")
	}
	if mem.Len() != 0 {
		t.Errorf("live clips = %d, want 0", mem.Len())
	}
	r, _ := results.Get(context.Background(), "job-3")
	if r.Status != queue.StatusRunning || r.Text != "مرحبا" {
		t.Errorf("result = %+v, want running with text", r)
	}
}
