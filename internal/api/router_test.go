package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/nikhilbhutani/atheer/internal/auth"
	"github.com/nikhilbhutani/atheer/internal/clips"
	"github.com/nikhilbhutani/atheer/internal/config"
	"github.com/nikhilbhutani/atheer/internal/history"
	"github.com/nikhilbhutani/atheer/internal/preview"
	"github.com/nikhilbhutani/atheer/internal/queue"
	"github.com/nikhilbhutani/atheer/internal/retry"
	"github.com/nikhilbhutani/atheer/internal/speech"
	"github.com/nikhilbhutani/atheer/internal/tts"
)

type scriptedProvider struct {
	mu    sync.Mutex
	err   error
	calls int
}

func (p *scriptedProvider) Name() string { return "scripted" }

func (p *scriptedProvider) Synthesize(context.Context, tts.SynthesisRequest) (*tts.SynthesisResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	if p.err != nil {
		return nil, p.err
	}
	return &tts.SynthesisResult{PCM: make([]byte, 48000), SampleRate: 24000}, nil
}

type recordingQueue struct {
	payloads []queue.SpeechGeneratePayload
}

func (q *recordingQueue) EnqueueSpeechGenerate(_ context.Context, p queue.SpeechGeneratePayload) error {
	q.payloads = append(q.payloads, p)
	return nil
}

type testEnv struct {
	srv      *httptest.Server
	provider *scriptedProvider
	clips    *clips.MemoryStore
	results  *queue.MemoryResults
	queue    *recordingQueue
	token    string
	session  string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	cfg := &config.Config{
		Server: config.ServerConfig{AllowedOrigins: []string{"*"}, RateLimitRPS: 1000, RateLimitBurst: 1000},
		TTS:    config.TTSConfig{Backend: "gemini"},
		Retry:  config.RetryConfig{MaxRetries: 2, InitialDelay: 15 * time.Second, DelayIncrement: 5 * time.Second},
	}

	provider := &scriptedProvider{}
	policy := retry.Policy{
		MaxRetries:   cfg.Retry.MaxRetries,
		InitialDelay: cfg.Retry.InitialDelay,
		Increment:    cfg.Retry.DelayIncrement,
		Sleep:        func(context.Context, time.Duration) error { return nil },
	}
	gen := speech.NewGenerator(provider, policy)
	mem := clips.NewMemoryStore()
	hist := history.NewStore(mem, history.DefaultLimit)
	results := queue.NewMemoryResults()
	q := &recordingQueue{}
	sessions := auth.NewSessions("test-secret", time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	handler := NewRouter(Deps{
		Config:    cfg,
		Generator: gen,
		Clips:     mem,
		History:   hist,
		Previews:  preview.NewCache(gen, mem, time.Hour),
		Sessions:  sessions,
		Queue:     q,
		Results:   results,
	}).Setup(ctx)

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	env := &testEnv{srv: srv, provider: provider, clips: mem, results: results, queue: q}

	resp := env.do(t, http.MethodPost, "/api/v1/sessions", "", "")
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create session status = %d", resp.StatusCode)
	}
	var sess struct {
		SessionID string `json:"session_id"`
		Token     string `json:"token"`
	}
	decode(t, resp, &sess)
	env.token, env.session = sess.Token, sess.SessionID
	return env
}

func (e *testEnv) do(t *testing.T, method, path, token, body string) *http.Response {
	t.Helper()
	var rdr io.Reader
	if body != "" {
		rdr = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, e.srv.URL+path, rdr)
	if err != nil {
		t.Fatal(err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode(t *testing.T, resp *http.Response, v interface{}) {
	t.Helper()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)
	for _, path := range []string{"/healthz", "/readyz"} {
		if resp := env.do(t, http.MethodGet, path, "", ""); resp.StatusCode != http.StatusOK {
			t.Errorf("GET %s status = %d, want 200", path, resp.StatusCode)
		}
	}
}

func TestVoicesCatalog(t *testing.T) {
	env := newTestEnv(t)
	resp := env.do(t, http.MethodGet, "/api/v1/voices", "", "")
	var body struct {
		Voices  []map[string]interface{} `json:"voices"`
		IDs     []string                 `json:"voice_ids"`
		Default string                   `json:"default"`
	}
	decode(t, resp, &body)
	if len(body.Voices) != 9 || len(body.IDs) != 5 || body.Default != "shahine" {
		t.Errorf("voices = %d, ids = %d, default = %q", len(body.Voices), len(body.IDs), body.Default)
	}
}

func TestSpeechRequiresSession(t *testing.T) {
	env := newTestEnv(t)
	resp := env.do(t, http.MethodPost, "/api/v1/speech", "", `{"text":"مرحبا"}`)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", resp.StatusCode)
	}
}

func TestGenerateSpeechAndPlayback(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(t, http.MethodPost, "/api/v1/speech", env.token, `{"text":"أهلا وسهلا","persona":"dana","tone":"news anchor"}`)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d, want 201", resp.StatusCode)
	}
	var entry history.AudioGeneration
	decode(t, resp, &entry)
	if entry.Voice != "Zephyr" || entry.Persona != "dana" || entry.Duration != 1.0 {
		t.Errorf("entry = %+v", entry)
	}

	clip := env.do(t, http.MethodGet, entry.URL+"?download=greeting", env.token, "")
	if clip.StatusCode != http.StatusOK {
		t.Fatalf("clip status = %d, want 200", clip.StatusCode)
	}
	if ct := clip.Header.Get("Content-Type"); ct != "audio/wav" {
		t.Errorf("Content-Type = %q", ct)
	}
	if cd := clip.Header.Get("Content-Disposition"); cd != `attachment; filename="greeting.wav"` {
		t.Errorf("Content-Disposition = %q", cd)
	}
	if d := clip.Header.Get("X-Clip-Duration"); d != "1.000" {
		t.Errorf("X-Clip-Duration = %q, want 1.000", d)
	}
	data, _ := io.ReadAll(clip.Body)
	if len(data) != 48044 {
		t.Errorf("clip size = %d, want 48044", len(data))
	}

	list := env.do(t, http.MethodGet, "/api/v1/history", env.token, "")
	var hist struct {
		Items []history.AudioGeneration `json:"items"`
		Count int                       `json:"count"`
	}
	decode(t, list, &hist)
	if hist.Count != 1 || hist.Items[0].ID != entry.ID {
		t.Errorf("history = %+v", hist)
	}

	del := env.do(t, http.MethodDelete, "/api/v1/history/"+entry.ID, env.token, "")
	if del.StatusCode != http.StatusNoContent {
		t.Errorf("delete status = %d, want 204", del.StatusCode)
	}
	if env.clips.Len() != 0 {
		t.Errorf("live clips after delete = %d, want 0", env.clips.Len())
	}
	gone := env.do(t, http.MethodGet, entry.URL, env.token, "")
	if gone.StatusCode != http.StatusNotFound {
		t.Errorf("released clip status = %d, want 404", gone.StatusCode)
	}
}

func TestGenerateSpeechErrors(t *testing.T) {
	tests := []struct {
		name        string
		body        string
		providerErr error
		wantStatus  int
		wantCalls   int
	}{
		{name: "empty text", body: `{"text":"   "}`, wantStatus: http.StatusBadRequest},
		{name: "bad json", body: `{`, wantStatus: http.StatusBadRequest},
		{name: "unknown persona", body: `{"text":"x","persona":"nobody"}`, wantStatus: http.StatusBadRequest},
		{name: "unknown voice", body: `{"text":"x","voice":"Aoede"}`, wantStatus: http.StatusBadRequest},
		{
			name:        "quota exhausted",
			body:        `{"text":"x"}`,
			providerErr: &tts.APIError{Provider: "gemini-tts", StatusCode: 429, Status: "RESOURCE_EXHAUSTED"},
			wantStatus:  http.StatusTooManyRequests,
			wantCalls:   3,
		},
		{
			name:        "upstream failure",
			body:        `{"text":"x"}`,
			providerErr: &tts.APIError{Provider: "gemini-tts", StatusCode: 500, Status: "INTERNAL"},
			wantStatus:  http.StatusBadGateway,
			wantCalls:   1,
		},
		{name: "no audio", body: `{"text":"x"}`, providerErr: tts.ErrNoAudioData, wantStatus: http.StatusBadGateway, wantCalls: 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			env.provider.err = tt.providerErr

			resp := env.do(t, http.MethodPost, "/api/v1/speech", env.token, tt.body)
			if resp.StatusCode != tt.wantStatus {
				t.Errorf("status = %d, want %d", resp.StatusCode, tt.wantStatus)
			}
			if env.provider.calls != tt.wantCalls {
				t.Errorf("provider calls = %d, want %d", env.provider.calls, tt.wantCalls)
			}
			if tt.wantStatus == http.StatusTooManyRequests {
				if resp.Header.Get("Retry-After") != "15" {
					t.Errorf("Retry-After = %q, want 15", resp.Header.Get("Retry-After"))
				}
				var body map[string]interface{}
				decode(t, resp, &body)
				if body["quota_wait"] != true {
					t.Errorf("body = %v, want quota_wait", body)
				}
			}
		})
	}
}

func TestPreviewCaching(t *testing.T) {
	env := newTestEnv(t)

	first := env.do(t, http.MethodPost, "/api/v1/voices/jasser/preview", env.token, "")
	if first.StatusCode != http.StatusOK || first.Header.Get("X-Cache") != "MISS" {
		t.Fatalf("first preview: status %d, X-Cache %q", first.StatusCode, first.Header.Get("X-Cache"))
	}
	second := env.do(t, http.MethodPost, "/api/v1/voices/jasser/preview", env.token, "")
	if second.Header.Get("X-Cache") != "HIT" {
		t.Errorf("second preview X-Cache = %q, want HIT", second.Header.Get("X-Cache"))
	}
	if env.provider.calls != 1 {
		t.Errorf("provider calls = %d, want 1", env.provider.calls)
	}

	inv := env.do(t, http.MethodDelete, "/api/v1/voices/jasser/preview", env.token, "")
	if inv.StatusCode != http.StatusNoContent {
		t.Errorf("invalidate status = %d, want 204", inv.StatusCode)
	}
	if env.clips.Len() != 0 {
		t.Errorf("live clips = %d, want 0", env.clips.Len())
	}

	missing := env.do(t, http.MethodPost, "/api/v1/voices/nobody/preview", env.token, "")
	if missing.StatusCode != http.StatusNotFound {
		t.Errorf("unknown voice status = %d, want 404", missing.StatusCode)
	}
}

func TestSpeechJobLifecycle(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(t, http.MethodPost, "/api/v1/speech/jobs", env.token, `{"text":"نص طويل","voice":"Kore","rate":1.5}`)
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("enqueue status = %d, want 202", resp.StatusCode)
	}
	var job queue.JobResult
	decode(t, resp, &job)
	if job.Status != queue.StatusQueued || len(env.queue.payloads) != 1 {
		t.Fatalf("job = %+v, payloads = %d", job, len(env.queue.payloads))
	}
	if p := env.queue.payloads[0]; p.Rate != 1.5 || p.Tone != speech.DefaultTone || p.SessionID != env.session {
		t.Errorf("payload = %+v", p)
	}

	// Play the worker's part.
	h, _ := env.clips.Put(context.Background(), []byte("wav"))
	env.results.Save(context.Background(), queue.JobResult{
		ID: job.ID, SessionID: env.session, Status: queue.StatusDone,
		Text: "نص طويل", Voice: "Kore", Handle: h, Duration: 2,
	})

	var status struct {
		queue.JobResult
		Entry *history.AudioGeneration `json:"entry"`
	}
	decode(t, env.do(t, http.MethodGet, "/api/v1/speech/jobs/"+job.ID, env.token, ""), &status)
	if status.Status != queue.StatusDone || status.Entry == nil || status.Entry.ID != job.ID {
		t.Fatalf("job status = %+v", status)
	}

	decode(t, env.do(t, http.MethodGet, "/api/v1/speech/jobs/"+job.ID, env.token, ""), &status)
	if status.Entry == nil || status.Entry.Handle != h {
		t.Errorf("second read entry = %+v", status.Entry)
	}

	var hist struct {
		Count int `json:"count"`
	}
	decode(t, env.do(t, http.MethodGet, "/api/v1/history", env.token, ""), &hist)
	if hist.Count != 1 {
		t.Errorf("history count = %d, want 1 (adopted once)", hist.Count)
	}

	resp = env.do(t, http.MethodGet, "/api/v1/speech/jobs/not-a-job", env.token, "")
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("unknown job status = %d, want 404", resp.StatusCode)
	}
}

func TestEndSessionReleasesClips(t *testing.T) {
	env := newTestEnv(t)
	env.do(t, http.MethodPost, "/api/v1/speech", env.token, `{"text":"واحد"}`)
	env.do(t, http.MethodPost, "/api/v1/voices/salma/preview", env.token, "")
	if env.clips.Len() != 2 {
		t.Fatalf("live clips = %d, want 2", env.clips.Len())
	}

	resp := env.do(t, http.MethodDelete, "/api/v1/sessions/current", env.token, "")
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
	if env.clips.Len() != 0 {
		t.Errorf("live clips after end = %d, want 0", env.clips.Len())
	}
}

func TestServeClipWithoutWAVHeader(t *testing.T) {
	env := newTestEnv(t)
	h, err := env.clips.Put(context.Background(), []byte("not a wav"))
	if err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	resp := env.do(t, http.MethodGet, h.URL(), env.token, "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if d := resp.Header.Get("X-Clip-Duration"); d != "" {
		t.Errorf("X-Clip-Duration = %q, want unset", d)
	}
}
