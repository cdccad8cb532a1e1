package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/nikhilbhutani/atheer/internal/clips"
)

type JobStatus string

const (
	StatusQueued  JobStatus = "queued"
	StatusRunning JobStatus = "running"
	StatusDone    JobStatus = "done"
	StatusFailed  JobStatus = "failed"
)

var ErrJobNotFound = errors.New("job not found")

// JobResult is the worker's record of one asynchronous generation.
type JobResult struct {
	ID        string       `json:"id"`
	SessionID string       `json:"session_id"`
	Status    JobStatus    `json:"status"`
	Text      string       `json:"text,omitempty"`
	Voice     string       `json:"voice,omitempty"`
	Persona   string       `json:"persona,omitempty"`
	Handle    clips.Handle `json:"handle,omitempty"`
	Duration  float64      `json:"duration,omitempty"`
	Error     string       `json:"error,omitempty"`
	Kind      string       `json:"kind,omitempty"`
	UpdatedAt time.Time    `json:"updated_at"`
}

func (r JobResult) Finished() bool {
	return r.Status == StatusDone || r.Status == StatusFailed
}

type Results interface {
	Save(ctx context.Context, r JobResult) error
	Get(ctx context.Context, id string) (JobResult, error)
	// Claim returns true exactly once per job; the caller then owns the
	// job's clip handle.
	Claim(ctx context.Context, id string) (bool, error)
}

const (
	resultPrefix = "atheer:job:"
	claimSuffix  = ":claimed"
)

type ResultStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewResultStore(client *redis.Client, ttl time.Duration) *ResultStore {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &ResultStore{client: client, ttl: ttl}
}

func (s *ResultStore) Save(ctx context.Context, r JobResult) error {
	r.UpdatedAt = time.Now().UTC()
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("marshal job result: %w", err)
	}
	return s.client.Set(ctx, resultPrefix+r.ID, data, s.ttl).Err()
}

func (s *ResultStore) Get(ctx context.Context, id string) (JobResult, error) {
	val, err := s.client.Get(ctx, resultPrefix+id).Bytes()
	if errors.Is(err, redis.Nil) {
		return JobResult{}, ErrJobNotFound
	}
	if err != nil {
		return JobResult{}, fmt.Errorf("job result get %s: %w", id, err)
	}
	var r JobResult
	if err := json.Unmarshal(val, &r); err != nil {
		return JobResult{}, fmt.Errorf("unmarshal job result: %w", err)
	}
	return r, nil
}

func (s *ResultStore) Claim(ctx context.Context, id string) (bool, error) {
	return s.client.SetNX(ctx, resultPrefix+id+claimSuffix, 1, s.ttl).Result()
}

// MemoryResults is an in-process Results for tests.
type MemoryResults struct {
	mu      sync.Mutex
	results map[string]JobResult
	claimed map[string]bool
}

func NewMemoryResults() *MemoryResults {
	return &MemoryResults{
		results: make(map[string]JobResult),
		claimed: make(map[string]bool),
	}
}

func (m *MemoryResults) Save(_ context.Context, r JobResult) error {
	r.UpdatedAt = time.Now().UTC()
	m.mu.Lock()
	m.results[r.ID] = r
	m.mu.Unlock()
	return nil
}

func (m *MemoryResults) Get(_ context.Context, id string) (JobResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.results[id]
	if !ok {
		return JobResult{}, ErrJobNotFound
	}
	return r, nil
}

func (m *MemoryResults) Claim(_ context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.claimed[id] {
		return false, nil
	}
	m.claimed[id] = true
	return true, nil
}
