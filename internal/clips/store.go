// Package clips holds encoded WAV clips behind opaque handles. A handle stays
// playable until its owner releases it.
package clips

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
)

var ErrNotFound = errors.New("clip not found")

// Handle identifies a stored clip. It is safe to expose to clients.
type Handle string

func NewHandle() Handle { return Handle(uuid.NewString()) }

// ParseHandle rejects anything that is not a uuid so arbitrary strings never
// reach the backing store as keys.
func ParseHandle(s string) (Handle, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return "", ErrNotFound
	}
	return Handle(id.String()), nil
}

// URL is the API path serving the clip.
func (h Handle) URL() string { return "/api/v1/clips/" + string(h) }

type Store interface {
	Put(ctx context.Context, wav []byte) (Handle, error)
	Get(ctx context.Context, h Handle) ([]byte, error)
	Release(ctx context.Context, h Handle) error
}

// MemoryStore keeps clips in process memory.
type MemoryStore struct {
	mu    sync.RWMutex
	clips map[Handle][]byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{clips: make(map[Handle][]byte)}
}

func (m *MemoryStore) Put(_ context.Context, wav []byte) (Handle, error) {
	h := NewHandle()
	m.mu.Lock()
	m.clips[h] = wav
	m.mu.Unlock()
	return h, nil
}

func (m *MemoryStore) Get(_ context.Context, h Handle) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	wav, ok := m.clips[h]
	if !ok {
		return nil, ErrNotFound
	}
	return wav, nil
}

// Release is idempotent.
func (m *MemoryStore) Release(_ context.Context, h Handle) error {
	m.mu.Lock()
	delete(m.clips, h)
	m.mu.Unlock()
	return nil
}

// Len reports the number of live clips.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.clips)
}
