// Package history keeps each session's generated clips, newest first, and
// owns their handles: every handle that leaves the list is released.
package history

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nikhilbhutani/atheer/internal/clips"
	"github.com/nikhilbhutani/atheer/internal/voices"
)

const DefaultLimit = 50

var (
	ErrBusy     = errors.New("a generation is already in progress for this session")
	ErrNotFound = errors.New("history entry not found")
)

// AudioGeneration is one completed generation.
type AudioGeneration struct {
	ID        string           `json:"id"`
	Text      string           `json:"text"`
	Voice     voices.VoiceName `json:"voice"`
	Persona   string           `json:"persona,omitempty"`
	Timestamp time.Time        `json:"timestamp"`
	Handle    clips.Handle     `json:"handle"`
	URL       string           `json:"url"`
	Duration  float64          `json:"duration"`
}

type session struct {
	entries  []AudioGeneration
	busy     bool
	lastSeen time.Time
}

type Store struct {
	mu       sync.Mutex
	clips    clips.Store
	limit    int
	sessions map[string]*session
	now      func() time.Time
}

func NewStore(clipStore clips.Store, limit int) *Store {
	if limit <= 0 {
		limit = DefaultLimit
	}
	return &Store{
		clips:    clipStore,
		limit:    limit,
		sessions: make(map[string]*session),
		now:      time.Now,
	}
}

func (s *Store) session(id string) *session {
	sess, ok := s.sessions[id]
	if !ok {
		sess = &session{}
		s.sessions[id] = sess
	}
	sess.lastSeen = s.now()
	return sess
}

// Begin marks a generation as in flight for the session. Callers must pair a
// successful Begin with End.
func (s *Store) Begin(sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess := s.session(sessionID)
	if sess.busy {
		return ErrBusy
	}
	sess.busy = true
	return nil
}

func (s *Store) End(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sess, ok := s.sessions[sessionID]; ok {
		sess.busy = false
		if len(sess.entries) == 0 {
			delete(s.sessions, sessionID)
		}
	}
}

// Add prepends an entry, filling in ID, Timestamp and URL when empty. Entries
// beyond the limit are evicted and their clips released.
func (s *Store) Add(ctx context.Context, sessionID string, e AudioGeneration) AudioGeneration {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}
	if e.URL == "" {
		e.URL = e.Handle.URL()
	}

	s.mu.Lock()
	sess := s.session(sessionID)
	sess.entries = append([]AudioGeneration{e}, sess.entries...)
	var evicted []AudioGeneration
	if len(sess.entries) > s.limit {
		evicted = append(evicted, sess.entries[s.limit:]...)
		sess.entries = sess.entries[:s.limit:s.limit]
	}
	s.mu.Unlock()

	s.release(ctx, evicted)
	return e
}

// List returns a copy of the session's entries, newest first.
func (s *Store) List(sessionID string) []AudioGeneration {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[sessionID]
	if !ok {
		return []AudioGeneration{}
	}
	sess.lastSeen = s.now()
	out := make([]AudioGeneration, len(sess.entries))
	copy(out, sess.entries)
	return out
}

func (s *Store) Get(sessionID, id string) (AudioGeneration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sess, ok := s.sessions[sessionID]; ok {
		sess.lastSeen = s.now()
		for _, e := range sess.entries {
			if e.ID == id {
				return e, nil
			}
		}
	}
	return AudioGeneration{}, ErrNotFound
}

func (s *Store) Remove(ctx context.Context, sessionID, id string) error {
	s.mu.Lock()
	sess, ok := s.sessions[sessionID]
	if !ok {
		s.mu.Unlock()
		return ErrNotFound
	}
	sess.lastSeen = s.now()
	idx := -1
	for i, e := range sess.entries {
		if e.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		s.mu.Unlock()
		return ErrNotFound
	}
	removed := sess.entries[idx]
	sess.entries = append(sess.entries[:idx:idx], sess.entries[idx+1:]...)
	s.mu.Unlock()

	s.release(ctx, []AudioGeneration{removed})
	return nil
}

// Clear empties the session's history and releases every clip in it.
func (s *Store) Clear(ctx context.Context, sessionID string) int {
	s.mu.Lock()
	var removed []AudioGeneration
	if sess, ok := s.sessions[sessionID]; ok {
		removed = sess.entries
		sess.entries = nil
		// A running generation still needs its busy flag; End drops the
		// session once it finishes.
		if !sess.busy {
			delete(s.sessions, sessionID)
		}
	}
	s.mu.Unlock()

	s.release(ctx, removed)
	return len(removed)
}

// Sweep releases and forgets every session not touched for longer than idle.
// Sessions with a generation in flight are kept. It returns the number of
// sessions dropped.
func (s *Store) Sweep(ctx context.Context, idle time.Duration) int {
	now := s.now()
	s.mu.Lock()
	var removed []AudioGeneration
	dropped := 0
	for id, sess := range s.sessions {
		if sess.busy || now.Sub(sess.lastSeen) <= idle {
			continue
		}
		removed = append(removed, sess.entries...)
		delete(s.sessions, id)
		dropped++
	}
	s.mu.Unlock()

	s.release(ctx, removed)
	return dropped
}

// Len reports the number of tracked sessions.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Teardown releases the clips of every session.
func (s *Store) Teardown(ctx context.Context) {
	s.mu.Lock()
	var removed []AudioGeneration
	for id, sess := range s.sessions {
		removed = append(removed, sess.entries...)
		delete(s.sessions, id)
	}
	s.mu.Unlock()

	s.release(ctx, removed)
}

func (s *Store) release(ctx context.Context, entries []AudioGeneration) {
	for _, e := range entries {
		if err := s.clips.Release(ctx, e.Handle); err != nil {
			slog.Warn("failed to release clip", "handle", e.Handle, "error", err)
		}
	}
}
