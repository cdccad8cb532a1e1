// Package preview memoizes each session's voice samples so replaying a
// persona card does not spend another synthesis call.
package preview

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/nikhilbhutani/atheer/internal/clips"
	"github.com/nikhilbhutani/atheer/internal/speech"
	"github.com/nikhilbhutani/atheer/internal/voices"
)

// PreviewTone is the delivery used for every sample.
const PreviewTone = "natural"

type Generator interface {
	Generate(ctx context.Context, req speech.Request) (*speech.Clip, error)
}

type Entry struct {
	Persona  string       `json:"persona"`
	Handle   clips.Handle `json:"handle"`
	URL      string       `json:"url"`
	Duration float64      `json:"duration"`
	WAV      []byte       `json:"-"`
	Created  time.Time    `json:"created"`
}

type cacheKey struct {
	session string
	persona string
}

type Cache struct {
	gen   Generator
	clips clips.Store
	ttl   time.Duration
	now   func() time.Time

	mu      sync.Mutex
	entries map[cacheKey]Entry
	seen    map[string]time.Time
	group   singleflight.Group
}

// NewCache returns a cache whose entries are regenerated once older than
// ttl. A zero ttl keeps entries until invalidated.
func NewCache(gen Generator, store clips.Store, ttl time.Duration) *Cache {
	return &Cache{
		gen:     gen,
		clips:   store,
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[cacheKey]Entry),
		seen:    make(map[string]time.Time),
	}
}

// Get returns the cached sample for the persona, generating it on a miss.
// The bool reports a cache hit. Concurrent misses for the same key share one
// generation.
func (c *Cache) Get(ctx context.Context, session string, p voices.Persona) (Entry, bool, error) {
	key := cacheKey{session: session, persona: p.Key}

	c.mu.Lock()
	c.seen[session] = c.now()
	e, ok := c.entries[key]
	if ok && c.expired(e) {
		delete(c.entries, key)
		c.mu.Unlock()
		c.release(ctx, e.Handle)
		c.mu.Lock()
		ok = false
	}
	c.mu.Unlock()
	if ok {
		return e, true, nil
	}

	v, err, _ := c.group.Do(session+"\x00"+p.Key, func() (any, error) {
		// The result is shared with every waiter, so the first caller going
		// away must not cancel it.
		ctx := context.WithoutCancel(ctx)
		clip, err := c.gen.Generate(ctx, speech.Request{
			Text:  p.PreviewText(),
			Voice: p.Voice,
			Tone:  PreviewTone,
		})
		if err != nil {
			return Entry{}, err
		}
		h, err := c.clips.Put(ctx, clip.WAV)
		if err != nil {
			return Entry{}, err
		}
		e := Entry{
			Persona:  p.Key,
			Handle:   h,
			URL:      h.URL(),
			Duration: clip.Duration,
			WAV:      clip.WAV,
			Created:  c.now(),
		}

		c.mu.Lock()
		prev, had := c.entries[key]
		c.entries[key] = e
		c.mu.Unlock()
		if had {
			c.release(ctx, prev.Handle)
		}
		return e, nil
	})
	if err != nil {
		return Entry{}, false, err
	}
	return v.(Entry), false, nil
}

// Invalidate releases the persona's cached sample, then forgets it.
func (c *Cache) Invalidate(ctx context.Context, session, persona string) bool {
	key := cacheKey{session: session, persona: persona}
	c.mu.Lock()
	e, ok := c.entries[key]
	c.mu.Unlock()
	if !ok {
		return false
	}
	c.release(ctx, e.Handle)

	c.mu.Lock()
	if cur, still := c.entries[key]; still && cur.Handle == e.Handle {
		delete(c.entries, key)
	}
	c.mu.Unlock()
	return true
}

// CloseSession releases every sample belonging to the session.
func (c *Cache) CloseSession(ctx context.Context, session string) {
	c.mu.Lock()
	delete(c.seen, session)
	c.mu.Unlock()
	c.drain(ctx, func(k cacheKey) bool { return k.session == session })
}

// Sweep closes every session that has not requested a sample for longer
// than idle and returns how many were closed.
func (c *Cache) Sweep(ctx context.Context, idle time.Duration) int {
	now := c.now()
	c.mu.Lock()
	stale := make(map[string]bool)
	for session, at := range c.seen {
		if now.Sub(at) > idle {
			stale[session] = true
			delete(c.seen, session)
		}
	}
	c.mu.Unlock()
	if len(stale) == 0 {
		return 0
	}
	c.drain(ctx, func(k cacheKey) bool { return stale[k.session] })
	return len(stale)
}

// Close releases everything the cache holds.
func (c *Cache) Close(ctx context.Context) {
	c.mu.Lock()
	clear(c.seen)
	c.mu.Unlock()
	c.drain(ctx, func(cacheKey) bool { return true })
}

func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *Cache) drain(ctx context.Context, match func(cacheKey) bool) {
	c.mu.Lock()
	var handles []clips.Handle
	for k, e := range c.entries {
		if match(k) {
			handles = append(handles, e.Handle)
			delete(c.entries, k)
		}
	}
	c.mu.Unlock()

	for _, h := range handles {
		c.release(ctx, h)
	}
}

func (c *Cache) expired(e Entry) bool {
	return c.ttl > 0 && c.now().Sub(e.Created) > c.ttl
}

func (c *Cache) release(ctx context.Context, h clips.Handle) {
	if err := c.clips.Release(ctx, h); err != nil {
		slog.Warn("failed to release preview clip", "handle", h, "error", err)
	}
}
