// Package session tracks the intent each conversation was last routed to,
// so ambiguous follow-up turns can stay pinned to the active agent.
package session

import (
	"sync"
	"sync/atomic"
	"time"

	"support-agent/internal/intent"
)

const (
	defaultTTL        = 30 * time.Minute
	defaultMaxEntries = 10_000
)

type entry struct {
	mu       sync.Mutex
	label    intent.Label
	resolved bool
	lastSeen atomic.Int64 // unix nanos, readable without the entry lock
}

func (e *entry) touch(t time.Time) { e.lastSeen.Store(t.UnixNano()) }

func (e *entry) age(now time.Time) time.Duration {
	return now.Sub(time.Unix(0, e.lastSeen.Load()))
}

// Store is a concurrency-safe conversationID → last-intent map. Entries
// expire after a TTL and the map is capped; the oldest entry is evicted when
// a new conversation would exceed the cap.
type Store struct {
	mu         sync.Mutex
	entries    map[string]*entry
	ttl        time.Duration
	maxEntries int
	now        func() time.Time
}

type Option func(*Store)

// WithTTL sets how long an idle conversation keeps its last intent.
func WithTTL(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.ttl = d
		}
	}
}

// WithMaxEntries caps how many conversations the store tracks at once.
func WithMaxEntries(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.maxEntries = n
		}
	}
}

func NewStore(opts ...Option) *Store {
	s := &Store{
		entries:    map[string]*entry{},
		ttl:        defaultTTL,
		maxEntries: defaultMaxEntries,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Update runs fn with the conversation's previous intent (ok reports whether
// one exists and is still fresh) and records fn's result as the new last
// intent. The read and write happen inside one per-conversation critical
// section; other conversations proceed unblocked.
func (s *Store) Update(conversationID string, fn func(prev intent.Label, ok bool) intent.Label) (prev intent.Label, hadPrev bool, next intent.Label) {
	now := s.now()
	e := s.acquire(conversationID, now)

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.resolved && e.age(now) <= s.ttl {
		prev, hadPrev = e.label, true
	}
	next = fn(prev, hadPrev)
	e.label = next
	e.resolved = true
	e.touch(s.now())
	return prev, hadPrev, next
}

// Last returns the conversation's stored intent without touching it.
func (s *Store) Last(conversationID string) (intent.Label, bool) {
	s.mu.Lock()
	e, ok := s.entries[conversationID]
	s.mu.Unlock()
	if !ok {
		return "", false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.resolved || e.age(s.now()) > s.ttl {
		return "", false
	}
	return e.label, true
}

// Len reports how many conversations are currently tracked, expired entries
// included until they are evicted.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// acquire returns the entry for a conversation, creating it and evicting
// stale or surplus entries under the map lock.
func (s *Store) acquire(conversationID string, now time.Time) *entry {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e, ok := s.entries[conversationID]; ok {
		return e
	}
	s.evictLocked(now)
	e := &entry{}
	e.touch(now)
	s.entries[conversationID] = e
	return e
}

// evictLocked drops expired entries, then the oldest one if the store is
// still at capacity. Callers hold s.mu.
func (s *Store) evictLocked(now time.Time) {
	for id, e := range s.entries {
		if e.age(now) > s.ttl {
			delete(s.entries, id)
		}
	}
	if len(s.entries) < s.maxEntries {
		return
	}
	var oldestID string
	var oldest int64
	for id, e := range s.entries {
		if ts := e.lastSeen.Load(); oldestID == "" || ts < oldest {
			oldestID, oldest = id, ts
		}
	}
	if oldestID != "" {
		delete(s.entries, oldestID)
	}
}
