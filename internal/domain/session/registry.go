package session

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/secondvote/trends/pkg/metrics"
)

const (
	defaultMaxSessions = 1000
	defaultIdleTTL     = 30 * time.Minute
)

// Session is one user's view of the service. Nothing is shared between sessions.
type Session struct {
	ID        string
	CreatedAt time.Time

	cache    *Cache
	mu       sync.Mutex
	lastSeen time.Time
}

// Cache returns the session's dataset cache.
func (s *Session) Cache() *Cache { return s.cache }

// LastSeen reports when the session was last created or looked up.
func (s *Session) LastSeen() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeen
}

func (s *Session) touch(now time.Time) {
	s.mu.Lock()
	s.lastSeen = now
	s.mu.Unlock()
}

// Registry tracks live sessions by id.
type Registry struct {
	mu          sync.Mutex
	sessions    map[string]*Session
	maxSessions int
	idleTTL     time.Duration
	now         func() time.Time
}

// NewRegistry creates an empty registry.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		sessions:    make(map[string]*Session),
		maxSessions: defaultMaxSessions,
		idleTTL:     defaultIdleTTL,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Create registers a new session with an empty cache. When the registry is
// full the session idle the longest is evicted first.
func (r *Registry) Create() *Session {
	now := r.now()
	s := &Session{
		ID:        uuid.NewString(),
		CreatedAt: now,
		cache:     NewCache(),
		lastSeen:  now,
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.maxSessions > 0 && len(r.sessions) >= r.maxSessions {
		r.evictOldestLocked()
	}
	r.sessions[s.ID] = s
	metrics.UpdateActiveSessions(len(r.sessions))
	return s
}

// Get returns the session and marks it as seen.
func (r *Registry) Get(id string) (*Session, error) {
	r.mu.Lock()
	s, ok := r.sessions[id]
	r.mu.Unlock()
	if !ok {
		return nil, ErrUnknownSession
	}
	s.touch(r.now())
	return s, nil
}

// Delete removes the session. It reports whether the id was known.
func (r *Registry) Delete(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok {
		return false
	}
	s.cache.Invalidate()
	delete(r.sessions, id)
	metrics.UpdateActiveSessions(len(r.sessions))
	return true
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Sweep evicts every session idle for longer than the TTL as of now and
// returns how many were removed.
func (r *Registry) Sweep(now time.Time) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	evicted := 0
	for id, s := range r.sessions {
		if now.Sub(s.LastSeen()) > r.idleTTL {
			s.cache.Invalidate()
			delete(r.sessions, id)
			metrics.RecordSessionEviction("idle")
			evicted++
		}
	}
	if evicted > 0 {
		metrics.UpdateActiveSessions(len(r.sessions))
	}
	return evicted
}

// Must be called with r.mu held.
func (r *Registry) evictOldestLocked() {
	var (
		oldestID string
		oldestAt time.Time
	)
	for id, s := range r.sessions {
		seen := s.LastSeen()
		if oldestID == "" || seen.Before(oldestAt) {
			oldestID, oldestAt = id, seen
		}
	}
	if oldestID == "" {
		return
	}
	r.sessions[oldestID].cache.Invalidate()
	delete(r.sessions, oldestID)
	metrics.RecordSessionEviction("capacity")
}
