package esign

import (
	"strings"
	"sync"
	"time"
)

// Session is one authenticated admin's provider context.
type Session struct {
	Email       string
	AccessToken string
	TokenExpiry time.Time
	AccountID   string
	AccountName string
	BaseURI     string
	CreatedAt   time.Time
}

func (s *Session) expiredAt(now time.Time) bool {
	// Refresh ahead of actual expiry so in-flight calls don't race it.
	return now.After(s.TokenExpiry.Add(-10 * time.Minute))
}

// Registry caches provider sessions per admin email. It is bounded: once
// capacity is reached the oldest session is evicted, and entries past the
// TTL are dropped on access.
type Registry struct {
	mu       sync.Mutex
	ttl      time.Duration
	capacity int
	sessions map[string]*Session
	now      func() time.Time
}

func NewRegistry(ttl time.Duration, capacity int) *Registry {
	if capacity <= 0 {
		capacity = 256
	}
	if ttl <= 0 {
		ttl = 8 * time.Hour
	}
	return &Registry{
		ttl:      ttl,
		capacity: capacity,
		sessions: map[string]*Session{},
		now:      time.Now,
	}
}

func sessionKey(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (r *Registry) Get(email string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := sessionKey(email)
	session, ok := r.sessions[key]
	if !ok {
		return nil, false
	}
	if r.now().Sub(session.CreatedAt) > r.ttl {
		delete(r.sessions, key)
		return nil, false
	}
	return session, true
}

func (r *Registry) Put(session *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	for key, existing := range r.sessions {
		if now.Sub(existing.CreatedAt) > r.ttl {
			delete(r.sessions, key)
		}
	}

	key := sessionKey(session.Email)
	if _, exists := r.sessions[key]; !exists && len(r.sessions) >= r.capacity {
		r.evictOldestLocked()
	}
	r.sessions[key] = session
}

func (r *Registry) Delete(email string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, sessionKey(email))
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

func (r *Registry) evictOldestLocked() {
	var oldestKey string
	var oldestAt time.Time
	for key, session := range r.sessions {
		if oldestKey == "" || session.CreatedAt.Before(oldestAt) {
			oldestKey = key
			oldestAt = session.CreatedAt
		}
	}
	if oldestKey != "" {
		delete(r.sessions, oldestKey)
	}
}
