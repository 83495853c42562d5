package uia

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

const sweepInterval = 1 * time.Minute

// MemStore is an in-memory SessionStore with a per-session TTL. Sessions
// expire ttl after their last activity; a background sweep reclaims them.
type MemStore struct {
	mu       sync.RWMutex
	sessions map[string]*memSession
	ttl      time.Duration
	now      func() time.Time
}

type memSession struct {
	mu         sync.Mutex
	id         string
	clientIP   string
	completed  map[string]string
	createdAt  time.Time
	lastActive time.Time
}

// NewMemStore creates a MemStore whose sessions expire ttl after their last
// activity.
func NewMemStore(ttl time.Duration) *MemStore {
	s := &MemStore{
		sessions: make(map[string]*memSession),
		ttl:      ttl,
		now:      time.Now,
	}
	go s.sweep()
	return s
}

// Create allocates a fresh open session bound to the client IP.
func (s *MemStore) Create(ctx context.Context, clientIP string) (*Session, error) {
	now := s.now()
	sess := &memSession{
		id:         uuid.NewString(),
		clientIP:   clientIP,
		completed:  make(map[string]string),
		createdAt:  now,
		lastActive: now,
	}

	s.mu.Lock()
	s.sessions[sess.id] = sess
	s.mu.Unlock()

	return sess.snapshot(), nil
}

// Get returns a copy of the session, or ErrSessionNotFound if it does not
// exist or has expired. Reading a live session refreshes its TTL.
func (s *MemStore) Get(ctx context.Context, id string) (*Session, error) {
	sess, err := s.lookup(id)
	if err != nil {
		return nil, err
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()
	sess.lastActive = s.now()
	return sess.snapshotLocked(), nil
}

// RecordStage records the stage result, keeping any result already recorded
// for that stage type. Locking is per session; unrelated sessions never
// contend.
func (s *MemStore) RecordStage(ctx context.Context, id, stageType, identity string) (*Session, error) {
	sess, err := s.lookup(id)
	if err != nil {
		return nil, err
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()
	if _, exists := sess.completed[stageType]; !exists {
		sess.completed[stageType] = identity
	}
	sess.lastActive = s.now()
	return sess.snapshotLocked(), nil
}

func (s *MemStore) lookup(id string) (*memSession, error) {
	s.mu.RLock()
	sess, ok := s.sessions[id]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrSessionNotFound
	}

	sess.mu.Lock()
	expired := s.now().Sub(sess.lastActive) > s.ttl
	sess.mu.Unlock()
	if expired {
		s.mu.Lock()
		delete(s.sessions, id)
		s.mu.Unlock()
		return nil, ErrSessionNotFound
	}
	return sess, nil
}

// sweep periodically removes expired sessions to prevent memory leaks
func (s *MemStore) sweep() {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	for range ticker.C {
		cutoff := s.now().Add(-s.ttl)

		s.mu.Lock()
		for id, sess := range s.sessions {
			sess.mu.Lock()
			stale := sess.lastActive.Before(cutoff)
			sess.mu.Unlock()
			if stale {
				delete(s.sessions, id)
			}
		}
		s.mu.Unlock()
	}
}

func (m *memSession) snapshot() *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshotLocked()
}

// snapshotLocked copies the session; callers must hold m.mu.
func (m *memSession) snapshotLocked() *Session {
	completed := make(map[string]string, len(m.completed))
	for k, v := range m.completed {
		completed[k] = v
	}
	return &Session{
		ID:        m.id,
		ClientIP:  m.clientIP,
		Completed: completed,
		CreatedAt: m.createdAt,
	}
}
