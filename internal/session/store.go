package session

import (
	"sync"

	"photo-intake-bot/internal/pkg/metrics"
)

type entry struct {
	mu sync.Mutex
	s  Session
}

// Store keeps one entry per user. The map lock only guards lookups, session data is
// guarded by the entry's own mutex.
type Store struct {
	sessions map[int64]*entry
	mu       *sync.RWMutex
}

func NewStore() *Store {
	return &Store{
		sessions: make(map[int64]*entry),
		mu:       &sync.RWMutex{},
	}
}

func (s *Store) getOrCreate(userID int64) *entry {
	s.mu.RLock()
	e, ok := s.sessions[userID]
	s.mu.RUnlock()
	if ok {
		return e
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.sessions[userID]; ok {
		return e
	}
	e = &entry{s: Session{UserID: userID, State: StateIdle}}
	s.sessions[userID] = e
	return e
}

// Folders returns the storage paths of every session bound to an order.
func (s *Store) Folders() []string {
	s.mu.RLock()
	entries := make([]*entry, 0, len(s.sessions))
	for _, e := range s.sessions {
		entries = append(entries, e)
	}
	s.mu.RUnlock()

	var folders []string
	for _, e := range entries {
		e.mu.Lock()
		if e.s.State.HasOrder() {
			folders = append(folders, e.s.StoragePath)
		}
		e.mu.Unlock()
	}
	return folders
}

// bind and release keep the active session gauge in step with state changes.
func bind(e *entry) {
	if !e.s.State.HasOrder() {
		metrics.ActiveSessions.Inc()
	}
}

func release(e *entry) {
	if e.s.State.HasOrder() {
		metrics.ActiveSessions.Dec()
	}
	e.s = Session{UserID: e.s.UserID, State: StateIdle}
}
