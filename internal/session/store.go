package session

import (
	"sync"
	"time"

	"github.com/KaramelBytes/tabletalk/internal/dispatch"
)

// Store keeps live sessions in memory. Nothing survives a restart.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

func NewStore() *Store {
	return &Store{sessions: make(map[string]*Session)}
}

// Create starts and registers a new session.
func (st *Store) Create(cfg dispatch.ProviderConfig) *Session {
	s := New(cfg)
	st.mu.Lock()
	defer st.mu.Unlock()
	st.sessions[s.ID] = s
	return s
}

func (st *Store) Get(id string) (*Session, error) {
	st.mu.RLock()
	defer st.mu.RUnlock()
	if s, ok := st.sessions[id]; ok {
		return s, nil
	}
	return nil, ErrNotFound
}

// Delete ends a session and forgets it.
func (st *Store) Delete(id string) error {
	st.mu.Lock()
	s, ok := st.sessions[id]
	delete(st.sessions, id)
	st.mu.Unlock()
	if !ok {
		return ErrNotFound
	}
	s.Close()
	return nil
}

// SweepIdle ends sessions unused for longer than ttl and returns their IDs.
func (st *Store) SweepIdle(ttl time.Duration) []string {
	cutoff := now().Add(-ttl)
	st.mu.Lock()
	var idle []*Session
	for id, s := range st.sessions {
		if s.LastUsed().Before(cutoff) {
			idle = append(idle, s)
			delete(st.sessions, id)
		}
	}
	st.mu.Unlock()

	ids := make([]string, 0, len(idle))
	for _, s := range idle {
		s.Close()
		ids = append(ids, s.ID)
	}
	return ids
}

func (st *Store) Len() int {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return len(st.sessions)
}
