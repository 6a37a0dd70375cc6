package session

import (
	"context"
	"fmt"
	"sync"

	"github.com/yungbote/eduai-mentor/internal/clients/redis"
	"github.com/yungbote/eduai-mentor/internal/config"
	"github.com/yungbote/eduai-mentor/internal/domain/mentor"
	"github.com/yungbote/eduai-mentor/internal/platform/logger"
)

// Store persists session state. Get returns mentor.ErrSessionNotFound for unknown ids.
type Store interface {
	Get(ctx context.Context, id string) (*mentor.SessionState, error)
	Put(ctx context.Context, st *mentor.SessionState) error
	Delete(ctx context.Context, id string) error
	Close() error
}

// MemoryStore keeps deep copies so callers never alias stored state.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*mentor.SessionState
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: map[string]*mentor.SessionState{}}
}

func (m *MemoryStore) Get(_ context.Context, id string) (*mentor.SessionState, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	st, ok := m.sessions[id]
	if !ok {
		return nil, mentor.ErrSessionNotFound
	}
	return st.Clone(), nil
}

func (m *MemoryStore) Put(_ context.Context, st *mentor.SessionState) error {
	if st == nil {
		return fmt.Errorf("nil session state")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[st.ID] = st.Clone()
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
	return nil
}

func (m *MemoryStore) Close() error { return nil }

// OpenStore builds the configured backend.
func OpenStore(cfg config.SessionStoreConfig, log *logger.Logger) (Store, error) {
	switch cfg.Backend {
	case "", "memory":
		return NewMemoryStore(), nil
	case "redis":
		rs, err := redis.NewSessionStore(cfg, log)
		if err != nil {
			return nil, err
		}
		return rs, nil
	default:
		return nil, fmt.Errorf("unsupported session backend %q", cfg.Backend)
	}
}
