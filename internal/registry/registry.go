package registry

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/slotter-org/cocreation-backend/internal/logger"
)

const sessionLayout = "session_20060102_150405"

// Store persists the current session id across restarts.
type Store interface {
	Load(ctx context.Context) (string, error)
	Save(ctx context.Context, sessionID string) error
}

// Registry holds the current workshop session id. An empty id means no
// session is active and facilitator views show every participant.
type Registry struct {
	log     *logger.Logger
	mu      sync.RWMutex
	current string
	store   Store
	now     func() time.Time
}

// New builds a registry. store may be nil to keep the value in memory only.
func New(log *logger.Logger, store Store) *Registry {
	return &Registry{
		log:   log.With("component", "SessionRegistry"),
		store: store,
		now:   time.Now,
	}
}

// Restore reads the persisted session id, if any.
func (r *Registry) Restore(ctx context.Context) error {
	if r.store == nil {
		return nil
	}
	id, err := r.store.Load(ctx)
	if err != nil {
		return fmt.Errorf("restore session id: %w", err)
	}
	r.mu.Lock()
	r.current = id
	r.mu.Unlock()
	if id != "" {
		r.log.Info("Restored current session", "sessionID", id)
	}
	return nil
}

func (r *Registry) Current() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.current
}

// Start mints a timestamp-derived id and makes it current. The in-memory value
// is replaced even if persisting it fails.
func (r *Registry) Start(ctx context.Context) (string, error) {
	id := r.now().Format(sessionLayout)
	r.mu.Lock()
	r.current = id
	r.mu.Unlock()
	r.log.Info("Started new session", "sessionID", id)

	if r.store != nil {
		if err := r.store.Save(ctx, id); err != nil {
			return id, fmt.Errorf("persist session id: %w", err)
		}
	}
	return id, nil
}
