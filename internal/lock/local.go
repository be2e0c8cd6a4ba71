package lock

import (
	"context"
	"sync"
	"time"
)

// localManager keeps the per-user sections in process memory. It is the
// single-node deployment mode and what the test suite runs against.
type localManager struct {
	cfg   Config
	mu    sync.Mutex
	slots map[string]chan struct{}
}

func NewLocalManager(cfg Config) Manager {
	return &localManager{cfg: cfg, slots: make(map[string]chan struct{})}
}

func (m *localManager) slot(userID string) chan struct{} {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.slots[userID]
	if !ok {
		s = make(chan struct{}, 1)
		m.slots[userID] = s
	}
	return s
}

func (m *localManager) Acquire(ctx context.Context, userID string) (Release, error) {
	s := m.slot(userID)

	timer := time.NewTimer(m.cfg.AcquireTimeout)
	defer timer.Stop()

	select {
	case s <- struct{}{}:
		return func(context.Context) error {
			<-s
			return nil
		}, nil
	case <-timer.C:
		return nil, ErrAcquireTimeout
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
