package redisclient

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// localLocker serializes slot critical sections in-process. Used by tests and
// single-node development runs where Redis is not available.
type localLocker struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewLocalLocker() Locker {
	return &localLocker{locks: make(map[string]*sync.Mutex)}
}

func (l *localLocker) WithSlotLock(ctx context.Context, clinicianID uuid.UUID, date string, hour int, fn func(ctx context.Context) error) error {
	key := fmt.Sprintf("%s:%s:%02d", clinicianID.String(), date, hour)

	l.mu.Lock()
	m, ok := l.locks[key]
	if !ok {
		m = &sync.Mutex{}
		l.locks[key] = m
	}
	l.mu.Unlock()

	m.Lock()
	defer m.Unlock()

	return fn(ctx)
}
