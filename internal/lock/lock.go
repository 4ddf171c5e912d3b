package lock

import (
	"context"
	"errors"
	"sync"
)

// ErrBusy is returned when another operation already holds the key.
var ErrBusy = errors.New("lock: operation already in flight")

// Guard grants exclusive, non-blocking ownership of a key. A second caller for
// a held key is rejected with ErrBusy instead of waiting.
type Guard interface {
	TryAcquire(ctx context.Context, key string) (release func(), err error)
}

// Local is an in-process Guard.
type Local struct {
	mu   sync.Mutex
	held map[string]struct{}
}

// NewLocal constructs an empty in-process guard.
func NewLocal() *Local {
	return &Local{held: make(map[string]struct{})}
}

// TryAcquire marks key as held or returns ErrBusy.
func (l *Local) TryAcquire(_ context.Context, key string) (func(), error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held == nil {
		l.held = make(map[string]struct{})
	}
	if _, ok := l.held[key]; ok {
		return nil, ErrBusy
	}
	l.held[key] = struct{}{}
	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			delete(l.held, key)
			l.mu.Unlock()
		})
	}, nil
}
