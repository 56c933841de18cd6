package performance

import (
	"sync"

	"uninotes/pkg/errors"
)

// InFlight rejects a keyed action while an earlier one with the same key is
// still running.
type InFlight struct {
	mu      sync.Mutex
	running map[string]struct{}
}

// NewInFlight creates an empty guard.
func NewInFlight() *InFlight {
	return &InFlight{running: make(map[string]struct{})}
}

// Key joins a namespace and an action name.
func Key(namespace, action string) string {
	return namespace + "|" + action
}

// Do runs fn unless key is already running, in which case it returns
// errors.ErrInFlight without calling fn.
func (f *InFlight) Do(key string, fn func() error) error {
	f.mu.Lock()
	if _, busy := f.running[key]; busy {
		f.mu.Unlock()
		return errors.ErrInFlight.WithContext("key", key)
	}
	f.running[key] = struct{}{}
	f.mu.Unlock()

	defer func() {
		f.mu.Lock()
		delete(f.running, key)
		f.mu.Unlock()
	}()
	return fn()
}

// Busy reports whether key is running.
func (f *InFlight) Busy(key string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, busy := f.running[key]
	return busy
}
