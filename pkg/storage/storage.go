package storage

import (
	"context"
	"regexp"
	"time"
)

// Keys written by the web frontend.
const (
	KeyUser  = "user"
	KeyToken = "token"
	KeyNotes = "notes"
)

// Store is durable key/value storage partitioned by browser namespace.
type Store interface {
	// Get returns the value and whether it was present.
	Get(ctx context.Context, namespace, key string) (string, bool, error)
	Set(ctx context.Context, namespace, key, value string) error
	// Remove deletes the given keys. Missing keys are not an error.
	Remove(ctx context.Context, namespace string, keys ...string) error
	// Namespaces lists every namespace with its last write time.
	Namespaces(ctx context.Context) ([]Namespace, error)
	// Purge drops a namespace and all of its keys.
	Purge(ctx context.Context, namespace string) error
	Close() error
}

// Namespace describes one partition of the store.
type Namespace struct {
	Name      string
	UpdatedAt time.Time
}

// Change reports a write this process did not make itself.
type Change struct {
	Namespace string
	Removed   bool
}

// Watcher is implemented by stores that can observe external writers.
type Watcher interface {
	Watch(fn func(Change))
}

var namespacePattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

// ValidNamespace reports whether ns is safe to use as a file name or key prefix.
func ValidNamespace(ns string) bool {
	return namespacePattern.MatchString(ns)
}
