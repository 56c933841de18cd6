package storage

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"uninotes/pkg/config"
	"uninotes/pkg/crypto"
	"uninotes/pkg/metrics"
)

// Open builds the store selected by cfg.StorageDriver. When a storage secret
// is configured, values are encrypted at rest.
func Open(ctx context.Context, cfg *config.Config, log logrus.FieldLogger) (Store, error) {
	var key []byte
	if cfg.StorageSecret != "" {
		var err error
		key, err = crypto.StorageKey(cfg.StorageSecret, filepath.Join(cfg.DataDir, "kdf.json"))
		if err != nil {
			return nil, err
		}
	}

	var store Store
	switch cfg.StorageDriver {
	case config.DriverFile:
		fs, err := NewFileStore(filepath.Join(cfg.DataDir, "sessions"), key, log)
		if err != nil {
			return nil, err
		}
		store = fs
	case config.DriverSQLite:
		s, err := NewSQLStore(cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		store = s
	case config.DriverPostgres:
		p, err := NewPostgresStore(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, err
		}
		store = p
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.StorageDriver)
	}

	if key != nil && cfg.StorageDriver != config.DriverFile {
		store = NewSealed(store, key)
	}

	log.WithFields(logrus.Fields{
		"driver":    cfg.StorageDriver,
		"encrypted": key != nil,
	}).Info("durable storage ready")

	return Instrument(store, cfg.StorageDriver), nil
}

// Instrumented counts operations per driver.
type Instrumented struct {
	Store
	driver string
}

// Instrument wraps store with prometheus counters.
func Instrument(store Store, driver string) *Instrumented {
	return &Instrumented{Store: store, driver: driver}
}

// Unwrap returns the wrapped store.
func (s *Instrumented) Unwrap() Store { return s.Store }

func (s *Instrumented) Get(ctx context.Context, ns, key string) (string, bool, error) {
	v, ok, err := s.Store.Get(ctx, ns, key)
	metrics.StorageResult(s.driver, "get", err)
	return v, ok, err
}

func (s *Instrumented) Set(ctx context.Context, ns, key, value string) error {
	err := s.Store.Set(ctx, ns, key, value)
	metrics.StorageResult(s.driver, "set", err)
	return err
}

func (s *Instrumented) Remove(ctx context.Context, ns string, keys ...string) error {
	err := s.Store.Remove(ctx, ns, keys...)
	metrics.StorageResult(s.driver, "remove", err)
	return err
}

func (s *Instrumented) Purge(ctx context.Context, ns string) error {
	err := s.Store.Purge(ctx, ns)
	metrics.StorageResult(s.driver, "purge", err)
	return err
}

// Watch forwards to the wrapped store when it can observe external writes.
func (s *Instrumented) Watch(fn func(Change)) {
	if w, ok := s.Store.(Watcher); ok {
		w.Watch(fn)
	}
}
