package storage

import (
	"context"

	"uninotes/pkg/crypto"
)

// Sealed encrypts values before they reach the wrapped store.
type Sealed struct {
	Store
	key []byte
}

// NewSealed wraps store with AES-GCM value encryption.
func NewSealed(store Store, key []byte) *Sealed {
	return &Sealed{Store: store, key: key}
}

// Get decrypts the stored value
func (s *Sealed) Get(ctx context.Context, ns, key string) (string, bool, error) {
	raw, ok, err := s.Store.Get(ctx, ns, key)
	if err != nil || !ok {
		return "", ok, err
	}
	plain, err := crypto.Decrypt(raw, s.key)
	if err != nil {
		return "", false, err
	}
	return string(plain), true, nil
}

// Set encrypts value before storing it
func (s *Sealed) Set(ctx context.Context, ns, key, value string) error {
	sealed, err := crypto.Encrypt([]byte(value), s.key)
	if err != nil {
		return err
	}
	return s.Store.Set(ctx, ns, key, sealed)
}
