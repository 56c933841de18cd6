package crypto

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"os"
	"path/filepath"

	"uninotes/pkg/errors"

	"golang.org/x/crypto/pbkdf2"
)

// KeyDerivationConfig holds the parameters needed to re-derive a storage key
type KeyDerivationConfig struct {
	Salt       string `json:"salt"`
	Iterations int    `json:"iterations"`
	KeyLength  int    `json:"keyLength"`
}

const (
	DefaultPBKDF2Iterations = 100000
	DefaultKeyLength        = 32
	SaltLength              = 32
)

// NewKeyDerivationConfig creates a config with a fresh random salt
func NewKeyDerivationConfig() (*KeyDerivationConfig, error) {
	salt := make([]byte, SaltLength)
	if _, err := rand.Read(salt); err != nil {
		return nil, errors.Wrap(err, errors.ErrTypeStorage, "SALT_GENERATION_FAILED",
			"failed to generate salt")
	}

	return &KeyDerivationConfig{
		Salt:       base64.StdEncoding.EncodeToString(salt),
		Iterations: DefaultPBKDF2Iterations,
		KeyLength:  DefaultKeyLength,
	}, nil
}

// DeriveKey derives a key from the secret with PBKDF2-SHA256
func DeriveKey(secret string, cfg *KeyDerivationConfig) ([]byte, error) {
	salt, err := base64.StdEncoding.DecodeString(cfg.Salt)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrTypeConfig, "SALT_DECODE_FAILED",
			"failed to decode salt")
	}
	if cfg.Iterations <= 0 || cfg.KeyLength <= 0 {
		return nil, errors.New(errors.ErrTypeConfig, "INVALID_KDF_CONFIG",
			"invalid key derivation parameters").
			WithContext("iterations", cfg.Iterations).
			WithContext("keyLength", cfg.KeyLength)
	}

	return pbkdf2.Key([]byte(secret), salt, cfg.Iterations, cfg.KeyLength, sha256.New), nil
}

// LoadKeyDerivationConfig reads the config at path. A missing file returns (nil, nil).
func LoadKeyDerivationConfig(path string) (*KeyDerivationConfig, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrTypeStorage, "KDF_READ_FAILED",
			"failed to read key derivation config")
	}

	var cfg KeyDerivationConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, errors.Wrap(err, errors.ErrTypeConfig, "KDF_PARSE_FAILED",
			"failed to parse key derivation config").
			WithContext("path", path)
	}
	return &cfg, nil
}

// SaveKeyDerivationConfig writes the config to path with owner-only permissions
func SaveKeyDerivationConfig(cfg *KeyDerivationConfig, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return errors.Wrap(err, errors.ErrTypeStorage, "DIR_CREATE_FAILED",
			"failed to create config directory")
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return errors.Wrap(err, errors.ErrTypeConfig, "KDF_MARSHAL_FAILED",
			"failed to marshal key derivation config")
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return errors.Wrap(err, errors.ErrTypeStorage, "KDF_WRITE_FAILED",
			"failed to write key derivation config")
	}
	return nil
}

// StorageKey loads the salt stored at path, creating it on first use, and
// derives the at-rest key for secret.
func StorageKey(secret, path string) ([]byte, error) {
	cfg, err := LoadKeyDerivationConfig(path)
	if err != nil {
		return nil, err
	}
	if cfg == nil {
		if cfg, err = NewKeyDerivationConfig(); err != nil {
			return nil, err
		}
		if err := SaveKeyDerivationConfig(cfg, path); err != nil {
			return nil, err
		}
	}
	return DeriveKey(secret, cfg)
}
