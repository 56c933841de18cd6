package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"io"

	"uninotes/pkg/errors"
)

// Encrypt seals plaintext with AES-GCM and returns base64(nonce|ciphertext)
func Encrypt(plaintext []byte, key []byte) (string, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return "", err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", errors.Wrap(err, errors.ErrTypeStorage, "NONCE_GENERATION_FAILED",
			"failed to generate nonce")
	}

	sealed := gcm.Seal(nonce, nonce, plaintext, nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt reverses Encrypt
func Decrypt(encoded string, key []byte) ([]byte, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrTypeStorage, "CIPHERTEXT_DECODE_FAILED",
			"failed to decode ciphertext")
	}

	nonceSize := gcm.NonceSize()
	if len(data) < nonceSize {
		return nil, errors.New(errors.ErrTypeStorage, "CIPHERTEXT_TOO_SHORT",
			"ciphertext too short")
	}

	plaintext, err := gcm.Open(nil, data[:nonceSize], data[nonceSize:], nil)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrTypeStorage, "DECRYPTION_FAILED",
			"failed to decrypt data").
			WithUserMessage("Stored data could not be read. Check STORAGE_SECRET.")
	}
	return plaintext, nil
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrTypeStorage, "CIPHER_INIT_FAILED",
			"failed to create cipher")
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrTypeStorage, "GCM_INIT_FAILED",
			"failed to create GCM")
	}
	return gcm, nil
}
