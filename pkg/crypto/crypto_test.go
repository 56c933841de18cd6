package crypto

import (
	"bytes"
	"path/filepath"
	"testing"
)

func TestStorageKeyIsStableAcrossLoads(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keys", "kdf.json")

	first, err := StorageKey("s3cret", path)
	if err != nil {
		t.Fatalf("StorageKey: %v", err)
	}
	second, err := StorageKey("s3cret", path)
	if err != nil {
		t.Fatalf("StorageKey reload: %v", err)
	}
	if !bytes.Equal(first, second) {
		t.Fatal("key changed between loads with the same salt file")
	}
	if len(first) != DefaultKeyLength {
		t.Fatalf("key length = %d", len(first))
	}

	other, err := StorageKey("different", path)
	if err != nil {
		t.Fatal(err)
	}
	if bytes.Equal(first, other) {
		t.Fatal("different secrets derived the same key")
	}
}

func TestEncryptDecrypt(t *testing.T) {
	cfg, err := NewKeyDerivationConfig()
	if err != nil {
		t.Fatal(err)
	}
	key, err := DeriveKey("pw", cfg)
	if err != nil {
		t.Fatal(err)
	}

	sealed, err := Encrypt([]byte(`{"token":"t"}`), key)
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	if bytes.Contains([]byte(sealed), []byte("token")) {
		t.Fatal("ciphertext leaks plaintext")
	}

	plain, err := Decrypt(sealed, key)
	if err != nil {
		t.Fatalf("Decrypt: %v", err)
	}
	if string(plain) != `{"token":"t"}` {
		t.Fatalf("round trip = %q", plain)
	}

	wrong, _ := DeriveKey("other", cfg)
	if _, err := Decrypt(sealed, wrong); err == nil {
		t.Fatal("expected error decrypting with the wrong key")
	}
}
