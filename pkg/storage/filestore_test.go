package storage

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"uninotes/pkg/crypto"
)

func quietLogger() logrus.FieldLogger {
	log := logrus.New()
	log.SetOutput(os.Stderr)
	log.SetLevel(logrus.ErrorLevel)
	return log
}

func newTestKey(t *testing.T) []byte {
	t.Helper()
	key, err := crypto.StorageKey("test-secret", filepath.Join(t.TempDir(), "kdf.json"))
	if err != nil {
		t.Fatal(err)
	}
	return key
}

func TestFileStoreSetGetRemove(t *testing.T) {
	ctx := context.Background()
	s, err := NewFileStore(t.TempDir(), nil, quietLogger())
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	if _, ok, err := s.Get(ctx, "browser1", KeyToken); err != nil || ok {
		t.Fatalf("empty namespace: ok=%v err=%v", ok, err)
	}

	if err := s.Set(ctx, "browser1", KeyToken, "t"); err != nil {
		t.Fatal(err)
	}
	if err := s.Set(ctx, "browser1", KeyUser, `{"_id":"1"}`); err != nil {
		t.Fatal(err)
	}

	v, ok, err := s.Get(ctx, "browser1", KeyToken)
	if err != nil || !ok || v != "t" {
		t.Fatalf("Get token = %q, %v, %v", v, ok, err)
	}

	if err := s.Remove(ctx, "browser1", KeyToken, KeyUser, "missing"); err != nil {
		t.Fatal(err)
	}
	if _, ok, _ := s.Get(ctx, "browser1", KeyUser); ok {
		t.Fatal("user still present after Remove")
	}
}

func TestFileStoreSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	key := newTestKey(t)

	first, err := NewFileStore(dir, key, quietLogger())
	if err != nil {
		t.Fatal(err)
	}
	if err := first.Set(ctx, "abc", KeyToken, "secret-token"); err != nil {
		t.Fatal(err)
	}
	first.Close()

	raw, err := os.ReadFile(filepath.Join(dir, "abc.json"))
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(raw), "secret-token") {
		t.Fatal("token stored in plaintext")
	}

	second, err := NewFileStore(dir, key, quietLogger())
	if err != nil {
		t.Fatal(err)
	}
	defer second.Close()
	v, ok, err := second.Get(ctx, "abc", KeyToken)
	if err != nil || !ok || v != "secret-token" {
		t.Fatalf("after reopen Get = %q, %v, %v", v, ok, err)
	}
}

func TestFileStoreWrongKeyMovesFileAside(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	s, _ := NewFileStore(dir, newTestKey(t), quietLogger())
	s.Set(ctx, "abc", KeyToken, "t")
	s.Close()

	other, _ := NewFileStore(dir, newTestKey(t), quietLogger())
	defer other.Close()

	_, ok, err := other.Get(ctx, "abc", KeyToken)
	if err != nil || ok {
		t.Fatalf("unreadable namespace should read as empty, got ok=%v err=%v", ok, err)
	}
	matches, _ := filepath.Glob(filepath.Join(dir, "corrupted", "abc-*.json"))
	if len(matches) != 1 {
		t.Fatalf("corrupted files = %v", matches)
	}
}

func TestFileStoreNamespacesAndPurge(t *testing.T) {
	ctx := context.Background()
	s, _ := NewFileStore(t.TempDir(), nil, quietLogger())
	defer s.Close()

	s.Set(ctx, "one", KeyToken, "a")
	s.Set(ctx, "two", KeyToken, "b")

	list, err := s.Namespaces(ctx)
	if err != nil || len(list) != 2 {
		t.Fatalf("Namespaces = %v, %v", list, err)
	}

	if err := s.Purge(ctx, "one"); err != nil {
		t.Fatal(err)
	}
	list, _ = s.Namespaces(ctx)
	if len(list) != 1 || list[0].Name != "two" {
		t.Fatalf("after purge = %v", list)
	}
}

func TestFileStoreRejectsUnsafeNamespace(t *testing.T) {
	s, _ := NewFileStore(t.TempDir(), nil, quietLogger())
	defer s.Close()

	if err := s.Set(context.Background(), "../etc", KeyToken, "x"); err == nil {
		t.Fatal("expected error for path traversal namespace")
	}
}

func TestFileStoreReportsExternalWrites(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	s, _ := NewFileStore(dir, nil, quietLogger())
	defer s.Close()
	if s.watcher == nil {
		t.Skip("fsnotify unavailable")
	}

	changes := make(chan Change, 8)
	s.Watch(func(c Change) { changes <- c })

	// Own writes are not reported.
	s.Set(ctx, "mine", KeyToken, "a")

	other, _ := NewFileStore(dir, nil, quietLogger())
	defer other.Close()
	time.Sleep(50 * time.Millisecond)
	other.Set(ctx, "theirs", KeyToken, "b")

	deadline := time.After(2 * time.Second)
	for {
		select {
		case c := <-changes:
			if c.Namespace == "mine" {
				t.Fatal("own write reported as external change")
			}
			if c.Namespace == "theirs" {
				v, ok, _ := s.Get(ctx, "theirs", KeyToken)
				if !ok || v != "b" {
					t.Fatalf("external value not visible: %q %v", v, ok)
				}
				return
			}
		case <-deadline:
			t.Fatal("no change event for external write")
		}
	}
}

func TestPurgeOfMissingNamespaceKeepsRemovalsVisible(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	s, _ := NewFileStore(dir, nil, quietLogger())
	defer s.Close()

	if err := s.Purge(ctx, "ghost"); err != nil {
		t.Fatalf("purge of absent namespace: %v", err)
	}
	s.mutex.Lock()
	pending := s.pendingDeletions["ghost"]
	s.mutex.Unlock()
	if pending {
		t.Fatal("absent namespace left marked as our own deletion")
	}
	if s.watcher == nil {
		return
	}

	changes := make(chan Change, 8)
	s.Watch(func(c Change) { changes <- c })

	other, _ := NewFileStore(dir, nil, quietLogger())
	defer other.Close()
	other.Set(ctx, "ghost", KeyToken, "b")
	time.Sleep(50 * time.Millisecond)
	if err := os.Remove(filepath.Join(dir, "ghost.json")); err != nil {
		t.Fatal(err)
	}

	deadline := time.After(2 * time.Second)
	for {
		select {
		case c := <-changes:
			if c.Namespace == "ghost" && c.Removed {
				return
			}
		case <-deadline:
			t.Fatal("external removal was not reported")
		}
	}
}

func TestBackupIncludesNamespaces(t *testing.T) {
	ctx := context.Background()
	s, _ := NewFileStore(t.TempDir(), nil, quietLogger())
	defer s.Close()
	s.Set(ctx, "one", KeyToken, "a")

	path, err := s.Backup(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if info, err := os.Stat(path); err != nil || info.Size() == 0 {
		t.Fatalf("backup missing or empty: %v", err)
	}
}
