package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"

	"uninotes/pkg/crypto"
	"uninotes/pkg/errors"
)

// namespaceFile is the on-disk form of one namespace. Values is used when no
// key is configured, EncryptedData otherwise.
type namespaceFile struct {
	Namespace     string            `json:"namespace"`
	Values        map[string]string `json:"values,omitempty"`
	EncryptedData string            `json:"encryptedData,omitempty"`
	UpdatedAt     time.Time         `json:"updatedAt"`
}

// FileStore keeps one JSON file per namespace and watches the directory for
// writes made by other processes.
type FileStore struct {
	dataDir          string
	key              []byte
	log              logrus.FieldLogger
	cache            map[string]map[string]string
	mutex            sync.RWMutex
	watcher          *fsnotify.Watcher
	fileModTimes     map[string]time.Time
	pendingDeletions map[string]bool
	subscribers      []func(Change)
	subMutex         sync.RWMutex
}

// NewFileStore creates the data directory and starts the watcher. A nil key
// stores values in plain JSON.
func NewFileStore(dataDir string, key []byte, log logrus.FieldLogger) (*FileStore, error) {
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}

	s := &FileStore{
		dataDir:          dataDir,
		key:              key,
		log:              log.WithField("component", "filestore"),
		cache:            make(map[string]map[string]string),
		fileModTimes:     make(map[string]time.Time),
		pendingDeletions: make(map[string]bool),
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		s.log.WithError(err).Warn("could not create file watcher")
		return s, nil
	}
	if err := watcher.Add(dataDir); err != nil {
		s.log.WithError(err).Warn("could not watch data directory")
		watcher.Close()
		return s, nil
	}
	s.watcher = watcher
	go s.watch()

	return s, nil
}

// DataDir returns the directory holding the namespace files
func (s *FileStore) DataDir() string {
	return s.dataDir
}

// Watch registers fn for changes made outside this store.
func (s *FileStore) Watch(fn func(Change)) {
	s.subMutex.Lock()
	s.subscribers = append(s.subscribers, fn)
	s.subMutex.Unlock()
}

func (s *FileStore) notify(c Change) {
	s.subMutex.RLock()
	subs := append([]func(Change){}, s.subscribers...)
	s.subMutex.RUnlock()

	for _, fn := range subs {
		fn(c)
	}
}

func (s *FileStore) watch() {
	for {
		select {
		case event, ok := <-s.watcher.Events:
			if !ok {
				return
			}

			ns, ok := s.namespaceOf(event.Name)
			if !ok {
				continue
			}

			switch {
			case event.Has(fsnotify.Create), event.Has(fsnotify.Write):
				s.handleFileWrite(ns, event.Name)
			case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
				s.handleFileRemove(ns, event.Name)
			}

		case err, ok := <-s.watcher.Errors:
			if !ok {
				return
			}
			s.log.WithError(err).Warn("watcher error")
		}
	}
}

func (s *FileStore) namespaceOf(path string) (string, bool) {
	name := filepath.Base(path)
	if !strings.HasSuffix(name, ".json") {
		return "", false
	}
	ns := strings.TrimSuffix(name, ".json")
	return ns, ValidNamespace(ns)
}

func (s *FileStore) handleFileWrite(ns, path string) {
	info, err := os.Stat(path)
	if err != nil {
		return
	}

	s.mutex.Lock()
	last, seen := s.fileModTimes[path]
	if seen && !info.ModTime().After(last) {
		// our own write
		s.mutex.Unlock()
		return
	}
	s.fileModTimes[path] = info.ModTime()
	delete(s.cache, ns)
	s.mutex.Unlock()

	s.log.WithField("namespace", ns).Debug("namespace changed on disk")
	s.notify(Change{Namespace: ns})
}

func (s *FileStore) handleFileRemove(ns, path string) {
	s.mutex.Lock()
	wasOurs := s.pendingDeletions[ns]
	delete(s.pendingDeletions, ns)
	delete(s.cache, ns)
	delete(s.fileModTimes, path)
	s.mutex.Unlock()

	if !wasOurs {
		s.log.WithField("namespace", ns).Info("namespace removed externally")
		s.notify(Change{Namespace: ns, Removed: true})
	}
}

func (s *FileStore) path(ns string) string {
	return filepath.Join(s.dataDir, ns+".json")
}

// load returns the namespace values. Callers hold s.mutex.
func (s *FileStore) load(ns string) (map[string]string, error) {
	if values, ok := s.cache[ns]; ok {
		return values, nil
	}

	path := s.path(ns)
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, errors.ErrStorageRead.Wrapping(err).WithContext("namespace", ns)
	}

	values, err := s.decode(data)
	if err != nil {
		s.log.WithError(err).WithField("namespace", ns).Warn("unreadable namespace file, moving aside")
		if mvErr := s.moveToCorrupted(ns); mvErr != nil {
			s.log.WithError(mvErr).Error("failed to move corrupted namespace file")
		}
		return map[string]string{}, nil
	}

	if info, err := os.Stat(path); err == nil {
		s.fileModTimes[path] = info.ModTime()
	}
	s.cache[ns] = values
	return values, nil
}

func (s *FileStore) decode(data []byte) (map[string]string, error) {
	var file namespaceFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, err
	}

	if file.EncryptedData == "" {
		if s.key != nil && len(file.Values) > 0 {
			return nil, fmt.Errorf("plaintext namespace file while encryption is enabled")
		}
		if file.Values == nil {
			file.Values = map[string]string{}
		}
		return file.Values, nil
	}

	if s.key == nil {
		return nil, fmt.Errorf("encrypted namespace file but no storage secret configured")
	}
	plain, err := crypto.Decrypt(file.EncryptedData, s.key)
	if err != nil {
		return nil, err
	}
	values := map[string]string{}
	if err := json.Unmarshal(plain, &values); err != nil {
		return nil, err
	}
	return values, nil
}

// persist writes the namespace through a temp file and rename. Callers hold s.mutex.
func (s *FileStore) persist(ns string, values map[string]string) error {
	file := namespaceFile{Namespace: ns, UpdatedAt: time.Now().UTC()}
	if s.key == nil {
		file.Values = values
	} else {
		plain, err := json.Marshal(values)
		if err != nil {
			return err
		}
		if file.EncryptedData, err = crypto.Encrypt(plain, s.key); err != nil {
			return err
		}
	}

	data, err := json.MarshalIndent(file, "", "  ")
	if err != nil {
		return err
	}

	path := s.path(ns)
	tmp := filepath.Join(s.dataDir, "."+ns+".tmp")
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return errors.ErrStorageWrite.Wrapping(err).WithContext("namespace", ns)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return errors.ErrStorageWrite.Wrapping(err).WithContext("namespace", ns)
	}

	if info, err := os.Stat(path); err == nil {
		s.fileModTimes[path] = info.ModTime()
	}
	s.cache[ns] = values
	return nil
}

func (s *FileStore) moveToCorrupted(ns string) error {
	corruptedDir := filepath.Join(s.dataDir, "corrupted")
	if err := os.MkdirAll(corruptedDir, 0700); err != nil {
		return err
	}
	oldPath := s.path(ns)
	newPath := filepath.Join(corruptedDir, fmt.Sprintf("%s-%d.json", ns, time.Now().Unix()))

	delete(s.fileModTimes, oldPath)
	if err := os.Rename(oldPath, newPath); err != nil {
		return err
	}
	s.pendingDeletions[ns] = true
	return nil
}

// Get implements Store
func (s *FileStore) Get(_ context.Context, ns, key string) (string, bool, error) {
	if !ValidNamespace(ns) {
		return "", false, fmt.Errorf("invalid namespace %q", ns)
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	values, err := s.load(ns)
	if err != nil {
		return "", false, err
	}
	v, ok := values[key]
	return v, ok, nil
}

// Set implements Store
func (s *FileStore) Set(_ context.Context, ns, key, value string) error {
	if !ValidNamespace(ns) {
		return fmt.Errorf("invalid namespace %q", ns)
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	values, err := s.load(ns)
	if err != nil {
		return err
	}
	next := copyValues(values)
	next[key] = value
	return s.persist(ns, next)
}

// Remove implements Store
func (s *FileStore) Remove(_ context.Context, ns string, keys ...string) error {
	if !ValidNamespace(ns) {
		return fmt.Errorf("invalid namespace %q", ns)
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	values, err := s.load(ns)
	if err != nil {
		return err
	}
	next := copyValues(values)
	changed := false
	for _, k := range keys {
		if _, ok := next[k]; ok {
			delete(next, k)
			changed = true
		}
	}
	if !changed {
		return nil
	}
	return s.persist(ns, next)
}

// Namespaces implements Store
func (s *FileStore) Namespaces(_ context.Context) ([]Namespace, error) {
	files, err := filepath.Glob(filepath.Join(s.dataDir, "*.json"))
	if err != nil {
		return nil, fmt.Errorf("list namespace files: %w", err)
	}

	out := make([]Namespace, 0, len(files))
	for _, file := range files {
		ns, ok := s.namespaceOf(file)
		if !ok {
			continue
		}
		info, err := os.Stat(file)
		if err != nil {
			continue
		}
		out = append(out, Namespace{Name: ns, UpdatedAt: info.ModTime()})
	}
	return out, nil
}

// Purge implements Store
func (s *FileStore) Purge(_ context.Context, ns string) error {
	if !ValidNamespace(ns) {
		return fmt.Errorf("invalid namespace %q", ns)
	}

	path := s.path(ns)

	s.mutex.Lock()
	defer s.mutex.Unlock()

	delete(s.cache, ns)
	delete(s.fileModTimes, path)

	// The watcher waits on s.mutex, so marking after the remove is still in time.
	if err := os.Remove(path); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return errors.ErrStorageWrite.Wrapping(err).WithContext("namespace", ns)
	}
	s.pendingDeletions[ns] = true
	return nil
}

// Close stops the file watcher
func (s *FileStore) Close() error {
	if s.watcher != nil {
		return s.watcher.Close()
	}
	return nil
}

func copyValues(values map[string]string) map[string]string {
	next := make(map[string]string, len(values)+1)
	for k, v := range values {
		next[k] = v
	}
	return next
}
