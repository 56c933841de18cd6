package auth

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"uninotes/pkg/errors"
	"uninotes/pkg/models"
	"uninotes/pkg/storage"
)

// Store is the session of one browser, backed by durable storage under the
// keys "user" and "token".
type Store struct {
	namespace string
	storage   storage.Store
	onChange  func(*Store)

	mu     sync.RWMutex
	user   *models.User
	token  string
	subs   map[int]func(*models.Session)
	nextID int
}

// Open hydrates the session for namespace from durable storage. A stored
// user that cannot be parsed counts as no session.
func Open(ctx context.Context, st storage.Store, namespace string) (*Store, error) {
	s := &Store{
		namespace: namespace,
		storage:   st,
		subs:      make(map[int]func(*models.Session)),
	}

	rawUser, hasUser, err := st.Get(ctx, namespace, storage.KeyUser)
	if err != nil {
		return nil, errors.ErrStorageRead.Wrapping(err).WithContext("namespace", namespace)
	}
	token, _, err := st.Get(ctx, namespace, storage.KeyToken)
	if err != nil {
		return nil, errors.ErrStorageRead.Wrapping(err).WithContext("namespace", namespace)
	}

	if hasUser {
		var u models.User
		if json.Unmarshal([]byte(rawUser), &u) == nil {
			s.user = &u
		}
	}
	s.token = token
	return s, nil
}

// Namespace returns the browser namespace this store belongs to.
func (s *Store) Namespace() string {
	return s.namespace
}

// Session returns a copy of the current session, or nil when nobody is
// signed in or the token has expired.
func (s *Store) Session() *models.Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sessionLocked(time.Now())
}

func (s *Store) sessionLocked(now time.Time) *models.Session {
	if s.user == nil || s.token == "" {
		return nil
	}
	if exp, ok := TokenExpiry(s.token); ok && !now.Before(exp) {
		return nil
	}
	return &models.Session{User: *s.user, Token: s.token}
}

// User returns the signed-in user or nil.
func (s *Store) User() *models.User {
	if sess := s.Session(); sess != nil {
		return &sess.User
	}
	return nil
}

// Token returns the bearer token, or "" when there is no session.
func (s *Store) Token() string {
	if sess := s.Session(); sess != nil {
		return sess.Token
	}
	return ""
}

// Login records an already authenticated user. The full user object goes
// under "user" and the bare token under "token".
func (s *Store) Login(ctx context.Context, user models.User) error {
	data, err := json.Marshal(user)
	if err != nil {
		return err
	}

	s.mu.Lock()
	if err := s.storage.Set(ctx, s.namespace, storage.KeyUser, string(data)); err != nil {
		s.mu.Unlock()
		return errors.ErrStorageWrite.Wrapping(err)
	}
	if err := s.storage.Set(ctx, s.namespace, storage.KeyToken, user.Token); err != nil {
		s.mu.Unlock()
		return errors.ErrStorageWrite.Wrapping(err)
	}
	s.user = &user
	s.token = user.Token
	s.mu.Unlock()

	s.notify()
	return nil
}

// UpdateUser replaces the stored user while keeping the token.
func (s *Store) UpdateUser(ctx context.Context, user models.User) error {
	s.mu.Lock()
	if s.user == nil {
		s.mu.Unlock()
		return errors.ErrNotAuthenticated
	}
	user.Token = s.token
	data, err := json.Marshal(user)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	if err := s.storage.Set(ctx, s.namespace, storage.KeyUser, string(data)); err != nil {
		s.mu.Unlock()
		return errors.ErrStorageWrite.Wrapping(err)
	}
	s.user = &user
	s.mu.Unlock()

	s.notify()
	return nil
}

// Logout clears the session and both durable keys. The backend is not contacted.
func (s *Store) Logout(ctx context.Context) error {
	s.mu.Lock()
	err := s.storage.Remove(ctx, s.namespace, storage.KeyUser, storage.KeyToken, storage.KeyNotes)
	s.user = nil
	s.token = ""
	s.mu.Unlock()

	s.notify()
	if err != nil {
		return errors.ErrStorageWrite.Wrapping(err)
	}
	return nil
}

// Subscribe calls fn with the new session (nil after logout) on every change.
func (s *Store) Subscribe(fn func(*models.Session)) (cancel func()) {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
}

func (s *Store) notify() {
	s.mu.RLock()
	sess := s.sessionLocked(time.Now())
	fns := make([]func(*models.Session), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	onChange := s.onChange
	s.mu.RUnlock()

	for _, fn := range fns {
		fn(sess)
	}
	if onChange != nil {
		onChange(s)
	}
}

// Expired reports whether a token is held and its JWT expiry has passed.
func (s *Store) Expired(now time.Time) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.token == "" {
		return false
	}
	exp, ok := TokenExpiry(s.token)
	return ok && !now.Before(exp)
}

// Cached returns the note list saved by the last successful dashboard fetch.
func (s *Store) Cached(ctx context.Context) ([]models.Note, error) {
	raw, ok, err := s.storage.Get(ctx, s.namespace, storage.KeyNotes)
	if err != nil || !ok {
		return nil, err
	}
	var notes []models.Note
	if err := json.Unmarshal([]byte(raw), &notes); err != nil {
		return nil, nil
	}
	return notes, nil
}

// Cache saves the note list for offline display.
func (s *Store) Cache(ctx context.Context, notes []models.Note) error {
	data, err := json.Marshal(notes)
	if err != nil {
		return err
	}
	return s.storage.Set(ctx, s.namespace, storage.KeyNotes, string(data))
}

// TokenExpiry reads the exp claim of a JWT without verifying its signature.
// Opaque tokens report ok == false and never expire here.
func TokenExpiry(token string) (time.Time, bool) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}, false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}
