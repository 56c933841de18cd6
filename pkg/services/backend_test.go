package services

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jaswdr/faker"
	"github.com/sirupsen/logrus"

	"uninotes/pkg/api"
	"uninotes/pkg/auth"
	"uninotes/pkg/events"
	"uninotes/pkg/models"
	"uninotes/pkg/performance"
	"uninotes/pkg/storage"
)

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

type recorded struct {
	Method string
	Path   string
	Auth   string
	Body   map[string]interface{}
}

// fakeBackend is an in-memory stand-in for the notes REST API.
type fakeBackend struct {
	t   *testing.T
	srv *httptest.Server

	mu         sync.Mutex
	requests   []recorded
	notes      []models.Note
	categories []models.Category
	tags       []models.Tag
	users      []models.User
	failNotes  bool
	failLookup bool

	// When set, note creation signals started and waits for release.
	started chan struct{}
	release chan struct{}
}

func newFakeBackend(t *testing.T) *fakeBackend {
	t.Helper()
	b := &fakeBackend{t: t}

	r := chi.NewRouter()
	r.Use(b.record)
	r.Get("/api/notes/{userID}", func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		defer b.mu.Unlock()
		if b.failNotes {
			http.Error(w, "backend down", http.StatusInternalServerError)
			return
		}
		var out []models.Note
		for _, n := range b.notes {
			if n.UserID == chi.URLParam(r, "userID") {
				out = append(out, n)
			}
		}
		envelope(w, out)
	})
	r.Get("/api/notes", func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		defer b.mu.Unlock()
		envelope(w, b.notes)
	})
	r.Post("/api/notes/{userID}", func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		started, release := b.started, b.release
		b.mu.Unlock()
		if started != nil {
			started <- struct{}{}
			<-release
		}

		b.mu.Lock()
		defer b.mu.Unlock()
		last := b.requests[len(b.requests)-1].Body
		b.notes = append(b.notes, models.Note{
			ID:     faker.New().UUID().V4(),
			Title:  last["title"].(string),
			UserID: chi.URLParam(r, "userID"),
		})
		w.WriteHeader(http.StatusCreated)
		envelope(w, nil)
	})
	r.Delete("/api/notes/{id}", func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		defer b.mu.Unlock()
		id := chi.URLParam(r, "id")
		kept := b.notes[:0]
		for _, n := range b.notes {
			if n.ID != id {
				kept = append(kept, n)
			}
		}
		b.notes = kept
		w.WriteHeader(http.StatusNoContent)
	})
	r.Get("/api/categories", func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		defer b.mu.Unlock()
		if b.failLookup {
			http.Error(w, "categories unavailable", http.StatusInternalServerError)
			return
		}
		envelope(w, b.categories)
	})
	r.Delete("/api/categories/{id}", func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		defer b.mu.Unlock()
		id := chi.URLParam(r, "id")
		kept := b.categories[:0]
		for _, c := range b.categories {
			if c.ID != id {
				kept = append(kept, c)
			}
		}
		b.categories = kept
		w.WriteHeader(http.StatusNoContent)
	})
	r.Get("/api/tags", func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		defer b.mu.Unlock()
		envelope(w, b.tags)
	})
	r.Post("/api/tags", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
	})
	r.Get("/api/users", func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		defer b.mu.Unlock()
		if id := r.URL.Query().Get("id"); id != "" {
			for _, u := range b.users {
				if u.ID == id {
					envelope(w, []models.User{u})
					return
				}
			}
			envelope(w, []models.User{})
			return
		}
		envelope(w, b.users)
	})
	r.Put("/api/users/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	b.srv = httptest.NewServer(r)
	t.Cleanup(b.srv.Close)
	return b
}

func (b *fakeBackend) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := recorded{Method: r.Method, Path: r.URL.Path, Auth: r.Header.Get("Authorization")}
		if data, _ := io.ReadAll(r.Body); len(data) > 0 {
			_ = json.Unmarshal(data, &rec.Body)
		}
		b.mu.Lock()
		b.requests = append(b.requests, rec)
		b.mu.Unlock()
		next.ServeHTTP(w, r)
	})
}

// holdCreates makes note creation block until the returned func is called.
func (b *fakeBackend) holdCreates() (started <-chan struct{}, release func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.started = make(chan struct{}, 1)
	b.release = make(chan struct{})
	return b.started, func() { close(b.release) }
}

func (b *fakeBackend) count(method, path string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, r := range b.requests {
		if r.Method == method && r.Path == path {
			n++
		}
	}
	return n
}

func (b *fakeBackend) client() *api.Client {
	return api.NewClient(b.srv.URL, 5*time.Second, testLogger())
}

func envelope(w http.ResponseWriter, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]interface{}{"status": 200, "payload": payload})
}

func newStorage(t *testing.T) storage.Store {
	t.Helper()
	st, err := storage.NewFileStore(t.TempDir(), nil, testLogger())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

// signedIn returns a session for a fresh student in a fresh namespace.
func signedIn(t *testing.T, st storage.Store) (*auth.Store, models.User) {
	t.Helper()
	ctx := context.Background()
	sess, err := auth.Open(ctx, st, faker.New().UUID().V4())
	if err != nil {
		t.Fatal(err)
	}
	p := faker.New().Person()
	user := models.User{
		ID:        faker.New().UUID().V4(),
		FirstName: p.FirstName(),
		LastName:  p.LastName(),
		Email:     faker.New().Internet().Email(),
		Role:      models.RoleStudent,
		Token:     "t",
	}
	if err := sess.Login(ctx, user); err != nil {
		t.Fatal(err)
	}
	return sess, user
}

func newNoteService(b *fakeBackend, bus *events.Bus) *NoteService {
	return NewNoteService(b.client(), bus, performance.NewInFlight(), testLogger())
}
