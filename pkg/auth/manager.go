package auth

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"uninotes/pkg/events"
	"uninotes/pkg/metrics"
	"uninotes/pkg/models"
	"uninotes/pkg/storage"
)

// BrowserCookie carries the opaque browser namespace.
const BrowserCookie = "uninotes_browser"

const browserCookieMaxAge = 365 * 24 * time.Hour

// Manager maps browsers to session stores
type Manager struct {
	storage      storage.Store
	bus          *events.Bus
	log          logrus.FieldLogger
	cookieSecure bool

	storesMutex sync.Mutex
	stores      map[string]*Store
}

// NewManager creates a new session manager
func NewManager(st storage.Store, bus *events.Bus, cookieSecure bool, log logrus.FieldLogger) *Manager {
	return &Manager{
		storage:      st,
		bus:          bus,
		log:          log.WithField("component", "auth"),
		cookieSecure: cookieSecure,
		stores:       make(map[string]*Store),
	}
}

// browserNamespace reports whether v is a namespace this manager could have
// issued. Only canonical UUIDs qualify, so fixed namespaces such as the
// command line's are never reachable from a cookie.
func browserNamespace(v string) bool {
	id, err := uuid.Parse(v)
	return err == nil && id.String() == v
}

// Namespace returns the browser namespace of r, issuing a new cookie when
// the browser has none or sends one it could not have been given.
func (m *Manager) Namespace(w http.ResponseWriter, r *http.Request) string {
	if cookie, err := r.Cookie(BrowserCookie); err == nil && browserNamespace(cookie.Value) {
		return cookie.Value
	}

	ns := uuid.NewString()
	http.SetCookie(w, &http.Cookie{
		Name:     BrowserCookie,
		Value:    ns,
		Path:     "/",
		MaxAge:   int(browserCookieMaxAge.Seconds()),
		HttpOnly: true,
		Secure:   m.cookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
	return ns
}

// Store returns the cached store for namespace, hydrating it on first use.
// Only signed-in stores are cached: anonymous visitors never write to
// durable storage, so nothing else would ever evict them.
func (m *Manager) Store(ctx context.Context, namespace string) (*Store, error) {
	m.storesMutex.Lock()
	defer m.storesMutex.Unlock()

	if s, ok := m.stores[namespace]; ok {
		return s, nil
	}

	s, err := Open(ctx, m.storage, namespace)
	if err != nil {
		return nil, err
	}
	s.onChange = m.sessionChanged
	if s.Session() != nil {
		m.stores[namespace] = s
		metrics.ActiveSessions.Set(float64(len(m.stores)))
	}
	return s, nil
}

// Cached reports how many session stores are held in memory.
func (m *Manager) Cached() int {
	m.storesMutex.Lock()
	defer m.storesMutex.Unlock()
	return len(m.stores)
}

// sessionChanged keeps the cache in step with a store's login state and
// announces the change.
func (m *Manager) sessionChanged(s *Store) {
	m.storesMutex.Lock()
	if s.Session() != nil {
		if _, ok := m.stores[s.namespace]; !ok {
			m.stores[s.namespace] = s
		}
	} else if m.stores[s.namespace] == s {
		delete(m.stores, s.namespace)
	}
	metrics.ActiveSessions.Set(float64(len(m.stores)))
	m.storesMutex.Unlock()

	m.publishSessionChange(s.namespace)
}

// Invalidate drops the cached store so the next request rehydrates it.
func (m *Manager) Invalidate(namespace string) {
	m.storesMutex.Lock()
	delete(m.stores, namespace)
	metrics.ActiveSessions.Set(float64(len(m.stores)))
	m.storesMutex.Unlock()
}

// IsAuthenticated returns the session attached to r by Provider.
func (m *Manager) IsAuthenticated(r *http.Request) *models.Session {
	s, ok := lookup(r.Context())
	if !ok {
		return nil
	}
	return s.Session()
}

func (m *Manager) publishSessionChange(namespace string) {
	if m.bus == nil {
		return
	}
	m.bus.Publish(events.Event{Type: events.SessionChanged, Namespace: namespace})
}

// Run keeps cached stores consistent with writes made elsewhere. It blocks
// until ctx is done.
func (m *Manager) Run(ctx context.Context) {
	if m.bus == nil {
		return
	}
	ch, cancel := m.bus.Subscribe(64)
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-ch:
			if !ok {
				return
			}
			if e.Namespace == "" {
				continue
			}
			switch {
			case e.Type == events.StorageChanged:
				m.Invalidate(e.Namespace)
			case e.Type == events.SessionChanged && e.Origin != m.bus.Origin():
				m.Invalidate(e.Namespace)
			}
		}
	}
}

type storeKey struct{}

// Provider attaches the browser's session store to the request context.
func Provider(m *Manager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ns := m.Namespace(w, r)
			s, err := m.Store(r.Context(), ns)
			if err != nil {
				m.log.WithError(err).WithField("namespace", ns).Error("failed to open session store")
				http.Error(w, "Unable to read saved session data", http.StatusInternalServerError)
				return
			}
			next.ServeHTTP(w, r.WithContext(NewContext(r.Context(), s)))
		})
	}
}

// NewContext returns a context carrying s.
func NewContext(ctx context.Context, s *Store) context.Context {
	return context.WithValue(ctx, storeKey{}, s)
}

func lookup(ctx context.Context) (*Store, bool) {
	s, ok := ctx.Value(storeKey{}).(*Store)
	return s, ok && s != nil
}

// FromContext returns the session store attached by Provider. It panics when
// called outside Provider.
func FromContext(ctx context.Context) *Store {
	s, ok := lookup(ctx)
	if !ok {
		panic("auth.FromContext called outside auth.Provider")
	}
	return s
}
