package auth

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jaswdr/faker"
	"github.com/sirupsen/logrus"

	"uninotes/pkg/events"
	"uninotes/pkg/models"
	"uninotes/pkg/storage"
)

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func newFileStore(t *testing.T) storage.Store {
	t.Helper()
	st, err := storage.NewFileStore(t.TempDir(), nil, testLogger())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

func fakeUser(role, token string) models.User {
	p := faker.New().Person()
	return models.User{
		ID:        faker.New().UUID().V4(),
		FirstName: p.FirstName(),
		LastName:  p.LastName(),
		Email:     faker.New().Internet().Email(),
		Role:      role,
		Token:     token,
	}
}

func signedToken(t *testing.T, exp time.Time) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"exp": exp.Unix(), "sub": "1"}).
		SignedString([]byte("backend-secret"))
	if err != nil {
		t.Fatal(err)
	}
	return tok
}

func TestLoginSurvivesReload(t *testing.T) {
	ctx := context.Background()
	st := newFileStore(t)

	s, err := Open(ctx, st, "browser")
	if err != nil {
		t.Fatal(err)
	}
	if s.Session() != nil {
		t.Fatal("fresh store should have no session")
	}

	user := fakeUser(models.RoleStudent, "t")
	if err := s.Login(ctx, user); err != nil {
		t.Fatal(err)
	}

	token, ok, _ := st.Get(ctx, "browser", storage.KeyToken)
	if !ok || token != "t" {
		t.Fatalf("durable token = %q, %v", token, ok)
	}

	reloaded, err := Open(ctx, st, "browser")
	if err != nil {
		t.Fatal(err)
	}
	sess := reloaded.Session()
	if sess == nil {
		t.Fatal("session lost after reload")
	}
	if sess.User.ID != user.ID || sess.User.Role != models.RoleStudent || sess.Token != "t" {
		t.Fatalf("reloaded session = %+v", sess)
	}
}

func TestLogoutClearsSession(t *testing.T) {
	ctx := context.Background()
	st := newFileStore(t)
	s, _ := Open(ctx, st, "browser")
	s.Login(ctx, fakeUser(models.RoleAdmin, "tok"))
	s.Cache(ctx, []models.Note{{ID: "n1", Title: "cached"}})

	var seen []*models.Session
	cancel := s.Subscribe(func(sess *models.Session) { seen = append(seen, sess) })
	defer cancel()

	if err := s.Logout(ctx); err != nil {
		t.Fatal(err)
	}
	if s.Session() != nil || s.Token() != "" || s.User() != nil {
		t.Fatal("session still present after logout")
	}
	for _, key := range []string{storage.KeyUser, storage.KeyToken, storage.KeyNotes} {
		if _, ok, _ := st.Get(ctx, "browser", key); ok {
			t.Errorf("key %q survived logout", key)
		}
	}
	if len(seen) != 1 || seen[0] != nil {
		t.Fatalf("subscriber saw %v", seen)
	}

	reloaded, _ := Open(ctx, st, "browser")
	if reloaded.Session() != nil {
		t.Fatal("session came back after reload")
	}
}

func TestExpiredJWTHasNoSession(t *testing.T) {
	ctx := context.Background()
	st := newFileStore(t)
	s, _ := Open(ctx, st, "browser")

	s.Login(ctx, fakeUser(models.RoleStudent, signedToken(t, time.Now().Add(-time.Minute))))
	if s.Session() != nil {
		t.Fatal("expired token should not yield a session")
	}
	if !s.Expired(time.Now()) {
		t.Fatal("Expired should report true")
	}

	s.Login(ctx, fakeUser(models.RoleStudent, signedToken(t, time.Now().Add(time.Hour))))
	if s.Session() == nil {
		t.Fatal("valid token should yield a session")
	}
}

func TestTokenExpiry(t *testing.T) {
	if _, ok := TokenExpiry("opaque-token"); ok {
		t.Fatal("opaque token should have no expiry")
	}
	exp := time.Now().Add(time.Hour).Truncate(time.Second)
	got, ok := TokenExpiry(signedToken(t, exp))
	if !ok || !got.Equal(exp) {
		t.Fatalf("expiry = %v, %v", got, ok)
	}
}

func TestUpdateUserKeepsToken(t *testing.T) {
	ctx := context.Background()
	st := newFileStore(t)
	s, _ := Open(ctx, st, "browser")

	user := fakeUser(models.RoleStudent, "tok")
	s.Login(ctx, user)

	user.FirstName = "Renamed"
	user.Token = ""
	if err := s.UpdateUser(ctx, user); err != nil {
		t.Fatal(err)
	}
	if s.User().FirstName != "Renamed" || s.Token() != "tok" {
		t.Fatalf("after update user=%+v token=%q", s.User(), s.Token())
	}
}

func TestFromContextPanicsOutsideProvider(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic")
		}
	}()
	FromContext(context.Background())
}

func TestProviderIssuesCookieAndAttachesStore(t *testing.T) {
	st := newFileStore(t)
	bus := events.NewBus(testLogger())
	m := NewManager(st, bus, false, testLogger())

	var ns string
	h := Provider(m)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ns = FromContext(r.Context()).Namespace()
		if m.IsAuthenticated(r) != nil {
			t.Error("new browser should not be authenticated")
		}
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	cookies := rec.Result().Cookies()
	if len(cookies) != 1 || cookies[0].Name != BrowserCookie || cookies[0].Value != ns || !cookies[0].HttpOnly {
		t.Fatalf("cookies = %+v, ns = %q", cookies, ns)
	}

	// The same cookie maps to the same store.
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(cookies[0])
	rec = httptest.NewRecorder()
	prev := ns
	h.ServeHTTP(rec, req)
	if ns != prev || len(rec.Result().Cookies()) != 0 {
		t.Fatalf("cookie not reused: %q vs %q", ns, prev)
	}
}

func TestManagerInvalidatesOnStorageEvent(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	st := newFileStore(t)
	bus := events.NewBus(testLogger())
	m := NewManager(st, bus, false, testLogger())
	go m.Run(ctx)
	time.Sleep(20 * time.Millisecond)

	first, _ := m.Store(ctx, "browser")
	if err := first.Login(ctx, fakeUser(models.RoleStudent, "t")); err != nil {
		t.Fatal(err)
	}
	if s, _ := m.Store(ctx, "browser"); s != first {
		t.Fatal("signed-in store should be cached")
	}

	// Another writer signs this browser out behind the cached store's back.
	other, _ := Open(ctx, st, "browser")
	other.Logout(ctx)
	bus.Publish(events.Event{Type: events.StorageChanged, Namespace: "browser"})

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		s, _ := m.Store(ctx, "browser")
		if s != first && s.Session() == nil {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("cached store was not invalidated")
}

func TestForeignCookieGetsFreshNamespace(t *testing.T) {
	ctx := context.Background()
	st := newFileStore(t)
	m := NewManager(st, nil, false, testLogger())

	cliStore, _ := Open(ctx, st, "cli")
	if err := cliStore.Login(ctx, fakeUser(models.RoleStudent, "cli-token")); err != nil {
		t.Fatal(err)
	}

	var ns, token string
	h := Provider(m)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s := FromContext(r.Context())
		ns, token = s.Namespace(), s.Token()
	}))

	for _, value := range []string{"cli", "{" + faker.New().UUID().V4() + "}", "../cli"} {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.AddCookie(&http.Cookie{Name: BrowserCookie, Value: value})
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		if ns == value || token != "" {
			t.Errorf("cookie %q reached namespace %q with token %q", value, ns, token)
		}
		cookies := rec.Result().Cookies()
		if len(cookies) != 1 || cookies[0].Value != ns {
			t.Errorf("cookie %q: expected a replacement cookie, got %+v", value, cookies)
		}
	}
}

func TestAnonymousVisitorsAreNotCached(t *testing.T) {
	ctx := context.Background()
	st := newFileStore(t)
	m := NewManager(st, nil, false, testLogger())

	var last *Store
	h := Provider(m)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		last = FromContext(r.Context())
	}))
	for i := 0; i < 200; i++ {
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/login", nil))
	}
	if n := m.Cached(); n != 0 {
		t.Fatalf("anonymous requests cached %d stores", n)
	}

	if err := last.Login(ctx, fakeUser(models.RoleStudent, "t")); err != nil {
		t.Fatal(err)
	}
	if n := m.Cached(); n != 1 {
		t.Fatalf("login should cache the store, cached = %d", n)
	}
	if s, _ := m.Store(ctx, last.Namespace()); s != last {
		t.Fatal("login did not cache the signed-in store")
	}

	if err := last.Logout(ctx); err != nil {
		t.Fatal(err)
	}
	if n := m.Cached(); n != 0 {
		t.Fatalf("logout should evict the store, cached = %d", n)
	}
}
