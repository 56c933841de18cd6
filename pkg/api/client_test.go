package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jaswdr/faker"
	"github.com/sirupsen/logrus"

	apperrors "uninotes/pkg/errors"
	"uninotes/pkg/models"
)

func testClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	log := logrus.New()
	log.SetOutput(io.Discard)
	return NewClient(srv.URL+"/", 5*time.Second, log)
}

func TestDoSetsHeadersAndBearer(t *testing.T) {
	var got http.Header
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Clone()
		w.Write([]byte(`{"status":200,"payload":[]}`))
	})

	if err := c.For(StaticToken("t")).Do(context.Background(), http.MethodGet, "/api/tags", nil, nil,
		WithHeader("X-Trace", "1")); err != nil {
		t.Fatal(err)
	}
	if got.Get("Content-Type") != "application/json" {
		t.Errorf("Content-Type = %q", got.Get("Content-Type"))
	}
	if got.Get("Authorization") != "Bearer t" {
		t.Errorf("Authorization = %q", got.Get("Authorization"))
	}
	if got.Get("X-Trace") != "1" {
		t.Errorf("caller header lost")
	}
}

func TestDoOmitsBearerWithoutToken(t *testing.T) {
	var auth []string
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Values("Authorization")
	})

	if err := c.For(StaticToken("")).Do(context.Background(), http.MethodGet, "/api/tags", nil, nil); err != nil {
		t.Fatal(err)
	}
	if err := c.Do(context.Background(), http.MethodGet, "/api/tags", nil, nil); err != nil {
		t.Fatal(err)
	}
	if len(auth) != 0 {
		t.Fatalf("Authorization sent without token: %v", auth)
	}
}

func TestDoCallerContentTypeWins(t *testing.T) {
	var ct string
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		ct = r.Header.Get("Content-Type")
	})
	c.Do(context.Background(), http.MethodPost, "/x", []byte("a=b"), nil,
		WithHeader("Content-Type", "application/x-www-form-urlencoded"))
	if ct != "application/x-www-form-urlencoded" {
		t.Fatalf("Content-Type = %q", ct)
	}
}

func TestDoNon2xx(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/empty" {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		http.Error(w, "category not found", http.StatusNotFound)
	})

	err := c.Do(context.Background(), http.MethodDelete, "/api/categories/9", nil, nil)
	var httpErr *HTTPError
	if !errors.As(err, &httpErr) {
		t.Fatalf("err = %T %v", err, err)
	}
	if httpErr.Status != http.StatusNotFound || httpErr.Error() != "category not found" {
		t.Fatalf("HTTPError = %+v", httpErr)
	}

	err = c.Do(context.Background(), http.MethodGet, "/empty", nil, nil)
	if err == nil || err.Error() != "HTTP error 502" {
		t.Fatalf("empty body error = %v", err)
	}
}

func TestDoDecodesJSONAndToleratesEmptyBody(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/categories" && r.Method == http.MethodPost {
			w.WriteHeader(http.StatusCreated)
			return
		}
		w.Write([]byte(`{"status":200,"payload":{"_id":"c1","name":"Math"}}`))
	})

	var env Envelope[models.Category]
	if err := c.Do(context.Background(), http.MethodGet, "/api/categories/c1", nil, &env); err != nil {
		t.Fatal(err)
	}
	if env.Payload.Name != "Math" {
		t.Fatalf("payload = %+v", env.Payload)
	}

	var ignored map[string]interface{}
	if err := c.Do(context.Background(), http.MethodPost, "/api/categories", models.CategoryInput{Name: "x"}, &ignored); err != nil {
		t.Fatalf("empty 201 body: %v", err)
	}
}

func TestDoHonoursCancellation(t *testing.T) {
	release := make(chan struct{})
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	})
	defer close(release)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := c.Do(ctx, http.MethodGet, "/api/notes", nil, nil); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}

func TestEnvelopeResult(t *testing.T) {
	if _, err := (Envelope[string]{Status: 200, Payload: "ok"}).Result(); err != nil {
		t.Fatal(err)
	}
	_, err := (Envelope[string]{Status: 401, Message: "Invalid credentials"}).Result()
	var envErr *EnvelopeError
	if !errors.As(err, &envErr) || envErr.Status != 401 || err.Error() != "Invalid credentials" {
		t.Fatalf("err = %v", err)
	}
}

func TestFetchListToleratesNonArrayPayload(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":200,"payload":null}`))
	})
	cats, err := c.ListCategories(context.Background())
	if err != nil || cats == nil || len(cats) != 0 {
		t.Fatalf("ListCategories = %v, %v", cats, err)
	}
}

func TestGetUserUsesQueryAndFirstElement(t *testing.T) {
	fake := faker.New()
	email := fake.Internet().Email()
	var query string
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		query = r.URL.RawQuery
		if r.URL.Query().Get("id") == "missing" {
			w.Write([]byte(`{"status":200,"payload":[]}`))
			return
		}
		json.NewEncoder(w).Encode(Envelope[[]models.User]{Status: 200, Payload: []models.User{{ID: "u1", Email: email}}})
	})

	u, err := c.GetUser(context.Background(), "u1")
	if err != nil {
		t.Fatal(err)
	}
	if query != "id=u1" || u.Email != email {
		t.Fatalf("query=%q user=%+v", query, u)
	}

	if _, err := c.GetUser(context.Background(), "missing"); !apperrors.Is(err, apperrors.ErrUserNotFound) {
		t.Fatalf("err = %v, want ErrUserNotFound", err)
	}
}

func TestCreateNoteBody(t *testing.T) {
	var path string
	var body map[string]interface{}
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		json.NewDecoder(r.Body).Decode(&body)
		w.Write([]byte(`{"status":201,"payload":{}}`))
	})

	in := models.NoteInput{Title: "T", Content: "C", CategoryID: "c1", TagID: "t1"}
	if err := c.CreateNote(context.Background(), "u1", in); err != nil {
		t.Fatal(err)
	}
	if path != "/api/notes/u1" {
		t.Errorf("path = %s", path)
	}
	if body["title"] != "T" || body["content"] != "C" || body["categoryId"] != "c1" || body["tagId"] != "t1" {
		t.Errorf("body = %v", body)
	}
	if _, ok := body["userId"]; ok {
		t.Errorf("create body must not carry an owner field")
	}
}

func TestRouteOf(t *testing.T) {
	cases := map[string]string{
		"/api/notes":          "/api/notes",
		"/api/notes/123":      "/api/notes/:id",
		"/api/users?id=42":    "/api/users",
		"/api/categories/a/b": "/api/categories/:id/:id",
	}
	for in, want := range cases {
		if got := routeOf(in); got != want {
			t.Errorf("routeOf(%q) = %q, want %q", in, got, want)
		}
	}
}
