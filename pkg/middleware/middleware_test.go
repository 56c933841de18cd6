package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"uninotes/pkg/errors"
	"uninotes/pkg/models"
)

type fakeAuth struct {
	session *models.Session
}

func (f fakeAuth) IsAuthenticated(*http.Request) *models.Session { return f.session }

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("protected"))
	})
}

func TestGuard(t *testing.T) {
	student := &models.Session{User: models.User{ID: "1", Role: models.RoleStudent}, Token: "t"}
	admin := &models.Session{User: models.User{ID: "2", Role: models.RoleAdmin}, Token: "t"}

	cases := []struct {
		name     string
		session  *models.Session
		role     string
		path     string
		accept   string
		status   int
		location string
	}{
		{"no session redirects to login", nil, "", "/dashboard", "", http.StatusSeeOther, "/login"},
		{"no session on admin route still goes to login", nil, models.RoleAdmin, "/admin/users", "", http.StatusSeeOther, "/login"},
		{"student on admin route", student, models.RoleAdmin, "/admin/dashboard", "", http.StatusSeeOther, "/dashboard"},
		{"student on student route", student, "", "/dashboard", "", http.StatusOK, ""},
		{"admin on admin route", admin, models.RoleAdmin, "/admin/notes", "", http.StatusOK, ""},
		{"api without session", nil, "", "/api/notes", "", http.StatusUnauthorized, ""},
		{"json caller with wrong role", student, models.RoleAdmin, "/admin/users", "application/json", http.StatusForbidden, ""},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tc.path, nil)
			if tc.accept != "" {
				req.Header.Set("Accept", tc.accept)
			}
			rec := httptest.NewRecorder()
			Guard(fakeAuth{tc.session}, tc.role)(okHandler()).ServeHTTP(rec, req)

			if rec.Code != tc.status {
				t.Fatalf("status = %d, want %d", rec.Code, tc.status)
			}
			if loc := rec.Header().Get("Location"); loc != tc.location {
				t.Fatalf("Location = %q, want %q", loc, tc.location)
			}
			if tc.status == http.StatusOK && rec.Body.String() != "protected" {
				t.Fatalf("protected handler not served")
			}
		})
	}
}

func TestRateLimit(t *testing.T) {
	h := RateLimit(NewIPRateLimiter(0.0001, 2))(okHandler())

	send := func(ip, accept string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/login", nil)
		req.RemoteAddr = ip + ":1234"
		if accept != "" {
			req.Header.Set("Accept", accept)
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	for i := 0; i < 2; i++ {
		if rec := send("10.0.0.1", ""); rec.Code != http.StatusOK {
			t.Fatalf("request %d rejected: %d", i, rec.Code)
		}
	}

	rec := send("10.0.0.1", "")
	if rec.Code != http.StatusSeeOther || !strings.HasPrefix(rec.Header().Get("Location"), "/login?error=") {
		t.Fatalf("form caller: %d %q", rec.Code, rec.Header().Get("Location"))
	}

	rec = send("10.0.0.1", "application/json")
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("api caller: %d %s", rec.Code, rec.Body.String())
	}
	if body := decodeError(t, rec); body.Code != "RATE_LIMITED" || !strings.Contains(body.Message, "Too many attempts") {
		t.Fatalf("api caller body: %+v", body)
	}

	if rec := send("10.0.0.2", ""); rec.Code != http.StatusOK {
		t.Fatalf("other IP limited: %d", rec.Code)
	}
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errors.FrontendError {
	t.Helper()
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("Content-Type = %q", ct)
	}
	var body errors.FrontendError
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	return body
}

func TestGuardJSONErrorBodies(t *testing.T) {
	student := &models.Session{User: models.User{ID: "1", Role: models.RoleStudent}, Token: "t"}

	req := httptest.NewRequest(http.MethodGet, "/api/notes", nil)
	rec := httptest.NewRecorder()
	RequireAuth(fakeAuth{})(okHandler()).ServeHTTP(rec, req)
	if body := decodeError(t, rec); rec.Code != http.StatusUnauthorized || body.Code != "NOT_AUTHENTICATED" || body.Type != "authentication" {
		t.Fatalf("no session: %d %+v", rec.Code, body)
	}

	req = httptest.NewRequest(http.MethodGet, "/admin/users", nil)
	req.Header.Set("Accept", "application/json")
	rec = httptest.NewRecorder()
	RequireRole(fakeAuth{student}, models.RoleAdmin)(okHandler()).ServeHTTP(rec, req)
	body := decodeError(t, rec)
	if rec.Code != http.StatusForbidden || body.Code != "FORBIDDEN" || body.Context["role"] != models.RoleAdmin {
		t.Fatalf("wrong role: %d %+v", rec.Code, body)
	}
}
