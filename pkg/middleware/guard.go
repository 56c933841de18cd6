package middleware

import (
	"encoding/json"
	"net/http"
	"strings"

	"uninotes/pkg/errors"
	"uninotes/pkg/metrics"
	"uninotes/pkg/models"
)

// AuthManager interface for authentication operations
type AuthManager interface {
	IsAuthenticated(r *http.Request) *models.Session
}

// wantsJSON reports whether the caller expects a status code rather than a redirect.
func wantsJSON(r *http.Request) bool {
	return strings.HasPrefix(r.URL.Path, "/api/") ||
		strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") ||
		strings.Contains(r.Header.Get("Accept"), "application/json")
}

// writeError answers a JSON caller with the error's status and frontend form.
func writeError(w http.ResponseWriter, err *errors.AppError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(err.HTTPStatus())
	json.NewEncoder(w).Encode(errors.ToFrontendError(err))
}

// Guard protects a route. Without a session the browser is sent to /login;
// with a session but a role other than role it is sent to /dashboard. An
// empty role only requires a session.
func Guard(authManager AuthManager, role string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			session := authManager.IsAuthenticated(r)
			if session == nil {
				metrics.GuardDecisions.WithLabelValues("no_session").Inc()
				if wantsJSON(r) {
					writeError(w, errors.ErrNotAuthenticated)
					return
				}
				http.Redirect(w, r, "/login", http.StatusSeeOther)
				return
			}

			if role != "" && !session.HasRole(role) {
				metrics.GuardDecisions.WithLabelValues("wrong_role").Inc()
				if wantsJSON(r) {
					writeError(w, errors.ErrForbidden.WithContext("role", role))
					return
				}
				http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
				return
			}

			metrics.GuardDecisions.WithLabelValues("allow").Inc()
			next.ServeHTTP(w, r)
		})
	}
}

// RequireAuth requires any signed-in user
func RequireAuth(authManager AuthManager) func(http.Handler) http.Handler {
	return Guard(authManager, "")
}

// RequireRole requires a signed-in user holding role
func RequireRole(authManager AuthManager, role string) func(http.Handler) http.Handler {
	return Guard(authManager, role)
}
