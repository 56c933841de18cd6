package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"uninotes/pkg/auth"
	"uninotes/pkg/logging"
	"uninotes/pkg/metrics"
	"uninotes/pkg/middleware"
	"uninotes/pkg/models"
)

// Router wires every route. Browser routes run inside auth.Provider; the
// health check and metrics endpoints do not touch sessions.
func (h *Handlers) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(logging.RequestLogger(h.log))
	r.Use(chimiddleware.Recoverer)

	r.Get("/healthz", h.Health)
	r.Handle("/metrics", metrics.Handler())

	r.Group(func(r chi.Router) {
		r.Use(auth.Provider(h.manager))

		r.Get("/", h.Home)
		r.NotFound(h.NotFound)

		r.Get("/login", h.LoginPage)
		r.Get("/register", h.RegisterPage)
		r.Group(func(r chi.Router) {
			r.Use(middleware.RateLimit(h.limiter))
			r.Post("/login", h.Login)
			r.Post("/register", h.Register)
		})
		r.Post("/logout", h.Logout)

		// Any signed-in user
		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireAuth(h.manager))

			r.Get("/events", h.Events)
			r.Get("/dashboard", h.Dashboard)

			r.Get("/note/{id}", h.EditNote)
			r.Post("/note/{id}", h.SaveNote)
			r.Get("/note/{id}/delete", h.ConfirmDeleteNote)
			r.Post("/note/{id}/delete", h.DeleteNote)

			r.Get("/categories", h.Categories)
			r.Post("/categories", h.CreateCategory)
			r.Post("/categories/{id}", h.UpdateCategory)
			r.Get("/categories/{id}/delete", h.ConfirmDeleteCategory)
			r.Post("/categories/{id}/delete", h.DeleteCategory)

			r.Get("/tags", h.Tags)
			r.Post("/tags", h.CreateTag)

			r.Get("/shared", h.Shared)

			r.Get("/profile", h.Profile)
			r.Post("/profile", h.UpdateProfile)
			r.Post("/profile/password", h.ChangePassword)
			r.Get("/profile/export", h.ExportProfile)
		})

		// Admin only
		r.Route("/admin", func(r chi.Router) {
			r.Use(middleware.RequireRole(h.manager, models.RoleAdmin))

			r.Get("/", func(w http.ResponseWriter, r *http.Request) {
				http.Redirect(w, r, "/admin/dashboard", http.StatusSeeOther)
			})
			r.Get("/dashboard", h.AdminDashboard)
			r.Get("/users", h.AdminUsers)
			r.Get("/users/{id}/delete", h.ConfirmDeleteUser)
			r.Post("/users/{id}/delete", h.DeleteUser)
			r.Get("/notes", h.AdminNotes)
			r.Get("/notes/{id}/delete", h.ConfirmDeleteAdminNote)
			r.Post("/notes/{id}/delete", h.DeleteAdminNote)
		})
	})

	return r
}
