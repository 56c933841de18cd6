package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"uninotes/pkg/auth"
	"uninotes/pkg/errors"
	"uninotes/pkg/models"
	"uninotes/pkg/services"
)

type adminDashboardData struct {
	Stats services.Stats
}

// AdminDashboard shows live counts
func (h *Handlers) AdminDashboard(w http.ResponseWriter, r *http.Request) {
	stats, err := h.admin.Stats(r.Context(), auth.FromContext(r.Context()))
	p := h.page(r, "Admin dashboard", "admin-dashboard", adminDashboardData{Stats: stats})
	if err != nil && p.Error == "" {
		p.Error = errors.UserMessage(err)
	}
	h.render(w, r, http.StatusOK, "admin_dashboard", p)
}

type adminUsersData struct {
	Filter services.UserFilter
	Users  []models.User
}

// AdminUsers lists users with search and role filters
func (h *Handlers) AdminUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.users.List(r.Context(), auth.FromContext(r.Context()))
	filter := services.UserFilter{
		Search: r.URL.Query().Get("q"),
		Role:   r.URL.Query().Get("role"),
	}

	p := h.page(r, "Users", "admin-users", adminUsersData{
		Filter: filter,
		Users:  services.FilterUsers(users, filter),
	})
	if err != nil && p.Error == "" {
		p.Error = errors.UserMessage(err)
	}
	h.render(w, r, http.StatusOK, "admin_users", p)
}

// ConfirmDeleteUser asks before deleting an account
func (h *Handlers) ConfirmDeleteUser(w http.ResponseWriter, r *http.Request) {
	h.confirm(w, r, "Delete user", "Are you sure you want to delete this user? Their account will be removed.", "/admin/users")
}

// DeleteUser removes an account, then the list is fetched again
func (h *Handlers) DeleteUser(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.users.Delete(r.Context(), auth.FromContext(r.Context()), id); err != nil {
		redirectError(w, r, "/admin/users", err)
		return
	}
	redirectNotice(w, r, "/admin/users", "User deleted")
}

type adminNotesData struct {
	Filter       services.AdminNoteFilter
	Notes        []models.Note
	CategoryList []models.Category
	Categories   map[string]*models.Category
	Tags         map[string]*models.Tag
}

// AdminNotes lists every note with search, category and status filters
func (h *Handlers) AdminNotes(w http.ResponseWriter, r *http.Request) {
	sess := auth.FromContext(r.Context())
	notes, err := h.notes.AllNotes(r.Context(), sess)
	categories, tags := h.notes.Lookups(r.Context(), sess)

	filter := services.AdminNoteFilter{
		Search:   r.URL.Query().Get("q"),
		Category: r.URL.Query().Get("category"),
		Status:   r.URL.Query().Get("status"),
	}
	p := h.page(r, "All notes", "admin-notes", adminNotesData{
		Filter:       filter,
		Notes:        services.FilterAdminNotes(notes, tags, filter),
		CategoryList: categories,
		Categories:   categoryIndex(categories),
		Tags:         tagIndex(tags),
	})
	if err != nil && p.Error == "" {
		p.Error = errors.UserMessage(err)
	}
	h.render(w, r, http.StatusOK, "admin_notes", p)
}

// ConfirmDeleteAdminNote asks before deleting
func (h *Handlers) ConfirmDeleteAdminNote(w http.ResponseWriter, r *http.Request) {
	h.confirm(w, r, "Delete note", "Are you sure you want to delete this note? This cannot be undone.", "/admin/notes")
}

// DeleteAdminNote deletes any note
func (h *Handlers) DeleteAdminNote(w http.ResponseWriter, r *http.Request) {
	h.deleteNote(w, r, "/admin/notes")
}
