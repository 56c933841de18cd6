package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"uninotes/pkg/auth"
	"uninotes/pkg/errors"
	"uninotes/pkg/models"
)

type profileData struct {
	Profile        *models.User
	Form           models.ProfileUpdate
	ProfileErrors  map[string]string
	PasswordErrors map[string]string
}

func profileForm(u *models.User) models.ProfileUpdate {
	if u == nil {
		return models.ProfileUpdate{}
	}
	return models.ProfileUpdate{
		FirstName:  u.FirstName,
		LastName:   u.LastName,
		Email:      u.Email,
		University: u.University,
	}
}

// loadProfile fetches the backend record, falling back to the session copy.
func (h *Handlers) loadProfile(r *http.Request) (*models.User, error) {
	sess := auth.FromContext(r.Context())
	user, err := h.users.Profile(r.Context(), sess)
	if err != nil {
		return sess.User(), err
	}
	return user, nil
}

// Profile shows the profile and password forms
func (h *Handlers) Profile(w http.ResponseWriter, r *http.Request) {
	user, err := h.loadProfile(r)
	p := h.page(r, "Profile", "profile", profileData{Profile: user, Form: profileForm(user)})
	if err != nil && p.Error == "" {
		p.Error = errors.UserMessage(err)
	}
	h.render(w, r, http.StatusOK, "profile", p)
}

// UpdateProfile saves the profile form
func (h *Handlers) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	in := models.ProfileUpdate{
		FirstName:  trimmed(r, "firstName"),
		LastName:   trimmed(r, "lastName"),
		Email:      trimmed(r, "email"),
		University: trimmed(r, "university"),
	}

	sess := auth.FromContext(r.Context())
	result, err := h.users.UpdateProfile(r.Context(), sess, in)
	if err == nil {
		redirectNotice(w, r, "/profile", "Profile updated successfully")
		return
	}
	if result == nil {
		redirectError(w, r, "/login", err)
		return
	}

	user, _ := h.loadProfile(r)
	p := h.page(r, "Profile", "profile", profileData{Profile: user, Form: in, ProfileErrors: result.Fields})
	p.Error = errors.UserMessage(err)
	h.render(w, r, http.StatusUnprocessableEntity, "profile", p)
}

// ChangePassword validates and submits the password form
func (h *Handlers) ChangePassword(w http.ResponseWriter, r *http.Request) {
	in := models.PasswordChange{
		CurrentPassword: r.FormValue("currentPassword"),
		NewPassword:     r.FormValue("newPassword"),
		ConfirmPassword: r.FormValue("confirmPassword"),
	}

	sess := auth.FromContext(r.Context())
	result, err := h.users.ChangePassword(r.Context(), sess, in)
	if err == nil {
		redirectNotice(w, r, "/profile", "Password changed successfully")
		return
	}
	if result == nil {
		redirectError(w, r, "/login", err)
		return
	}

	user, _ := h.loadProfile(r)
	p := h.page(r, "Profile", "profile", profileData{Profile: user, Form: profileForm(user), PasswordErrors: result.Fields})
	p.Error = errors.UserMessage(err)
	h.render(w, r, http.StatusUnprocessableEntity, "profile", p)
}

type profileExport struct {
	ExportedAt time.Time     `json:"exportedAt"`
	User       models.User   `json:"user"`
	Notes      []models.Note `json:"notes"`
	Stale      bool          `json:"stale,omitempty"`
}

// ExportProfile downloads the user's profile and notes as JSON
func (h *Handlers) ExportProfile(w http.ResponseWriter, r *http.Request) {
	sess := auth.FromContext(r.Context())
	user, err := h.loadProfile(r)
	if user == nil {
		redirectError(w, r, "/login", err)
		return
	}

	d, err := h.notes.Dashboard(r.Context(), sess)
	if err != nil {
		redirectError(w, r, "/profile", err)
		return
	}

	export := profileExport{ExportedAt: time.Now().UTC(), User: *user, Notes: d.Notes, Stale: d.Stale}
	export.User.Token = ""

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "uninotes-"+user.Username+".json"))
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(export); err != nil {
		h.log.WithError(err).Warn("failed to write export")
	}
}
