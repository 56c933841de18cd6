package handlers

import (
	"net/http"

	"uninotes/pkg/auth"
	"uninotes/pkg/errors"
	"uninotes/pkg/models"
)

type loginData struct {
	Email string
}

// LoginPage serves the login form
func (h *Handlers) LoginPage(w http.ResponseWriter, r *http.Request) {
	p := h.page(r, "Log in", "", loginData{Email: r.URL.Query().Get("email")})
	if username := r.URL.Query().Get("registered"); username != "" && p.Notice == "" {
		p.Notice = "Registration successful, " + username + "! Please log in."
	}
	h.render(w, r, http.StatusOK, "login", p)
}

// Login signs the browser in and sends it to the landing page for its role
func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	creds := models.Credentials{
		Email:    r.FormValue("email"),
		Password: r.FormValue("password"),
	}
	if creds.Email == "" || creds.Password == "" {
		redirect(w, r, "/login", "error", "Please enter your email and password")
		return
	}

	sess := auth.FromContext(r.Context())
	user, err := h.auth.SignIn(r.Context(), sess, creds)
	if err != nil {
		redirectError(w, r, "/login", err)
		return
	}

	if user.IsAdmin() {
		http.Redirect(w, r, "/admin/dashboard", http.StatusSeeOther)
		return
	}
	http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
}

type registerData struct {
	Form   models.Registration
	Errors map[string]string
}

// RegisterPage serves the sign-up form
func (h *Handlers) RegisterPage(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, http.StatusOK, "register", h.page(r, "Register", "", registerData{}))
}

// Register creates an account and sends the browser to the login page
func (h *Handlers) Register(w http.ResponseWriter, r *http.Request) {
	reg := models.Registration{
		Username:        r.FormValue("username"),
		Email:           r.FormValue("email"),
		Password:        r.FormValue("password"),
		ConfirmPassword: r.FormValue("confirmPassword"),
		FirstName:       r.FormValue("firstName"),
		LastName:        r.FormValue("lastName"),
		University:      r.FormValue("university"),
	}

	sess := auth.FromContext(r.Context())
	result, err := h.auth.Register(r.Context(), sess, reg)
	if err != nil {
		reg.Password, reg.ConfirmPassword = "", ""
		p := h.page(r, "Register", "", registerData{Form: reg, Errors: result.Fields})
		p.Error = result.Fields["general"]
		if p.Error == "" {
			p.Error = errors.UserMessage(err)
		}
		h.render(w, r, http.StatusUnprocessableEntity, "register", p)
		return
	}

	redirect(w, r, "/login", "registered", reg.Normalize().Username)
}

// Logout clears the session of this browser
func (h *Handlers) Logout(w http.ResponseWriter, r *http.Request) {
	if err := auth.FromContext(r.Context()).Logout(r.Context()); err != nil {
		h.log.WithError(err).Warn("logout failed to clear storage")
	}
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}
