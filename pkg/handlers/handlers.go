package handlers

import (
	"net/http"
	"net/url"

	"github.com/sirupsen/logrus"

	"uninotes/pkg/auth"
	"uninotes/pkg/errors"
	"uninotes/pkg/events"
	"uninotes/pkg/middleware"
	"uninotes/pkg/models"
	"uninotes/pkg/services"
)

// Handlers serves every page of the web frontend.
type Handlers struct {
	manager    *auth.Manager
	bus        *events.Bus
	limiter    *middleware.IPRateLimiter
	renderer   *Renderer
	auth       *services.AuthService
	notes      *services.NoteService
	categories *services.CategoryService
	tags       *services.TagService
	users      *services.UserService
	admin      *services.AdminService
	shared     *services.SharedService
	log        logrus.FieldLogger
}

// Deps are the collaborators Handlers needs.
type Deps struct {
	Manager    *auth.Manager
	Bus        *events.Bus
	Limiter    *middleware.IPRateLimiter
	Auth       *services.AuthService
	Notes      *services.NoteService
	Categories *services.CategoryService
	Tags       *services.TagService
	Users      *services.UserService
	Admin      *services.AdminService
	Shared     *services.SharedService
	Log        logrus.FieldLogger
}

// New creates the handlers and parses the templates.
func New(d Deps) (*Handlers, error) {
	renderer, err := NewRenderer()
	if err != nil {
		return nil, err
	}
	return &Handlers{
		manager:    d.Manager,
		bus:        d.Bus,
		limiter:    d.Limiter,
		renderer:   renderer,
		auth:       d.Auth,
		notes:      d.Notes,
		categories: d.Categories,
		tags:       d.Tags,
		users:      d.Users,
		admin:      d.Admin,
		shared:     d.Shared,
		log:        d.Log.WithField("component", "handlers"),
	}, nil
}

func layoutFor(user *models.User) string {
	switch {
	case user == nil:
		return LayoutPublic
	case user.IsAdmin():
		return LayoutAdmin
	default:
		return LayoutStudent
	}
}

// page builds the common page data for r, taking alerts from the query string.
func (h *Handlers) page(r *http.Request, title, active string, data interface{}) *Page {
	user := auth.FromContext(r.Context()).User()
	q := r.URL.Query()
	return &Page{
		Title:  title,
		Layout: layoutFor(user),
		Active: active,
		User:   user,
		Error:  q.Get("error"),
		Notice: q.Get("notice"),
		Data:   data,
	}
}

func (h *Handlers) render(w http.ResponseWriter, r *http.Request, status int, name string, p *Page) {
	if err := h.renderer.Render(w, status, name, p); err != nil {
		h.log.WithError(err).WithField("page", name).Error("template execution error")
		http.Error(w, "Template execution error", http.StatusInternalServerError)
	}
}

// redirect sends the browser to target with an optional alert.
func redirect(w http.ResponseWriter, r *http.Request, target, key, message string) {
	if message != "" {
		u, err := url.Parse(target)
		if err == nil {
			q := u.Query()
			q.Set(key, message)
			u.RawQuery = q.Encode()
			target = u.String()
		}
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}

func redirectError(w http.ResponseWriter, r *http.Request, target string, err error) {
	redirect(w, r, target, "error", errors.UserMessage(err))
}

func redirectNotice(w http.ResponseWriter, r *http.Request, target, notice string) {
	redirect(w, r, target, "notice", notice)
}

// confirmData drives the shared confirmation page.
type confirmData struct {
	Message string
	Action  string
	Cancel  string
}

func (h *Handlers) confirm(w http.ResponseWriter, r *http.Request, title, message, cancel string) {
	h.render(w, r, http.StatusOK, "confirm", h.page(r, title, "", confirmData{
		Message: message,
		Action:  r.URL.Path,
		Cancel:  cancel,
	}))
}

// Home serves the landing page
func (h *Handlers) Home(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, http.StatusOK, "home", h.page(r, "Welcome", "", nil))
}

// NotFound renders the 404 page
func (h *Handlers) NotFound(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, http.StatusNotFound, "notfound", h.page(r, "Not found", "", nil))
}
