package handlers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"uninotes/pkg/auth"
	"uninotes/pkg/errors"
	"uninotes/pkg/models"
	"uninotes/pkg/services"
)

type dashboardData struct {
	Query      string
	Notes      []models.Note
	Categories map[string]*models.Category
	Tags       map[string]*models.Tag
	Stale      bool
}

func categoryIndex(list []models.Category) map[string]*models.Category {
	out := make(map[string]*models.Category, len(list))
	for i := range list {
		out[list[i].ID] = &list[i]
	}
	return out
}

func tagIndex(list []models.Tag) map[string]*models.Tag {
	out := make(map[string]*models.Tag, len(list))
	for i := range list {
		out[list[i].ID] = &list[i]
	}
	return out
}

// Dashboard lists the user's notes
func (h *Handlers) Dashboard(w http.ResponseWriter, r *http.Request) {
	sess := auth.FromContext(r.Context())
	d, err := h.notes.Dashboard(r.Context(), sess)
	if err != nil {
		redirectError(w, r, "/login", err)
		return
	}

	query := r.URL.Query().Get("q")
	p := h.page(r, "My notes", "dashboard", dashboardData{
		Query:      query,
		Notes:      services.FilterNotes(d.Notes, d.Tags, query),
		Categories: categoryIndex(d.Categories),
		Tags:       tagIndex(d.Tags),
		Stale:      d.Stale,
	})
	if d.Err != nil && p.Error == "" {
		p.Error = errors.UserMessage(d.Err)
	}
	h.render(w, r, http.StatusOK, "dashboard", p)
}

type editorData struct {
	IsNew      bool
	Note       models.Note
	Categories []models.Category
	Tags       []models.Tag
	Shares     []string
}

// EditNote serves the editor for a new or existing note
func (h *Handlers) EditNote(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	sess := auth.FromContext(r.Context())

	data, err := h.notes.LoadEditor(r.Context(), sess, id)
	if errors.Is(err, errors.ErrNoteNotFound) {
		redirectError(w, r, "/dashboard", err)
		return
	}
	if data == nil {
		redirectError(w, r, "/login", err)
		return
	}

	title := "Edit note"
	if data.IsNew {
		title = "New note"
	}
	p := h.page(r, title, "editor", editorData{
		IsNew:      data.IsNew,
		Note:       data.Note,
		Categories: data.Categories,
		Tags:       data.Tags,
	})
	if err != nil && p.Error == "" {
		p.Error = errors.UserMessage(err)
	}
	h.render(w, r, http.StatusOK, "editor", p)
}

func removeString(list []string, value string) []string {
	out := list[:0]
	for _, v := range list {
		if v != value {
			out = append(out, v)
		}
	}
	return out
}

// SaveNote handles the editor form. Besides saving it manages the form-only
// share list.
func (h *Handlers) SaveNote(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Invalid form", http.StatusBadRequest)
		return
	}

	id := chi.URLParam(r, "id")
	sess := auth.FromContext(r.Context())
	in := models.NoteInput{
		Title:      r.PostForm.Get("title"),
		Content:    r.PostForm.Get("content"),
		CategoryID: r.PostForm.Get("categoryId"),
		TagID:      r.PostForm.Get("tagId"),
	}
	shares := r.PostForm["share"]

	var err error
	switch {
	case r.PostForm.Get("unshare") != "":
		shares = removeString(shares, r.PostForm.Get("unshare"))
	case r.PostForm.Get("action") == "share":
		shares, err = h.shared.AddRecipient(shares, r.PostForm.Get("shareEmail"))
	default:
		err = h.notes.Save(r.Context(), sess, id, in)
		if err == nil {
			redirectNotice(w, r, "/dashboard", "Note saved")
			return
		}
	}

	isNew := id == "" || id == services.NewNoteID
	categories, tags := h.notes.Lookups(r.Context(), sess)
	note := models.Note{ID: id, Title: in.Title, Content: in.Content, CategoryID: in.CategoryID, TagID: in.TagID}

	status := http.StatusOK
	title := "Edit note"
	if isNew {
		title = "New note"
	}
	p := h.page(r, title, "editor", editorData{
		IsNew:      isNew,
		Note:       note,
		Categories: categories,
		Tags:       tags,
		Shares:     shares,
	})
	if err != nil {
		p.Error = errors.UserMessage(err)
		status = http.StatusUnprocessableEntity
	}
	h.render(w, r, status, "editor", p)
}

// ConfirmDeleteNote asks before deleting
func (h *Handlers) ConfirmDeleteNote(w http.ResponseWriter, r *http.Request) {
	h.confirm(w, r, "Delete note", "Are you sure you want to delete this note? This cannot be undone.", "/dashboard")
}

// DeleteNote deletes the note and returns to the refreshed list
func (h *Handlers) DeleteNote(w http.ResponseWriter, r *http.Request) {
	h.deleteNote(w, r, "/dashboard")
}

func (h *Handlers) deleteNote(w http.ResponseWriter, r *http.Request, back string) {
	id := chi.URLParam(r, "id")
	if err := h.notes.Delete(r.Context(), auth.FromContext(r.Context()), id); err != nil {
		redirectError(w, r, back, err)
		return
	}
	redirectNotice(w, r, back, "Note deleted")
}

type sharedData struct {
	Tab        string
	Query      string
	Notes      []models.SharedNote
	Received   int
	SharedByMe int
}

// Shared renders the shared-notes preview
func (h *Handlers) Shared(w http.ResponseWriter, r *http.Request) {
	tab := r.URL.Query().Get("tab")
	if tab != services.SharedTabByMe {
		tab = services.SharedTabReceived
	}
	query := r.URL.Query().Get("q")
	received, byMe := h.shared.Counts()

	h.render(w, r, http.StatusOK, "shared", h.page(r, "Shared notes", "shared", sharedData{
		Tab:        tab,
		Query:      query,
		Notes:      h.shared.Notes(tab, query),
		Received:   received,
		SharedByMe: byMe,
	}))
}

// trimmed reads a form value without surrounding whitespace.
func trimmed(r *http.Request, key string) string {
	return strings.TrimSpace(r.FormValue(key))
}
