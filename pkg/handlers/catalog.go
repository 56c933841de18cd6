package handlers

import (
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"

	"uninotes/pkg/auth"
	"uninotes/pkg/errors"
	"uninotes/pkg/models"
	"uninotes/pkg/services"
)

type categoriesData struct {
	Query      string
	Categories []models.Category
	Palette    []string
	Form       models.CategoryInput
	EditID     string
}

// Categories lists categories; ?edit=<id> prefills the form for editing
func (h *Handlers) Categories(w http.ResponseWriter, r *http.Request) {
	sess := auth.FromContext(r.Context())
	list, err := h.categories.List(r.Context(), sess)

	query := r.URL.Query().Get("q")
	data := categoriesData{
		Query:      query,
		Categories: services.FilterCategories(list, query),
		Palette:    services.CategoryPalette,
		Form:       models.CategoryInput{Color: services.DefaultCategoryColor},
	}
	if editID := r.URL.Query().Get("edit"); editID != "" {
		for _, c := range list {
			if c.ID == editID {
				data.EditID = c.ID
				data.Form = models.CategoryInput{Name: c.Name, Description: c.Description, Color: c.Color}
			}
		}
	}

	p := h.page(r, "Categories", "categories", data)
	if err != nil && p.Error == "" {
		p.Error = errors.UserMessage(err)
	}
	h.render(w, r, http.StatusOK, "categories", p)
}

func categoryForm(r *http.Request) models.CategoryInput {
	return models.CategoryInput{
		Name:        trimmed(r, "name"),
		Description: trimmed(r, "description"),
		Color:       trimmed(r, "color"),
	}
}

// CreateCategory adds a category, then the list is fetched again
func (h *Handlers) CreateCategory(w http.ResponseWriter, r *http.Request) {
	if err := h.categories.Create(r.Context(), auth.FromContext(r.Context()), categoryForm(r)); err != nil {
		redirectError(w, r, "/categories", err)
		return
	}
	redirectNotice(w, r, "/categories", "Category created")
}

// UpdateCategory edits a category
func (h *Handlers) UpdateCategory(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.categories.Update(r.Context(), auth.FromContext(r.Context()), id, categoryForm(r)); err != nil {
		redirectError(w, r, "/categories?edit="+id, err)
		return
	}
	redirectNotice(w, r, "/categories", "Category updated")
}

// ConfirmDeleteCategory asks before deleting
func (h *Handlers) ConfirmDeleteCategory(w http.ResponseWriter, r *http.Request) {
	h.confirm(w, r, "Delete category", "Are you sure you want to delete this category?", "/categories")
}

// DeleteCategory deletes a category
func (h *Handlers) DeleteCategory(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.categories.Delete(r.Context(), auth.FromContext(r.Context()), id); err != nil {
		redirectError(w, r, "/categories", err)
		return
	}
	redirectNotice(w, r, "/categories", "Category deleted")
}

type tagsData struct {
	Query string
	Sort  string
	Tags  []models.Tag
	Usage map[string]int
	Form  models.TagInput
}

// Tags lists, searches and sorts tags
func (h *Handlers) Tags(w http.ResponseWriter, r *http.Request) {
	sess := auth.FromContext(r.Context())
	list, err := h.tags.List(r.Context(), sess)
	usage := h.tags.Usage(r.Context(), sess)

	query := r.URL.Query().Get("q")
	sortBy := r.URL.Query().Get("sort")
	switch sortBy {
	case services.SortByName, services.SortByDate:
	default:
		sortBy = services.SortByUsage
	}

	p := h.page(r, "Tags", "tags", tagsData{
		Query: query,
		Sort:  sortBy,
		Tags:  services.SortTags(services.FilterTags(list, query), sortBy, usage),
		Usage: usage,
		Form:  models.TagInput{Name: r.URL.Query().Get("name")},
	})
	if err != nil && p.Error == "" {
		p.Error = errors.UserMessage(err)
	}
	h.render(w, r, http.StatusOK, "tags", p)
}

// CreateTag adds a tag after a duplicate check against the current list
func (h *Handlers) CreateTag(w http.ResponseWriter, r *http.Request) {
	sess := auth.FromContext(r.Context())
	in := models.TagInput{Name: trimmed(r, "name"), Color: trimmed(r, "color")}

	existing, err := h.tags.List(r.Context(), sess)
	if err == nil {
		err = h.tags.Create(r.Context(), sess, existing, in)
	}
	if err != nil {
		redirect(w, r, "/tags?name="+url.QueryEscape(in.Name), "error", errors.UserMessage(err))
		return
	}
	redirectNotice(w, r, "/tags", "Tag created")
}
