package services

import (
	"context"
	"hash/fnv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"uninotes/pkg/api"
	"uninotes/pkg/auth"
	"uninotes/pkg/errors"
	"uninotes/pkg/models"
	"uninotes/pkg/performance"
)

// CategoryPalette is offered by the category form.
var CategoryPalette = []string{
	"#3B82F6", "#10B981", "#8B5CF6", "#F59E0B", "#EF4444",
	"#06B6D4", "#84CC16", "#F97316", "#EC4899", "#6366F1",
}

// DefaultCategoryColor preselects the first palette entry.
var DefaultCategoryColor = CategoryPalette[0]

// NormalizeCategory fills display defaults for fields the backend left empty.
// The fallback color is derived from the id so it is stable across renders.
func NormalizeCategory(c models.Category) models.Category {
	if strings.TrimSpace(c.Name) == "" {
		c.Name = "Unnamed Category"
	}
	if strings.TrimSpace(c.Description) == "" {
		c.Description = "No description"
	}
	if c.Color == "" {
		h := fnv.New32a()
		h.Write([]byte(c.ID))
		c.Color = CategoryPalette[h.Sum32()%uint32(len(CategoryPalette))]
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now()
	}
	return c
}

// NormalizeCategories applies NormalizeCategory to every entry.
func NormalizeCategories(list []models.Category) []models.Category {
	out := make([]models.Category, len(list))
	for i, c := range list {
		out[i] = NormalizeCategory(c)
	}
	return out
}

// CategoryService manages categories. Every mutation is followed by a
// refetch at the caller.
type CategoryService struct {
	api      *api.Client
	inflight *performance.InFlight
	log      logrus.FieldLogger
}

func NewCategoryService(client *api.Client, inflight *performance.InFlight, log logrus.FieldLogger) *CategoryService {
	return &CategoryService{
		api:      client,
		inflight: inflight,
		log:      log.WithField("service", "categories"),
	}
}

// List fetches and normalizes all categories.
func (s *CategoryService) List(ctx context.Context, sess *auth.Store) ([]models.Category, error) {
	list, err := s.api.For(sess).ListCategories(ctx)
	if err != nil {
		appErr := errors.Wrap(err, errors.ErrTypeTransport, "CATEGORIES_FETCH_FAILED", "failed to fetch categories").
			WithUserMessage("Failed to fetch categories")
		appErr.Log(s.log)
		return []models.Category{}, appErr
	}
	return NormalizeCategories(list), nil
}

func normalizeCategoryInput(in models.CategoryInput) (models.CategoryInput, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Description = strings.TrimSpace(in.Description)
	if in.Name == "" {
		return in, errors.ErrNameRequired
	}
	if in.Color == "" {
		in.Color = DefaultCategoryColor
	}
	return in, nil
}

// Create adds a category.
func (s *CategoryService) Create(ctx context.Context, sess *auth.Store, in models.CategoryInput) error {
	in, err := normalizeCategoryInput(in)
	if err != nil {
		return err
	}
	return s.mutate(sess, "category:create", "CATEGORY_CREATE_FAILED", "Failed to create category", func() error {
		return s.api.For(sess).CreateCategory(ctx, in)
	})
}

// Update edits a category.
func (s *CategoryService) Update(ctx context.Context, sess *auth.Store, id string, in models.CategoryInput) error {
	in, err := normalizeCategoryInput(in)
	if err != nil {
		return err
	}
	return s.mutate(sess, "category:update:"+id, "CATEGORY_UPDATE_FAILED", "Failed to update category", func() error {
		return s.api.For(sess).UpdateCategory(ctx, id, in)
	})
}

// Delete removes a category.
func (s *CategoryService) Delete(ctx context.Context, sess *auth.Store, id string) error {
	return s.mutate(sess, "category:delete:"+id, "CATEGORY_DELETE_FAILED", "Failed to delete category", func() error {
		return s.api.For(sess).DeleteCategory(ctx, id)
	})
}

func (s *CategoryService) mutate(sess *auth.Store, action, code, userMsg string, fn func() error) error {
	err := s.inflight.Do(performance.Key(sess.Namespace(), action), fn)
	if err == nil {
		s.log.WithField("action", action).Info("category changed")
		return nil
	}
	if errors.Is(err, errors.ErrInFlight) {
		return err
	}
	appErr := errors.Wrap(err, errors.ErrTypeTransport, code, "category mutation failed").
		WithUserMessage(userMsg).
		WithContext("action", action)
	appErr.Log(s.log)
	return appErr
}
