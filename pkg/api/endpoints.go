package api

import (
	"context"
	"net/http"
	"net/url"

	"uninotes/pkg/errors"
	"uninotes/pkg/models"
)

// SignIn posts credentials and returns the raw response; the caller decodes
// the envelope and handles failures.
func (c *Client) SignIn(ctx context.Context, creds models.Credentials) (*http.Response, error) {
	return c.Raw(ctx, http.MethodPost, "/api/signin", creds)
}

// SignUp posts a registration and returns the raw response.
func (c *Client) SignUp(ctx context.Context, reg models.Registration) (*http.Response, error) {
	return c.Raw(ctx, http.MethodPost, "/api/signup", reg)
}

// Categories

func (c *Client) ListCategories(ctx context.Context) ([]models.Category, error) {
	return FetchList[models.Category](ctx, c, http.MethodGet, "/api/categories")
}

func (c *Client) CreateCategory(ctx context.Context, in models.CategoryInput) error {
	return c.Do(ctx, http.MethodPost, "/api/categories", in, nil)
}

func (c *Client) UpdateCategory(ctx context.Context, id string, in models.CategoryInput) error {
	return c.Do(ctx, http.MethodPut, "/api/categories/"+url.PathEscape(id), in, nil)
}

func (c *Client) DeleteCategory(ctx context.Context, id string) error {
	return c.Do(ctx, http.MethodDelete, "/api/categories/"+url.PathEscape(id), nil, nil)
}

// Tags

func (c *Client) ListTags(ctx context.Context) ([]models.Tag, error) {
	return FetchList[models.Tag](ctx, c, http.MethodGet, "/api/tags")
}

func (c *Client) CreateTag(ctx context.Context, in models.TagInput) error {
	return c.Do(ctx, http.MethodPost, "/api/tags", in, nil)
}

// Users

func (c *Client) ListUsers(ctx context.Context) ([]models.User, error) {
	return FetchList[models.User](ctx, c, http.MethodGet, "/api/users")
}

// GetUser looks a user up through the id query; the backend answers with a list.
func (c *Client) GetUser(ctx context.Context, id string) (*models.User, error) {
	users, err := FetchList[models.User](ctx, c, http.MethodGet, "/api/users?id="+url.QueryEscape(id))
	if err != nil {
		return nil, err
	}
	if len(users) == 0 {
		return nil, errors.ErrUserNotFound.WithContext("id", id)
	}
	return &users[0], nil
}

func (c *Client) UpdateUser(ctx context.Context, id string, body interface{}) error {
	return c.Do(ctx, http.MethodPut, "/api/users/"+url.PathEscape(id), body, nil)
}

func (c *Client) DeleteUser(ctx context.Context, id string) error {
	return c.Do(ctx, http.MethodDelete, "/api/users/"+url.PathEscape(id), nil, nil)
}

// Notes

// ListNotes returns every note; used by the admin views.
func (c *Client) ListNotes(ctx context.Context) ([]models.Note, error) {
	return FetchList[models.Note](ctx, c, http.MethodGet, "/api/notes")
}

func (c *Client) ListUserNotes(ctx context.Context, userID string) ([]models.Note, error) {
	return FetchList[models.Note](ctx, c, http.MethodGet, "/api/notes/"+url.PathEscape(userID))
}

func (c *Client) CreateNote(ctx context.Context, userID string, in models.NoteInput) error {
	return c.Do(ctx, http.MethodPost, "/api/notes/"+url.PathEscape(userID), in, nil)
}

func (c *Client) UpdateNote(ctx context.Context, id string, in models.NoteInput) error {
	return c.Do(ctx, http.MethodPut, "/api/notes/"+url.PathEscape(id), in, nil)
}

func (c *Client) DeleteNote(ctx context.Context, id string) error {
	return c.Do(ctx, http.MethodDelete, "/api/notes/"+url.PathEscape(id), nil, nil)
}
