package models

import "time"

// Category groups notes by subject.
type Category struct {
	ID          string    `json:"_id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Color       string    `json:"color"`
	CreatedAt   time.Time `json:"createdAt"`
}

// CategoryInput is the create/edit form.
type CategoryInput struct {
	Name        string `json:"name" form:"name" validate:"required"`
	Description string `json:"description" form:"description"`
	Color       string `json:"color" form:"color" validate:"omitempty,hexcolor"`
}

// Tag is a short label with a display color.
type Tag struct {
	ID        string    `json:"_id"`
	Name      string    `json:"name"`
	Color     string    `json:"colorCode"`
	CreatedAt time.Time `json:"createdAt,omitempty"`
}

// TagInput is the tag creation form.
type TagInput struct {
	Name  string `json:"name" form:"name" validate:"required"`
	Color string `json:"colorCode" form:"color" validate:"omitempty,hexcolor"`
}
