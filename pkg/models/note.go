package models

import (
	"strings"
	"time"
)

// Note statuses reported by the admin listing.
const (
	NoteStatusActive  = "active"
	NoteStatusFlagged = "flagged"
	NoteStatusDeleted = "deleted"
)

// Note is a note as exchanged with the backend. A note references at most
// one category and one tag.
type Note struct {
	ID         string    `json:"_id"`
	Title      string    `json:"title"`
	Content    string    `json:"content"`
	UserID     string    `json:"userId"`
	CategoryID string    `json:"categoryId,omitempty"`
	TagID      string    `json:"tagId,omitempty"`
	Author     *User     `json:"author,omitempty"`
	Status     string    `json:"status,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// AuthorName returns the author's full name, or an empty string when the
// backend did not embed the author.
func (n Note) AuthorName() string {
	if n.Author == nil {
		return ""
	}
	return n.Author.FullName()
}

// NoteInput is the body sent when creating or re-saving a note. It never
// carries an owner: ownership is fixed by the creation endpoint.
type NoteInput struct {
	Title      string `json:"title" validate:"required"`
	Content    string `json:"content"`
	CategoryID string `json:"categoryId"`
	TagID      string `json:"tagId"`
}

// Normalize trims the title so that whitespace-only titles count as empty.
func (in NoteInput) Normalize() NoteInput {
	in.Title = strings.TrimSpace(in.Title)
	return in
}
