package models

import "time"

// Share permissions.
const (
	PermissionView = "view"
	PermissionEdit = "edit"
)

// Peer is a user as shown on a shared note card.
type Peer struct {
	Name   string `json:"name"`
	Email  string `json:"email"`
	Avatar string `json:"avatar"`
}

// SharedNote is a preview record for the shared-notes view. There is no
// backend contract for sharing yet, so these come from bundled preview data.
type SharedNote struct {
	ID         int        `json:"id"`
	Title      string     `json:"title"`
	Content    string     `json:"content"`
	Category   string     `json:"category"`
	Tags       []string   `json:"tags"`
	SharedBy   Peer       `json:"sharedBy"`
	SharedWith Peer       `json:"sharedWith"`
	SharedAt   time.Time  `json:"sharedAt"`
	LastViewed *time.Time `json:"lastViewed,omitempty"`
	Permission string     `json:"permission"`
	IsOwner    bool       `json:"isOwner"`
}
