package models

import (
	"strings"
	"time"
	"unicode/utf8"
)

// Roles known to the application.
const (
	RoleAdmin   = "admin"
	RoleStudent = "student"
)

// User is the backend's user record. Token is only present on sign-in
// responses.
type User struct {
	ID         string    `json:"_id"`
	Username   string    `json:"username"`
	FirstName  string    `json:"firstName"`
	LastName   string    `json:"lastName"`
	Email      string    `json:"email"`
	University string    `json:"university"`
	Role       string    `json:"role"`
	Token      string    `json:"token,omitempty"`
	ProfilePic string    `json:"profilePic,omitempty"`
	CreatedAt  time.Time `json:"createdAt,omitempty"`
}

// FullName joins first and last name.
func (u User) FullName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

// Initials returns up to two upper-case initials for the avatar chip.
func (u User) Initials() string {
	var b strings.Builder
	for _, part := range []string{u.FirstName, u.LastName} {
		if r, _ := utf8.DecodeRuneInString(strings.TrimSpace(part)); r != utf8.RuneError {
			b.WriteString(strings.ToUpper(string(r)))
		}
	}
	return b.String()
}

// IsAdmin reports whether the user has the admin role.
func (u User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// Registration is the sign-up form.
type Registration struct {
	Username        string `json:"username" form:"username" validate:"required,min=3"`
	Email           string `json:"email" form:"email" validate:"required,email"`
	Password        string `json:"password" form:"password" validate:"required,min=8"`
	ConfirmPassword string `json:"-" form:"confirmPassword" validate:"eqfield=Password"`
	FirstName       string `json:"firstName" form:"firstName" validate:"required"`
	LastName        string `json:"lastName" form:"lastName" validate:"required"`
	University      string `json:"university" form:"university" validate:"required"`
}

// Normalize trims the free-text fields before validation and submission.
func (r Registration) Normalize() Registration {
	r.Username = strings.TrimSpace(r.Username)
	r.Email = strings.TrimSpace(r.Email)
	r.FirstName = strings.TrimSpace(r.FirstName)
	r.LastName = strings.TrimSpace(r.LastName)
	r.University = strings.TrimSpace(r.University)
	return r
}

// Credentials is the sign-in form.
type Credentials struct {
	Email    string `json:"email" form:"email" validate:"required"`
	Password string `json:"password" form:"password" validate:"required"`
}

// ProfileUpdate carries editable profile fields.
type ProfileUpdate struct {
	FirstName  string `json:"firstName" form:"firstName" validate:"required"`
	LastName   string `json:"lastName" form:"lastName" validate:"required"`
	Email      string `json:"email" form:"email" validate:"required,email"`
	University string `json:"university" form:"university"`
}

// PasswordChange is the password form on the profile page.
type PasswordChange struct {
	CurrentPassword string `json:"currentPassword" form:"currentPassword" validate:"required"`
	NewPassword     string `json:"password" form:"newPassword" validate:"required,min=8"`
	ConfirmPassword string `json:"-" form:"confirmPassword" validate:"eqfield=NewPassword"`
}
