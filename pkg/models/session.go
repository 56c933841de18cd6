package models

// Session represents the signed-in user of one browser together with the
// bearer token used for backend requests.
type Session struct {
	User  User   `json:"user"`
	Token string `json:"-"`
}

// HasRole reports whether the session user holds the given role.
func (s *Session) HasRole(role string) bool {
	return s != nil && s.User.Role == role
}
