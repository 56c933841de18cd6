package services

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"

	"uninotes/pkg/errors"
	"uninotes/pkg/models"
)

// Shared view tabs.
const (
	SharedTabReceived = "received"
	SharedTabByMe     = "shared"
)

//go:embed fixtures/shared.json
var sharedFixture []byte

// SharedService serves the shared-notes preview. No backend contract for
// sharing exists, so the notes come from bundled preview data.
type SharedService struct {
	notes     []models.SharedNote
	validator *errors.Validator
}

func NewSharedService() (*SharedService, error) {
	var notes []models.SharedNote
	if err := json.Unmarshal(sharedFixture, &notes); err != nil {
		return nil, fmt.Errorf("parse shared preview data: %w", err)
	}
	return &SharedService{notes: notes, validator: errors.NewValidator()}, nil
}

// Notes returns the preview notes for tab matching term.
func (s *SharedService) Notes(tab, term string) []models.SharedNote {
	if tab != SharedTabByMe {
		tab = SharedTabReceived
	}
	return FilterShared(s.notes, tab, term)
}

// Counts returns the number of received and shared-by-me notes.
func (s *SharedService) Counts() (received, sharedByMe int) {
	for _, n := range s.notes {
		if n.IsOwner {
			sharedByMe++
		} else {
			received++
		}
	}
	return received, sharedByMe
}

// AddRecipient appends a validated, de-duplicated address to the editor's
// share list. The list stays in the form and is never sent anywhere.
func (s *SharedService) AddRecipient(list []string, email string) ([]string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || s.validator.Var(email, "email") != nil {
		return list, errors.ErrInvalidShareEmail.WithContext("email", email)
	}
	for _, existing := range list {
		if existing == email {
			return list, nil
		}
	}
	return append(list, email), nil
}
