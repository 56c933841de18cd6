package services

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"

	"uninotes/pkg/api"
	"uninotes/pkg/auth"
	"uninotes/pkg/errors"
	"uninotes/pkg/models"
)

// Stats are the admin dashboard counters.
type Stats struct {
	Users        int
	Students     int
	Admins       int
	Notes        int
	Flagged      int
	NotesPerUser float64
}

// ComputeStats derives the dashboard counters from the full lists.
func ComputeStats(users []models.User, notes []models.Note) Stats {
	st := Stats{Users: len(users), Notes: len(notes)}
	for _, u := range users {
		switch u.Role {
		case models.RoleAdmin:
			st.Admins++
		case models.RoleStudent:
			st.Students++
		}
	}
	for _, n := range notes {
		if n.Status == models.NoteStatusFlagged {
			st.Flagged++
		}
	}
	if st.Users > 0 {
		st.NotesPerUser = float64(st.Notes) / float64(st.Users)
	}
	return st
}

// AdminService feeds the admin dashboard.
type AdminService struct {
	api *api.Client
	log logrus.FieldLogger
}

func NewAdminService(client *api.Client, log logrus.FieldLogger) *AdminService {
	return &AdminService{api: client, log: log.WithField("service", "admin")}
}

// Stats fetches users and notes concurrently. Counts are computed from
// whatever loaded; the first failure is returned alongside them.
func (s *AdminService) Stats(ctx context.Context, sess *auth.Store) (Stats, error) {
	client := s.api.For(sess)

	var (
		wg                 sync.WaitGroup
		users              []models.User
		notes              []models.Note
		usersErr, notesErr error
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		users, usersErr = client.ListUsers(ctx)
	}()
	go func() {
		defer wg.Done()
		notes, notesErr = client.ListNotes(ctx)
	}()
	wg.Wait()

	st := ComputeStats(users, notes)
	for _, err := range []error{usersErr, notesErr} {
		if err != nil {
			appErr := errors.Wrap(err, errors.ErrTypeTransport, "STATS_FETCH_FAILED", "failed to load admin stats").
				WithUserMessage("Some statistics could not be loaded")
			appErr.Log(s.log)
			return st, appErr
		}
	}
	return st, nil
}
