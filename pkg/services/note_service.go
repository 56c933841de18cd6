package services

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"

	"uninotes/pkg/api"
	"uninotes/pkg/auth"
	"uninotes/pkg/errors"
	"uninotes/pkg/events"
	"uninotes/pkg/models"
	"uninotes/pkg/performance"
)

// NewNoteID is the editor route id that means "create".
const NewNoteID = "new"

// NoteService handles note business logic
type NoteService struct {
	api      *api.Client
	bus      *events.Bus
	inflight *performance.InFlight
	log      logrus.FieldLogger
}

// NewNoteService creates a new note service
func NewNoteService(client *api.Client, bus *events.Bus, inflight *performance.InFlight, log logrus.FieldLogger) *NoteService {
	return &NoteService{
		api:      client,
		bus:      bus,
		inflight: inflight,
		log:      log.WithField("service", "notes"),
	}
}

// EditorData is everything the note editor renders.
type EditorData struct {
	Note       models.Note
	IsNew      bool
	Categories []models.Category
	Tags       []models.Tag
}

// Lookups fetches categories and tags concurrently. A failed fetch is
// logged and leaves its list empty.
func (s *NoteService) Lookups(ctx context.Context, sess *auth.Store) ([]models.Category, []models.Tag) {
	client := s.api.For(sess)

	var (
		wg         sync.WaitGroup
		categories []models.Category
		tags       []models.Tag
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		list, err := client.ListCategories(ctx)
		if err != nil {
			s.log.WithError(err).Warn("failed to load categories")
			return
		}
		categories = NormalizeCategories(list)
	}()
	go func() {
		defer wg.Done()
		list, err := client.ListTags(ctx)
		if err != nil {
			s.log.WithError(err).Warn("failed to load tags")
			return
		}
		tags = list
	}()
	wg.Wait()

	if categories == nil {
		categories = []models.Category{}
	}
	if tags == nil {
		tags = []models.Tag{}
	}
	return categories, tags
}

// LoadEditor prepares the editor for id. For an existing note it is looked
// up in the signed-in user's note list.
func (s *NoteService) LoadEditor(ctx context.Context, sess *auth.Store, id string) (*EditorData, error) {
	user := sess.User()
	if user == nil {
		return nil, errors.ErrNotAuthenticated
	}

	data := &EditorData{IsNew: id == "" || id == NewNoteID}
	data.Categories, data.Tags = s.Lookups(ctx, sess)
	if data.IsNew {
		return data, nil
	}

	notes, err := s.api.For(sess).ListUserNotes(ctx, user.ID)
	if err != nil {
		appErr := errors.ErrBackendUnavailable.Wrapping(err).WithContext("noteId", id)
		appErr.Log(s.log)
		return data, appErr
	}
	for _, n := range notes {
		if n.ID == id {
			data.Note = n
			return data, nil
		}
	}
	return data, errors.ErrNoteNotFound.WithContext("noteId", id)
}

// Save creates the note when id is empty or "new" and updates it otherwise.
// An empty title is rejected before any request.
func (s *NoteService) Save(ctx context.Context, sess *auth.Store, id string, in models.NoteInput) error {
	user := sess.User()
	if user == nil {
		return errors.ErrNotAuthenticated
	}

	in = in.Normalize()
	if in.Title == "" {
		return errors.ErrTitleRequired
	}

	creating := id == "" || id == NewNoteID
	action := "note:update:" + id
	if creating {
		action = "note:create"
	}

	err := s.inflight.Do(performance.Key(sess.Namespace(), action), func() error {
		client := s.api.For(sess)
		if creating {
			return client.CreateNote(ctx, user.ID, in)
		}
		return client.UpdateNote(ctx, id, in)
	})
	if err != nil {
		return s.mutationFailed(err, "NOTE_SAVE_FAILED", "Failed to save note. Please try again.", id)
	}

	s.log.WithFields(logrus.Fields{"user": user.ID, "note": id, "create": creating}).Info("note saved")
	s.notesUpdated(sess.Namespace())
	return nil
}

// Delete removes a note. Callers refetch the list afterwards.
func (s *NoteService) Delete(ctx context.Context, sess *auth.Store, id string) error {
	if sess.User() == nil {
		return errors.ErrNotAuthenticated
	}

	err := s.inflight.Do(performance.Key(sess.Namespace(), "note:delete:"+id), func() error {
		return s.api.For(sess).DeleteNote(ctx, id)
	})
	if err != nil {
		return s.mutationFailed(err, "NOTE_DELETE_FAILED", "Failed to delete note. Please try again.", id)
	}

	s.log.WithField("note", id).Info("note deleted")
	s.notesUpdated(sess.Namespace())
	return nil
}

func (s *NoteService) mutationFailed(err error, code, userMsg, id string) error {
	if errors.Is(err, errors.ErrInFlight) {
		return err
	}
	appErr := errors.Wrap(err, errors.ErrTypeTransport, code, "note mutation failed").
		WithUserMessage(userMsg).
		WithContext("noteId", id)
	appErr.Log(s.log)
	return appErr
}

func (s *NoteService) notesUpdated(namespace string) {
	if s.bus != nil {
		s.bus.Publish(events.Event{Type: events.NotesUpdated, Namespace: namespace})
	}
}

// Dashboard is the student's note list. When the fetch failed, Notes holds
// the last cached list, Stale is set and Err carries the failure.
type Dashboard struct {
	Notes      []models.Note
	Categories []models.Category
	Tags       []models.Tag
	Stale      bool
	Err        error
}

// Dashboard fetches the user's notes, caching them in durable storage on
// success and falling back to the cache on failure.
func (s *NoteService) Dashboard(ctx context.Context, sess *auth.Store) (*Dashboard, error) {
	user := sess.User()
	if user == nil {
		return nil, errors.ErrNotAuthenticated
	}

	d := &Dashboard{}
	d.Categories, d.Tags = s.Lookups(ctx, sess)

	notes, err := s.api.For(sess).ListUserNotes(ctx, user.ID)
	if err == nil {
		d.Notes = notes
		if cacheErr := sess.Cache(ctx, notes); cacheErr != nil {
			s.log.WithError(cacheErr).Warn("failed to cache notes")
		}
		return d, nil
	}

	appErr := errors.Wrap(err, errors.ErrTypeTransport, "NOTES_FETCH_FAILED", "failed to fetch notes").
		WithUserMessage("Failed to fetch notes. Showing your last saved list.").
		WithContext("user", user.ID)
	appErr.Log(s.log)

	cached, cacheErr := sess.Cached(ctx)
	if cacheErr != nil {
		s.log.WithError(cacheErr).Warn("failed to read cached notes")
	}
	if cached == nil {
		cached = []models.Note{}
	}
	d.Notes = cached
	d.Stale = true
	d.Err = appErr
	return d, nil
}

// AllNotes is the admin listing of every note.
func (s *NoteService) AllNotes(ctx context.Context, sess *auth.Store) ([]models.Note, error) {
	notes, err := s.api.For(sess).ListNotes(ctx)
	if err != nil {
		appErr := errors.Wrap(err, errors.ErrTypeTransport, "NOTES_FETCH_FAILED", "failed to fetch all notes").
			WithUserMessage("Failed to fetch notes")
		appErr.Log(s.log)
		return []models.Note{}, appErr
	}
	return notes, nil
}
