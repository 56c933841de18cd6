package services

import (
	"context"
	"regexp"
	"strings"

	"github.com/sirupsen/logrus"

	"uninotes/pkg/api"
	"uninotes/pkg/auth"
	"uninotes/pkg/errors"
	"uninotes/pkg/models"
	"uninotes/pkg/performance"
)

// DefaultTagColor is used when the form leaves the color empty.
const DefaultTagColor = "#000000"

var whitespace = regexp.MustCompile(`\s+`)

// TagSlug lower-cases a tag name and joins words with "-".
func TagSlug(name string) string {
	return whitespace.ReplaceAllString(strings.ToLower(strings.TrimSpace(name)), "-")
}

// TagService manages tags.
type TagService struct {
	api      *api.Client
	inflight *performance.InFlight
	log      logrus.FieldLogger
}

func NewTagService(client *api.Client, inflight *performance.InFlight, log logrus.FieldLogger) *TagService {
	return &TagService{
		api:      client,
		inflight: inflight,
		log:      log.WithField("service", "tags"),
	}
}

// List fetches all tags.
func (s *TagService) List(ctx context.Context, sess *auth.Store) ([]models.Tag, error) {
	tags, err := s.api.For(sess).ListTags(ctx)
	if err != nil {
		appErr := errors.Wrap(err, errors.ErrTypeTransport, "TAGS_FETCH_FAILED", "failed to fetch tags").
			WithUserMessage("Failed to fetch tags")
		appErr.Log(s.log)
		return []models.Tag{}, appErr
	}
	return tags, nil
}

// Usage counts how many of the signed-in user's notes carry each tag.
func (s *TagService) Usage(ctx context.Context, sess *auth.Store) map[string]int {
	user := sess.User()
	if user == nil {
		return map[string]int{}
	}
	notes, err := s.api.For(sess).ListUserNotes(ctx, user.ID)
	if err != nil {
		s.log.WithError(err).Warn("failed to load notes for tag usage")
		return map[string]int{}
	}
	return TagUsage(notes)
}

// Create adds a tag. The name is slugged and compared case-insensitively
// against existing tags before any request is sent.
func (s *TagService) Create(ctx context.Context, sess *auth.Store, existing []models.Tag, in models.TagInput) error {
	in.Name = TagSlug(in.Name)
	if in.Name == "" {
		return errors.ErrNameRequired
	}
	for _, t := range existing {
		if strings.EqualFold(t.Name, in.Name) {
			return errors.ErrDuplicateTag.WithContext("name", in.Name)
		}
	}
	if in.Color == "" {
		in.Color = DefaultTagColor
	}

	err := s.inflight.Do(performance.Key(sess.Namespace(), "tag:create"), func() error {
		return s.api.For(sess).CreateTag(ctx, in)
	})
	if err == nil {
		s.log.WithField("tag", in.Name).Info("tag created")
		return nil
	}
	if errors.Is(err, errors.ErrInFlight) {
		return err
	}
	appErr := errors.Wrap(err, errors.ErrTypeTransport, "TAG_CREATE_FAILED", "tag creation failed").
		WithUserMessage("Failed to create tag").
		WithContext("name", in.Name)
	appErr.Log(s.log)
	return appErr
}
