package services

import (
	"context"

	"github.com/sirupsen/logrus"

	"uninotes/pkg/api"
	"uninotes/pkg/auth"
	"uninotes/pkg/errors"
	"uninotes/pkg/models"
	"uninotes/pkg/performance"
)

// UserService covers the profile page and admin user management.
type UserService struct {
	api       *api.Client
	inflight  *performance.InFlight
	validator *errors.Validator
	log       logrus.FieldLogger
}

func NewUserService(client *api.Client, inflight *performance.InFlight, log logrus.FieldLogger) *UserService {
	return &UserService{
		api:       client,
		inflight:  inflight,
		validator: errors.NewValidator(),
		log:       log.WithField("service", "users"),
	}
}

// List returns every user.
func (s *UserService) List(ctx context.Context, sess *auth.Store) ([]models.User, error) {
	users, err := s.api.For(sess).ListUsers(ctx)
	if err != nil {
		appErr := errors.Wrap(err, errors.ErrTypeTransport, "USERS_FETCH_FAILED", "failed to fetch users").
			WithUserMessage("Failed to fetch users")
		appErr.Log(s.log)
		return []models.User{}, appErr
	}
	return users, nil
}

// Delete removes a user account.
func (s *UserService) Delete(ctx context.Context, sess *auth.Store, id string) error {
	err := s.inflight.Do(performance.Key(sess.Namespace(), "user:delete:"+id), func() error {
		return s.api.For(sess).DeleteUser(ctx, id)
	})
	if err == nil {
		s.log.WithField("user", id).Info("user deleted")
		return nil
	}
	if errors.Is(err, errors.ErrInFlight) {
		return err
	}
	appErr := errors.Wrap(err, errors.ErrTypeTransport, "USER_DELETE_FAILED", "user deletion failed").
		WithUserMessage("Failed to delete user").
		WithContext("user", id)
	appErr.Log(s.log)
	return appErr
}

// Profile loads the signed-in user's record from the backend.
func (s *UserService) Profile(ctx context.Context, sess *auth.Store) (*models.User, error) {
	current := sess.User()
	if current == nil {
		return nil, errors.ErrNotAuthenticated
	}
	user, err := s.api.For(sess).GetUser(ctx, current.ID)
	if err != nil {
		if errors.Is(err, errors.ErrUserNotFound) {
			return nil, err
		}
		appErr := errors.Wrap(err, errors.ErrTypeTransport, "PROFILE_FETCH_FAILED", "failed to load profile").
			WithUserMessage("Failed to load profile").
			WithContext("user", current.ID)
		appErr.Log(s.log)
		return nil, appErr
	}
	return user, nil
}

// UpdateProfile saves the editable fields and refreshes the session user so
// the navigation shows the new name immediately.
func (s *UserService) UpdateProfile(ctx context.Context, sess *auth.Store, in models.ProfileUpdate) (*errors.ValidationResult, error) {
	current := sess.User()
	if current == nil {
		return nil, errors.ErrNotAuthenticated
	}

	result := s.validator.Struct(in)
	if !result.IsValid {
		return result, result.Err()
	}

	if err := s.api.For(sess).UpdateUser(ctx, current.ID, in); err != nil {
		appErr := errors.Wrap(err, errors.ErrTypeTransport, "PROFILE_UPDATE_FAILED", "profile update failed").
			WithUserMessage("Failed to update profile").
			WithContext("user", current.ID)
		appErr.Log(s.log)
		result.AddError("general", appErr.GetUserMessage())
		return result, appErr
	}

	updated := *current
	updated.FirstName = in.FirstName
	updated.LastName = in.LastName
	updated.Email = in.Email
	updated.University = in.University
	if err := sess.UpdateUser(ctx, updated); err != nil {
		return result, err
	}
	s.log.WithField("user", current.ID).Info("profile updated")
	return result, nil
}

// ChangePassword validates the form before sending anything.
func (s *UserService) ChangePassword(ctx context.Context, sess *auth.Store, in models.PasswordChange) (*errors.ValidationResult, error) {
	current := sess.User()
	if current == nil {
		return nil, errors.ErrNotAuthenticated
	}

	result := s.validator.Struct(in)
	if !result.IsValid {
		return result, result.Err()
	}

	if err := s.api.For(sess).UpdateUser(ctx, current.ID, in); err != nil {
		appErr := errors.Wrap(err, errors.ErrTypeTransport, "PASSWORD_CHANGE_FAILED", "password change failed").
			WithUserMessage("Failed to change password").
			WithContext("user", current.ID)
		appErr.Log(s.log)
		result.AddError("general", appErr.GetUserMessage())
		return result, appErr
	}
	s.log.WithField("user", current.ID).Info("password changed")
	return result, nil
}
