package services

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/sirupsen/logrus"

	"uninotes/pkg/api"
	"uninotes/pkg/auth"
	"uninotes/pkg/errors"
	"uninotes/pkg/models"
)

// AuthService runs the sign-in and registration flows against the backend.
type AuthService struct {
	api       *api.Client
	validator *errors.Validator
	log       logrus.FieldLogger
}

// NewAuthService creates a new authentication service
func NewAuthService(client *api.Client, log logrus.FieldLogger) *AuthService {
	return &AuthService{
		api:       client,
		validator: errors.NewValidator(),
		log:       log.WithField("service", "auth"),
	}
}

// SignIn authenticates against the backend and, on an envelope status of
// 200, stores the returned user in the browser session.
func (s *AuthService) SignIn(ctx context.Context, sess *auth.Store, creds models.Credentials) (*models.User, error) {
	creds.Email = strings.TrimSpace(creds.Email)

	resp, err := s.api.SignIn(ctx, creds)
	if err != nil {
		appErr := errors.Wrap(err, errors.ErrTypeTransport, "SIGNIN_FAILED", "sign-in request failed").
			WithUserMessage("Something went wrong while logging in.")
		appErr.Log(s.log)
		return nil, appErr
	}
	defer resp.Body.Close()

	env, err := api.DecodeEnvelope[models.User](resp.Body)
	if err != nil {
		appErr := errors.Wrap(err, errors.ErrTypeTransport, "SIGNIN_BAD_RESPONSE", "unreadable sign-in response").
			WithUserMessage("Something went wrong while logging in.").
			WithContext("status", resp.StatusCode)
		appErr.Log(s.log)
		return nil, appErr
	}

	if env.Status != http.StatusOK {
		msg := env.Message
		if msg == "" {
			msg = "Invalid credentials"
		}
		appErr := errors.New(errors.ErrTypeAuth, "LOGIN_FAILED", "sign-in rejected").
			WithUserMessage("Login failed: " + msg).
			WithContext("status", env.Status)
		appErr.Log(s.log)
		return nil, appErr
	}

	user := env.Payload
	if err := sess.Login(ctx, user); err != nil {
		return nil, err
	}
	s.log.WithFields(logrus.Fields{"user": user.ID, "role": user.Role}).Info("signed in")
	return &user, nil
}

// signupFailure is the error body of a rejected registration.
type signupFailure struct {
	Message string            `json:"message"`
	Errors  map[string]string `json:"errors"`
}

// Register validates the form, submits it and maps backend failures onto
// form fields. On success any stale session in this browser is cleared.
// The returned result is never nil.
func (s *AuthService) Register(ctx context.Context, sess *auth.Store, reg models.Registration) (*errors.ValidationResult, error) {
	reg = reg.Normalize()
	result := s.validator.Struct(reg)
	if !result.IsValid {
		return result, result.Err()
	}

	resp, err := s.api.SignUp(ctx, reg)
	if err != nil {
		s.log.WithError(err).Warn("sign-up request failed")
		result.AddError("general", "Network error. Please try again.")
		return result, result.Err()
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(resp.Body)
		var failure signupFailure
		_ = json.Unmarshal(body, &failure)

		message := failure.Message
		if message == "" {
			message = "Registration failed. Please try again."
		}

		switch {
		case len(failure.Errors) > 0:
			result.Merge(failure.Errors)
		case resp.StatusCode == http.StatusConflict:
			lower := strings.ToLower(message)
			switch {
			case strings.Contains(lower, "email"):
				result.AddError("email", message)
			case strings.Contains(lower, "user"):
				result.AddError("username", message)
			default:
				result.AddError("general", message)
			}
		default:
			result.AddError("general", message)
		}
		s.log.WithFields(logrus.Fields{"status": resp.StatusCode, "fields": len(result.Fields)}).Info("registration rejected")
		return result, result.Err()
	}

	if err := sess.Logout(ctx); err != nil {
		s.log.WithError(err).Warn("failed to clear stale session after registration")
	}
	s.log.WithField("username", reg.Username).Info("registered")
	return result, nil
}
