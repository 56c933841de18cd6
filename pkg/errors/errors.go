package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"

	"github.com/sirupsen/logrus"
)

// ErrorType represents different categories of errors
type ErrorType string

const (
	// Input rejected before any request is made
	ErrTypeValidation ErrorType = "validation"
	// Network failures and non-2xx backend responses
	ErrTypeTransport ErrorType = "transport"
	// Missing session
	ErrTypeAuth ErrorType = "authentication"
	// Signed in with the wrong role
	ErrTypeForbidden ErrorType = "authorization"
	// Too many attempts from one client
	ErrTypeRateLimit ErrorType = "rate_limit"
	// Configuration errors
	ErrTypeConfig ErrorType = "configuration"
	// Durable storage errors
	ErrTypeStorage ErrorType = "storage"
	// Generic application errors
	ErrTypeApp ErrorType = "application"
)

// AppError represents a structured application error
type AppError struct {
	Type        ErrorType              `json:"type"`
	Code        string                 `json:"code"`
	Message     string                 `json:"message"`
	UserMessage string                 `json:"userMessage"`
	InternalErr error                  `json:"-"`
	Context     map[string]interface{} `json:"context,omitempty"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.InternalErr != nil {
		return fmt.Sprintf("[%s:%s] %s: %v", e.Type, e.Code, e.Message, e.InternalErr)
	}
	return fmt.Sprintf("[%s:%s] %s", e.Type, e.Code, e.Message)
}

// Unwrap exposes the wrapped error to errors.Is/As.
func (e *AppError) Unwrap() error {
	return e.InternalErr
}

// Is matches errors of the same type and code, so predefined errors work as
// sentinels even after WithContext copies them.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return e.Type == t.Type && e.Code == t.Code
}

// GetUserMessage returns a user-friendly error message
func (e *AppError) GetUserMessage() string {
	if e.UserMessage != "" {
		return e.UserMessage
	}
	return e.Message
}

// WithContext returns a copy of the error with an added context entry.
func (e *AppError) WithContext(key string, value interface{}) *AppError {
	c := e.clone()
	c.Context[key] = value
	return c
}

// WithUserMessage returns a copy of the error with a user-facing message.
func (e *AppError) WithUserMessage(msg string) *AppError {
	c := e.clone()
	c.UserMessage = msg
	return c
}

// Wrapping returns a copy of the error carrying err as its cause.
func (e *AppError) Wrapping(err error) *AppError {
	c := e.clone()
	c.InternalErr = err
	return c
}

func (e *AppError) clone() *AppError {
	c := *e
	c.Context = make(map[string]interface{}, len(e.Context)+1)
	for k, v := range e.Context {
		c.Context[k] = v
	}
	return &c
}

// Log logs the error at a level matching its type.
func (e *AppError) Log(log logrus.FieldLogger) {
	fields := logrus.Fields{
		"type": e.Type,
		"code": e.Code,
	}
	for k, v := range e.Context {
		fields[k] = v
	}
	if e.InternalErr != nil {
		fields["error"] = e.InternalErr.Error()
	}

	entry := log.WithFields(fields)
	switch e.Type {
	case ErrTypeValidation, ErrTypeAuth, ErrTypeForbidden, ErrTypeRateLimit:
		entry.Warn(e.Message)
	default:
		entry.Error(e.Message)
	}
}

// HTTPStatus maps the error type to a response status for JSON callers.
func (e *AppError) HTTPStatus() int {
	switch e.Type {
	case ErrTypeValidation:
		return http.StatusBadRequest
	case ErrTypeAuth:
		return http.StatusUnauthorized
	case ErrTypeForbidden:
		return http.StatusForbidden
	case ErrTypeRateLimit:
		return http.StatusTooManyRequests
	case ErrTypeTransport:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// New creates a new AppError
func New(errType ErrorType, code, message string) *AppError {
	return &AppError{
		Type:    errType,
		Code:    code,
		Message: message,
	}
}

// Wrap wraps an existing error with additional context
func Wrap(err error, errType ErrorType, code, message string) *AppError {
	return &AppError{
		Type:        errType,
		Code:        code,
		Message:     message,
		InternalErr: err,
	}
}

// As is errors.As specialised to *AppError.
func As(err error) (*AppError, bool) {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// Is forwards to the standard library.
func Is(err, target error) bool {
	return stderrors.Is(err, target)
}

// UserMessage returns the user-facing text for any error.
func UserMessage(err error) string {
	if appErr, ok := As(err); ok {
		return appErr.GetUserMessage()
	}
	return "An unexpected error occurred. Please try again"
}

// Predefined errors for common scenarios
var (
	ErrNotAuthenticated = New(ErrTypeAuth, "NOT_AUTHENTICATED", "user not authenticated").
				WithUserMessage("Please log in to continue")

	ErrForbidden = New(ErrTypeForbidden, "FORBIDDEN", "role not permitted").
			WithUserMessage("You do not have access to this page")

	ErrRateLimited = New(ErrTypeRateLimit, "RATE_LIMITED", "too many attempts").
			WithUserMessage("Too many attempts, please try again later.")

	ErrTitleRequired = New(ErrTypeValidation, "TITLE_REQUIRED", "note title is empty").
				WithUserMessage("Please enter a title for your note")

	ErrNameRequired = New(ErrTypeValidation, "NAME_REQUIRED", "name is empty").
			WithUserMessage("Please enter a name")

	ErrDuplicateTag = New(ErrTypeValidation, "TAG_EXISTS", "tag name already exists").
			WithUserMessage("A tag with this name already exists!")

	ErrInvalidShareEmail = New(ErrTypeValidation, "SHARE_EMAIL_INVALID", "invalid share address").
				WithUserMessage("Please enter a valid email address")

	ErrInFlight = New(ErrTypeApp, "IN_FLIGHT", "action already in progress").
			WithUserMessage("This action is already in progress")

	ErrNoteNotFound = New(ErrTypeApp, "NOTE_NOT_FOUND", "note not found").
			WithUserMessage("The requested note could not be found")

	ErrUserNotFound = New(ErrTypeApp, "USER_NOT_FOUND", "user not found").
			WithUserMessage("User not found. Please log in again.")

	ErrStorageRead = New(ErrTypeStorage, "STORAGE_READ_FAILED", "failed to read durable storage").
			WithUserMessage("Unable to read saved session data")

	ErrStorageWrite = New(ErrTypeStorage, "STORAGE_WRITE_FAILED", "failed to write durable storage").
			WithUserMessage("Unable to save session data")

	ErrConfigLoadFailed = New(ErrTypeConfig, "CONFIG_LOAD_FAILED", "failed to load configuration").
				WithUserMessage("Configuration file could not be loaded")

	ErrBackendUnavailable = New(ErrTypeTransport, "BACKEND_FAILED", "backend request failed").
				WithUserMessage("Something went wrong while contacting the server")
)
