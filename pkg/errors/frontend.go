package errors

// FrontendError represents an error formatted for JSON callers
type FrontendError struct {
	Type    string                 `json:"type"`
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Context map[string]interface{} `json:"context,omitempty"`
}

// ToFrontendError converts an error to a frontend-friendly format
func ToFrontendError(err error) *FrontendError {
	if appErr, ok := As(err); ok {
		return &FrontendError{
			Type:    string(appErr.Type),
			Code:    appErr.Code,
			Message: appErr.GetUserMessage(),
			Context: appErr.Context,
		}
	}

	// Handle generic errors
	return &FrontendError{
		Type:    string(ErrTypeApp),
		Code:    "GENERIC_ERROR",
		Message: "An unexpected error occurred. Please try again",
	}
}
