package domain

import "errors"

var (
	// ErrInvalidRequest signals caller input validation errors.
	ErrInvalidRequest = errors.New("invalid request")
	// ErrCredentialNotFound is returned by stores when no credential exists for a user.
	ErrCredentialNotFound = errors.New("credential not found")
	// ErrNotAuthenticated indicates the caller has no stored credential.
	ErrNotAuthenticated = errors.New("user not authenticated")
	// ErrTokenExpired indicates the stored credential is past its expiry.
	ErrTokenExpired = errors.New("access token expired")
)

// ValidationError carries a caller-facing message for a 400 response.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// Is lets errors.Is(err, ErrInvalidRequest) match every ValidationError.
func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidRequest
}

// NewValidationError builds a ValidationError.
func NewValidationError(message string) error {
	return &ValidationError{Message: message}
}
