package domain

import "errors"

var (
	// ErrMissingAPIKey is returned by every remote operation when no credentials are configured.
	ErrMissingAPIKey = errors.New("API_KEY is not configured. Cannot create chat session.")

	ErrNotFound = errors.New("not found")
)

// ValidationError is a local, pre-flight failure. It never reaches the model.
type ValidationError struct {
	Message string
	Missing []string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// IsValidation reports whether err is a *ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

