package session

import "errors"

// ErrAuth matches every *AuthError via errors.Is.
var ErrAuth = errors.New("authentication error")

const fallbackMessage = "login failed"

// AuthError is returned when login fails. Message is safe to show to a user.
type AuthError struct {
	Message string
	Err     error
}

func (e *AuthError) Error() string {
	if e.Message == "" {
		return fallbackMessage
	}
	return e.Message
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

func (e *AuthError) Is(target error) bool {
	return target == ErrAuth
}
