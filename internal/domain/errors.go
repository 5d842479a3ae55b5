package domain

import "errors"

// Sentinel errors distinguishing the outcomes the handlers translate into
// user-facing replies. Anything not matching one of these is treated as an
// unexpected transport or persistence failure and only logged.
var (
	// ErrUnauthenticated marks an actor with no user record at all.
	ErrUnauthenticated = errors.New("actor is not a registered user")
	// ErrUnauthorized marks a known user lacking the required role.
	ErrUnauthorized = errors.New("insufficient privilege")
	// ErrNotFound marks a referenced group, chat, or user that does not exist.
	ErrNotFound = errors.New("not found")
	// ErrConflict marks a duplicate group title or an already-active membership.
	ErrConflict = errors.New("already exists")
	// ErrValidation marks input that fails format validation.
	ErrValidation = errors.New("invalid input")
)
