package shared

import "errors"

var (
	// ErrNotFound indicates a referenced entity does not exist.
	ErrNotFound = errors.New("not found")
	// ErrValidation indicates malformed or rejected input.
	ErrValidation = errors.New("validation failed")
	// ErrConflict indicates a rejected precondition, such as selling a lot
	// that is no longer available.
	ErrConflict = errors.New("conflict")
	// ErrForbidden indicates the principal may not access the resource.
	ErrForbidden = errors.New("forbidden")
	// ErrUnauthorized indicates a missing or invalid credential.
	ErrUnauthorized = errors.New("unauthorized")
)
