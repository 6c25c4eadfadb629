package shared

import "errors"

var (
	// ErrNotFound indicates a role, grant, or session is absent.
	ErrNotFound = errors.New("not found")
	// ErrConflict indicates a uniqueness violation on name, external group ref, or grant pair.
	ErrConflict = errors.New("conflict")
	// ErrInvalidArgument indicates malformed input such as a bad permission vector.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrUnauthorized indicates a failed gate check, bad signature, or wrong token subject.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrExpired indicates a token or session past its validity window.
	ErrExpired = errors.New("expired")
	// ErrMalformed indicates a structurally invalid token.
	ErrMalformed = errors.New("malformed token")
	// ErrInvalidCredentials indicates login failure.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrCSRFTokenMissing occurs when CSRF token missing.
	ErrCSRFTokenMissing = errors.New("csrf token missing")
	// ErrCSRFTokenMismatch occurs when CSRF tokens do not match.
	ErrCSRFTokenMismatch = errors.New("csrf token mismatch")
)
