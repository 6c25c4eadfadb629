package httpx

import (
	"errors"
	"net/http"

	"github.com/forge-club/forge/internal/shared"
)

// RespondError maps domain errors to HTTP responses using RFC7807.
// Authorization failures collapse into the uniform denial.
func RespondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, shared.ErrNotFound):
		Problem(w, http.StatusNotFound, "Not Found", "")
	case errors.Is(err, shared.ErrConflict):
		Problem(w, http.StatusConflict, "Conflict", "")
	case errors.Is(err, shared.ErrInvalidArgument):
		Problem(w, http.StatusBadRequest, "Invalid Argument", err.Error())
	case errors.Is(err, shared.ErrUnauthorized), errors.Is(err, shared.ErrExpired), errors.Is(err, shared.ErrMalformed):
		Deny(w)
	default:
		Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
