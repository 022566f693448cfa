package httpx

import (
	"errors"
	"net/http"

	"github.com/solterra/solterra/internal/shared"
)

// RespondError maps domain errors to HTTP responses using RFC7807.
func RespondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, shared.ErrNotFound):
		Problem(w, http.StatusNotFound, err.Error())
	case errors.Is(err, shared.ErrConflict):
		Problem(w, http.StatusConflict, err.Error())
	case errors.Is(err, shared.ErrValidation):
		Problem(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, shared.ErrForbidden):
		Problem(w, http.StatusForbidden, err.Error())
	case errors.Is(err, shared.ErrUnauthorized):
		Problem(w, http.StatusUnauthorized, err.Error())
	default:
		Problem(w, http.StatusInternalServerError, "")
	}
}
