// Package httpx provides HTTP response utilities.
package httpx

import (
	"errors"
	"net/http"

	"github.com/parishledger/parishledger/internal/shared"
)

// ErrUnauthorized is returned when no actor identity accompanies a request.
var ErrUnauthorized = errors.New("unauthorized")

// RespondError maps domain errors to HTTP responses using RFC7807.
// Validation failures carry the violated rule in the problem title so callers
// can distinguish rules without parsing detail text.
func RespondError(w http.ResponseWriter, err error) {
	var ve *shared.ValidationError
	var nf *shared.NotFoundError
	switch {
	case errors.As(err, &ve):
		Problem(w, http.StatusBadRequest, ve.Rule, ve.Message)
	case errors.As(err, &nf):
		Problem(w, http.StatusNotFound, "Not Found", nf.Error())
	case errors.Is(err, ErrUnauthorized):
		Problem(w, http.StatusUnauthorized, "Unauthorized", err.Error())
	default:
		Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
