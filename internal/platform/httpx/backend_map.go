package httpx

import (
	"fmt"
	"net/http"

	"github.com/mohamdabidi2/geox-sub001/internal/platform/backend"
)

// FromBackend folds an outbound backend failure into the sentinel taxonomy.
// Validation rejections keep their detail so the initiating screen can show
// the backend's message; anything unrecognized is an upstream availability
// problem, not a gateway bug.
func FromBackend(err error) error {
	switch {
	case backend.IsStatus(err, http.StatusNotFound):
		return ErrNotFound
	case backend.IsStatus(err, http.StatusBadRequest),
		backend.IsStatus(err, http.StatusUnprocessableEntity):
		return fmt.Errorf("%w: %v", ErrValidation, err)
	case backend.IsStatus(err, http.StatusUnauthorized):
		return ErrUnauthorized
	case backend.IsStatus(err, http.StatusForbidden):
		return ErrForbidden
	case backend.IsStatus(err, http.StatusConflict):
		return ErrDuplicate
	default:
		return ErrUnavailable
	}
}
