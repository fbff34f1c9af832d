// Package errhttp maps domain sentinel errors to HTTP status codes for the
// ops HTTP surface (health/readiness probes and any diagnostic endpoints).
// Add a case to mapErrorToStatus for each new domain sentinel error.
package errhttp

import (
	"errors"
	"net/http"

	"github.com/lsst-dm/dmcs/pkg/httpx"
	"github.com/lsst-dm/dmcs/services/dmcs/domain"
)

// WriteError maps err to an HTTP status code and writes a JSON error response.
// Uses errors.Is() so wrapped sentinel errors are matched correctly.
// Defaults to 500 Internal Server Error for unrecognized errors.
func WriteError(w http.ResponseWriter, err error) {
	httpx.JSONError(w, mapErrorToStatus(err), err.Error())
}

func mapErrorToStatus(err error) int {
	switch {
	case errors.Is(err, domain.ErrUnknownMessageType),
		errors.Is(err, domain.ErrMessageShapeMismatch),
		errors.Is(err, domain.ErrUnknownCfgKey):
		return http.StatusUnprocessableEntity // 422
	case errors.Is(err, domain.ErrInvalidTransition),
		errors.Is(err, domain.ErrSameStateTransition):
		return http.StatusConflict // 409
	case errors.Is(err, domain.ErrTransportUnavailable),
		errors.Is(err, domain.ErrStoreUnavailable),
		errors.Is(err, domain.ErrNoHealthyForwarder):
		return http.StatusServiceUnavailable // 503
	case errors.Is(err, domain.ErrAckTimeout):
		return http.StatusGatewayTimeout // 504
	default:
		return http.StatusInternalServerError // 500
	}
}
