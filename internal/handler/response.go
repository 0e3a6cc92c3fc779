package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"dispatch/internal/repository"
	"dispatch/internal/service"
)

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// respondError sends an error response with the appropriate HTTP status code.
func respondError(c *gin.Context, err error) {
	code := mapErrorToHTTPStatus(err)
	c.JSON(code, ErrorResponse{Error: err.Error()})
}

// respondJSON sends a JSON response with the given status code.
func respondJSON(c *gin.Context, code int, data any) {
	c.JSON(code, data)
}

// mapErrorToHTTPStatus maps service/repository errors to HTTP status codes.
// A lost claim (409) and a full vehicle (422) map differently on purpose so
// driver clients can explain "already taken" versus "vehicle full".
func mapErrorToHTTPStatus(err error) int {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return http.StatusNotFound

	// Validation errors - Bad Request
	case errors.Is(err, service.ErrInvalidPassengerID),
		errors.Is(err, service.ErrMissingDestination),
		errors.Is(err, service.ErrInvalidRequestID),
		errors.Is(err, service.ErrInvalidDriverID),
		errors.Is(err, service.ErrInvalidVehicleID),
		errors.Is(err, service.ErrInvalidTripID),
		errors.Is(err, service.ErrEmptyBatch):
		return http.StatusBadRequest

	// State-machine conflicts
	case errors.Is(err, service.ErrAlreadyClaimed),
		errors.Is(err, service.ErrInvalidTransition),
		errors.Is(err, service.ErrDriverHasActiveTrip),
		errors.Is(err, service.ErrIncompleteDelivery),
		errors.Is(err, service.ErrVehicleBusy):
		return http.StatusConflict

	// Business-rule violations
	case errors.Is(err, service.ErrCapacityExceeded),
		errors.Is(err, service.ErrInconsistentBatch):
		return http.StatusUnprocessableEntity

	case errors.Is(err, service.ErrStoreUnavailable):
		return http.StatusServiceUnavailable

	default:
		return http.StatusInternalServerError
	}
}
