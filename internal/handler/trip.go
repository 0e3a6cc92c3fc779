package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"dispatch/internal/domain"
	"dispatch/internal/middleware"
	"dispatch/internal/service"
)

// TripHandler handles HTTP requests for trips.
type TripHandler struct {
	dispatch *service.Dispatch
}

// NewTripHandler creates a new TripHandler.
func NewTripHandler(dispatch *service.Dispatch) *TripHandler {
	return &TripHandler{dispatch: dispatch}
}

// StartTripBody is the HTTP request body for starting a trip.
type StartTripBody struct {
	DriverID   string   `json:"driver_id"`
	DriverName string   `json:"driver_name"`
	VehicleID  string   `json:"vehicle_id"`
	RequestIDs []string `json:"request_ids"`
}

// DeliverBody is the HTTP request body for marking a member delivered.
type DeliverBody struct {
	RequestID string `json:"request_id"`
}

// TripResponse is the HTTP representation of a trip.
type TripResponse struct {
	ID             string   `json:"id"`
	DriverID       string   `json:"driver_id"`
	DriverName     string   `json:"driver_name"`
	VehicleID      string   `json:"vehicle_id"`
	RequestIDs     []string `json:"request_ids"`
	Status         string   `json:"status"`
	StartedAt      string   `json:"started_at"`
	CompletedAt    string   `json:"completed_at,omitempty"`
	NotifyFailures int      `json:"notify_failures,omitempty"`
}

func toTripResponse(trip *domain.Trip, notifyFailures int) TripResponse {
	response := TripResponse{
		ID:             trip.ID,
		DriverID:       trip.DriverID,
		DriverName:     trip.DriverName,
		VehicleID:      trip.VehicleID,
		RequestIDs:     trip.MemberRequestIDs,
		Status:         string(trip.Status),
		StartedAt:      trip.StartedAt.Format(time.RFC3339),
		NotifyFailures: notifyFailures,
	}
	if !trip.CompletedAt.IsZero() {
		response.CompletedAt = trip.CompletedAt.Format(time.RFC3339)
	}
	return response
}

// Start handles POST /v1/trips
func (h *TripHandler) Start(c *gin.Context) {
	var body StartTripBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	result, err := h.dispatch.StartTrip(c.Request.Context(), service.StartTripCommand{
		DriverID:   body.DriverID,
		DriverName: body.DriverName,
		VehicleID:  body.VehicleID,
		RequestIDs: body.RequestIDs,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusCreated, toTripResponse(result.Trip, result.NotifyFailures))
}

// Get handles GET /v1/trips/:id
func (h *TripHandler) Get(c *gin.Context) {
	trip, err := h.dispatch.GetTrip(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, toTripResponse(trip, 0))
}

// GetAll handles GET /v1/trips
func (h *TripHandler) GetAll(c *gin.Context) {
	trips, err := h.dispatch.GetAllTrips(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	response := make([]TripResponse, 0, len(trips))
	for _, trip := range trips {
		response = append(response, toTripResponse(trip, 0))
	}
	respondJSON(c, http.StatusOK, response)
}

// Deliver handles POST /v1/trips/:id/deliver
func (h *TripHandler) Deliver(c *gin.Context) {
	var body DeliverBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	result, err := h.dispatch.MarkDelivered(c.Request.Context(), c.Param("id"), body.RequestID)
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, toRequestResponse(result.Request, result.NotifyFailures))
}

// Complete handles POST /v1/trips/:id/complete
func (h *TripHandler) Complete(c *gin.Context) {
	result, err := h.dispatch.CompleteTrip(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, toTripResponse(result.Trip, result.NotifyFailures))
}

// Cancel handles POST /v1/trips/:id/cancel
func (h *TripHandler) Cancel(c *gin.Context) {
	actor := middleware.CurrentActor(c)

	result, err := h.dispatch.CancelTrip(c.Request.Context(), c.Param("id"), actor.ID)
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, toTripResponse(result.Trip, result.NotifyFailures))
}
