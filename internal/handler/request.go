package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"dispatch/internal/domain"
	"dispatch/internal/middleware"
	"dispatch/internal/service"
)

// RequestHandler handles HTTP requests for trip requests.
type RequestHandler struct {
	dispatch *service.Dispatch
}

// NewRequestHandler creates a new RequestHandler.
func NewRequestHandler(dispatch *service.Dispatch) *RequestHandler {
	return &RequestHandler{dispatch: dispatch}
}

// CreateRequestBody is the HTTP request body for creating a trip request.
type CreateRequestBody struct {
	PassengerName   string `json:"passenger_name"`
	Origin          string `json:"origin"`
	Destination     string `json:"destination"`
	DestinationType string `json:"destination_type,omitempty"` // HOME, SCHOOL, ACTIVITY, OTHER
}

// ReassignBody is the HTTP request body for reassigning a request.
type ReassignBody struct {
	DriverID   string `json:"driver_id"`
	DriverName string `json:"driver_name"`
	VehicleID  string `json:"vehicle_id"`
}

// RequestResponse is the HTTP representation of a trip request.
type RequestResponse struct {
	ID              string `json:"id"`
	PassengerID     string `json:"passenger_id"`
	PassengerName   string `json:"passenger_name"`
	Origin          string `json:"origin"`
	Destination     string `json:"destination"`
	DestinationType string `json:"destination_type"`
	Status          string `json:"status"`
	DriverID        string `json:"driver_id,omitempty"`
	DriverName      string `json:"driver_name,omitempty"`
	VehicleID       string `json:"vehicle_id,omitempty"`
	TripID          string `json:"trip_id,omitempty"`
	DeliveryStatus  string `json:"delivery_status,omitempty"`
	RequestedAt     string `json:"requested_at"`
	NotifyFailures  int    `json:"notify_failures,omitempty"`
}

func toRequestResponse(req *domain.TripRequest, notifyFailures int) RequestResponse {
	return RequestResponse{
		ID:              req.ID,
		PassengerID:     req.PassengerID,
		PassengerName:   req.PassengerName,
		Origin:          req.Origin,
		Destination:     req.Destination,
		DestinationType: string(req.DestinationType),
		Status:          string(req.Status),
		DriverID:        req.DriverID,
		DriverName:      req.DriverName,
		VehicleID:       req.VehicleID,
		TripID:          req.TripID,
		DeliveryStatus:  string(req.DeliveryStatus),
		RequestedAt:     req.RequestedAt.Format(time.RFC3339),
		NotifyFailures:  notifyFailures,
	}
}

// Create handles POST /v1/requests
func (h *RequestHandler) Create(c *gin.Context) {
	var body CreateRequestBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	actor := middleware.CurrentActor(c)

	result, err := h.dispatch.CreateRequest(c.Request.Context(), service.CreateRequestCommand{
		PassengerID:     actor.ID,
		PassengerName:   body.PassengerName,
		Origin:          body.Origin,
		Destination:     body.Destination,
		DestinationType: domain.DestinationType(body.DestinationType),
	})
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusCreated, toRequestResponse(result.Request, result.NotifyFailures))
}

// Get handles GET /v1/requests/:id
func (h *RequestHandler) Get(c *gin.Context) {
	req, err := h.dispatch.GetRequest(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, toRequestResponse(req, 0))
}

// List handles GET /v1/requests?status=
func (h *RequestHandler) List(c *gin.Context) {
	var (
		requests []*domain.TripRequest
		err      error
	)

	if status := c.Query("status"); status != "" {
		requests, err = h.dispatch.RequestsByStatus(c.Request.Context(), domain.RequestStatus(status))
	} else {
		requests, err = h.dispatch.PendingRequests(c.Request.Context())
	}
	if err != nil {
		respondError(c, err)
		return
	}

	response := make([]RequestResponse, 0, len(requests))
	for _, req := range requests {
		response = append(response, toRequestResponse(req, 0))
	}
	respondJSON(c, http.StatusOK, response)
}

// ListMine handles GET /v1/requests/mine — the calling passenger's requests.
func (h *RequestHandler) ListMine(c *gin.Context) {
	actor := middleware.CurrentActor(c)

	requests, err := h.dispatch.PassengerRequests(c.Request.Context(), actor.ID)
	if err != nil {
		respondError(c, err)
		return
	}

	response := make([]RequestResponse, 0, len(requests))
	for _, req := range requests {
		response = append(response, toRequestResponse(req, 0))
	}
	respondJSON(c, http.StatusOK, response)
}

// Cancel handles POST /v1/requests/:id/cancel
func (h *RequestHandler) Cancel(c *gin.Context) {
	actor := middleware.CurrentActor(c)

	result, err := h.dispatch.Cancel(c.Request.Context(), service.CancelCommand{
		RequestID: c.Param("id"),
		ActorID:   actor.ID,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, toRequestResponse(result.Request, result.NotifyFailures))
}

// Reject handles POST /v1/requests/:id/reject
func (h *RequestHandler) Reject(c *gin.Context) {
	actor := middleware.CurrentActor(c)

	result, err := h.dispatch.Reject(c.Request.Context(), service.RejectCommand{
		RequestID: c.Param("id"),
		ActorID:   actor.ID,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, toRequestResponse(result.Request, result.NotifyFailures))
}

// Reassign handles POST /v1/requests/:id/reassign
func (h *RequestHandler) Reassign(c *gin.Context) {
	var body ReassignBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	result, err := h.dispatch.Reassign(c.Request.Context(), service.ReassignCommand{
		RequestID:     c.Param("id"),
		NewDriverID:   body.DriverID,
		NewDriverName: body.DriverName,
		NewVehicleID:  body.VehicleID,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, toRequestResponse(result.Request, result.NotifyFailures))
}
