package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"dispatch/internal/service"
)

// VehicleHandler handles HTTP requests for fleet vehicles.
type VehicleHandler struct {
	dispatch *service.Dispatch
}

// NewVehicleHandler creates a new VehicleHandler.
func NewVehicleHandler(dispatch *service.Dispatch) *VehicleHandler {
	return &VehicleHandler{dispatch: dispatch}
}

// VehicleResponse is the HTTP representation of a vehicle.
type VehicleResponse struct {
	ID       string `json:"id"`
	Plate    string `json:"plate"`
	Model    string `json:"model"`
	Capacity int    `json:"capacity"`
	Status   string `json:"status"`
}

// SeatsResponse reports remaining capacity on a vehicle.
type SeatsResponse struct {
	VehicleID      string `json:"vehicle_id"`
	RemainingSeats int    `json:"remaining_seats"`
}

// GetAll handles GET /v1/vehicles
func (h *VehicleHandler) GetAll(c *gin.Context) {
	vehicles, err := h.dispatch.Vehicles(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	response := make([]VehicleResponse, 0, len(vehicles))
	for _, v := range vehicles {
		response = append(response, VehicleResponse{
			ID:       v.ID,
			Plate:    v.Plate,
			Model:    v.Model,
			Capacity: v.Capacity,
			Status:   string(v.Status),
		})
	}
	respondJSON(c, http.StatusOK, response)
}

// Seats handles GET /v1/vehicles/:id/seats
func (h *VehicleHandler) Seats(c *gin.Context) {
	vehicleID := c.Param("id")

	remaining, err := h.dispatch.RemainingSeats(c.Request.Context(), vehicleID)
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, SeatsResponse{
		VehicleID:      vehicleID,
		RemainingSeats: remaining,
	})
}
