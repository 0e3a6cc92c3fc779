package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"dispatch/internal/domain"
	"dispatch/internal/repository"
	"dispatch/internal/service"
)

// DriverHandler handles HTTP requests for drivers.
type DriverHandler struct {
	dispatch   *service.Dispatch
	driverRepo repository.DriverRepository
}

// NewDriverHandler creates a new DriverHandler.
func NewDriverHandler(dispatch *service.Dispatch, driverRepo repository.DriverRepository) *DriverHandler {
	return &DriverHandler{
		dispatch:   dispatch,
		driverRepo: driverRepo,
	}
}

// RegisterDriverBody is the HTTP request body for driver registration.
type RegisterDriverBody struct {
	Name  string `json:"name"`
	Phone string `json:"phone"`
}

// ClaimBody is the HTTP request body for claiming a trip request.
type ClaimBody struct {
	RequestID string `json:"request_id"`
	VehicleID string `json:"vehicle_id"`
}

// DriverResponse is the HTTP representation of a driver.
type DriverResponse struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Phone  string `json:"phone"`
	Status string `json:"status"`
}

// Register handles POST /v1/drivers/register
func (h *DriverHandler) Register(c *gin.Context) {
	var body RegisterDriverBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	if body.Name == "" || body.Phone == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "name and phone are required"})
		return
	}

	existing, err := h.driverRepo.GetByPhone(c.Request.Context(), body.Phone)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		respondError(c, err)
		return
	}

	if existing != nil {
		c.JSON(http.StatusConflict, gin.H{
			"message": "Driver already registered",
			"driver":  DriverResponse{ID: existing.ID, Name: existing.Name, Phone: existing.Phone, Status: string(existing.Status)},
		})
		return
	}

	driver := &domain.Driver{
		ID:     uuid.New().String(),
		Name:   body.Name,
		Phone:  body.Phone,
		Status: domain.DriverStatusOffDuty,
	}

	if err := h.driverRepo.Create(c.Request.Context(), driver); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, DriverResponse{
		ID:     driver.ID,
		Name:   driver.Name,
		Phone:  driver.Phone,
		Status: string(driver.Status),
	})
}

// GetAll handles GET /v1/drivers
func (h *DriverHandler) GetAll(c *gin.Context) {
	drivers, err := h.driverRepo.GetAll(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	response := make([]DriverResponse, 0, len(drivers))
	for _, d := range drivers {
		response = append(response, DriverResponse{
			ID:     d.ID,
			Name:   d.Name,
			Phone:  d.Phone,
			Status: string(d.Status),
		})
	}
	respondJSON(c, http.StatusOK, response)
}

// Claim handles POST /v1/drivers/:id/claim
func (h *DriverHandler) Claim(c *gin.Context) {
	driverID := c.Param("id")

	var body ClaimBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	driverName := ""
	if driver, err := h.driverRepo.GetByID(c.Request.Context(), driverID); err == nil {
		driverName = driver.Name
	}

	result, err := h.dispatch.Claim(c.Request.Context(), service.ClaimCommand{
		RequestID:  body.RequestID,
		DriverID:   driverID,
		DriverName: driverName,
		VehicleID:  body.VehicleID,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, toRequestResponse(result.Request, result.NotifyFailures))
}

// Queue handles GET /v1/drivers/:id/requests — the driver's claimed batch.
func (h *DriverHandler) Queue(c *gin.Context) {
	requests, err := h.dispatch.DriverQueue(c.Request.Context(), c.Param("id"))
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
