package repository

import (
	"context"

	"dispatch/internal/domain"
)

// RequestPatch describes the fields a conditional update may change.
// Nil pointers leave the corresponding column untouched.
type RequestPatch struct {
	Status         *domain.RequestStatus
	DriverID       *string
	DriverName     *string
	VehicleID      *string
	TripID         *string
	DeliveryStatus *domain.DeliveryStatus
}

// RequestRepository defines the persistence operations for trip requests.
type RequestRepository interface {
	// Create persists a new trip request.
	Create(ctx context.Context, req *domain.TripRequest) error

	// GetByID retrieves a trip request by ID.
	GetByID(ctx context.Context, id string) (*domain.TripRequest, error)

	// ListByStatus retrieves requests in the given status, oldest first.
	ListByStatus(ctx context.Context, status domain.RequestStatus) ([]*domain.TripRequest, error)

	// ListByPassenger retrieves a passenger's requests, newest first.
	ListByPassenger(ctx context.Context, passengerID string) ([]*domain.TripRequest, error)

	// ListClaimedByDriver retrieves a driver's currently claimed requests
	// in claim order.
	ListClaimedByDriver(ctx context.Context, driverID string) ([]*domain.TripRequest, error)

	// CountActiveByVehicle counts requests in CLAIMED or IN_TRIP state for
	// the vehicle, excluding excludeID when non-empty.
	CountActiveByVehicle(ctx context.Context, vehicleID, excludeID string) (int, error)

	// UpdateIf applies the patch only if the request's current status equals
	// expected. Returns ErrStatusConflict when the row exists with a
	// different status and ErrNotFound when the row is missing. This is the
	// compare-and-set primitive that claim exclusivity rests on.
	UpdateIf(ctx context.Context, id string, expected domain.RequestStatus, patch RequestPatch) error
}
