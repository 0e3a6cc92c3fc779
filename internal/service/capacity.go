package service

import (
	"context"
	"errors"
	"fmt"

	"dispatch/internal/repository"
)

// CapacityService computes remaining seat capacity for fleet vehicles from
// the authoritative store. It holds no state of its own: multiple process
// instances cannot share in-memory counters, so every check re-derives the
// count from committed requests.
type CapacityService struct {
	requestRepo repository.RequestRepository
	vehicleRepo repository.VehicleRepository

	// fallbackCapacity applies when vehicle master data is unreachable.
	// Zero means fail closed: the error propagates instead of granting seats.
	fallbackCapacity int
}

// NewCapacityService creates a new CapacityService.
func NewCapacityService(requestRepo repository.RequestRepository, vehicleRepo repository.VehicleRepository, fallbackCapacity int) *CapacityService {
	return &CapacityService{
		requestRepo:      requestRepo,
		vehicleRepo:      vehicleRepo,
		fallbackCapacity: fallbackCapacity,
	}
}

// RemainingSeats returns vehicle capacity minus the count of CLAIMED and
// IN_TRIP requests on the vehicle. excludeRequestID (may be empty) is left
// out of the count, which matters when re-evaluating a request already
// holding a seat. An unknown vehicle has zero seats.
func (s *CapacityService) RemainingSeats(ctx context.Context, vehicleID, excludeRequestID string) (int, error) {
	if vehicleID == "" {
		return 0, ErrInvalidVehicleID
	}

	capacity := 0
	vehicle, err := s.vehicleRepo.GetByID(ctx, vehicleID)
	switch {
	case err == nil:
		capacity = vehicle.Capacity
	case errors.Is(err, repository.ErrNotFound):
		return 0, nil
	default:
		if s.fallbackCapacity <= 0 {
			return 0, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		}
		capacity = s.fallbackCapacity
	}

	active, err := s.requestRepo.CountActiveByVehicle(ctx, vehicleID, excludeRequestID)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	remaining := capacity - active
	if remaining < 0 {
		remaining = 0
	}
	return remaining, nil
}
