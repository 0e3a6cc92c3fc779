package repository

import (
	"context"

	"dispatch/internal/domain"
)

// VehicleRepository exposes fleet vehicle master data. Dispatch only ever
// reads vehicles; their lifecycle is owned by the fleet administration
// subsystem.
type VehicleRepository interface {
	// GetByID retrieves a vehicle by ID.
	GetByID(ctx context.Context, id string) (*domain.Vehicle, error)

	// GetAll retrieves all vehicles.
	GetAll(ctx context.Context) ([]*domain.Vehicle, error)
}
