package repository

import (
	"context"

	"dispatch/internal/domain"
)

// TripRepository defines the persistence operations for trips.
type TripRepository interface {
	// Create persists a new trip.
	Create(ctx context.Context, trip *domain.Trip) error

	// GetByID retrieves a trip by ID.
	GetByID(ctx context.Context, id string) (*domain.Trip, error)

	// GetAll retrieves recent trips.
	GetAll(ctx context.Context) ([]*domain.Trip, error)

	// GetActiveByDriverID retrieves the in-progress trip for a driver.
	// Returns nil if no active trip exists.
	GetActiveByDriverID(ctx context.Context, driverID string) (*domain.Trip, error)

	// UpdateStatus transitions a trip between statuses. Returns
	// ErrStatusConflict if the trip is no longer in the expected status.
	UpdateStatus(ctx context.Context, id string, expected, next domain.TripStatus) error
}
