package service

import (
	"context"

	"dispatch/internal/domain"
	"dispatch/internal/repository"
)

// Dispatch is the orchestration surface the transport layer talks to. It
// sequences the claim coordinator, trip aggregator, and capacity guard per
// incoming command and owns the read-only observation path for drivers and
// passengers.
type Dispatch struct {
	claims      *ClaimService
	trips       *TripService
	capacity    *CapacityService
	requestRepo repository.RequestRepository
	vehicleRepo repository.VehicleRepository
}

// NewDispatch creates the dispatch facade.
func NewDispatch(
	claims *ClaimService,
	trips *TripService,
	capacity *CapacityService,
	requestRepo repository.RequestRepository,
	vehicleRepo repository.VehicleRepository,
) *Dispatch {
	return &Dispatch{
		claims:      claims,
		trips:       trips,
		capacity:    capacity,
		requestRepo: requestRepo,
		vehicleRepo: vehicleRepo,
	}
}

// CreateRequest creates a new pending trip request.
func (d *Dispatch) CreateRequest(ctx context.Context, cmd CreateRequestCommand) (*RequestResult, error) {
	return d.claims.CreateRequest(ctx, cmd)
}

// Claim exclusively assigns a pending request to a driver and vehicle.
func (d *Dispatch) Claim(ctx context.Context, cmd ClaimCommand) (*RequestResult, error) {
	return d.claims.Claim(ctx, cmd)
}

// Cancel withdraws a pending or claimed request.
func (d *Dispatch) Cancel(ctx context.Context, cmd CancelCommand) (*RequestResult, error) {
	return d.claims.Cancel(ctx, cmd)
}

// Reject declines a pending request.
func (d *Dispatch) Reject(ctx context.Context, cmd RejectCommand) (*RequestResult, error) {
	return d.claims.Reject(ctx, cmd)
}

// Reassign moves a claimed request to another driver and vehicle.
func (d *Dispatch) Reassign(ctx context.Context, cmd ReassignCommand) (*RequestResult, error) {
	return d.claims.Reassign(ctx, cmd)
}

// StartTrip consolidates a driver's claimed requests into one trip.
func (d *Dispatch) StartTrip(ctx context.Context, cmd StartTripCommand) (*TripResult, error) {
	return d.trips.StartTrip(ctx, cmd)
}

// MarkDelivered records a member drop-off.
func (d *Dispatch) MarkDelivered(ctx context.Context, tripID, requestID string) (*RequestResult, error) {
	return d.trips.MarkDelivered(ctx, tripID, requestID)
}

// CompleteTrip finishes a fully delivered trip.
func (d *Dispatch) CompleteTrip(ctx context.Context, tripID string) (*TripResult, error) {
	return d.trips.CompleteTrip(ctx, tripID)
}

// CancelTrip aborts an in-progress trip, reverting members to CLAIMED.
func (d *Dispatch) CancelTrip(ctx context.Context, tripID, actorID string) (*TripResult, error) {
	return d.trips.CancelTrip(ctx, tripID, actorID)
}

// GetTrip retrieves a trip by ID.
func (d *Dispatch) GetTrip(ctx context.Context, tripID string) (*domain.Trip, error) {
	return d.trips.GetTrip(ctx, tripID)
}

// GetAllTrips retrieves recent trips.
func (d *Dispatch) GetAllTrips(ctx context.Context) ([]*domain.Trip, error) {
	return d.trips.GetAllTrips(ctx)
}

// GetRequest retrieves a trip request by ID. Always reads the latest
// committed state; the core keeps no client-side cache.
func (d *Dispatch) GetRequest(ctx context.Context, id string) (*domain.TripRequest, error) {
	if id == "" {
		return nil, ErrInvalidRequestID
	}
	return d.requestRepo.GetByID(ctx, id)
}

// PendingRequests lists requests visible to eligible drivers, oldest first.
func (d *Dispatch) PendingRequests(ctx context.Context) ([]*domain.TripRequest, error) {
	return d.requestRepo.ListByStatus(ctx, domain.RequestStatusPending)
}

// RequestsByStatus lists requests in the given status.
func (d *Dispatch) RequestsByStatus(ctx context.Context, status domain.RequestStatus) ([]*domain.TripRequest, error) {
	return d.requestRepo.ListByStatus(ctx, status)
}

// PassengerRequests lists a passenger's requests, newest first.
func (d *Dispatch) PassengerRequests(ctx context.Context, passengerID string) ([]*domain.TripRequest, error) {
	if passengerID == "" {
		return nil, ErrInvalidPassengerID
	}
	return d.requestRepo.ListByPassenger(ctx, passengerID)
}

// DriverQueue lists a driver's currently claimed requests in claim order,
// i.e. the batch a StartTrip call would consolidate.
func (d *Dispatch) DriverQueue(ctx context.Context, driverID string) ([]*domain.TripRequest, error) {
	if driverID == "" {
		return nil, ErrInvalidDriverID
	}
	return d.requestRepo.ListClaimedByDriver(ctx, driverID)
}

// RemainingSeats reports the free seat count on a vehicle.
func (d *Dispatch) RemainingSeats(ctx context.Context, vehicleID string) (int, error) {
	return d.capacity.RemainingSeats(ctx, vehicleID, "")
}

// Vehicles lists fleet vehicles.
func (d *Dispatch) Vehicles(ctx context.Context) ([]*domain.Vehicle, error) {
	return d.vehicleRepo.GetAll(ctx)
}
