package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"dispatch/internal/domain"
	"dispatch/internal/observability"
	"dispatch/internal/repository"
	"dispatch/internal/repository/postgres"
)

// TripService batches a driver's claimed requests into trips and advances
// trip and members in lock-step. Every multi-record change runs in one SQL
// transaction with conditional member updates, so readers never observe a
// partially advanced batch.
type TripService struct {
	db          *sql.DB
	tripRepo    repository.TripRepository
	requestRepo repository.RequestRepository
	vehicleRepo repository.VehicleRepository
	driverRepo  repository.DriverRepository
	fanout      *Fanout
}

// NewTripService creates a new TripService.
func NewTripService(
	db *sql.DB,
	tripRepo repository.TripRepository,
	requestRepo repository.RequestRepository,
	vehicleRepo repository.VehicleRepository,
	driverRepo repository.DriverRepository,
	fanout *Fanout,
) *TripService {
	return &TripService{
		db:          db,
		tripRepo:    tripRepo,
		requestRepo: requestRepo,
		vehicleRepo: vehicleRepo,
		driverRepo:  driverRepo,
		fanout:      fanout,
	}
}

// StartTripCommand contains the parameters for consolidating claimed
// requests into one trip. RequestIDs keep acceptance order.
type StartTripCommand struct {
	DriverID   string
	DriverName string
	VehicleID  string
	RequestIDs []string
}

// TripResult is the outcome of a trip transition.
type TripResult struct {
	Trip           *domain.Trip
	Members        []*domain.TripRequest
	NotifyFailures int
}

// StartTrip creates one trip from the driver's claimed requests and flips
// every member CLAIMED -> IN_TRIP as a single atomic unit.
func (s *TripService) StartTrip(ctx context.Context, cmd StartTripCommand) (*TripResult, error) {
	if cmd.DriverID == "" {
		return nil, ErrInvalidDriverID
	}
	if cmd.VehicleID == "" {
		return nil, ErrInvalidVehicleID
	}
	if len(cmd.RequestIDs) == 0 {
		return nil, ErrEmptyBatch
	}

	existing, err := s.tripRepo.GetActiveByDriverID(ctx, cmd.DriverID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrDriverHasActiveTrip
	}

	members, err := s.loadBatch(ctx, cmd)
	if err != nil {
		return nil, err
	}

	// Total claimed on this vehicle can never exceed capacity, so the batch
	// itself must fit.
	vehicle, err := s.vehicleRepo.GetByID(ctx, cmd.VehicleID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrCapacityExceeded
		}
		return nil, err
	}
	if len(cmd.RequestIDs) > vehicle.Capacity {
		return nil, ErrCapacityExceeded
	}

	trip := &domain.Trip{
		ID:               uuid.New().String(),
		DriverID:         cmd.DriverID,
		DriverName:       cmd.DriverName,
		VehicleID:        cmd.VehicleID,
		MemberRequestIDs: cmd.RequestIDs,
		Status:           domain.TripStatusInProgress,
		StartedAt:        time.Now(),
	}

	err = s.inTx(ctx, func(tx *sql.Tx) error {
		txTripRepo := postgres.NewTripRepositoryWithTx(tx)
		txRequestRepo := postgres.NewRequestRepositoryWithTx(tx)
		txDriverRepo := postgres.NewDriverRepositoryWithTx(tx)

		if err := txTripRepo.Create(ctx, trip); err != nil {
			return err
		}

		inTrip := domain.RequestStatusInTrip
		pendingDelivery := domain.DeliveryStatusPending
		for _, id := range cmd.RequestIDs {
			patch := repository.RequestPatch{
				Status:         &inTrip,
				TripID:         &trip.ID,
				DeliveryStatus: &pendingDelivery,
			}
			if err := txRequestRepo.UpdateIf(ctx, id, domain.RequestStatusClaimed, patch); err != nil {
				if errors.Is(err, repository.ErrStatusConflict) {
					return ErrInconsistentBatch
				}
				return err
			}
		}

		// The driver roster is fleet master data; a missing row there is
		// not a dispatch failure.
		if err := txDriverRepo.UpdateStatus(ctx, cmd.DriverID, domain.DriverStatusOnTrip); err != nil && !errors.Is(err, repository.ErrNotFound) {
			return err
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	for _, member := range members {
		member.Status = domain.RequestStatusInTrip
		member.TripID = trip.ID
		member.DeliveryStatus = domain.DeliveryStatusPending
	}

	observability.TripsStartedTotal.Inc()

	failures := s.fanout.Publish(ctx, Transition{
		Kind:    domain.NotificationStatusChange,
		Trip:    trip,
		Members: members,
	})

	return &TripResult{Trip: trip, Members: members, NotifyFailures: failures}, nil
}

// loadBatch fetches the batch members and checks they all belong to the same
// driver and vehicle in CLAIMED state, with no duplicates.
func (s *TripService) loadBatch(ctx context.Context, cmd StartTripCommand) ([]*domain.TripRequest, error) {
	seen := make(map[string]bool, len(cmd.RequestIDs))
	members := make([]*domain.TripRequest, 0, len(cmd.RequestIDs))

	for _, id := range cmd.RequestIDs {
		if seen[id] {
			return nil, ErrInconsistentBatch
		}
		seen[id] = true

		req, err := s.requestRepo.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		if req.Status != domain.RequestStatusClaimed || req.DriverID != cmd.DriverID || req.VehicleID != cmd.VehicleID {
			return nil, ErrInconsistentBatch
		}
		members = append(members, req)
	}

	return members, nil
}

// MarkDelivered records that one member of the trip has been dropped off.
func (s *TripService) MarkDelivered(ctx context.Context, tripID, requestID string) (*RequestResult, error) {
	if tripID == "" {
		return nil, ErrInvalidTripID
	}
	if requestID == "" {
		return nil, ErrInvalidRequestID
	}

	trip, err := s.tripRepo.GetByID(ctx, tripID)
	if err != nil {
		return nil, err
	}
	if trip.Status != domain.TripStatusInProgress {
		return nil, ErrInvalidTransition
	}
	if !trip.HasMember(requestID) {
		return nil, repository.ErrNotFound
	}

	before, err := s.requestRepo.GetByID(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if before.DeliveryStatus == domain.DeliveryStatusDelivered {
		// Already delivered; nothing to do and nothing to announce.
		return &RequestResult{Request: before}, nil
	}

	delivered := domain.DeliveryStatusDelivered
	err = s.requestRepo.UpdateIf(ctx, requestID, domain.RequestStatusInTrip, repository.RequestPatch{DeliveryStatus: &delivered})
	if err != nil {
		if errors.Is(err, repository.ErrStatusConflict) {
			return nil, ErrInvalidTransition
		}
		return nil, err
	}

	after := *before
	after.DeliveryStatus = domain.DeliveryStatusDelivered

	failures := s.fanout.Publish(ctx, Transition{
		Kind:   domain.NotificationStatusChange,
		Before: before,
		After:  &after,
	})

	return &RequestResult{Request: &after, NotifyFailures: failures}, nil
}

// CompleteTrip finishes a trip once every member has been delivered. Trip
// and members move to COMPLETED in the same atomic unit as StartTrip.
func (s *TripService) CompleteTrip(ctx context.Context, tripID string) (*TripResult, error) {
	if tripID == "" {
		return nil, ErrInvalidTripID
	}

	trip, err := s.tripRepo.GetByID(ctx, tripID)
	if err != nil {
		return nil, err
	}
	if trip.Status != domain.TripStatusInProgress {
		return nil, ErrInvalidTransition
	}

	members := make([]*domain.TripRequest, 0, len(trip.MemberRequestIDs))
	for _, id := range trip.MemberRequestIDs {
		req, err := s.requestRepo.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		if req.DeliveryStatus != domain.DeliveryStatusDelivered {
			return nil, ErrIncompleteDelivery
		}
		members = append(members, req)
	}

	err = s.inTx(ctx, func(tx *sql.Tx) error {
		txTripRepo := postgres.NewTripRepositoryWithTx(tx)
		txRequestRepo := postgres.NewRequestRepositoryWithTx(tx)
		txDriverRepo := postgres.NewDriverRepositoryWithTx(tx)

		if err := txTripRepo.UpdateStatus(ctx, tripID, domain.TripStatusInProgress, domain.TripStatusCompleted); err != nil {
			if errors.Is(err, repository.ErrStatusConflict) {
				return ErrInvalidTransition
			}
			return err
		}

		completed := domain.RequestStatusCompleted
		for _, id := range trip.MemberRequestIDs {
			patch := repository.RequestPatch{Status: &completed}
			if err := txRequestRepo.UpdateIf(ctx, id, domain.RequestStatusInTrip, patch); err != nil {
				if errors.Is(err, repository.ErrStatusConflict) {
					return ErrInconsistentBatch
				}
				return err
			}
		}

		if err := txDriverRepo.UpdateStatus(ctx, trip.DriverID, domain.DriverStatusAvailable); err != nil && !errors.Is(err, repository.ErrNotFound) {
			return err
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	trip.Status = domain.TripStatusCompleted
	trip.CompletedAt = time.Now()
	for _, member := range members {
		member.Status = domain.RequestStatusCompleted
	}

	observability.TripsCompletedTotal.Inc()

	failures := s.fanout.Publish(ctx, Transition{
		Kind:    domain.NotificationStatusChange,
		Trip:    trip,
		Members: members,
	})

	return &TripResult{Trip: trip, Members: members, NotifyFailures: failures}, nil
}

// CancelTrip aborts an in-progress trip. Members revert to CLAIMED so the
// driver can re-batch them; the trip itself is terminal.
func (s *TripService) CancelTrip(ctx context.Context, tripID, actorID string) (*TripResult, error) {
	if tripID == "" {
		return nil, ErrInvalidTripID
	}

	trip, err := s.tripRepo.GetByID(ctx, tripID)
	if err != nil {
		return nil, err
	}
	if trip.Status != domain.TripStatusInProgress {
		return nil, ErrInvalidTransition
	}

	members := make([]*domain.TripRequest, 0, len(trip.MemberRequestIDs))
	for _, id := range trip.MemberRequestIDs {
		req, err := s.requestRepo.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		members = append(members, req)
	}

	err = s.inTx(ctx, func(tx *sql.Tx) error {
		txTripRepo := postgres.NewTripRepositoryWithTx(tx)
		txRequestRepo := postgres.NewRequestRepositoryWithTx(tx)
		txDriverRepo := postgres.NewDriverRepositoryWithTx(tx)

		if err := txTripRepo.UpdateStatus(ctx, tripID, domain.TripStatusInProgress, domain.TripStatusCancelled); err != nil {
			if errors.Is(err, repository.ErrStatusConflict) {
				return ErrInvalidTransition
			}
			return err
		}

		claimed := domain.RequestStatusClaimed
		empty := ""
		noDelivery := domain.DeliveryStatus("")
		for _, id := range trip.MemberRequestIDs {
			patch := repository.RequestPatch{
				Status:         &claimed,
				TripID:         &empty,
				DeliveryStatus: &noDelivery,
			}
			if err := txRequestRepo.UpdateIf(ctx, id, domain.RequestStatusInTrip, patch); err != nil {
				if errors.Is(err, repository.ErrStatusConflict) {
					return ErrInconsistentBatch
				}
				return err
			}
		}

		if err := txDriverRepo.UpdateStatus(ctx, trip.DriverID, domain.DriverStatusAvailable); err != nil && !errors.Is(err, repository.ErrNotFound) {
			return err
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	trip.Status = domain.TripStatusCancelled
	for _, member := range members {
		member.Status = domain.RequestStatusClaimed
		member.TripID = ""
		member.DeliveryStatus = ""
	}

	failures := s.fanout.Publish(ctx, Transition{
		Kind:    domain.NotificationStatusChange,
		Trip:    trip,
		Members: members,
		ActorID: actorID,
	})

	return &TripResult{Trip: trip, Members: members, NotifyFailures: failures}, nil
}

// GetTrip retrieves a trip by ID.
func (s *TripService) GetTrip(ctx context.Context, tripID string) (*domain.Trip, error) {
	if tripID == "" {
		return nil, ErrInvalidTripID
	}
	return s.tripRepo.GetByID(ctx, tripID)
}

// GetAllTrips retrieves recent trips.
func (s *TripService) GetAllTrips(ctx context.Context) ([]*domain.Trip, error) {
	return s.tripRepo.GetAll(ctx)
}

// inTx runs fn inside a transaction, rolling back on any error.
func (s *TripService) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}

	return tx.Commit()
}
