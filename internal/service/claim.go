package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"dispatch/internal/domain"
	"dispatch/internal/observability"
	"dispatch/internal/redis"
	"dispatch/internal/repository"
)

// ClaimService owns the trip request state machine up to trip formation:
// PENDING -> CLAIMED -> (trip) and the PENDING -> CANCELLED / REJECTED exits.
// Exclusivity rests on the repository's conditional update, not on any
// in-process lock: the status check and the write happen in one statement
// against the latest persisted value.
type ClaimService struct {
	requestRepo repository.RequestRepository
	capacity    *CapacityService
	lockStore   redis.LockStoreInterface
	fanout      *Fanout
	lockTTL     time.Duration
}

// NewClaimService creates a new ClaimService. lockStore may be nil; the
// vehicle lock only narrows the capacity-evaluation window and is not part
// of the exclusivity guarantee.
func NewClaimService(
	requestRepo repository.RequestRepository,
	capacity *CapacityService,
	lockStore redis.LockStoreInterface,
	fanout *Fanout,
	lockTTL time.Duration,
) *ClaimService {
	return &ClaimService{
		requestRepo: requestRepo,
		capacity:    capacity,
		lockStore:   lockStore,
		fanout:      fanout,
		lockTTL:     lockTTL,
	}
}

// CreateRequestCommand contains the parameters for creating a trip request.
type CreateRequestCommand struct {
	PassengerID     string
	PassengerName   string
	Origin          string
	Destination     string
	DestinationType domain.DestinationType
}

// RequestResult is the outcome of a request transition. NotifyFailures is a
// secondary signal: the transition committed even if deliveries failed.
type RequestResult struct {
	Request        *domain.TripRequest
	NotifyFailures int
}

// CreateRequest creates a new trip request in PENDING state and announces it
// to drivers and admins.
func (s *ClaimService) CreateRequest(ctx context.Context, cmd CreateRequestCommand) (*RequestResult, error) {
	if cmd.PassengerID == "" {
		return nil, ErrInvalidPassengerID
	}
	if cmd.Destination == "" {
		return nil, ErrMissingDestination
	}

	destinationType := cmd.DestinationType
	if destinationType == "" {
		destinationType = domain.DestinationOther
	}

	req := &domain.TripRequest{
		ID:              uuid.New().String(),
		PassengerID:     cmd.PassengerID,
		PassengerName:   cmd.PassengerName,
		Origin:          cmd.Origin,
		Destination:     cmd.Destination,
		DestinationType: destinationType,
		Status:          domain.RequestStatusPending,
		RequestedAt:     time.Now(),
	}

	if err := s.requestRepo.Create(ctx, req); err != nil {
		return nil, err
	}

	observability.RequestsCreatedTotal.Inc()

	failures := s.fanout.Publish(ctx, Transition{
		Kind:  domain.NotificationNewRequest,
		After: req,
	})

	return &RequestResult{Request: req, NotifyFailures: failures}, nil
}

// ClaimCommand contains the parameters for a driver claiming a request.
type ClaimCommand struct {
	RequestID  string
	DriverID   string
	DriverName string
	VehicleID  string
}

// Claim exclusively assigns a pending request to the driver and vehicle.
// At most one of N concurrent claims succeeds; the losers get
// ErrAlreadyClaimed. A vehicle lock serializes the capacity check so two
// claims cannot both take the last seat through different requests.
func (s *ClaimService) Claim(ctx context.Context, cmd ClaimCommand) (*RequestResult, error) {
	if cmd.RequestID == "" {
		return nil, ErrInvalidRequestID
	}
	if cmd.DriverID == "" {
		return nil, ErrInvalidDriverID
	}
	if cmd.VehicleID == "" {
		return nil, ErrInvalidVehicleID
	}

	if s.lockStore != nil {
		locked, err := s.lockStore.AcquireVehicleLock(ctx, cmd.VehicleID, s.lockTTL)
		if err != nil {
			return nil, err
		}
		if !locked {
			observability.ClaimsTotal.WithLabelValues("busy").Inc()
			return nil, ErrVehicleBusy
		}
		defer func() { _ = s.lockStore.ReleaseVehicleLock(ctx, cmd.VehicleID) }()
	}

	before, err := s.requestRepo.GetByID(ctx, cmd.RequestID)
	if err != nil {
		return nil, err
	}
	if before.Status != domain.RequestStatusPending {
		observability.ClaimsTotal.WithLabelValues("conflict").Inc()
		return nil, ErrAlreadyClaimed
	}

	remaining, err := s.capacity.RemainingSeats(ctx, cmd.VehicleID, "")
	if err != nil {
		return nil, err
	}
	if remaining < 1 {
		observability.ClaimsTotal.WithLabelValues("capacity").Inc()
		return nil, ErrCapacityExceeded
	}

	claimed := domain.RequestStatusClaimed
	patch := repository.RequestPatch{
		Status:     &claimed,
		DriverID:   &cmd.DriverID,
		DriverName: &cmd.DriverName,
		VehicleID:  &cmd.VehicleID,
	}

	// The authoritative exclusivity check: write only if still PENDING.
	err = s.requestRepo.UpdateIf(ctx, cmd.RequestID, domain.RequestStatusPending, patch)
	if err != nil {
		if errors.Is(err, repository.ErrStatusConflict) {
			observability.ClaimsTotal.WithLabelValues("conflict").Inc()
			return nil, ErrAlreadyClaimed
		}
		return nil, err
	}

	after := *before
	after.Status = domain.RequestStatusClaimed
	after.DriverID = cmd.DriverID
	after.DriverName = cmd.DriverName
	after.VehicleID = cmd.VehicleID

	observability.ClaimsTotal.WithLabelValues("ok").Inc()

	failures := s.fanout.Publish(ctx, Transition{
		Kind:    domain.NotificationClaimed,
		Before:  before,
		After:   &after,
		ActorID: cmd.DriverID,
	})

	return &RequestResult{Request: &after, NotifyFailures: failures}, nil
}

// CancelCommand contains the parameters for cancelling a request.
type CancelCommand struct {
	RequestID string
	ActorID   string
}

// Cancel withdraws a request. Allowed only from PENDING or CLAIMED; a
// previously assigned driver is told the request is gone.
func (s *ClaimService) Cancel(ctx context.Context, cmd CancelCommand) (*RequestResult, error) {
	if cmd.RequestID == "" {
		return nil, ErrInvalidRequestID
	}

	before, err := s.requestRepo.GetByID(ctx, cmd.RequestID)
	if err != nil {
		return nil, err
	}
	if before.Status != domain.RequestStatusPending && before.Status != domain.RequestStatusClaimed {
		return nil, ErrInvalidTransition
	}

	cancelled := domain.RequestStatusCancelled
	empty := ""
	patch := repository.RequestPatch{
		Status:     &cancelled,
		DriverID:   &empty,
		DriverName: &empty,
		VehicleID:  &empty,
	}

	err = s.requestRepo.UpdateIf(ctx, cmd.RequestID, before.Status, patch)
	if err != nil {
		if errors.Is(err, repository.ErrStatusConflict) {
			// The request moved under us (claimed or batched meanwhile);
			// the caller should re-read and decide again.
			return nil, ErrInvalidTransition
		}
		return nil, err
	}

	after := *before
	after.Status = domain.RequestStatusCancelled
	after.DriverID = ""
	after.DriverName = ""
	after.VehicleID = ""

	failures := s.fanout.Publish(ctx, Transition{
		Kind:    domain.NotificationDeleted,
		Before:  before,
		After:   &after,
		ActorID: cmd.ActorID,
	})

	return &RequestResult{Request: &after, NotifyFailures: failures}, nil
}

// RejectCommand contains the parameters for rejecting a request.
type RejectCommand struct {
	RequestID string
	ActorID   string
}

// Reject declines a pending request, typically by an admin.
func (s *ClaimService) Reject(ctx context.Context, cmd RejectCommand) (*RequestResult, error) {
	if cmd.RequestID == "" {
		return nil, ErrInvalidRequestID
	}

	before, err := s.requestRepo.GetByID(ctx, cmd.RequestID)
	if err != nil {
		return nil, err
	}
	if before.Status != domain.RequestStatusPending {
		return nil, ErrInvalidTransition
	}

	rejected := domain.RequestStatusRejected
	patch := repository.RequestPatch{Status: &rejected}

	err = s.requestRepo.UpdateIf(ctx, cmd.RequestID, domain.RequestStatusPending, patch)
	if err != nil {
		if errors.Is(err, repository.ErrStatusConflict) {
			return nil, ErrInvalidTransition
		}
		return nil, err
	}

	after := *before
	after.Status = domain.RequestStatusRejected

	failures := s.fanout.Publish(ctx, Transition{
		Kind:    domain.NotificationStatusChange,
		Before:  before,
		After:   &after,
		ActorID: cmd.ActorID,
	})

	return &RequestResult{Request: &after, NotifyFailures: failures}, nil
}

// ReassignCommand contains the parameters for moving a claimed request to a
// different driver and vehicle.
type ReassignCommand struct {
	RequestID     string
	NewDriverID   string
	NewDriverName string
	NewVehicleID  string
}

// Reassign moves a claimed request to another driver/vehicle after
// re-validating capacity on the new vehicle. The request keeps its seat on
// the old vehicle out of the count via the exclusion parameter.
func (s *ClaimService) Reassign(ctx context.Context, cmd ReassignCommand) (*RequestResult, error) {
	if cmd.RequestID == "" {
		return nil, ErrInvalidRequestID
	}
	if cmd.NewDriverID == "" {
		return nil, ErrInvalidDriverID
	}
	if cmd.NewVehicleID == "" {
		return nil, ErrInvalidVehicleID
	}

	if s.lockStore != nil {
		locked, err := s.lockStore.AcquireVehicleLock(ctx, cmd.NewVehicleID, s.lockTTL)
		if err != nil {
			return nil, err
		}
		if !locked {
			return nil, ErrVehicleBusy
		}
		defer func() { _ = s.lockStore.ReleaseVehicleLock(ctx, cmd.NewVehicleID) }()
	}

	before, err := s.requestRepo.GetByID(ctx, cmd.RequestID)
	if err != nil {
		return nil, err
	}
	if before.Status != domain.RequestStatusClaimed {
		return nil, ErrInvalidTransition
	}

	remaining, err := s.capacity.RemainingSeats(ctx, cmd.NewVehicleID, cmd.RequestID)
	if err != nil {
		return nil, err
	}
	if remaining < 1 {
		return nil, ErrCapacityExceeded
	}

	patch := repository.RequestPatch{
		DriverID:   &cmd.NewDriverID,
		DriverName: &cmd.NewDriverName,
		VehicleID:  &cmd.NewVehicleID,
	}

	err = s.requestRepo.UpdateIf(ctx, cmd.RequestID, domain.RequestStatusClaimed, patch)
	if err != nil {
		if errors.Is(err, repository.ErrStatusConflict) {
			return nil, ErrInvalidTransition
		}
		return nil, err
	}

	after := *before
	after.DriverID = cmd.NewDriverID
	after.DriverName = cmd.NewDriverName
	after.VehicleID = cmd.NewVehicleID

	failures := s.fanout.Publish(ctx, Transition{
		Kind:   domain.NotificationReassigned,
		Before: before,
		After:  &after,
	})

	return &RequestResult{Request: &after, NotifyFailures: failures}, nil
}
