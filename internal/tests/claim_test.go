package tests

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"dispatch/internal/domain"
	"dispatch/internal/redis"
	"dispatch/internal/service"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

// newClaimService wires a ClaimService against the given mocks with a capture
// sink for notification assertions.
func newClaimService(requestRepo *MockRequestRepository, vehicleRepo *MockVehicleRepository, lockStore *MockLockStore) (*service.ClaimService, *CaptureSink) {
	sink := NewCaptureSink()
	fanout := service.NewFanout(discardLogger(), sink)
	capacity := service.NewCapacityService(requestRepo, vehicleRepo, 0)
	// Avoid wrapping a nil *MockLockStore in a non-nil interface value.
	var locks redis.LockStoreInterface
	if lockStore != nil {
		locks = lockStore
	}
	claims := service.NewClaimService(requestRepo, capacity, locks, fanout, time.Second)
	return claims, sink
}

func pendingRequest(id, passengerID string) *domain.TripRequest {
	return &domain.TripRequest{
		ID:            id,
		PassengerID:   passengerID,
		PassengerName: "Passenger " + passengerID,
		Origin:        "Elm Street 4",
		Destination:   "Lincoln High",
		Status:        domain.RequestStatusPending,
		RequestedAt:   time.Now(),
	}
}

func TestCreateRequest_Success(t *testing.T) {
	ctx := context.Background()
	requestRepo := NewMockRequestRepository()
	vehicleRepo := NewMockVehicleRepository()
	claims, sink := newClaimService(requestRepo, vehicleRepo, nil)

	result, err := claims.CreateRequest(ctx, service.CreateRequestCommand{
		PassengerID:   "passenger-1",
		PassengerName: "Ada",
		Origin:        "Elm Street 4",
		Destination:   "Lincoln High",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.Request.Status != domain.RequestStatusPending {
		t.Errorf("expected PENDING, got %s", result.Request.Status)
	}
	if result.Request.DestinationType != domain.DestinationOther {
		t.Errorf("expected destination type to default to OTHER, got %s", result.Request.DestinationType)
	}
	if result.Request.DriverID != "" {
		t.Errorf("new request must not carry a driver, got %q", result.Request.DriverID)
	}

	// Drivers and admins both hear about new requests.
	if got := sink.CountByRole(domain.RoleDriver); got != 1 {
		t.Errorf("expected 1 driver notification, got %d", got)
	}
	if got := sink.CountByRole(domain.RoleAdmin); got != 1 {
		t.Errorf("expected 1 admin notification, got %d", got)
	}
}

func TestCreateRequest_Validation(t *testing.T) {
	ctx := context.Background()
	requestRepo := NewMockRequestRepository()
	vehicleRepo := NewMockVehicleRepository()
	claims, _ := newClaimService(requestRepo, vehicleRepo, nil)

	_, err := claims.CreateRequest(ctx, service.CreateRequestCommand{Destination: "Lincoln High"})
	if !errors.Is(err, service.ErrInvalidPassengerID) {
		t.Errorf("expected ErrInvalidPassengerID, got %v", err)
	}

	_, err = claims.CreateRequest(ctx, service.CreateRequestCommand{PassengerID: "passenger-1"})
	if !errors.Is(err, service.ErrMissingDestination) {
		t.Errorf("expected ErrMissingDestination, got %v", err)
	}
}

func TestClaim_Success(t *testing.T) {
	ctx := context.Background()
	requestRepo := NewMockRequestRepository()
	vehicleRepo := NewMockVehicleRepository()
	lockStore := NewMockLockStore()

	requestRepo.AddRequest(pendingRequest("req-1", "passenger-1"))
	vehicleRepo.AddVehicle(&domain.Vehicle{ID: "vehicle-1", Capacity: 4})

	claims, sink := newClaimService(requestRepo, vehicleRepo, lockStore)

	result, err := claims.Claim(ctx, service.ClaimCommand{
		RequestID:  "req-1",
		DriverID:   "driver-1",
		DriverName: "Grace",
		VehicleID:  "vehicle-1",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.Request.Status != domain.RequestStatusClaimed {
		t.Errorf("expected CLAIMED, got %s", result.Request.Status)
	}
	if result.Request.DriverID != "driver-1" || result.Request.VehicleID != "vehicle-1" {
		t.Errorf("assignment not recorded: driver=%q vehicle=%q", result.Request.DriverID, result.Request.VehicleID)
	}

	stored := requestRepo.GetRequest("req-1")
	if stored.Status != domain.RequestStatusClaimed {
		t.Errorf("stored request expected CLAIMED, got %s", stored.Status)
	}

	// Passenger learns who picks them up; admins see the assignment.
	if got := sink.CountByRole(domain.RolePassenger); got != 1 {
		t.Errorf("expected 1 passenger notification, got %d", got)
	}
	if got := sink.CountByRole(domain.RoleAdmin); got != 1 {
		t.Errorf("expected 1 admin notification, got %d", got)
	}

	// The vehicle lock must be released again.
	locked, err := lockStore.AcquireVehicleLock(ctx, "vehicle-1", time.Second)
	if err != nil || !locked {
		t.Errorf("vehicle lock still held after claim: locked=%v err=%v", locked, err)
	}
}

func TestClaim_ConcurrentClaimers_OnlyOneWins(t *testing.T) {
	ctx := context.Background()
	requestRepo := NewMockRequestRepository()
	vehicleRepo := NewMockVehicleRepository()

	requestRepo.AddRequest(pendingRequest("req-1", "passenger-1"))
	vehicleRepo.AddVehicle(&domain.Vehicle{ID: "vehicle-1", Capacity: 8})

	// No lock store: exclusivity must come from the conditional update alone.
	claims, _ := newClaimService(requestRepo, vehicleRepo, nil)

	const claimers = 25
	var wg sync.WaitGroup
	errs := make([]error, claimers)

	for i := 0; i < claimers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			_, errs[n] = claims.Claim(ctx, service.ClaimCommand{
				RequestID:  "req-1",
				DriverID:   "driver-1",
				DriverName: "Grace",
				VehicleID:  "vehicle-1",
			})
		}(i)
	}
	wg.Wait()

	winners := 0
	for _, err := range errs {
		switch {
		case err == nil:
			winners++
		case errors.Is(err, service.ErrAlreadyClaimed):
			// Expected for the losers.
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}

	if winners != 1 {
		t.Errorf("expected exactly 1 winner, got %d", winners)
	}
	if stored := requestRepo.GetRequest("req-1"); stored.Status != domain.RequestStatusClaimed {
		t.Errorf("expected stored request CLAIMED, got %s", stored.Status)
	}
}

func TestClaim_CapacityExhausted(t *testing.T) {
	ctx := context.Background()
	requestRepo := NewMockRequestRepository()
	vehicleRepo := NewMockVehicleRepository()
	lockStore := NewMockLockStore()

	vehicleRepo.AddVehicle(&domain.Vehicle{ID: "vehicle-1", Capacity: 2})
	requestRepo.AddRequest(pendingRequest("req-1", "passenger-1"))
	requestRepo.AddRequest(pendingRequest("req-2", "passenger-2"))
	requestRepo.AddRequest(pendingRequest("req-3", "passenger-3"))

	claims, _ := newClaimService(requestRepo, vehicleRepo, lockStore)

	for _, id := range []string{"req-1", "req-2"} {
		if _, err := claims.Claim(ctx, service.ClaimCommand{
			RequestID: id, DriverID: "driver-1", DriverName: "Grace", VehicleID: "vehicle-1",
		}); err != nil {
			t.Fatalf("claim %s: unexpected error: %v", id, err)
		}
	}

	// Both seats are taken; the third claim on this vehicle must fail.
	_, err := claims.Claim(ctx, service.ClaimCommand{
		RequestID: "req-3", DriverID: "driver-1", DriverName: "Grace", VehicleID: "vehicle-1",
	})
	if !errors.Is(err, service.ErrCapacityExceeded) {
		t.Errorf("expected ErrCapacityExceeded, got %v", err)
	}
	if stored := requestRepo.GetRequest("req-3"); stored.Status != domain.RequestStatusPending {
		t.Errorf("rejected claim must leave the request PENDING, got %s", stored.Status)
	}
}

func TestClaim_VehicleLockBusy(t *testing.T) {
	ctx := context.Background()
	requestRepo := NewMockRequestRepository()
	vehicleRepo := NewMockVehicleRepository()
	lockStore := NewMockLockStore()

	requestRepo.AddRequest(pendingRequest("req-1", "passenger-1"))
	vehicleRepo.AddVehicle(&domain.Vehicle{ID: "vehicle-1", Capacity: 4})
	lockStore.HoldLock("vehicle-1")

	claims, _ := newClaimService(requestRepo, vehicleRepo, lockStore)

	_, err := claims.Claim(ctx, service.ClaimCommand{
		RequestID: "req-1", DriverID: "driver-1", DriverName: "Grace", VehicleID: "vehicle-1",
	})
	if !errors.Is(err, service.ErrVehicleBusy) {
		t.Errorf("expected ErrVehicleBusy, got %v", err)
	}
}

func TestClaim_AlreadyClaimed(t *testing.T) {
	ctx := context.Background()
	requestRepo := NewMockRequestRepository()
	vehicleRepo := NewMockVehicleRepository()

	req := pendingRequest("req-1", "passenger-1")
	req.Status = domain.RequestStatusClaimed
	req.DriverID = "driver-0"
	req.VehicleID = "vehicle-0"
	requestRepo.AddRequest(req)
	vehicleRepo.AddVehicle(&domain.Vehicle{ID: "vehicle-1", Capacity: 4})

	claims, sink := newClaimService(requestRepo, vehicleRepo, nil)

	_, err := claims.Claim(ctx, service.ClaimCommand{
		RequestID: "req-1", DriverID: "driver-1", DriverName: "Grace", VehicleID: "vehicle-1",
	})
	if !errors.Is(err, service.ErrAlreadyClaimed) {
		t.Errorf("expected ErrAlreadyClaimed, got %v", err)
	}

	// Failed transitions announce nothing.
	if got := len(sink.Notifications()); got != 0 {
		t.Errorf("expected no notifications, got %d", got)
	}
	if stored := requestRepo.GetRequest("req-1"); stored.DriverID != "driver-0" {
		t.Errorf("assignment must be untouched, got driver %q", stored.DriverID)
	}
}

func TestCancel_ClearsAssignmentAndNotifiesDriver(t *testing.T) {
	ctx := context.Background()
	requestRepo := NewMockRequestRepository()
	vehicleRepo := NewMockVehicleRepository()

	req := pendingRequest("req-1", "passenger-1")
	req.Status = domain.RequestStatusClaimed
	req.DriverID = "driver-1"
	req.DriverName = "Grace"
	req.VehicleID = "vehicle-1"
	requestRepo.AddRequest(req)

	claims, sink := newClaimService(requestRepo, vehicleRepo, nil)

	result, err := claims.Cancel(ctx, service.CancelCommand{RequestID: "req-1", ActorID: "passenger-1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.Request.Status != domain.RequestStatusCancelled {
		t.Errorf("expected CANCELLED, got %s", result.Request.Status)
	}
	stored := requestRepo.GetRequest("req-1")
	if stored.DriverID != "" || stored.VehicleID != "" {
		t.Errorf("cancelled request must carry no assignment, got driver=%q vehicle=%q", stored.DriverID, stored.VehicleID)
	}

	// The formerly assigned driver is told the request is gone.
	if got := sink.CountByRole(domain.RoleDriver); got != 1 {
		t.Errorf("expected 1 driver notification, got %d", got)
	}
	if got := sink.CountByRole(domain.RolePassenger); got != 1 {
		t.Errorf("expected 1 passenger notification, got %d", got)
	}
}

func TestCancel_TerminalStateRejected(t *testing.T) {
	ctx := context.Background()
	requestRepo := NewMockRequestRepository()
	vehicleRepo := NewMockVehicleRepository()

	for _, status := range []domain.RequestStatus{
		domain.RequestStatusInTrip,
		domain.RequestStatusCompleted,
		domain.RequestStatusCancelled,
		domain.RequestStatusRejected,
	} {
		req := pendingRequest("req-"+string(status), "passenger-1")
		req.Status = status
		requestRepo.AddRequest(req)
	}

	claims, _ := newClaimService(requestRepo, vehicleRepo, nil)

	for _, status := range []domain.RequestStatus{
		domain.RequestStatusInTrip,
		domain.RequestStatusCompleted,
		domain.RequestStatusCancelled,
		domain.RequestStatusRejected,
	} {
		_, err := claims.Cancel(ctx, service.CancelCommand{RequestID: "req-" + string(status)})
		if !errors.Is(err, service.ErrInvalidTransition) {
			t.Errorf("cancel from %s: expected ErrInvalidTransition, got %v", status, err)
		}
	}
}

func TestReject_OnlyPending(t *testing.T) {
	ctx := context.Background()
	requestRepo := NewMockRequestRepository()
	vehicleRepo := NewMockVehicleRepository()

	requestRepo.AddRequest(pendingRequest("req-1", "passenger-1"))
	claimed := pendingRequest("req-2", "passenger-2")
	claimed.Status = domain.RequestStatusClaimed
	requestRepo.AddRequest(claimed)

	claims, sink := newClaimService(requestRepo, vehicleRepo, nil)

	result, err := claims.Reject(ctx, service.RejectCommand{RequestID: "req-1", ActorID: "admin-1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Request.Status != domain.RequestStatusRejected {
		t.Errorf("expected REJECTED, got %s", result.Request.Status)
	}
	if got := sink.CountByRole(domain.RolePassenger); got != 1 {
		t.Errorf("expected 1 passenger notification, got %d", got)
	}

	_, err = claims.Reject(ctx, service.RejectCommand{RequestID: "req-2"})
	if !errors.Is(err, service.ErrInvalidTransition) {
		t.Errorf("expected ErrInvalidTransition, got %v", err)
	}
}

func TestReassign_MovesClaimedRequest(t *testing.T) {
	ctx := context.Background()
	requestRepo := NewMockRequestRepository()
	vehicleRepo := NewMockVehicleRepository()
	lockStore := NewMockLockStore()

	req := pendingRequest("req-1", "passenger-1")
	req.Status = domain.RequestStatusClaimed
	req.DriverID = "driver-1"
	req.DriverName = "Grace"
	req.VehicleID = "vehicle-1"
	requestRepo.AddRequest(req)

	vehicleRepo.AddVehicle(&domain.Vehicle{ID: "vehicle-1", Capacity: 2})
	vehicleRepo.AddVehicle(&domain.Vehicle{ID: "vehicle-2", Capacity: 2})

	claims, sink := newClaimService(requestRepo, vehicleRepo, lockStore)

	result, err := claims.Reassign(ctx, service.ReassignCommand{
		RequestID:     "req-1",
		NewDriverID:   "driver-2",
		NewDriverName: "Alan",
		NewVehicleID:  "vehicle-2",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.Request.Status != domain.RequestStatusClaimed {
		t.Errorf("reassignment must keep CLAIMED, got %s", result.Request.Status)
	}
	if result.Request.DriverID != "driver-2" || result.Request.VehicleID != "vehicle-2" {
		t.Errorf("reassignment not recorded: driver=%q vehicle=%q", result.Request.DriverID, result.Request.VehicleID)
	}

	// Old and new driver both hear about the move.
	if got := sink.CountByRole(domain.RoleDriver); got != 2 {
		t.Errorf("expected 2 driver notifications, got %d", got)
	}
}

func TestReassign_KeepsOwnSeatOutOfCount(t *testing.T) {
	ctx := context.Background()
	requestRepo := NewMockRequestRepository()
	vehicleRepo := NewMockVehicleRepository()

	// A single-seat vehicle whose one seat is held by req-1 itself.
	vehicleRepo.AddVehicle(&domain.Vehicle{ID: "vehicle-1", Capacity: 1})

	req := pendingRequest("req-1", "passenger-1")
	req.Status = domain.RequestStatusClaimed
	req.DriverID = "driver-1"
	req.VehicleID = "vehicle-1"
	requestRepo.AddRequest(req)

	claims, _ := newClaimService(requestRepo, vehicleRepo, nil)

	// Handing the request to another driver on the same vehicle must not
	// count the request against its own seat.
	_, err := claims.Reassign(ctx, service.ReassignCommand{
		RequestID:     "req-1",
		NewDriverID:   "driver-2",
		NewDriverName: "Alan",
		NewVehicleID:  "vehicle-1",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestReassign_NonClaimedRejected(t *testing.T) {
	ctx := context.Background()
	requestRepo := NewMockRequestRepository()
	vehicleRepo := NewMockVehicleRepository()

	requestRepo.AddRequest(pendingRequest("req-1", "passenger-1"))
	vehicleRepo.AddVehicle(&domain.Vehicle{ID: "vehicle-1", Capacity: 2})

	claims, _ := newClaimService(requestRepo, vehicleRepo, nil)

	_, err := claims.Reassign(ctx, service.ReassignCommand{
		RequestID: "req-1", NewDriverID: "driver-2", NewVehicleID: "vehicle-1",
	})
	if !errors.Is(err, service.ErrInvalidTransition) {
		t.Errorf("expected ErrInvalidTransition, got %v", err)
	}
}
