package tests

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"dispatch/internal/domain"
	"dispatch/internal/service"
)

// tripFixture bundles a TripService built on sqlmock for the transactional
// paths and in-memory mocks for the read paths.
type tripFixture struct {
	db          *sql.DB
	mock        sqlmock.Sqlmock
	tripRepo    *MockTripRepository
	requestRepo *MockRequestRepository
	vehicleRepo *MockVehicleRepository
	driverRepo  *MockDriverRepository
	sink        *CaptureSink
	trips       *service.TripService
}

func newTripFixture(t *testing.T) *tripFixture {
	t.Helper()

	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	tripRepo := NewMockTripRepository()
	requestRepo := NewMockRequestRepository()
	vehicleRepo := NewMockVehicleRepository()
	driverRepo := NewMockDriverRepository()
	sink := NewCaptureSink()
	fanout := service.NewFanout(discardLogger(), sink)

	return &tripFixture{
		db:          db,
		mock:        mock,
		tripRepo:    tripRepo,
		requestRepo: requestRepo,
		vehicleRepo: vehicleRepo,
		driverRepo:  driverRepo,
		sink:        sink,
		trips:       service.NewTripService(db, tripRepo, requestRepo, vehicleRepo, driverRepo, fanout),
	}
}

// addClaimed seeds a claimed request assigned to the driver and vehicle.
func (f *tripFixture) addClaimed(id, passengerID, driverID, vehicleID string) {
	req := pendingRequest(id, passengerID)
	req.Status = domain.RequestStatusClaimed
	req.DriverID = driverID
	req.DriverName = "Grace"
	req.VehicleID = vehicleID
	f.requestRepo.AddRequest(req)
}

// addActiveTrip seeds an in-progress trip with IN_TRIP members.
func (f *tripFixture) addActiveTrip(tripID, driverID, vehicleID string, memberIDs []string) {
	f.tripRepo.AddTrip(&domain.Trip{
		ID:               tripID,
		DriverID:         driverID,
		DriverName:       "Grace",
		VehicleID:        vehicleID,
		MemberRequestIDs: memberIDs,
		Status:           domain.TripStatusInProgress,
		StartedAt:        time.Now(),
	})
	for _, id := range memberIDs {
		req := pendingRequest(id, "passenger-"+id)
		req.Status = domain.RequestStatusInTrip
		req.DriverID = driverID
		req.VehicleID = vehicleID
		req.TripID = tripID
		req.DeliveryStatus = domain.DeliveryStatusPending
		f.requestRepo.AddRequest(req)
	}
}

func TestStartTrip_Success(t *testing.T) {
	ctx := context.Background()
	f := newTripFixture(t)

	f.vehicleRepo.AddVehicle(&domain.Vehicle{ID: "vehicle-1", Capacity: 4})
	f.driverRepo.AddDriver(&domain.Driver{ID: "driver-1", Name: "Grace", Status: domain.DriverStatusAvailable})
	f.addClaimed("req-1", "passenger-1", "driver-1", "vehicle-1")
	f.addClaimed("req-2", "passenger-2", "driver-1", "vehicle-1")

	f.mock.ExpectBegin()
	f.mock.ExpectExec("INSERT INTO trips").WillReturnResult(sqlmock.NewResult(0, 1))
	f.mock.ExpectExec("UPDATE trip_requests SET").WillReturnResult(sqlmock.NewResult(0, 1))
	f.mock.ExpectExec("UPDATE trip_requests SET").WillReturnResult(sqlmock.NewResult(0, 1))
	f.mock.ExpectExec("UPDATE drivers SET status").WillReturnResult(sqlmock.NewResult(0, 1))
	f.mock.ExpectCommit()

	result, err := f.trips.StartTrip(ctx, service.StartTripCommand{
		DriverID:   "driver-1",
		DriverName: "Grace",
		VehicleID:  "vehicle-1",
		RequestIDs: []string{"req-1", "req-2"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.Trip.Status != domain.TripStatusInProgress {
		t.Errorf("expected IN_PROGRESS, got %s", result.Trip.Status)
	}
	if len(result.Trip.MemberRequestIDs) != 2 {
		t.Errorf("expected 2 members, got %d", len(result.Trip.MemberRequestIDs))
	}
	// Acceptance order is preserved.
	if result.Trip.MemberRequestIDs[0] != "req-1" || result.Trip.MemberRequestIDs[1] != "req-2" {
		t.Errorf("member order not preserved: %v", result.Trip.MemberRequestIDs)
	}
	for _, member := range result.Members {
		if member.Status != domain.RequestStatusInTrip {
			t.Errorf("member %s expected IN_TRIP, got %s", member.ID, member.Status)
		}
		if member.TripID != result.Trip.ID {
			t.Errorf("member %s not linked to trip", member.ID)
		}
		if member.DeliveryStatus != domain.DeliveryStatusPending {
			t.Errorf("member %s expected delivery PENDING, got %s", member.ID, member.DeliveryStatus)
		}
	}

	// Driver, admin, and one notification per member.
	if got := len(f.sink.Notifications()); got != 4 {
		t.Errorf("expected 4 notifications, got %d", got)
	}

	if err := f.mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet sql expectations: %v", err)
	}
}

func TestStartTrip_MemberConflictRollsBackEverything(t *testing.T) {
	ctx := context.Background()
	f := newTripFixture(t)

	f.vehicleRepo.AddVehicle(&domain.Vehicle{ID: "vehicle-1", Capacity: 4})
	f.addClaimed("req-1", "passenger-1", "driver-1", "vehicle-1")
	f.addClaimed("req-2", "passenger-2", "driver-1", "vehicle-1")

	// The second member was cancelled between the read and the write: its
	// conditional update matches no row and the whole transaction unwinds.
	f.mock.ExpectBegin()
	f.mock.ExpectExec("INSERT INTO trips").WillReturnResult(sqlmock.NewResult(0, 1))
	f.mock.ExpectExec("UPDATE trip_requests SET").WillReturnResult(sqlmock.NewResult(0, 1))
	f.mock.ExpectExec("UPDATE trip_requests SET").WillReturnResult(sqlmock.NewResult(0, 0))
	f.mock.ExpectQuery("SELECT 1 FROM trip_requests").
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}).AddRow(1))
	f.mock.ExpectRollback()

	_, err := f.trips.StartTrip(ctx, service.StartTripCommand{
		DriverID:   "driver-1",
		DriverName: "Grace",
		VehicleID:  "vehicle-1",
		RequestIDs: []string{"req-1", "req-2"},
	})
	if !errors.Is(err, service.ErrInconsistentBatch) {
		t.Fatalf("expected ErrInconsistentBatch, got %v", err)
	}

	// Nothing committed, nothing announced.
	if got := len(f.sink.Notifications()); got != 0 {
		t.Errorf("expected no notifications after rollback, got %d", got)
	}

	if err := f.mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet sql expectations: %v", err)
	}
}

func TestStartTrip_Validation(t *testing.T) {
	ctx := context.Background()
	f := newTripFixture(t)

	_, err := f.trips.StartTrip(ctx, service.StartTripCommand{
		DriverID: "driver-1", VehicleID: "vehicle-1",
	})
	if !errors.Is(err, service.ErrEmptyBatch) {
		t.Errorf("expected ErrEmptyBatch, got %v", err)
	}

	_, err = f.trips.StartTrip(ctx, service.StartTripCommand{
		VehicleID: "vehicle-1", RequestIDs: []string{"req-1"},
	})
	if !errors.Is(err, service.ErrInvalidDriverID) {
		t.Errorf("expected ErrInvalidDriverID, got %v", err)
	}
}

func TestStartTrip_DriverAlreadyOnTrip(t *testing.T) {
	ctx := context.Background()
	f := newTripFixture(t)

	f.addActiveTrip("trip-1", "driver-1", "vehicle-1", []string{"req-1"})
	f.addClaimed("req-2", "passenger-2", "driver-1", "vehicle-1")

	_, err := f.trips.StartTrip(ctx, service.StartTripCommand{
		DriverID:   "driver-1",
		VehicleID:  "vehicle-1",
		RequestIDs: []string{"req-2"},
	})
	if !errors.Is(err, service.ErrDriverHasActiveTrip) {
		t.Errorf("expected ErrDriverHasActiveTrip, got %v", err)
	}
}

func TestStartTrip_InconsistentBatchRejected(t *testing.T) {
	ctx := context.Background()
	f := newTripFixture(t)

	f.vehicleRepo.AddVehicle(&domain.Vehicle{ID: "vehicle-1", Capacity: 4})
	f.addClaimed("req-1", "passenger-1", "driver-1", "vehicle-1")
	f.addClaimed("req-2", "passenger-2", "driver-other", "vehicle-1")

	// A member claimed by a different driver.
	_, err := f.trips.StartTrip(ctx, service.StartTripCommand{
		DriverID:   "driver-1",
		VehicleID:  "vehicle-1",
		RequestIDs: []string{"req-1", "req-2"},
	})
	if !errors.Is(err, service.ErrInconsistentBatch) {
		t.Errorf("expected ErrInconsistentBatch for foreign member, got %v", err)
	}

	// A duplicated member id.
	_, err = f.trips.StartTrip(ctx, service.StartTripCommand{
		DriverID:   "driver-1",
		VehicleID:  "vehicle-1",
		RequestIDs: []string{"req-1", "req-1"},
	})
	if !errors.Is(err, service.ErrInconsistentBatch) {
		t.Errorf("expected ErrInconsistentBatch for duplicate member, got %v", err)
	}
}

func TestStartTrip_BatchOverCapacity(t *testing.T) {
	ctx := context.Background()
	f := newTripFixture(t)

	f.vehicleRepo.AddVehicle(&domain.Vehicle{ID: "vehicle-1", Capacity: 2})
	f.addClaimed("req-1", "passenger-1", "driver-1", "vehicle-1")
	f.addClaimed("req-2", "passenger-2", "driver-1", "vehicle-1")
	f.addClaimed("req-3", "passenger-3", "driver-1", "vehicle-1")

	_, err := f.trips.StartTrip(ctx, service.StartTripCommand{
		DriverID:   "driver-1",
		VehicleID:  "vehicle-1",
		RequestIDs: []string{"req-1", "req-2", "req-3"},
	})
	if !errors.Is(err, service.ErrCapacityExceeded) {
		t.Errorf("expected ErrCapacityExceeded, got %v", err)
	}
}

func TestMarkDelivered_Success(t *testing.T) {
	ctx := context.Background()
	f := newTripFixture(t)

	f.addActiveTrip("trip-1", "driver-1", "vehicle-1", []string{"req-1", "req-2"})

	result, err := f.trips.MarkDelivered(ctx, "trip-1", "req-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.Request.DeliveryStatus != domain.DeliveryStatusDelivered {
		t.Errorf("expected DELIVERED, got %s", result.Request.DeliveryStatus)
	}
	if result.Request.Status != domain.RequestStatusInTrip {
		t.Errorf("delivery must not change request status, got %s", result.Request.Status)
	}

	stored := f.requestRepo.GetRequest("req-1")
	if stored.DeliveryStatus != domain.DeliveryStatusDelivered {
		t.Errorf("stored request expected DELIVERED, got %s", stored.DeliveryStatus)
	}

	// Marking the same member again is a quiet no-op.
	announced := len(f.sink.Notifications())
	if _, err := f.trips.MarkDelivered(ctx, "trip-1", "req-1"); err != nil {
		t.Fatalf("repeat delivery: unexpected error: %v", err)
	}
	if got := len(f.sink.Notifications()); got != announced {
		t.Errorf("repeat delivery must announce nothing, got %d extra", got-announced)
	}
}

func TestMarkDelivered_NonMemberRejected(t *testing.T) {
	ctx := context.Background()
	f := newTripFixture(t)

	f.addActiveTrip("trip-1", "driver-1", "vehicle-1", []string{"req-1"})

	req := pendingRequest("req-foreign", "passenger-9")
	req.Status = domain.RequestStatusInTrip
	f.requestRepo.AddRequest(req)

	_, err := f.trips.MarkDelivered(ctx, "trip-1", "req-foreign")
	if err == nil {
		t.Fatal("expected error for non-member delivery")
	}
}

func TestCompleteTrip_Success(t *testing.T) {
	ctx := context.Background()
	f := newTripFixture(t)

	f.driverRepo.AddDriver(&domain.Driver{ID: "driver-1", Name: "Grace", Status: domain.DriverStatusOnTrip})
	f.addActiveTrip("trip-1", "driver-1", "vehicle-1", []string{"req-1", "req-2"})
	for _, id := range []string{"req-1", "req-2"} {
		req := f.requestRepo.GetRequest(id)
		req.DeliveryStatus = domain.DeliveryStatusDelivered
	}

	f.mock.ExpectBegin()
	f.mock.ExpectExec("UPDATE trips SET status").WillReturnResult(sqlmock.NewResult(0, 1))
	f.mock.ExpectExec("UPDATE trip_requests SET").WillReturnResult(sqlmock.NewResult(0, 1))
	f.mock.ExpectExec("UPDATE trip_requests SET").WillReturnResult(sqlmock.NewResult(0, 1))
	f.mock.ExpectExec("UPDATE drivers SET status").WillReturnResult(sqlmock.NewResult(0, 1))
	f.mock.ExpectCommit()

	result, err := f.trips.CompleteTrip(ctx, "trip-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.Trip.Status != domain.TripStatusCompleted {
		t.Errorf("expected COMPLETED, got %s", result.Trip.Status)
	}
	if result.Trip.CompletedAt.IsZero() {
		t.Error("completed trip must carry a completion time")
	}
	for _, member := range result.Members {
		if member.Status != domain.RequestStatusCompleted {
			t.Errorf("member %s expected COMPLETED, got %s", member.ID, member.Status)
		}
	}

	if err := f.mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet sql expectations: %v", err)
	}
}

func TestCompleteTrip_RequiresAllDelivered(t *testing.T) {
	ctx := context.Background()
	f := newTripFixture(t)

	f.addActiveTrip("trip-1", "driver-1", "vehicle-1", []string{"req-1", "req-2"})
	f.requestRepo.GetRequest("req-1").DeliveryStatus = domain.DeliveryStatusDelivered
	// req-2 still on board.

	_, err := f.trips.CompleteTrip(ctx, "trip-1")
	if !errors.Is(err, service.ErrIncompleteDelivery) {
		t.Errorf("expected ErrIncompleteDelivery, got %v", err)
	}

	if err := f.mock.ExpectationsWereMet(); err != nil {
		t.Errorf("no sql must run before the delivery check: %v", err)
	}
}

func TestCancelTrip_RevertsMembersToClaimed(t *testing.T) {
	ctx := context.Background()
	f := newTripFixture(t)

	f.driverRepo.AddDriver(&domain.Driver{ID: "driver-1", Name: "Grace", Status: domain.DriverStatusOnTrip})
	f.addActiveTrip("trip-1", "driver-1", "vehicle-1", []string{"req-1", "req-2"})

	f.mock.ExpectBegin()
	f.mock.ExpectExec("UPDATE trips SET status").WillReturnResult(sqlmock.NewResult(0, 1))
	f.mock.ExpectExec("UPDATE trip_requests SET").WillReturnResult(sqlmock.NewResult(0, 1))
	f.mock.ExpectExec("UPDATE trip_requests SET").WillReturnResult(sqlmock.NewResult(0, 1))
	f.mock.ExpectExec("UPDATE drivers SET status").WillReturnResult(sqlmock.NewResult(0, 1))
	f.mock.ExpectCommit()

	result, err := f.trips.CancelTrip(ctx, "trip-1", "admin-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.Trip.Status != domain.TripStatusCancelled {
		t.Errorf("expected CANCELLED, got %s", result.Trip.Status)
	}
	for _, member := range result.Members {
		if member.Status != domain.RequestStatusClaimed {
			t.Errorf("member %s expected CLAIMED after cancel, got %s", member.ID, member.Status)
		}
		if member.TripID != "" {
			t.Errorf("member %s must no longer reference the trip", member.ID)
		}
	}

	if err := f.mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet sql expectations: %v", err)
	}
}

func TestTripLifecycle_DeliverAllThenComplete(t *testing.T) {
	ctx := context.Background()
	f := newTripFixture(t)

	f.driverRepo.AddDriver(&domain.Driver{ID: "driver-1", Name: "Grace", Status: domain.DriverStatusOnTrip})
	f.addActiveTrip("trip-1", "driver-1", "vehicle-1", []string{"req-1", "req-2"})

	if _, err := f.trips.MarkDelivered(ctx, "trip-1", "req-1"); err != nil {
		t.Fatalf("deliver req-1: unexpected error: %v", err)
	}

	// req-2 is still on board, so the trip cannot finish yet.
	if _, err := f.trips.CompleteTrip(ctx, "trip-1"); !errors.Is(err, service.ErrIncompleteDelivery) {
		t.Fatalf("expected ErrIncompleteDelivery, got %v", err)
	}

	if _, err := f.trips.MarkDelivered(ctx, "trip-1", "req-2"); err != nil {
		t.Fatalf("deliver req-2: unexpected error: %v", err)
	}

	f.mock.ExpectBegin()
	f.mock.ExpectExec("UPDATE trips SET status").WillReturnResult(sqlmock.NewResult(0, 1))
	f.mock.ExpectExec("UPDATE trip_requests SET").WillReturnResult(sqlmock.NewResult(0, 1))
	f.mock.ExpectExec("UPDATE trip_requests SET").WillReturnResult(sqlmock.NewResult(0, 1))
	f.mock.ExpectExec("UPDATE drivers SET status").WillReturnResult(sqlmock.NewResult(0, 1))
	f.mock.ExpectCommit()

	result, err := f.trips.CompleteTrip(ctx, "trip-1")
	if err != nil {
		t.Fatalf("complete: unexpected error: %v", err)
	}
	if result.Trip.Status != domain.TripStatusCompleted {
		t.Errorf("expected COMPLETED, got %s", result.Trip.Status)
	}
	for _, member := range result.Members {
		if member.Status != domain.RequestStatusCompleted {
			t.Errorf("member %s expected COMPLETED, got %s", member.ID, member.Status)
		}
	}

	if err := f.mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet sql expectations: %v", err)
	}
}

func TestCompleteTrip_NotInProgress(t *testing.T) {
	ctx := context.Background()
	f := newTripFixture(t)

	f.tripRepo.AddTrip(&domain.Trip{
		ID:       "trip-1",
		DriverID: "driver-1",
		Status:   domain.TripStatusCompleted,
	})

	_, err := f.trips.CompleteTrip(ctx, "trip-1")
	if !errors.Is(err, service.ErrInvalidTransition) {
		t.Errorf("expected ErrInvalidTransition, got %v", err)
	}
}
