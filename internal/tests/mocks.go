package tests

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"dispatch/internal/domain"
	"dispatch/internal/repository"
)

// ──────────────────────────────────────────────
// MOCK REQUEST REPOSITORY
// ──────────────────────────────────────────────

// MockRequestRepository is a mock implementation of RequestRepository. Its
// UpdateIf checks the expected status and applies the patch under one lock,
// mirroring the single-statement conditional write of the SQL implementation.
type MockRequestRepository struct {
	mu       sync.RWMutex
	requests map[string]*domain.TripRequest

	// Counters for verification
	CreateCallCount   int32
	UpdateIfCallCount int32

	// Error injection
	CreateError   error
	GetByIDError  error
	UpdateIfError error
	CountError    error
}

// NewMockRequestRepository creates a new mock request repository.
func NewMockRequestRepository() *MockRequestRepository {
	return &MockRequestRepository{
		requests: make(map[string]*domain.TripRequest),
	}
}

// AddRequest seeds a request into the mock repository.
func (m *MockRequestRepository) AddRequest(req *domain.TripRequest) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests[req.ID] = req
}

func (m *MockRequestRepository) Create(ctx context.Context, req *domain.TripRequest) error {
	atomic.AddInt32(&m.CreateCallCount, 1)
	if m.CreateError != nil {
		return m.CreateError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests[req.ID] = req
	return nil
}

func (m *MockRequestRepository) GetByID(ctx context.Context, id string) (*domain.TripRequest, error) {
	if m.GetByIDError != nil {
		return nil, m.GetByIDError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	req, ok := m.requests[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	// Return a copy to avoid mutation issues.
	copy := *req
	return &copy, nil
}

func (m *MockRequestRepository) ListByStatus(ctx context.Context, status domain.RequestStatus) ([]*domain.TripRequest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []*domain.TripRequest
	for _, req := range m.requests {
		if req.Status == status {
			copy := *req
			result = append(result, &copy)
		}
	}
	return result, nil
}

func (m *MockRequestRepository) ListByPassenger(ctx context.Context, passengerID string) ([]*domain.TripRequest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []*domain.TripRequest
	for _, req := range m.requests {
		if req.PassengerID == passengerID {
			copy := *req
			result = append(result, &copy)
		}
	}
	return result, nil
}

func (m *MockRequestRepository) ListClaimedByDriver(ctx context.Context, driverID string) ([]*domain.TripRequest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []*domain.TripRequest
	for _, req := range m.requests {
		if req.DriverID == driverID && req.Status == domain.RequestStatusClaimed {
			copy := *req
			result = append(result, &copy)
		}
	}
	return result, nil
}

func (m *MockRequestRepository) CountActiveByVehicle(ctx context.Context, vehicleID, excludeID string) (int, error) {
	if m.CountError != nil {
		return 0, m.CountError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	count := 0
	for _, req := range m.requests {
		if req.VehicleID != vehicleID {
			continue
		}
		if excludeID != "" && req.ID == excludeID {
			continue
		}
		if req.Status == domain.RequestStatusClaimed || req.Status == domain.RequestStatusInTrip {
			count++
		}
	}
	return count, nil
}

func (m *MockRequestRepository) UpdateIf(ctx context.Context, id string, expected domain.RequestStatus, patch repository.RequestPatch) error {
	atomic.AddInt32(&m.UpdateIfCallCount, 1)
	if m.UpdateIfError != nil {
		return m.UpdateIfError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	req, ok := m.requests[id]
	if !ok {
		return repository.ErrNotFound
	}
	if req.Status != expected {
		return repository.ErrStatusConflict
	}
	if patch.Status != nil {
		req.Status = *patch.Status
	}
	if patch.DriverID != nil {
		req.DriverID = *patch.DriverID
	}
	if patch.DriverName != nil {
		req.DriverName = *patch.DriverName
	}
	if patch.VehicleID != nil {
		req.VehicleID = *patch.VehicleID
	}
	if patch.TripID != nil {
		req.TripID = *patch.TripID
	}
	if patch.DeliveryStatus != nil {
		req.DeliveryStatus = *patch.DeliveryStatus
	}
	return nil
}

// GetRequest returns the stored request for test assertions.
func (m *MockRequestRepository) GetRequest(id string) *domain.TripRequest {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.requests[id]
}

// ──────────────────────────────────────────────
// MOCK TRIP REPOSITORY
// ──────────────────────────────────────────────

// MockTripRepository is a mock implementation of TripRepository.
type MockTripRepository struct {
	mu    sync.RWMutex
	trips map[string]*domain.Trip

	CreateCallCount int32

	CreateError       error
	UpdateStatusError error
}

// NewMockTripRepository creates a new mock trip repository.
func NewMockTripRepository() *MockTripRepository {
	return &MockTripRepository{
		trips: make(map[string]*domain.Trip),
	}
}

// AddTrip seeds a trip into the mock repository.
func (m *MockTripRepository) AddTrip(trip *domain.Trip) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.trips[trip.ID] = trip
}

func (m *MockTripRepository) Create(ctx context.Context, trip *domain.Trip) error {
	atomic.AddInt32(&m.CreateCallCount, 1)
	if m.CreateError != nil {
		return m.CreateError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.trips[trip.ID] = trip
	return nil
}

func (m *MockTripRepository) GetByID(ctx context.Context, id string) (*domain.Trip, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	trip, ok := m.trips[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copy := *trip
	return &copy, nil
}

func (m *MockTripRepository) GetAll(ctx context.Context) ([]*domain.Trip, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	result := make([]*domain.Trip, 0, len(m.trips))
	for _, t := range m.trips {
		copy := *t
		result = append(result, &copy)
	}
	return result, nil
}

func (m *MockTripRepository) GetActiveByDriverID(ctx context.Context, driverID string) (*domain.Trip, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, t := range m.trips {
		if t.DriverID == driverID && t.Status == domain.TripStatusInProgress {
			copy := *t
			return &copy, nil
		}
	}
	return nil, nil
}

func (m *MockTripRepository) UpdateStatus(ctx context.Context, id string, expected, next domain.TripStatus) error {
	if m.UpdateStatusError != nil {
		return m.UpdateStatusError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	trip, ok := m.trips[id]
	if !ok {
		return repository.ErrNotFound
	}
	if trip.Status != expected {
		return repository.ErrStatusConflict
	}
	trip.Status = next
	return nil
}

// ──────────────────────────────────────────────
// MOCK VEHICLE REPOSITORY
// ──────────────────────────────────────────────

// MockVehicleRepository is a mock implementation of VehicleRepository.
type MockVehicleRepository struct {
	mu       sync.RWMutex
	vehicles map[string]*domain.Vehicle

	// Error injection
	GetByIDError error
}

// NewMockVehicleRepository creates a new mock vehicle repository.
func NewMockVehicleRepository() *MockVehicleRepository {
	return &MockVehicleRepository{
		vehicles: make(map[string]*domain.Vehicle),
	}
}

// AddVehicle seeds a vehicle into the mock repository.
func (m *MockVehicleRepository) AddVehicle(vehicle *domain.Vehicle) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.vehicles[vehicle.ID] = vehicle
}

func (m *MockVehicleRepository) GetByID(ctx context.Context, id string) (*domain.Vehicle, error) {
	if m.GetByIDError != nil {
		return nil, m.GetByIDError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	vehicle, ok := m.vehicles[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copy := *vehicle
	return &copy, nil
}

func (m *MockVehicleRepository) GetAll(ctx context.Context) ([]*domain.Vehicle, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	result := make([]*domain.Vehicle, 0, len(m.vehicles))
	for _, v := range m.vehicles {
		copy := *v
		result = append(result, &copy)
	}
	return result, nil
}

// ──────────────────────────────────────────────
// MOCK DRIVER REPOSITORY
// ──────────────────────────────────────────────

// MockDriverRepository is a mock implementation of DriverRepository.
type MockDriverRepository struct {
	mu      sync.RWMutex
	drivers map[string]*domain.Driver

	UpdateStatusCallCount int32

	UpdateStatusError error
}

// NewMockDriverRepository creates a new mock driver repository.
func NewMockDriverRepository() *MockDriverRepository {
	return &MockDriverRepository{
		drivers: make(map[string]*domain.Driver),
	}
}

// AddDriver seeds a driver into the mock repository.
func (m *MockDriverRepository) AddDriver(driver *domain.Driver) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.drivers[driver.ID] = driver
}

func (m *MockDriverRepository) Create(ctx context.Context, driver *domain.Driver) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.drivers[driver.ID] = driver
	return nil
}

func (m *MockDriverRepository) GetByID(ctx context.Context, id string) (*domain.Driver, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	driver, ok := m.drivers[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copy := *driver
	return &copy, nil
}

func (m *MockDriverRepository) GetByPhone(ctx context.Context, phone string) (*domain.Driver, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, d := range m.drivers {
		if d.Phone == phone {
			copy := *d
			return &copy, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *MockDriverRepository) GetAll(ctx context.Context) ([]*domain.Driver, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	result := make([]*domain.Driver, 0, len(m.drivers))
	for _, d := range m.drivers {
		copy := *d
		result = append(result, &copy)
	}
	return result, nil
}

func (m *MockDriverRepository) UpdateStatus(ctx context.Context, id string, status domain.DriverStatus) error {
	atomic.AddInt32(&m.UpdateStatusCallCount, 1)
	if m.UpdateStatusError != nil {
		return m.UpdateStatusError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	driver, ok := m.drivers[id]
	if !ok {
		return repository.ErrNotFound
	}
	driver.Status = status
	return nil
}

// ──────────────────────────────────────────────
// MOCK LOCK STORE
// ──────────────────────────────────────────────

// MockLockStore is a mock implementation of LockStoreInterface.
type MockLockStore struct {
	mu    sync.Mutex
	locks map[string]bool

	AcquireCallCount int32

	AcquireError error
}

// NewMockLockStore creates a new mock lock store.
func NewMockLockStore() *MockLockStore {
	return &MockLockStore{
		locks: make(map[string]bool),
	}
}

// HoldLock marks a vehicle lock as already held by someone else.
func (m *MockLockStore) HoldLock(vehicleID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.locks[vehicleID] = true
}

func (m *MockLockStore) AcquireVehicleLock(ctx context.Context, vehicleID string, ttl time.Duration) (bool, error) {
	atomic.AddInt32(&m.AcquireCallCount, 1)
	if m.AcquireError != nil {
		return false, m.AcquireError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.locks[vehicleID] {
		return false, nil
	}
	m.locks[vehicleID] = true
	return true, nil
}

func (m *MockLockStore) ReleaseVehicleLock(ctx context.Context, vehicleID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.locks, vehicleID)
	return nil
}

// ──────────────────────────────────────────────
// CAPTURE SINK
// ──────────────────────────────────────────────

// CaptureSink records delivered notifications for assertions. DeliverError,
// when set, makes every delivery fail.
type CaptureSink struct {
	mu            sync.Mutex
	notifications []domain.Notification

	DeliverError error
}

// NewCaptureSink creates a new capture sink.
func NewCaptureSink() *CaptureSink {
	return &CaptureSink{}
}

func (s *CaptureSink) Name() string { return "capture" }

func (s *CaptureSink) Deliver(ctx context.Context, n domain.Notification) error {
	if s.DeliverError != nil {
		return s.DeliverError
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notifications = append(s.notifications, n)
	return nil
}

// Notifications returns a snapshot of everything delivered so far.
func (s *CaptureSink) Notifications() []domain.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Notification, len(s.notifications))
	copy(out, s.notifications)
	return out
}

// CountByRole counts delivered notifications addressed to the role.
func (s *CaptureSink) CountByRole(role domain.RecipientRole) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for _, n := range s.notifications {
		if n.RecipientRole == role {
			count++
		}
	}
	return count
}
