package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"dispatch/internal/domain"
	"dispatch/internal/repository"
)

// RequestRepository is a PostgreSQL implementation of repository.RequestRepository.
type RequestRepository struct {
	q Querier
}

// NewRequestRepository creates a new PostgreSQL request repository.
func NewRequestRepository(db *sql.DB) *RequestRepository {
	return &RequestRepository{q: db}
}

// NewRequestRepositoryWithTx creates a request repository using a transaction.
func NewRequestRepositoryWithTx(tx *sql.Tx) *RequestRepository {
	return &RequestRepository{q: tx}
}

const requestColumns = `id, passenger_id, passenger_name, origin, destination, destination_type, status, driver_id, driver_name, vehicle_id, trip_id, delivery_status, requested_at`

// Create persists a new trip request.
func (r *RequestRepository) Create(ctx context.Context, req *domain.TripRequest) error {
	query := `
		INSERT INTO trip_requests (` + requestColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`

	_, err := r.q.ExecContext(ctx, query,
		req.ID,
		req.PassengerID,
		req.PassengerName,
		req.Origin,
		req.Destination,
		req.DestinationType,
		req.Status,
		nullString(req.DriverID),
		nullString(req.DriverName),
		nullString(req.VehicleID),
		nullString(req.TripID),
		nullString(string(req.DeliveryStatus)),
		req.RequestedAt,
	)

	return err
}

// GetByID retrieves a trip request by ID.
func (r *RequestRepository) GetByID(ctx context.Context, id string) (*domain.TripRequest, error) {
	query := `SELECT ` + requestColumns + ` FROM trip_requests WHERE id = $1`

	req, err := scanRequest(r.q.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return req, nil
}

// ListByStatus retrieves requests in the given status, oldest first.
func (r *RequestRepository) ListByStatus(ctx context.Context, status domain.RequestStatus) ([]*domain.TripRequest, error) {
	query := `SELECT ` + requestColumns + ` FROM trip_requests WHERE status = $1 ORDER BY requested_at ASC LIMIT 200`
	return r.list(ctx, query, status)
}

// ListByPassenger retrieves a passenger's requests, newest first.
func (r *RequestRepository) ListByPassenger(ctx context.Context, passengerID string) ([]*domain.TripRequest, error) {
	query := `SELECT ` + requestColumns + ` FROM trip_requests WHERE passenger_id = $1 ORDER BY requested_at DESC LIMIT 100`
	return r.list(ctx, query, passengerID)
}

// ListClaimedByDriver retrieves a driver's currently claimed requests in claim order.
func (r *RequestRepository) ListClaimedByDriver(ctx context.Context, driverID string) ([]*domain.TripRequest, error) {
	query := `SELECT ` + requestColumns + ` FROM trip_requests WHERE driver_id = $1 AND status = $2 ORDER BY requested_at ASC`
	return r.list(ctx, query, driverID, domain.RequestStatusClaimed)
}

// CountActiveByVehicle counts CLAIMED and IN_TRIP requests for the vehicle,
// excluding excludeID when non-empty.
func (r *RequestRepository) CountActiveByVehicle(ctx context.Context, vehicleID, excludeID string) (int, error) {
	query := `
		SELECT COUNT(*) FROM trip_requests
		WHERE vehicle_id = $1 AND status IN ($2, $3) AND ($4 = '' OR id <> $4)
	`

	var count int
	err := r.q.QueryRowContext(ctx, query,
		vehicleID,
		domain.RequestStatusClaimed,
		domain.RequestStatusInTrip,
		excludeID,
	).Scan(&count)
	if err != nil {
		return 0, err
	}
	return count, nil
}

// UpdateIf applies the patch only if the request's current status equals
// expected. The status check happens in the same statement as the write, so
// two concurrent claimers can never both see PENDING.
func (r *RequestRepository) UpdateIf(ctx context.Context, id string, expected domain.RequestStatus, patch repository.RequestPatch) error {
	var sets []string
	var args []any

	add := func(column string, value any) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if patch.Status != nil {
		add("status", *patch.Status)
	}
	if patch.DriverID != nil {
		add("driver_id", nullString(*patch.DriverID))
	}
	if patch.DriverName != nil {
		add("driver_name", nullString(*patch.DriverName))
	}
	if patch.VehicleID != nil {
		add("vehicle_id", nullString(*patch.VehicleID))
	}
	if patch.TripID != nil {
		add("trip_id", nullString(*patch.TripID))
	}
	if patch.DeliveryStatus != nil {
		add("delivery_status", nullString(string(*patch.DeliveryStatus)))
	}

	if len(sets) == 0 {
		return nil
	}

	args = append(args, id, expected)
	query := fmt.Sprintf(
		"UPDATE trip_requests SET %s WHERE id = $%d AND status = $%d",
		strings.Join(sets, ", "), len(args)-1, len(args),
	)

	result, err := r.q.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		// Distinguish a missing row from a lost race.
		var exists int
		err := r.q.QueryRowContext(ctx, `SELECT 1 FROM trip_requests WHERE id = $1`, id).Scan(&exists)
		if errors.Is(err, sql.ErrNoRows) {
			return repository.ErrNotFound
		}
		if err != nil {
			return err
		}
		return repository.ErrStatusConflict
	}

	return nil
}

func (r *RequestRepository) list(ctx context.Context, query string, args ...any) ([]*domain.TripRequest, error) {
	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var requests []*domain.TripRequest
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		requests = append(requests, req)
	}
	return requests, rows.Err()
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanRequest(row rowScanner) (*domain.TripRequest, error) {
	var req domain.TripRequest
	var driverID, driverName, vehicleID, tripID, deliveryStatus sql.NullString

	err := row.Scan(
		&req.ID,
		&req.PassengerID,
		&req.PassengerName,
		&req.Origin,
		&req.Destination,
		&req.DestinationType,
		&req.Status,
		&driverID,
		&driverName,
		&vehicleID,
		&tripID,
		&deliveryStatus,
		&req.RequestedAt,
	)
	if err != nil {
		return nil, err
	}

	req.DriverID = driverID.String
	req.DriverName = driverName.String
	req.VehicleID = vehicleID.String
	req.TripID = tripID.String
	req.DeliveryStatus = domain.DeliveryStatus(deliveryStatus.String)

	return &req, nil
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
