package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/lib/pq"

	"dispatch/internal/domain"
	"dispatch/internal/repository"
)

// TripRepository is a PostgreSQL implementation of repository.TripRepository.
type TripRepository struct {
	q Querier
}

// NewTripRepository creates a new PostgreSQL trip repository.
func NewTripRepository(db *sql.DB) *TripRepository {
	return &TripRepository{q: db}
}

// NewTripRepositoryWithTx creates a trip repository using a transaction.
func NewTripRepositoryWithTx(tx *sql.Tx) *TripRepository {
	return &TripRepository{q: tx}
}

const tripColumns = `id, driver_id, driver_name, vehicle_id, member_request_ids, status, started_at, completed_at`

// Create persists a new trip. Member request ids keep their slice order.
func (r *TripRepository) Create(ctx context.Context, trip *domain.Trip) error {
	query := `
		INSERT INTO trips (` + tripColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	var completedAt sql.NullTime
	if !trip.CompletedAt.IsZero() {
		completedAt = sql.NullTime{Time: trip.CompletedAt, Valid: true}
	}

	_, err := r.q.ExecContext(ctx, query,
		trip.ID,
		trip.DriverID,
		trip.DriverName,
		trip.VehicleID,
		pq.Array(trip.MemberRequestIDs),
		trip.Status,
		trip.StartedAt,
		completedAt,
	)

	return err
}

// GetByID retrieves a trip by ID.
func (r *TripRepository) GetByID(ctx context.Context, id string) (*domain.Trip, error) {
	query := `SELECT ` + tripColumns + ` FROM trips WHERE id = $1`

	trip, err := scanTrip(r.q.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return trip, nil
}

// GetAll retrieves recent trips.
func (r *TripRepository) GetAll(ctx context.Context) ([]*domain.Trip, error) {
	query := `SELECT ` + tripColumns + ` FROM trips ORDER BY started_at DESC LIMIT 100`

	rows, err := r.q.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var trips []*domain.Trip
	for rows.Next() {
		trip, err := scanTrip(rows)
		if err != nil {
			return nil, err
		}
		trips = append(trips, trip)
	}
	return trips, rows.Err()
}

// GetActiveByDriverID retrieves the in-progress trip for a driver.
func (r *TripRepository) GetActiveByDriverID(ctx context.Context, driverID string) (*domain.Trip, error) {
	query := `SELECT ` + tripColumns + ` FROM trips WHERE driver_id = $1 AND status = $2`

	trip, err := scanTrip(r.q.QueryRowContext(ctx, query, driverID, domain.TripStatusInProgress))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return trip, nil
}

// UpdateStatus transitions a trip between statuses with a conditional write.
// Reaching COMPLETED also stamps completed_at.
func (r *TripRepository) UpdateStatus(ctx context.Context, id string, expected, next domain.TripStatus) error {
	query := `UPDATE trips SET status = $1 WHERE id = $2 AND status = $3`
	if next == domain.TripStatusCompleted {
		query = `UPDATE trips SET status = $1, completed_at = NOW() WHERE id = $2 AND status = $3`
	}

	result, err := r.q.ExecContext(ctx, query, next, id, expected)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		var exists int
		err := r.q.QueryRowContext(ctx, `SELECT 1 FROM trips WHERE id = $1`, id).Scan(&exists)
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

func scanTrip(row rowScanner) (*domain.Trip, error) {
	var trip domain.Trip
	var members pq.StringArray
	var completedAt sql.NullTime

	err := row.Scan(
		&trip.ID,
		&trip.DriverID,
		&trip.DriverName,
		&trip.VehicleID,
		&members,
		&trip.Status,
		&trip.StartedAt,
		&completedAt,
	)
	if err != nil {
		return nil, err
	}

	trip.MemberRequestIDs = []string(members)
	if completedAt.Valid {
		trip.CompletedAt = completedAt.Time
	}

	return &trip, nil
}
