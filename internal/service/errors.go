package service

import "errors"

var (
	// ErrInvalidPassengerID is returned when passenger ID is empty.
	ErrInvalidPassengerID = errors.New("invalid passenger id")

	// ErrMissingDestination is returned when a request has no destination.
	ErrMissingDestination = errors.New("destination is required")

	// ErrInvalidRequestID is returned when request ID is empty.
	ErrInvalidRequestID = errors.New("invalid request id")

	// ErrInvalidDriverID is returned when driver ID is empty.
	ErrInvalidDriverID = errors.New("invalid driver id")

	// ErrInvalidVehicleID is returned when vehicle ID is empty.
	ErrInvalidVehicleID = errors.New("invalid vehicle id")

	// ErrInvalidTripID is returned when trip ID is empty.
	ErrInvalidTripID = errors.New("invalid trip id")

	// ErrEmptyBatch is returned when starting a trip with no requests.
	ErrEmptyBatch = errors.New("trip batch is empty")

	// ErrAlreadyClaimed is returned when a claim loses the race: the request
	// was no longer pending at write time.
	ErrAlreadyClaimed = errors.New("request already claimed")

	// ErrInvalidTransition is returned when an operation is not allowed from
	// the request's or trip's current status.
	ErrInvalidTransition = errors.New("invalid state transition")

	// ErrCapacityExceeded is returned when the vehicle has no remaining
	// seats for the operation.
	ErrCapacityExceeded = errors.New("vehicle capacity exceeded")

	// ErrInconsistentBatch is returned when a trip batch spans drivers or
	// vehicles, contains duplicates, or includes a non-claimed request.
	ErrInconsistentBatch = errors.New("inconsistent trip batch")

	// ErrIncompleteDelivery is returned when completing a trip while some
	// member is not yet delivered.
	ErrIncompleteDelivery = errors.New("trip has undelivered requests")

	// ErrDriverHasActiveTrip is returned when the driver already has a trip
	// in progress.
	ErrDriverHasActiveTrip = errors.New("driver already has an active trip")

	// ErrVehicleBusy is returned when another claim is evaluating capacity
	// on the same vehicle; the caller may retry shortly.
	ErrVehicleBusy = errors.New("vehicle is being assigned")

	// ErrStoreUnavailable is returned when the backing store cannot be
	// reached; the caller may retry with backoff.
	ErrStoreUnavailable = errors.New("store unavailable")
)
