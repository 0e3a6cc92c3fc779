package domain

import "time"

// TripStatus represents the current status of a trip.
type TripStatus string

const (
	TripStatusInProgress TripStatus = "IN_PROGRESS"
	TripStatusCompleted  TripStatus = "COMPLETED"
	TripStatusCancelled  TripStatus = "CANCELLED"
)

// Trip represents one vehicle run carrying a batch of claimed requests.
// MemberRequestIDs keeps acceptance order and never exceeds the vehicle's
// capacity at creation time.
type Trip struct {
	ID               string
	DriverID         string
	DriverName       string
	VehicleID        string
	MemberRequestIDs []string
	Status           TripStatus
	StartedAt        time.Time
	CompletedAt      time.Time
}

// HasMember reports whether the request id is part of this trip.
func (t *Trip) HasMember(requestID string) bool {
	for _, id := range t.MemberRequestIDs {
		if id == requestID {
			return true
		}
	}
	return false
}
