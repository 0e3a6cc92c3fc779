package domain

import "time"

// RequestStatus represents the current status of a trip request.
type RequestStatus string

const (
	RequestStatusPending   RequestStatus = "PENDING"
	RequestStatusClaimed   RequestStatus = "CLAIMED"
	RequestStatusInTrip    RequestStatus = "IN_TRIP"
	RequestStatusCompleted RequestStatus = "COMPLETED"
	RequestStatusCancelled RequestStatus = "CANCELLED"
	RequestStatusRejected  RequestStatus = "REJECTED"
)

// Terminal reports whether the status admits no further transitions.
func (s RequestStatus) Terminal() bool {
	return s == RequestStatusCompleted || s == RequestStatusCancelled || s == RequestStatusRejected
}

// DestinationType classifies where a passenger is headed.
type DestinationType string

const (
	DestinationHome     DestinationType = "HOME"
	DestinationSchool   DestinationType = "SCHOOL"
	DestinationActivity DestinationType = "ACTIVITY"
	DestinationOther    DestinationType = "OTHER"
)

// DeliveryStatus tracks whether a rider has been dropped off during a trip.
type DeliveryStatus string

const (
	DeliveryStatusPending   DeliveryStatus = "PENDING"
	DeliveryStatusDelivered DeliveryStatus = "DELIVERED"
)

// TripRequest represents one passenger's ask for transport.
//
// DriverID/DriverName/VehicleID are set only while the request is claimed or
// beyond; TripID is set only once the request is part of a trip.
type TripRequest struct {
	ID              string
	PassengerID     string
	PassengerName   string
	Origin          string
	Destination     string
	DestinationType DestinationType
	Status          RequestStatus
	DriverID        string
	DriverName      string
	VehicleID       string
	TripID          string
	DeliveryStatus  DeliveryStatus
	RequestedAt     time.Time
}
