package domain

// DriverStatus represents the current status of a driver.
type DriverStatus string

const (
	DriverStatusAvailable DriverStatus = "AVAILABLE"
	DriverStatusOnTrip    DriverStatus = "ON_TRIP"
	DriverStatusOffDuty   DriverStatus = "OFF_DUTY"
)

// Driver represents a driver in the fleet.
type Driver struct {
	ID     string
	Name   string
	Phone  string
	Status DriverStatus
}
