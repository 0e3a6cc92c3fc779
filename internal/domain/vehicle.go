package domain

// VehicleStatus represents the operational status of a fleet vehicle.
type VehicleStatus string

const (
	VehicleStatusActive      VehicleStatus = "ACTIVE"
	VehicleStatusMaintenance VehicleStatus = "MAINTENANCE"
	VehicleStatusRetired     VehicleStatus = "RETIRED"
)

// Vehicle is fleet master data, referenced read-only by dispatch.
type Vehicle struct {
	ID       string
	Plate    string
	Model    string
	Capacity int
	Status   VehicleStatus
}
