package domain

import "time"

// NotificationKind classifies the transition a notification describes.
type NotificationKind string

const (
	NotificationNewRequest   NotificationKind = "NEW_REQUEST"
	NotificationClaimed      NotificationKind = "REQUEST_CLAIMED"
	NotificationReassigned   NotificationKind = "REQUEST_REASSIGNED"
	NotificationStatusChange NotificationKind = "STATUS_CHANGE"
	NotificationDeleted      NotificationKind = "REQUEST_DELETED"
)

// RecipientRole identifies who a notification is addressed to.
type RecipientRole string

const (
	RoleDriver    RecipientRole = "DRIVER"
	RoleAdmin     RecipientRole = "ADMIN"
	RolePassenger RecipientRole = "PASSENGER"
)

// NotificationPriority orders delivery urgency.
type NotificationPriority string

const (
	PriorityLow    NotificationPriority = "LOW"
	PriorityMedium NotificationPriority = "MEDIUM"
	PriorityHigh   NotificationPriority = "HIGH"
)

// Notification is an outbound message describing a state transition.
// RecipientID is empty for role-wide broadcasts.
type Notification struct {
	ID            string
	Kind          NotificationKind
	RecipientRole RecipientRole
	RecipientID   string
	Title         string
	Body          string
	Payload       map[string]any
	Priority      NotificationPriority
	CreatedAt     time.Time
}
