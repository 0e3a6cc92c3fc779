package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"dispatch/internal/domain"
	"dispatch/internal/notify"
	"dispatch/internal/observability"
)

// Transition describes one committed state change for notification purposes.
// Before/After are the request snapshots around the change; Trip and Members
// are set for trip-level transitions.
type Transition struct {
	Kind    domain.NotificationKind
	Before  *domain.TripRequest
	After   *domain.TripRequest
	Trip    *domain.Trip
	Members []*domain.TripRequest
	ActorID string
}

// BuildNotifications derives the ordered set of notifications for a
// transition. It is a pure function: no delivery, no side effects. A no-op
// transition (same status, same assignment, same delivery state) derives
// nothing.
func BuildNotifications(t Transition) []domain.Notification {
	if isNoop(t) {
		return nil
	}

	switch t.Kind {
	case domain.NotificationNewRequest:
		return buildNewRequest(t)
	case domain.NotificationClaimed:
		return buildClaimed(t)
	case domain.NotificationReassigned:
		return buildReassigned(t)
	case domain.NotificationDeleted:
		return buildDeleted(t)
	case domain.NotificationStatusChange:
		return buildStatusChange(t)
	default:
		return nil
	}
}

func isNoop(t Transition) bool {
	if t.Before == nil || t.After == nil {
		return false
	}
	return t.Before.Status == t.After.Status &&
		t.Before.DriverID == t.After.DriverID &&
		t.Before.VehicleID == t.After.VehicleID &&
		t.Before.DeliveryStatus == t.After.DeliveryStatus
}

func buildNewRequest(t Transition) []domain.Notification {
	req := t.After
	body := fmt.Sprintf("%s requests transport from %s to %s", req.PassengerName, req.Origin, req.Destination)
	return []domain.Notification{
		newNotification(t.Kind, domain.RoleDriver, "", "New trip request", body, domain.PriorityHigh, requestPayload(req)),
		newNotification(t.Kind, domain.RoleAdmin, "", "New trip request", body, domain.PriorityMedium, requestPayload(req)),
	}
}

func buildClaimed(t Transition) []domain.Notification {
	req := t.After
	return []domain.Notification{
		newNotification(t.Kind, domain.RoleAdmin, "",
			"Request claimed",
			fmt.Sprintf("%s claimed the request of %s (vehicle %s)", req.DriverName, req.PassengerName, req.VehicleID),
			domain.PriorityMedium, requestPayload(req)),
		newNotification(t.Kind, domain.RolePassenger, req.PassengerID,
			"Driver assigned",
			fmt.Sprintf("%s will pick you up at %s", req.DriverName, req.Origin),
			domain.PriorityHigh, requestPayload(req)),
	}
}

func buildReassigned(t Transition) []domain.Notification {
	req := t.After
	out := []domain.Notification{
		newNotification(t.Kind, domain.RoleDriver, req.DriverID,
			"Request assigned to you",
			fmt.Sprintf("Transport for %s from %s to %s", req.PassengerName, req.Origin, req.Destination),
			domain.PriorityHigh, requestPayload(req)),
	}
	if t.Before != nil && t.Before.DriverID != "" && t.Before.DriverID != req.DriverID {
		out = append(out, newNotification(t.Kind, domain.RoleDriver, t.Before.DriverID,
			"Request reassigned",
			fmt.Sprintf("The request of %s was moved to another vehicle", req.PassengerName),
			domain.PriorityMedium, requestPayload(req)))
	}
	out = append(out, newNotification(t.Kind, domain.RoleAdmin, "",
		"Request reassigned",
		fmt.Sprintf("Request of %s reassigned to %s", req.PassengerName, req.DriverName),
		domain.PriorityLow, requestPayload(req)))
	return out
}

func buildDeleted(t Transition) []domain.Notification {
	req := t.After
	var out []domain.Notification
	if t.Before != nil && t.Before.DriverID != "" {
		out = append(out, newNotification(t.Kind, domain.RoleDriver, t.Before.DriverID,
			"Request cancelled",
			fmt.Sprintf("The request of %s was cancelled", req.PassengerName),
			domain.PriorityHigh, requestPayload(req)))
	}
	out = append(out,
		newNotification(t.Kind, domain.RoleAdmin, "",
			"Request cancelled",
			fmt.Sprintf("Request of %s was cancelled", req.PassengerName),
			domain.PriorityLow, requestPayload(req)),
		newNotification(t.Kind, domain.RolePassenger, req.PassengerID,
			"Request cancelled",
			"Your transport request was cancelled",
			domain.PriorityMedium, requestPayload(req)),
	)
	return out
}

func buildStatusChange(t Transition) []domain.Notification {
	if t.Trip != nil {
		return buildTripStatusChange(t)
	}

	req := t.After
	out := []domain.Notification{
		newNotification(t.Kind, domain.RolePassenger, req.PassengerID,
			"Request updated",
			fmt.Sprintf("Your request is now %s", req.Status),
			domain.PriorityMedium, requestPayload(req)),
		newNotification(t.Kind, domain.RoleAdmin, "",
			"Request updated",
			fmt.Sprintf("Request of %s is now %s", req.PassengerName, req.Status),
			domain.PriorityLow, requestPayload(req)),
	}
	if req.DriverID != "" {
		out = append(out, newNotification(t.Kind, domain.RoleDriver, req.DriverID,
			"Request updated",
			fmt.Sprintf("Request of %s is now %s", req.PassengerName, req.Status),
			domain.PriorityMedium, requestPayload(req)))
	}
	return out
}

func buildTripStatusChange(t Transition) []domain.Notification {
	trip := t.Trip
	payload := map[string]any{
		"trip_id":    trip.ID,
		"driver_id":  trip.DriverID,
		"vehicle_id": trip.VehicleID,
		"status":     string(trip.Status),
		"members":    len(trip.MemberRequestIDs),
	}

	out := []domain.Notification{
		newNotification(t.Kind, domain.RoleDriver, trip.DriverID,
			"Trip "+tripStatusWord(trip.Status),
			fmt.Sprintf("Trip with %d riders is %s", len(trip.MemberRequestIDs), tripStatusWord(trip.Status)),
			domain.PriorityHigh, payload),
		newNotification(t.Kind, domain.RoleAdmin, "",
			"Trip "+tripStatusWord(trip.Status),
			fmt.Sprintf("%s's trip (vehicle %s) is %s", trip.DriverName, trip.VehicleID, tripStatusWord(trip.Status)),
			domain.PriorityMedium, payload),
	}
	for _, member := range t.Members {
		out = append(out, newNotification(t.Kind, domain.RolePassenger, member.PassengerID,
			"Trip "+tripStatusWord(trip.Status),
			fmt.Sprintf("Your trip to %s is %s", member.Destination, tripStatusWord(trip.Status)),
			domain.PriorityHigh, payload))
	}
	return out
}

func tripStatusWord(s domain.TripStatus) string {
	switch s {
	case domain.TripStatusInProgress:
		return "underway"
	case domain.TripStatusCompleted:
		return "completed"
	case domain.TripStatusCancelled:
		return "cancelled"
	default:
		return string(s)
	}
}

func requestPayload(req *domain.TripRequest) map[string]any {
	payload := map[string]any{
		"request_id":   req.ID,
		"passenger_id": req.PassengerID,
		"origin":       req.Origin,
		"destination":  req.Destination,
		"status":       string(req.Status),
	}
	if req.DriverID != "" {
		payload["driver_id"] = req.DriverID
	}
	if req.VehicleID != "" {
		payload["vehicle_id"] = req.VehicleID
	}
	if req.TripID != "" {
		payload["trip_id"] = req.TripID
	}
	return payload
}

func newNotification(kind domain.NotificationKind, role domain.RecipientRole, recipientID, title, body string, priority domain.NotificationPriority, payload map[string]any) domain.Notification {
	return domain.Notification{
		ID:            uuid.New().String(),
		Kind:          kind,
		RecipientRole: role,
		RecipientID:   recipientID,
		Title:         title,
		Body:          body,
		Payload:       payload,
		Priority:      priority,
		CreatedAt:     time.Now(),
	}
}

// Fanout derives notifications for transitions and hands them to the
// configured sinks. Delivery is fire-and-forget relative to the state
// transition: failures are logged and counted, never returned as an error.
type Fanout struct {
	logger *slog.Logger
	sinks  []notify.Sink
}

// NewFanout creates a Fanout delivering through the given sinks.
func NewFanout(logger *slog.Logger, sinks ...notify.Sink) *Fanout {
	return &Fanout{logger: logger, sinks: sinks}
}

// Publish derives the transition's notifications and delivers each through
// every sink in order. It returns the number of failed deliveries as a
// secondary signal; the caller's transition has already committed.
func (f *Fanout) Publish(ctx context.Context, t Transition) int {
	notifications := BuildNotifications(t)
	if len(notifications) == 0 {
		return 0
	}

	failed := 0
	for _, n := range notifications {
		for _, sink := range f.sinks {
			err := sink.Deliver(ctx, n)
			if err == nil {
				observability.NotificationsTotal.WithLabelValues(sink.Name(), "ok").Inc()
				continue
			}
			if errors.Is(err, notify.ErrNoSession) {
				// Recipient not connected to this transport; other sinks
				// still carry the message.
				observability.NotificationsTotal.WithLabelValues(sink.Name(), "skipped").Inc()
				continue
			}
			failed++
			observability.NotificationsTotal.WithLabelValues(sink.Name(), "error").Inc()
			f.logger.WarnContext(ctx, "notification delivery failed",
				"sink", sink.Name(),
				"kind", n.Kind,
				"recipient_role", n.RecipientRole,
				"recipient_id", n.RecipientID,
				"error", err,
			)
		}
	}
	return failed
}
