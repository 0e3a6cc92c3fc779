package notify

import (
	"context"

	"dispatch/internal/domain"
)

// Sink delivers a single notification to one transport. Delivery is
// best-effort; a failed delivery must never affect the state transition that
// produced the notification.
type Sink interface {
	// Name identifies the sink in logs and metrics.
	Name() string

	// Deliver sends one notification. Idempotent receipt is the receiving
	// side's responsibility.
	Deliver(ctx context.Context, n domain.Notification) error
}
