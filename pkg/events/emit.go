package events

import (
	"context"

	"barberline/pkg/logger"
)

// Emit publishes evt and logs a failure instead of returning it. Domain
// operations never fail because an event could not be delivered.
func Emit(ctx context.Context, pub Publisher, log *logger.Logger, evt Event) {
	if pub == nil {
		return
	}
	if err := pub.Publish(ctx, evt); err != nil {
		log.Warn("Failed to publish event",
			"event_type", evt.Type,
			"call_id", evt.CallID,
			"error", err,
		)
	}
}
