// Package events publishes domain events to an AMQP topic exchange so other
// services (mailers, analytics) can react without polling the database.
package events

import (
	"context"
	"time"

	"backend-navi/internal/logging"
	"backend-navi/internal/metrics"
)

const (
	UserVerificationRequested  = "user.verification_requested"
	UserPasswordResetRequested = "user.password_reset_requested"
	FriendRequestSent          = "friend_request.sent"
	FriendRequestAccepted      = "friend_request.accepted"
	MessageSent                = "message.sent"
	SafetyAlertReported        = "safety_alert.reported"
	TripCompleted              = "trip.completed"
)

type Event struct {
	Type       string    `json:"type"`
	Data       any       `json:"data"`
	OccurredAt time.Time `json:"occurred_at"`
}

type Publisher interface {
	Publish(ctx context.Context, ev Event) error
}

// Noop drops every event. Used when no broker is configured.
type Noop struct{}

func (Noop) Publish(context.Context, Event) error { return nil }

// Emit publishes best-effort: failures are logged, never returned, so a
// broker outage cannot fail the request that produced the event.
func Emit(ctx context.Context, p Publisher, eventType string, data any) {
	if p == nil {
		return
	}
	ev := Event{Type: eventType, Data: data, OccurredAt: time.Now().UTC()}
	if err := p.Publish(ctx, ev); err != nil {
		metrics.EventsPublished.WithLabelValues(eventType, "failure").Inc()
		logging.Ctx(ctx).Warn().Err(err).Str("event", eventType).Msg("publish event")
		return
	}
	metrics.EventsPublished.WithLabelValues(eventType, "success").Inc()
}
