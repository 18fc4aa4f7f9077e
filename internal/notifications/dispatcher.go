package notifications

import (
	"context"
	"encoding/json"
	"time"

	"cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"

	"github.com/humanpalette/palette-backend/pkg/enums"
	"github.com/humanpalette/palette-backend/pkg/logger"
)

// Notification is a push destined for a single profile. Delivery is best
// effort; nothing in the marketplace flow blocks on it.
type Notification struct {
	RecipientID uuid.UUID              `json:"recipient_id"`
	Type        enums.NotificationType `json:"type"`
	Data        map[string]any         `json:"data,omitempty"`
	OccurredAt  time.Time              `json:"occurred_at"`
}

// Dispatcher publishes notifications without surfacing failures to the
// caller. Critical events travel through the outbox instead.
type Dispatcher interface {
	Dispatch(ctx context.Context, notification Notification)
}

type dispatcher struct {
	logg      *logger.Logger
	publisher *pubsub.Publisher
}

// NewDispatcher builds a Pub/Sub backed dispatcher. A nil publisher yields a
// dispatcher that only logs, which keeps local development working without
// GCP credentials.
func NewDispatcher(logg *logger.Logger, publisher *pubsub.Publisher) Dispatcher {
	return &dispatcher{logg: logg, publisher: publisher}
}

func (d *dispatcher) Dispatch(ctx context.Context, notification Notification) {
	if notification.OccurredAt.IsZero() {
		notification.OccurredAt = time.Now().UTC()
	}

	logCtx := ctx
	if d.logg != nil {
		logCtx = d.logg.WithFields(ctx, map[string]any{
			"recipient_id":      notification.RecipientID.String(),
			"notification_type": notification.Type,
		})
	}

	payload, err := json.Marshal(notification)
	if err != nil {
		if d.logg != nil {
			d.logg.Error(logCtx, "notification payload marshal failed", err)
		}
		return
	}

	if d.publisher == nil {
		if d.logg != nil {
			d.logg.Info(logCtx, "notification publisher not configured, dropping")
		}
		return
	}

	result := d.publisher.Publish(ctx, &pubsub.Message{
		Data: payload,
		Attributes: map[string]string{
			"type":         string(notification.Type),
			"recipient_id": notification.RecipientID.String(),
		},
	})

	logg := d.logg
	go func() {
		if _, err := result.Get(context.Background()); err != nil && logg != nil {
			logg.Error(logCtx, "notification publish failed", err)
		}
	}()
}
