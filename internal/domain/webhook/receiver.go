// internal/domain/webhook/receiver.go
package webhook

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/your-org/shopsphere-backend/internal/pkg/apperrors"
	"github.com/your-org/shopsphere-backend/internal/pkg/metrics"
)

// EventRecorder is the part of Store the receiver needs
type EventRecorder interface {
	Record(ctx context.Context, event string, payload json.RawMessage) (uint, error)
}

// EventDispatcher hands a recorded event over for delivery
type EventDispatcher interface {
	Dispatch(ctx context.Context, eventID uint) error
}

// Receiver accepts inbound webhook posts
type Receiver struct {
	secret     string
	store      EventRecorder
	dispatcher EventDispatcher
	log        logrus.FieldLogger
	metrics    *metrics.Metrics
}

func NewReceiver(secret string, store EventRecorder, dispatcher EventDispatcher, log logrus.FieldLogger, m *metrics.Metrics) *Receiver {
	return &Receiver{
		secret:     secret,
		store:      store,
		dispatcher: dispatcher,
		log:        log,
		metrics:    m,
	}
}

// Receive verifies the body signature, stores the event and schedules delivery.
// If scheduling fails the event stays pending and the sweeper picks it up.
func (r *Receiver) Receive(ctx context.Context, body []byte, signature string) (uint, error) {
	if err := VerifySignature(r.secret, body, signature); err != nil {
		r.observe("rejected")
		return 0, err
	}

	var payload map[string]interface{}
	if err := json.Unmarshal(body, &payload); err != nil || payload == nil {
		r.observe("invalid")
		return 0, fmt.Errorf("webhook body must be a JSON object: %w", apperrors.ErrInvalidArgument)
	}

	id, err := r.store.Record(ctx, EventName(payload), body)
	if err != nil {
		return 0, err
	}
	r.observe("accepted")

	if err := r.dispatcher.Dispatch(ctx, id); err != nil {
		r.log.WithError(err).WithField("event_id", id).Error("failed to dispatch received webhook event")
	}
	return id, nil
}

// EventName reads the "event" field of a payload, defaulting to "unknown"
func EventName(payload map[string]interface{}) string {
	if name, ok := payload["event"].(string); ok && name != "" {
		return name
	}
	return EventUnknown
}

func (r *Receiver) observe(result string) {
	if r.metrics != nil {
		r.metrics.WebhookReceived.WithLabelValues(result).Inc()
	}
}
