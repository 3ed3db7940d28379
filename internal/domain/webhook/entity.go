// internal/domain/webhook/entity.go
package webhook

import (
	"time"

	"gorm.io/datatypes"
)

// Event names emitted by the core
const (
	EventOrderCreated = "order.created"
	EventUnknown      = "unknown"
)

// WebhookEvent is a durable record of an event awaiting or having received delivery.
// Delivered flips to true at most once; rows are never deleted.
type WebhookEvent struct {
	ID          uint           `gorm:"primaryKey" json:"id"`
	Event       string         `gorm:"not null;size:100;index" json:"event"`
	Payload     datatypes.JSON `gorm:"type:jsonb;not null" json:"payload"`
	Delivered   bool           `gorm:"not null;default:false" json:"delivered"`
	Attempts    int            `gorm:"not null;default:0" json:"attempts"`
	LastAttempt *time.Time     `json:"last_attempt"`
	AbandonedAt *time.Time     `json:"abandoned_at"`
	CreatedAt   time.Time      `gorm:"index" json:"created_at"`
}

// TableName overrides the table name
func (WebhookEvent) TableName() string {
	return "webhook_events"
}

// IsAbandoned reports whether the retry budget ran out for this event
func (e *WebhookEvent) IsAbandoned() bool {
	return e.AbandonedAt != nil
}

// Status is a coarse view of the delivery state machine
func (e *WebhookEvent) Status() string {
	switch {
	case e.Delivered:
		return "delivered"
	case e.AbandonedAt != nil:
		return "abandoned"
	case e.Attempts > 0:
		return "retrying"
	default:
		return "pending"
	}
}
