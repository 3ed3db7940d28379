// internal/domain/webhook/store.go
package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/your-org/shopsphere-backend/internal/pkg/apperrors"
)

// Store persists webhook events and their delivery bookkeeping
type Store struct {
	db  *gorm.DB
	now func() time.Time
}

// NewStore creates a new webhook event store
func NewStore(db *gorm.DB) *Store {
	return &Store{db: db, now: time.Now}
}

// WithTx returns a store bound to an open transaction
func (s *Store) WithTx(tx *gorm.DB) *Store {
	return &Store{db: tx, now: s.now}
}

// Record inserts a new undelivered event and returns its id
func (s *Store) Record(ctx context.Context, event string, payload json.RawMessage) (uint, error) {
	if event == "" {
		event = EventUnknown
	}
	if len(payload) == 0 {
		payload = json.RawMessage("{}")
	}
	if !json.Valid(payload) {
		return 0, fmt.Errorf("payload is not valid JSON: %w", apperrors.ErrInvalidArgument)
	}

	ev := &WebhookEvent{
		Event:   event,
		Payload: datatypes.JSON(payload),
	}
	if err := s.db.WithContext(ctx).Create(ev).Error; err != nil {
		return 0, fmt.Errorf("failed to record webhook event: %w", err)
	}
	return ev.ID, nil
}

// Get loads one event
func (s *Store) Get(ctx context.Context, id uint) (*WebhookEvent, error) {
	var ev WebhookEvent
	if err := s.db.WithContext(ctx).First(&ev, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("webhook event %d: %w", id, apperrors.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to load webhook event %d: %w", id, err)
	}
	return &ev, nil
}

// MarkAttempt increments attempts and stamps last_attempt in a single UPDATE
func (s *Store) MarkAttempt(ctx context.Context, id uint) error {
	res := s.db.WithContext(ctx).
		Model(&WebhookEvent{}).
		Where("id = ?", id).
		UpdateColumns(map[string]interface{}{
			"attempts":     gorm.Expr("attempts + 1"),
			"last_attempt": s.now().UTC(),
		})
	return checkAffected(res, id, "mark attempt")
}

// ClaimAttempt increments attempts like MarkAttempt, but only while the event is
// undelivered, not abandoned and below maxAttempts. It returns the new count, or
// false when the row was not claimed.
func (s *Store) ClaimAttempt(ctx context.Context, id uint, maxAttempts int) (int, bool, error) {
	var attempts []int
	err := s.db.WithContext(ctx).Raw(
		`UPDATE webhook_events SET attempts = attempts + 1, last_attempt = ?
		WHERE id = ? AND delivered = false AND abandoned_at IS NULL AND attempts < ?
		RETURNING attempts`,
		s.now().UTC(), id, maxAttempts,
	).Scan(&attempts).Error
	if err != nil {
		return 0, false, fmt.Errorf("failed to claim attempt for webhook event %d: %w", id, err)
	}
	if len(attempts) == 0 {
		return 0, false, nil
	}
	return attempts[0], true, nil
}

// MarkDelivered flips delivered to true. Calling it again changes nothing.
func (s *Store) MarkDelivered(ctx context.Context, id uint) error {
	res := s.db.WithContext(ctx).
		Model(&WebhookEvent{}).
		Where("id = ?", id).
		UpdateColumn("delivered", true)
	return checkAffected(res, id, "mark delivered")
}

// MarkAbandoned records that the retry budget was exhausted. The first timestamp wins.
func (s *Store) MarkAbandoned(ctx context.Context, id uint) error {
	res := s.db.WithContext(ctx).
		Model(&WebhookEvent{}).
		Where("id = ?", id).
		UpdateColumn("abandoned_at", gorm.Expr("COALESCE(abandoned_at, ?)", s.now().UTC()))
	return checkAffected(res, id, "mark abandoned")
}

// ListPending returns undelivered, never-attempted, non-abandoned events created before olderThan
func (s *Store) ListPending(ctx context.Context, olderThan time.Time, limit int) ([]WebhookEvent, error) {
	var events []WebhookEvent
	err := s.db.WithContext(ctx).
		Where("delivered = ? AND attempts = 0 AND abandoned_at IS NULL AND created_at < ?", false, olderThan).
		Order("id ASC").
		Limit(limit).
		Find(&events).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list pending webhook events: %w", err)
	}
	return events, nil
}

func checkAffected(res *gorm.DB, id uint, op string) error {
	if res.Error != nil {
		return fmt.Errorf("failed to %s for webhook event %d: %w", op, id, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("webhook event %d: %w", id, apperrors.ErrNotFound)
	}
	return nil
}
