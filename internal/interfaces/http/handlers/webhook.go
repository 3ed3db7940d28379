// internal/interfaces/http/handlers/webhook.go
package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/your-org/shopsphere-backend/internal/domain/webhook"
)

// WebhookReceiver verifies and records inbound events
type WebhookReceiver interface {
	Receive(ctx context.Context, body []byte, signature string) (uint, error)
}

// EventReader loads stored webhook events
type EventReader interface {
	Get(ctx context.Context, id uint) (*webhook.WebhookEvent, error)
}

// SyncDeliverer makes a single, immediate delivery attempt
type SyncDeliverer interface {
	DeliverSync(ctx context.Context, eventID uint) (bool, error)
}

// WebhookHandler handles webhook receipt and event inspection
type WebhookHandler struct {
	receiver  WebhookReceiver
	events    EventReader
	deliverer SyncDeliverer
}

// NewWebhookHandler creates a new webhook handler
func NewWebhookHandler(receiver WebhookReceiver, events EventReader, deliverer SyncDeliverer) *WebhookHandler {
	return &WebhookHandler{
		receiver:  receiver,
		events:    events,
		deliverer: deliverer,
	}
}

type eventResponse struct {
	*webhook.WebhookEvent
	Status string `json:"status"`
}

// Receive handles POST /webhooks
func (h *WebhookHandler) Receive(c *gin.Context) {
	// The signature covers the exact bytes, so the body is read raw rather than bound
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{
				"error": "Request body too large",
			})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Failed to read request body",
		})
		return
	}

	eventID, err := h.receiver.Receive(c.Request.Context(), body, c.GetHeader(webhook.SignatureHeader))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Event received",
		"data":    gin.H{"event_id": eventID},
	})
}

// GetEvent handles GET /webhooks/events/:id
func (h *WebhookHandler) GetEvent(c *gin.Context) {
	eventID, ok := paramID(c, "id")
	if !ok {
		return
	}

	ev, err := h.events.Get(c.Request.Context(), eventID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Event retrieved successfully",
		"data":    eventResponse{WebhookEvent: ev, Status: ev.Status()},
	})
}

// DeliverEvent handles POST /webhooks/events/:id/deliver
func (h *WebhookHandler) DeliverEvent(c *gin.Context) {
	eventID, ok := paramID(c, "id")
	if !ok {
		return
	}

	delivered, err := h.deliverer.DeliverSync(c.Request.Context(), eventID)
	if err != nil {
		respondError(c, err)
		return
	}
	if !delivered {
		c.JSON(http.StatusBadGateway, gin.H{
			"error": "Delivery attempt failed",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Event delivered",
		"data":    gin.H{"event_id": eventID},
	})
}
