// internal/domain/webhook/deliverer.go
package webhook

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Deliverer pushes one event payload to a subscriber
type Deliverer interface {
	Deliver(ctx context.Context, url string, payload []byte) error
}

// StatusError is returned when the subscriber answers with a non-2xx status
type StatusError struct {
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("subscriber responded with status %d", e.StatusCode)
}

// HTTPDeliverer POSTs payloads as JSON
type HTTPDeliverer struct {
	client *http.Client
}

// NewHTTPDeliverer creates a deliverer whose requests give up after timeout
func NewHTTPDeliverer(timeout time.Duration) *HTTPDeliverer {
	return &HTTPDeliverer{
		client: &http.Client{Timeout: timeout},
	}
}

func (d *HTTPDeliverer) Deliver(ctx context.Context, url string, payload []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to build delivery request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("delivery request failed: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<16))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &StatusError{StatusCode: resp.StatusCode}
	}
	return nil
}
