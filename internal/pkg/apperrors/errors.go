// internal/pkg/apperrors/errors.go
package apperrors

import "errors"

// Sentinel errors shared by the domain services. Wrap them with fmt.Errorf("...: %w", err)
// so the HTTP layer can map them with errors.Is.
var (
	ErrNotFound         = errors.New("not found")
	ErrInvalidArgument  = errors.New("invalid argument")
	ErrEmptyCart        = errors.New("cart is empty")
	ErrInvalidSignature = errors.New("invalid signature")
	ErrInvalidStatus    = errors.New("invalid status transition")
	ErrUnavailable      = errors.New("service temporarily unavailable")
	ErrForbidden        = errors.New("forbidden")
)
