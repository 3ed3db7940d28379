// internal/infrastructure/database/postgres/errors.go
package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

// ErrorClass groups PostgreSQL failures by how callers should react
type ErrorClass int

const (
	ErrorClassPermanent ErrorClass = iota
	ErrorClassTransient
	ErrorClassDeadlock
	ErrorClassSerialization
)

func (c ErrorClass) String() string {
	switch c {
	case ErrorClassTransient:
		return "transient"
	case ErrorClassDeadlock:
		return "deadlock"
	case ErrorClassSerialization:
		return "serialization"
	default:
		return "permanent"
	}
}

// ClassifyError inspects the SQLSTATE carried by a pgx error
func ClassifyError(err error) ErrorClass {
	if err == nil {
		return ErrorClassPermanent
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "40001":
			return ErrorClassSerialization
		case "40P01":
			return ErrorClassDeadlock
		case "55P03", "57014", "53300":
			return ErrorClassTransient
		}
		return ErrorClassPermanent
	}

	if pgconn.Timeout(err) || errors.Is(err, context.DeadlineExceeded) {
		return ErrorClassTransient
	}

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrorClassPermanent
	}

	return ErrorClassPermanent
}

// IsRetryable reports whether the operation may succeed if simply tried again
func IsRetryable(err error) bool {
	class := ClassifyError(err)
	return class == ErrorClassTransient ||
		class == ErrorClassDeadlock ||
		class == ErrorClassSerialization
}
