// internal/domain/payment/provider.go
package payment

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/your-org/shopsphere-backend/internal/domain/order"
	"github.com/your-org/shopsphere-backend/internal/pkg/apperrors"
)

// Provider charges an order. Implementations must not block on user interaction:
// checkout calls them inside its transaction.
type Provider interface {
	Name() string
	Charge(ctx context.Context, orderID uint, amount decimal.Decimal) (*order.Payment, error)
}

// StubProvider approves every charge with a fresh provider reference
type StubProvider struct{}

func (StubProvider) Name() string { return order.PaymentProviderStub }

// Charge records a successful payment for the full amount
func (p StubProvider) Charge(_ context.Context, orderID uint, amount decimal.Decimal) (*order.Payment, error) {
	if orderID == 0 {
		return nil, fmt.Errorf("payment needs an order: %w", apperrors.ErrInvalidArgument)
	}
	if amount.IsNegative() {
		return nil, fmt.Errorf("negative amount %s: %w", amount.StringFixed(2), apperrors.ErrInvalidArgument)
	}
	return &order.Payment{
		OrderID:           orderID,
		Provider:          p.Name(),
		ProviderPaymentID: uuid.NewString(),
		Amount:            amount,
		Success:           true,
	}, nil
}
