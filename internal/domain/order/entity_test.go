package order

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to OrderStatus
		want     bool
	}{
		{OrderStatusCreated, OrderStatusPaid, true},
		{OrderStatusCreated, OrderStatusCancelled, true},
		{OrderStatusPaid, OrderStatusShipped, true},
		{OrderStatusPaid, OrderStatusCancelled, true},
		{OrderStatusShipped, OrderStatusDelivered, true},
		{OrderStatusDelivered, OrderStatusCompleted, true},
		{OrderStatusCreated, OrderStatusShipped, false},
		{OrderStatusShipped, OrderStatusCancelled, false},
		{OrderStatusCompleted, OrderStatusCreated, false},
		{OrderStatusCancelled, OrderStatusPaid, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.want, CanTransition(tt.from, tt.to))
		})
	}
}

func TestItemsTotal(t *testing.T) {
	o := &Order{Items: []OrderItem{
		{Quantity: 2, Price: decimal.RequireFromString("10.00")},
		{Quantity: 1, Price: decimal.RequireFromString("5.00")},
	}}
	assert.Equal(t, "25.00", o.ItemsTotal().StringFixed(2))
}

func TestIsValidStatus(t *testing.T) {
	assert.True(t, IsValidStatus(OrderStatusPaid))
	assert.False(t, IsValidStatus("refunded"))
}
