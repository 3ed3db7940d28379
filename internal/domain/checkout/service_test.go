package checkout_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"
	"gorm.io/gorm"

	"github.com/your-org/shopsphere-backend/internal/domain/cart"
	"github.com/your-org/shopsphere-backend/internal/domain/catalog"
	"github.com/your-org/shopsphere-backend/internal/domain/checkout"
	"github.com/your-org/shopsphere-backend/internal/domain/order"
	"github.com/your-org/shopsphere-backend/internal/domain/webhook"
	"github.com/your-org/shopsphere-backend/internal/pkg/apperrors"
	"github.com/your-org/shopsphere-backend/internal/pkg/logger"
	"github.com/your-org/shopsphere-backend/internal/pkg/metrics"
	"github.com/your-org/shopsphere-backend/internal/testutil"
)

type recordingDispatcher struct {
	mu  sync.Mutex
	ids []uint
	err error
}

func (d *recordingDispatcher) Dispatch(ctx context.Context, eventID uint) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.ids = append(d.ids, eventID)
	return d.err
}

type decliningProvider struct{}

func (decliningProvider) Name() string { return "declining" }

func (decliningProvider) Charge(context.Context, uint, decimal.Decimal) (*order.Payment, error) {
	return nil, errors.New("card declined")
}

type checkoutSuite struct {
	suite.Suite

	db         *gorm.DB
	carts      *cart.Service
	events     *webhook.Store
	dispatcher *recordingDispatcher
	svc        *checkout.Service
}

func TestCheckoutSuite(t *testing.T) {
	suite.Run(t, new(checkoutSuite))
}

func (s *checkoutSuite) SetupSuite() {
	s.db = testutil.StartPostgres(s.T())
	s.carts = cart.NewService(s.db, catalog.NewService(catalog.NewGormStore(s.db), nil, 0, logger.Discard(), nil))
	s.events = webhook.NewStore(s.db)
}

func (s *checkoutSuite) SetupTest() {
	testutil.Truncate(s.T(), s.db)
	s.dispatcher = &recordingDispatcher{}
	s.svc = checkout.NewService(s.db, s.events, s.dispatcher, logger.Discard(), metrics.New())
}

func (s *checkoutSuite) TestCheckout_CreatesOrderPaymentAndEvent() {
	ctx := context.Background()
	userID := testutil.RandomUserID()
	v10 := testutil.CreateVariant(s.T(), s.db, "10.00")
	v5 := testutil.CreateVariant(s.T(), s.db, "5.00")

	_, err := s.carts.Add(ctx, userID, v10.ID, 2)
	s.Require().NoError(err)
	_, err = s.carts.Add(ctx, userID, v5.ID, 1)
	s.Require().NoError(err)

	res, err := s.svc.Checkout(ctx, userID, checkout.Request{ShippingAddress: "  221B Baker Street  "})
	s.Require().NoError(err)
	s.Equal(order.OrderStatusCreated, res.Status)
	s.True(res.Total.Equal(decimal.RequireFromString("25.00")), "got %s", res.Total)

	var o order.Order
	s.Require().NoError(s.db.Preload("Items").Preload("Payments").First(&o, res.OrderID).Error)
	s.Equal(userID, o.UserID)
	s.Equal("221B Baker Street", o.ShippingAddress)
	s.True(o.Total.Equal(o.ItemsTotal()), "order total equals the sum of its frozen lines")

	type line struct {
		VariantID uint
		Quantity  int
		Price     string
	}
	var got []line
	for _, item := range o.Items {
		got = append(got, line{item.VariantID, item.Quantity, item.Price.StringFixed(2)})
	}
	want := []line{{v10.ID, 2, "10.00"}, {v5.ID, 1, "5.00"}}
	if diff := cmp.Diff(want, got, cmpopts.SortSlices(func(a, b line) bool { return a.VariantID < b.VariantID })); diff != "" {
		s.Failf("order items mismatch", "(-want +got):\n%s", diff)
	}

	s.Require().Len(o.Payments, 1)
	p := o.Payments[0]
	s.Equal(order.PaymentProviderStub, p.Provider)
	s.NotEmpty(p.ProviderPaymentID)
	s.True(p.Amount.Equal(o.Total))
	s.True(p.Success)

	c, err := s.carts.Get(ctx, userID)
	s.Require().NoError(err)
	s.Empty(c.Items, "cart is emptied")

	ev, err := s.events.Get(ctx, res.EventID)
	s.Require().NoError(err)
	s.Equal(webhook.EventOrderCreated, ev.Event)
	var payload map[string]interface{}
	s.Require().NoError(json.Unmarshal(ev.Payload, &payload))
	s.EqualValues(res.OrderID, payload["order_id"])
	s.Equal([]uint{res.EventID}, s.dispatcher.ids)
}

func (s *checkoutSuite) TestCheckout_EmptyCart() {
	ctx := context.Background()
	userID := testutil.RandomUserID()

	_, err := s.svc.Checkout(ctx, userID, checkout.Request{ShippingAddress: "Addr"})
	s.ErrorIs(err, apperrors.ErrEmptyCart, "user without a cart")

	_, err = s.carts.Get(ctx, userID)
	s.Require().NoError(err)

	_, err = s.svc.Checkout(ctx, userID, checkout.Request{ShippingAddress: "Addr"})
	s.ErrorIs(err, apperrors.ErrEmptyCart, "user with an empty cart")

	s.assertCount(&order.Order{}, 0)
	s.assertCount(&order.Payment{}, 0)
	s.assertCount(&webhook.WebhookEvent{}, 0)
	s.Empty(s.dispatcher.ids)
}

func (s *checkoutSuite) TestCheckout_PaymentFailureRollsBack() {
	ctx := context.Background()
	userID := testutil.RandomUserID()
	v := testutil.CreateVariant(s.T(), s.db, "10.00")
	_, err := s.carts.Add(ctx, userID, v.ID, 2)
	s.Require().NoError(err)

	svc := checkout.NewService(s.db, s.events, s.dispatcher, logger.Discard(), metrics.New(),
		checkout.WithPaymentProvider(decliningProvider{}))
	_, err = svc.Checkout(ctx, userID, checkout.Request{ShippingAddress: "Addr"})
	s.Require().Error(err)
	s.Contains(err.Error(), "card declined")

	s.assertCount(&order.Order{}, 0)
	s.assertCount(&order.OrderItem{}, 0)
	s.assertCount(&webhook.WebhookEvent{}, 0)
	s.Empty(s.dispatcher.ids)

	c, err := s.carts.Get(ctx, userID)
	s.Require().NoError(err)
	s.Len(c.Items, 1)
}

func (s *checkoutSuite) TestCheckout_RequiresAddress() {
	ctx := context.Background()
	userID := testutil.RandomUserID()
	v := testutil.CreateVariant(s.T(), s.db, "10.00")
	_, err := s.carts.Add(ctx, userID, v.ID, 1)
	s.Require().NoError(err)

	_, err = s.svc.Checkout(ctx, userID, checkout.Request{ShippingAddress: "   "})
	s.ErrorIs(err, apperrors.ErrInvalidArgument)

	totals, err := s.carts.Totals(ctx, userID)
	s.Require().NoError(err)
	s.Equal(1, totals.TotalItems, "cart untouched")
}

func (s *checkoutSuite) TestCheckout_PriceIsFrozen() {
	ctx := context.Background()
	userID := testutil.RandomUserID()
	v := testutil.CreateVariant(s.T(), s.db, "10.00")

	_, err := s.carts.Add(ctx, userID, v.ID, 1)
	s.Require().NoError(err)
	res, err := s.svc.Checkout(ctx, userID, checkout.Request{ShippingAddress: "Addr"})
	s.Require().NoError(err)

	s.Require().NoError(s.db.Model(&catalog.ProductVariant{}).Where("id = ?", v.ID).
		Update("price", decimal.RequireFromString("99.00")).Error)

	var item order.OrderItem
	s.Require().NoError(s.db.Where("order_id = ?", res.OrderID).First(&item).Error)
	s.Equal("10.00", item.Price.StringFixed(2))
}

func (s *checkoutSuite) TestCheckout_DoesNotTouchStock() {
	ctx := context.Background()
	userID := testutil.RandomUserID()
	v := testutil.CreateVariant(s.T(), s.db, "10.00")

	_, err := s.carts.Add(ctx, userID, v.ID, v.Stock+5)
	s.Require().NoError(err)
	_, err = s.svc.Checkout(ctx, userID, checkout.Request{ShippingAddress: "Addr"})
	s.Require().NoError(err)

	var after catalog.ProductVariant
	s.Require().NoError(s.db.First(&after, v.ID).Error)
	s.Equal(v.Stock, after.Stock)
}

func (s *checkoutSuite) TestCheckout_DispatchFailureKeepsOrder() {
	ctx := context.Background()
	userID := testutil.RandomUserID()
	v := testutil.CreateVariant(s.T(), s.db, "10.00")
	_, err := s.carts.Add(ctx, userID, v.ID, 1)
	s.Require().NoError(err)

	s.dispatcher.err = errors.New("queue down")
	res, err := s.svc.Checkout(ctx, userID, checkout.Request{ShippingAddress: "Addr"})
	s.Require().NoError(err)

	ev, err := s.events.Get(ctx, res.EventID)
	s.Require().NoError(err)
	s.False(ev.Delivered)
	s.Equal(0, ev.Attempts)
}

func (s *checkoutSuite) TestCheckout_ConcurrentCheckoutsCreateOneOrder() {
	ctx := context.Background()
	userID := testutil.RandomUserID()
	v := testutil.CreateVariant(s.T(), s.db, "10.00")
	_, err := s.carts.Add(ctx, userID, v.ID, 2)
	s.Require().NoError(err)

	const n = 5
	var wg sync.WaitGroup
	results := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.svc.Checkout(ctx, userID, checkout.Request{ShippingAddress: "Addr"})
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	succeeded := 0
	for err := range results {
		if err == nil {
			succeeded++
			continue
		}
		s.ErrorIs(err, apperrors.ErrEmptyCart)
	}
	s.Equal(1, succeeded)
	s.assertCount(&order.Order{}, 1)
	s.assertCount(&order.Payment{}, 1)
}

func (s *checkoutSuite) assertCount(model interface{}, want int64) {
	var n int64
	s.Require().NoError(s.db.Model(model).Count(&n).Error)
	s.Equal(want, n, "%T rows", model)
}
