package cart_test

import (
	"context"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"
	"gorm.io/gorm"

	"github.com/your-org/shopsphere-backend/internal/domain/cart"
	"github.com/your-org/shopsphere-backend/internal/domain/catalog"
	"github.com/your-org/shopsphere-backend/internal/pkg/apperrors"
	"github.com/your-org/shopsphere-backend/internal/pkg/logger"
	"github.com/your-org/shopsphere-backend/internal/testutil"
)

type cartServiceSuite struct {
	suite.Suite

	db  *gorm.DB
	svc *cart.Service
}

func TestCartServiceSuite(t *testing.T) {
	suite.Run(t, new(cartServiceSuite))
}

func (s *cartServiceSuite) SetupSuite() {
	s.db = testutil.StartPostgres(s.T())
	s.svc = cart.NewService(s.db, catalog.NewService(catalog.NewGormStore(s.db), nil, 0, logger.Discard(), nil))
}

func (s *cartServiceSuite) SetupTest() {
	testutil.Truncate(s.T(), s.db)
}

func (s *cartServiceSuite) TestGet_CreatesEmptyCart() {
	ctx := context.Background()
	userID := testutil.RandomUserID()

	c, err := s.svc.Get(ctx, userID)
	s.Require().NoError(err)
	s.NotZero(c.ID)
	s.Equal(userID, c.UserID)
	s.Empty(c.Items)
	s.Equal(0, c.TotalItems())
	s.True(c.TotalPrice().IsZero())

	again, err := s.svc.Get(ctx, userID)
	s.Require().NoError(err)
	s.Equal(c.ID, again.ID, "one cart per user")
}

func (s *cartServiceSuite) TestAdd_MergesSameVariant() {
	ctx := context.Background()
	userID := testutil.RandomUserID()
	v := testutil.CreateVariant(s.T(), s.db, "10.00")

	_, err := s.svc.Add(ctx, userID, v.ID, 2)
	s.Require().NoError(err)
	c, err := s.svc.Add(ctx, userID, v.ID, 3)
	s.Require().NoError(err)

	s.Require().Len(c.Items, 1)
	s.Equal(5, c.Items[0].Quantity)
	s.Equal(5, c.TotalItems())
	s.True(c.TotalPrice().Equal(decimal.RequireFromString("50.00")))
}

func (s *cartServiceSuite) TestAdd_ConcurrentAddsSumQuantities() {
	ctx := context.Background()
	userID := testutil.RandomUserID()
	v := testutil.CreateVariant(s.T(), s.db, "1.00")

	_, err := s.svc.Get(ctx, userID)
	s.Require().NoError(err)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.svc.Add(ctx, userID, v.ID, 1)
			s.NoError(err)
		}()
	}
	wg.Wait()

	c, err := s.svc.Get(ctx, userID)
	s.Require().NoError(err)
	s.Require().Len(c.Items, 1)
	s.Equal(8, c.Items[0].Quantity)
}

func (s *cartServiceSuite) TestAdd_Validation() {
	ctx := context.Background()
	userID := testutil.RandomUserID()
	v := testutil.CreateVariant(s.T(), s.db, "10.00")

	_, err := s.svc.Add(ctx, userID, v.ID, 0)
	s.ErrorIs(err, apperrors.ErrInvalidArgument)

	_, err = s.svc.Add(ctx, userID, v.ID, -1)
	s.ErrorIs(err, apperrors.ErrInvalidArgument)

	_, err = s.svc.Add(ctx, userID, 424242, 1)
	s.ErrorIs(err, apperrors.ErrNotFound)
}

func (s *cartServiceSuite) TestUpdate() {
	ctx := context.Background()
	userID := testutil.RandomUserID()
	v := testutil.CreateVariant(s.T(), s.db, "10.00")

	c, err := s.svc.Add(ctx, userID, v.ID, 2)
	s.Require().NoError(err)
	itemID := c.Items[0].ID

	c, err = s.svc.Update(ctx, userID, itemID, 7)
	s.Require().NoError(err)
	s.Equal(7, c.Items[0].Quantity)

	_, err = s.svc.Update(ctx, userID, itemID, 0)
	s.ErrorIs(err, apperrors.ErrInvalidArgument)

	c, err = s.svc.Get(ctx, userID)
	s.Require().NoError(err)
	s.Equal(7, c.Items[0].Quantity, "rejected update leaves the line unchanged")

	_, err = s.svc.Update(ctx, userID, itemID+1000, 1)
	s.ErrorIs(err, apperrors.ErrNotFound)
}

func (s *cartServiceSuite) TestUpdate_OtherUsersItemIsNotFound() {
	ctx := context.Background()
	owner := testutil.RandomUserID()
	other := owner + 1
	v := testutil.CreateVariant(s.T(), s.db, "10.00")

	c, err := s.svc.Add(ctx, owner, v.ID, 1)
	s.Require().NoError(err)

	_, err = s.svc.Update(ctx, other, c.Items[0].ID, 3)
	s.ErrorIs(err, apperrors.ErrNotFound)

	_, err = s.svc.Remove(ctx, other, c.Items[0].ID)
	s.ErrorIs(err, apperrors.ErrNotFound)
}

func (s *cartServiceSuite) TestRemoveAndClear() {
	ctx := context.Background()
	userID := testutil.RandomUserID()
	v1 := testutil.CreateVariant(s.T(), s.db, "10.00")
	v2 := testutil.CreateVariant(s.T(), s.db, "5.00")

	_, err := s.svc.Add(ctx, userID, v1.ID, 1)
	s.Require().NoError(err)
	c, err := s.svc.Add(ctx, userID, v2.ID, 1)
	s.Require().NoError(err)
	s.Require().Len(c.Items, 2)

	c, err = s.svc.Remove(ctx, userID, c.Items[0].ID)
	s.Require().NoError(err)
	s.Len(c.Items, 1)

	_, err = s.svc.Remove(ctx, userID, 999999)
	s.ErrorIs(err, apperrors.ErrNotFound)

	s.Require().NoError(s.svc.Clear(ctx, userID))
	totals, err := s.svc.Totals(ctx, userID)
	s.Require().NoError(err)
	s.Equal(0, totals.TotalItems)
}

func (s *cartServiceSuite) TestTotals_UseLivePrices() {
	ctx := context.Background()
	userID := testutil.RandomUserID()
	v := testutil.CreateVariant(s.T(), s.db, "10.00")

	_, err := s.svc.Add(ctx, userID, v.ID, 2)
	s.Require().NoError(err)

	s.Require().NoError(s.db.Model(&catalog.ProductVariant{}).Where("id = ?", v.ID).
		Update("price", decimal.RequireFromString("12.50")).Error)

	totals, err := s.svc.Totals(ctx, userID)
	s.Require().NoError(err)
	s.Equal(2, totals.TotalItems)
	s.True(totals.TotalPrice.Equal(decimal.RequireFromString("25.00")), "got %s", totals.TotalPrice)
}
