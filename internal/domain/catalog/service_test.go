package catalog

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/your-org/shopsphere-backend/internal/infrastructure/cache"
	"github.com/your-org/shopsphere-backend/internal/pkg/apperrors"
	"github.com/your-org/shopsphere-backend/internal/pkg/logger"
	"github.com/your-org/shopsphere-backend/internal/pkg/metrics"
)

type fakeStore struct {
	mu       sync.Mutex
	products []Product
	variants map[uint]ProductVariant
	calls    atomic.Int32
	delay    time.Duration
	gate     chan struct{}
}

func (f *fakeStore) ActiveProducts(ctx context.Context) ([]Product, error) {
	f.calls.Add(1)
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	if f.gate != nil {
		<-f.gate
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Product(nil), f.products...), nil
}

func (f *fakeStore) Variant(ctx context.Context, id uint) (*ProductVariant, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.variants[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return &v, nil
}

func newTestService(t *testing.T, store Store) (*Service, *miniredis.Miniredis, *metrics.Metrics) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	m := metrics.New()
	svc := NewService(store, cache.NewRedisCache(client, "catalog"), 60*time.Second, logger.Discard(), m)
	return svc, mr, m
}

func TestListActive_CachesWithinTTL(t *testing.T) {
	store := &fakeStore{products: []Product{{ID: 1, Name: "Mug", IsActive: true}}}
	svc, mr, m := newTestService(t, store)
	ctx := context.Background()

	first, err := svc.ListActive(ctx)
	require.NoError(t, err)
	require.Len(t, first, 1)

	store.mu.Lock()
	store.products = append(store.products, Product{ID: 2, Name: "Plate", IsActive: true})
	store.mu.Unlock()

	second, err := svc.ListActive(ctx)
	require.NoError(t, err)
	assert.Len(t, second, 1, "listing is served from cache until the TTL passes")
	assert.EqualValues(t, 1, store.calls.Load())

	assert.Equal(t, 1.0, testutil.ToFloat64(m.CacheLookups.WithLabelValues("hit")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CacheLookups.WithLabelValues("miss")))

	mr.FastForward(61 * time.Second)

	third, err := svc.ListActive(ctx)
	require.NoError(t, err)
	assert.Len(t, third, 2)
	assert.EqualValues(t, 2, store.calls.Load())
}

func TestListActive_InvalidateForcesReload(t *testing.T) {
	store := &fakeStore{products: []Product{{ID: 1, Name: "Mug", IsActive: true}}}
	svc, _, _ := newTestService(t, store)
	ctx := context.Background()

	_, err := svc.ListActive(ctx)
	require.NoError(t, err)
	require.NoError(t, svc.InvalidateActive(ctx))
	_, err = svc.ListActive(ctx)
	require.NoError(t, err)

	assert.EqualValues(t, 2, store.calls.Load())
}

func TestListActive_ConcurrentMissesLoadOnce(t *testing.T) {
	store := &fakeStore{
		products: []Product{{ID: 1, Name: "Mug", IsActive: true}},
		delay:    50 * time.Millisecond,
	}
	svc, _, _ := newTestService(t, store)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.ListActive(context.Background())
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.EqualValues(t, 1, store.calls.Load())
}

func TestListActive_CancelledCallerDoesNotFailJoinedCallers(t *testing.T) {
	store := &fakeStore{
		products: []Product{{ID: 1, Name: "Mug", IsActive: true}},
		gate:     make(chan struct{}),
	}
	svc, _, _ := newTestService(t, store)

	leaderCtx, cancel := context.WithCancel(context.Background())
	leaderDone := make(chan struct{})
	go func() {
		defer close(leaderDone)
		_, _ = svc.ListActive(leaderCtx)
	}()
	require.Eventually(t, func() bool { return store.calls.Load() == 1 }, time.Second, 5*time.Millisecond)

	type result struct {
		products []Product
		err      error
	}
	joined := make(chan result, 1)
	go func() {
		products, err := svc.ListActive(context.Background())
		joined <- result{products, err}
	}()
	time.Sleep(20 * time.Millisecond)

	cancel()
	close(store.gate)

	r := <-joined
	require.NoError(t, r.err)
	assert.Len(t, r.products, 1)
	<-leaderDone
}

func TestGetVariant_BypassesCache(t *testing.T) {
	store := &fakeStore{variants: map[uint]ProductVariant{
		7: {ID: 7, SKU: "MUG-RED", Price: decimal.RequireFromString("10.00")},
	}}
	svc, _, _ := newTestService(t, store)
	ctx := context.Background()

	v, err := svc.GetVariant(ctx, 7)
	require.NoError(t, err)
	assert.True(t, v.Price.Equal(decimal.RequireFromString("10.00")))

	store.mu.Lock()
	store.variants[7] = ProductVariant{ID: 7, SKU: "MUG-RED", Price: decimal.RequireFromString("12.50")}
	store.mu.Unlock()

	v, err = svc.GetVariant(ctx, 7)
	require.NoError(t, err)
	assert.True(t, v.Price.Equal(decimal.RequireFromString("12.50")))

	_, err = svc.GetVariant(ctx, 99)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}
