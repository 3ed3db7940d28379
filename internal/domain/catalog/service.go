// internal/domain/catalog/service.go
package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"github.com/your-org/shopsphere-backend/internal/infrastructure/cache"
	"github.com/your-org/shopsphere-backend/internal/pkg/metrics"
)

const activeProductsKey = "products:active"

// Service serves catalog reads. Only the active product listing is cached;
// variant lookups always hit the store so cart and checkout see live prices.
type Service struct {
	store   Store
	cache   cache.Cache
	ttl     time.Duration
	sfg     singleflight.Group
	log     logrus.FieldLogger
	metrics *metrics.Metrics
}

// NewService creates a catalog service
func NewService(store Store, c cache.Cache, ttl time.Duration, log logrus.FieldLogger, m *metrics.Metrics) *Service {
	return &Service{
		store:   store,
		cache:   c,
		ttl:     ttl,
		log:     log,
		metrics: m,
	}
}

// ListActive returns active products with their variants
func (s *Service) ListActive(ctx context.Context) ([]Product, error) {
	v, err, _ := s.sfg.Do(activeProductsKey, func() (interface{}, error) {
		// Joined callers share this fill, so it must outlive the first caller's cancellation.
		ctx := context.WithoutCancel(ctx)

		data, err := s.cache.Get(ctx, activeProductsKey)
		if err == nil {
			var products []Product
			if err := json.Unmarshal(data, &products); err == nil {
				s.observe("hit")
				return products, nil
			}
			s.log.WithError(err).Warn("discarding undecodable catalog cache entry")
		} else if !errors.Is(err, cache.ErrCacheMiss) {
			s.log.WithError(err).Warn("catalog cache get failed")
		}
		s.observe("miss")

		products, err := s.store.ActiveProducts(ctx)
		if err != nil {
			return nil, err
		}

		if data, err := json.Marshal(products); err == nil {
			if err := s.cache.Set(ctx, activeProductsKey, data, s.ttl); err != nil {
				s.log.WithError(err).Warn("catalog cache set failed")
			}
		}
		return products, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]Product), nil
}

// InvalidateActive drops the cached listing
func (s *Service) InvalidateActive(ctx context.Context) error {
	return s.cache.Delete(ctx, activeProductsKey)
}

// GetVariant returns a variant with its current price
func (s *Service) GetVariant(ctx context.Context, id uint) (*ProductVariant, error) {
	return s.store.Variant(ctx, id)
}

func (s *Service) observe(result string) {
	if s.metrics != nil {
		s.metrics.CacheLookups.WithLabelValues(result).Inc()
	}
}
