package services

import (
	"context"
	"fmt"
	"time"

	"finlink/internal/cache"
	"finlink/internal/core"
	"finlink/internal/provider"

	"golang.org/x/sync/singleflight"
)

const taxonomyCacheKey = "taxonomy"

// TaxonomyService fetches the provider's category taxonomy once per session
// and serves it from memory afterwards. The reference set is immutable on
// the provider side, so the cache is only time-bounded, never invalidated
// mid-session, and never written to disk.
type TaxonomyService struct {
	source provider.CategorySource
	cache  *cache.LRUCache[*core.Taxonomy]
	group  singleflight.Group
}

// NewTaxonomyService creates a taxonomy service. ttl bounds how long one
// fetched reference set is reused.
func NewTaxonomyService(source provider.CategorySource, ttl time.Duration) *TaxonomyService {
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	return &TaxonomyService{
		source: source,
		cache:  cache.NewLRUCache[*core.Taxonomy](1, ttl),
	}
}

// Taxonomy returns the cached taxonomy, fetching it from the provider on
// first use. Concurrent first uses share a single provider call.
func (s *TaxonomyService) Taxonomy(ctx context.Context) (*core.Taxonomy, error) {
	if t, ok := s.cache.Get(taxonomyCacheKey); ok {
		return t, nil
	}

	v, err, _ := s.group.Do(taxonomyCacheKey, func() (any, error) {
		if t, ok := s.cache.Get(taxonomyCacheKey); ok {
			return t, nil
		}
		categories, err := s.source.Categories(ctx)
		if err != nil {
			return nil, fmt.Errorf("fetch categories: %w", err)
		}
		t := core.NewTaxonomy(categories)
		s.cache.Set(taxonomyCacheKey, t)
		return t, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*core.Taxonomy), nil
}

// Categories returns the full reference set.
func (s *TaxonomyService) Categories(ctx context.Context) ([]core.Category, error) {
	t, err := s.Taxonomy(ctx)
	if err != nil {
		return nil, err
	}
	return t.Categories(), nil
}
