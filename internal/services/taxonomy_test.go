package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"finlink/internal/core"
)

// countingSource counts provider fetches so tests can assert caching.
type countingSource struct {
	mu         sync.Mutex
	calls      int
	delay      time.Duration
	categories []core.Category
	err        error
}

func (s *countingSource) Categories(context.Context) ([]core.Category, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	if s.delay > 0 {
		time.Sleep(s.delay)
	}
	if s.err != nil {
		return nil, s.err
	}
	return s.categories, nil
}

func (s *countingSource) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func referenceCategories() []core.Category {
	return []core.Category{
		{ID: "13005000", Group: "place", Hierarchy: []string{"Food and Drink", "Restaurants"}},
		{ID: "13005043", Group: "place", Hierarchy: []string{"Food and Drink", "Restaurants", "Coffee Shop"}},
	}
}

func TestTaxonomyFetchedOnce(t *testing.T) {
	source := &countingSource{categories: referenceCategories()}
	svc := NewTaxonomyService(source, time.Minute)
	ctx := context.Background()

	first, err := svc.Taxonomy(ctx)
	if err != nil {
		t.Fatalf("Taxonomy: %v", err)
	}
	if first.Len() != 2 {
		t.Errorf("Len = %d, want 2", first.Len())
	}

	second, err := svc.Taxonomy(ctx)
	if err != nil {
		t.Fatalf("Taxonomy again: %v", err)
	}
	if second != first {
		t.Error("second call returned a different taxonomy instance")
	}
	if got := source.callCount(); got != 1 {
		t.Errorf("provider fetched %d times, want 1", got)
	}
}

func TestTaxonomyErrorNotCached(t *testing.T) {
	source := &countingSource{err: errors.New("gateway down")}
	svc := NewTaxonomyService(source, time.Minute)
	ctx := context.Background()

	if _, err := svc.Taxonomy(ctx); err == nil {
		t.Fatal("expected fetch error")
	}

	source.mu.Lock()
	source.err = nil
	source.categories = referenceCategories()
	source.mu.Unlock()

	taxonomy, err := svc.Taxonomy(ctx)
	if err != nil {
		t.Fatalf("Taxonomy after recovery: %v", err)
	}
	if taxonomy.Len() != 2 {
		t.Errorf("Len = %d, want 2", taxonomy.Len())
	}
	if got := source.callCount(); got != 2 {
		t.Errorf("provider fetched %d times, want 2", got)
	}
}

func TestTaxonomyConcurrentFirstUseSharesFetch(t *testing.T) {
	source := &countingSource{categories: referenceCategories(), delay: 20 * time.Millisecond}
	svc := NewTaxonomyService(source, time.Minute)

	var wg sync.WaitGroup
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := svc.Taxonomy(context.Background()); err != nil {
				t.Errorf("Taxonomy: %v", err)
			}
		}()
	}
	wg.Wait()

	if got := source.callCount(); got != 1 {
		t.Errorf("provider fetched %d times under contention, want 1", got)
	}
}

func TestTaxonomyCategories(t *testing.T) {
	source := &countingSource{categories: referenceCategories()}
	svc := NewTaxonomyService(source, 0)

	categories, err := svc.Categories(context.Background())
	if err != nil {
		t.Fatalf("Categories: %v", err)
	}
	if len(categories) != 2 || categories[0].ID != "13005000" {
		t.Errorf("categories = %+v, want the reference set in order", categories)
	}
}
