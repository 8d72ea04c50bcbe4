package preference

import (
	"context"
	"testing"

	"preference_server/core/service/taxonomy"
	"preference_server/pkg/apperr"
)

func TestTaxonomyServiceSearch(t *testing.T) {
	cache := newFakeCache()
	svc := NewTaxonomyService(taxonomy.Default(), newTestResolver(), cache)
	ctx := context.Background()

	got, err := svc.Search(ctx, "  Cheap   BLACK laptop ")
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if got.Query != "cheap black laptop" {
		t.Errorf("Query = %q", got.Query)
	}
	if got.BestMatch != "102" || got.BestName != "computers" || got.Source != "rule" {
		t.Errorf("analysis = %+v", got)
	}
	if got.Categories["102"] != 1 {
		t.Errorf("Categories = %v", got.Categories)
	}
	if _, ok := cache.data["taxonomy:search:cheap black laptop"]; !ok {
		t.Fatal("analysis not cached")
	}

	again, err := svc.Search(ctx, "cheap black laptop")
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if cache.hits != 1 || again.BestMatch != "102" {
		t.Errorf("second search hits = %d, analysis = %+v", cache.hits, again)
	}
}

func TestTaxonomyServiceSearchEmpty(t *testing.T) {
	svc := NewTaxonomyService(taxonomy.Default(), newTestResolver(), nil)
	if _, err := svc.Search(context.Background(), "   "); apperr.AsAppError(err).Code != apperr.CodeBadRequest {
		t.Errorf("Search(empty) error = %v, want bad request", err)
	}
}

func TestTaxonomyServiceLookups(t *testing.T) {
	svc := NewTaxonomyService(taxonomy.Default(), newTestResolver(), nil)

	if len(svc.Categories()) == 0 {
		t.Error("no categories")
	}
	if _, ok := svc.Schemas()["electronics"]; !ok {
		t.Error("electronics schema missing")
	}
	if got := svc.KeywordMappings()["phone"]; got != "101" {
		t.Errorf("KeywordMappings()[phone] = %q, want 101", got)
	}
}
