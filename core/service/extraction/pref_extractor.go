// Package extraction turns raw purchase and search entries into category and
// attribute evidence.
package extraction

import (
	"context"
	"math"
	"strings"

	"github.com/rs/zerolog"

	"preference_server/core/domain"
	"preference_server/core/service/classification"
	"preference_server/core/service/taxonomy"
	"preference_server/pkg/logger"
)

// Skip reasons reported in Stats.
const (
	SkipNoCategory = "no_category"
	SkipMalformed  = "malformed"
	SkipEmptyQuery = "empty_query"
)

// Config holds extraction weights.
type Config struct {
	// ImplicitWeight is the weight of an attribute mined from an item name.
	ImplicitWeight float64
}

// DefaultConfig returns the standard weights.
func DefaultConfig() Config {
	return Config{ImplicitWeight: 0.5}
}

// Stats counts what an extraction dropped, keyed by skip reason.
type Stats struct {
	Processed int
	Skipped   map[string]int
}

func (s *Stats) skip(reason string) {
	if s.Skipped == nil {
		s.Skipped = make(map[string]int)
	}
	s.Skipped[reason]++
}

// TotalSkipped sums all skip reasons.
func (s Stats) TotalSkipped() int {
	n := 0
	for _, c := range s.Skipped {
		n += c
	}
	return n
}

// Extractor builds evidence bundles. It keeps no state between calls.
type Extractor struct {
	dir      *taxonomy.Directory
	resolver *classification.HybridResolver
	config   Config
	log      zerolog.Logger
}

// NewExtractor creates an extractor.
func NewExtractor(dir *taxonomy.Directory, resolver *classification.HybridResolver, config Config) *Extractor {
	return &Extractor{
		dir:      dir,
		resolver: resolver,
		config:   config,
		log:      logger.Component("extractor"),
	}
}

// Extract walks the entries and returns a fresh evidence bundle. Entries of
// the other data type are ignored. Unknown data types yield an empty bundle.
func (e *Extractor) Extract(ctx context.Context, dataType domain.DataType, entries []domain.RawEntry) (*domain.EvidenceBundle, Stats) {
	bundle := domain.NewEvidenceBundle()
	var stats Stats

	switch dataType {
	case domain.DataTypePurchase:
		for _, entry := range entries {
			if entry.Purchase == nil {
				continue
			}
			for _, item := range entry.Purchase.Items {
				e.extractItem(ctx, item, bundle, &stats)
			}
		}
	case domain.DataTypeSearch:
		for _, entry := range entries {
			if entry.Search == nil {
				continue
			}
			e.extractSearch(ctx, entry.Search.Query, bundle, &stats)
		}
	}
	return bundle, stats
}

// =============================================================================
// Purchase path
// =============================================================================

func (e *Extractor) extractItem(ctx context.Context, item domain.PurchaseItem, bundle *domain.EvidenceBundle, stats *Stats) {
	price := 0.0
	if item.Price != nil {
		price = *item.Price
	}
	quantity := item.QuantityOrDefault()
	if !validAmount(price) || !validAmount(quantity) {
		e.log.Debug().Str("item", item.Name).Float64("price", price).Float64("quantity", quantity).Msg("skipping malformed item")
		stats.skip(SkipMalformed)
		return
	}

	name := strings.ToLower(strings.TrimSpace(item.Name))
	category, ok := e.categoryOf(ctx, item.Category, name)
	if !ok {
		e.log.Debug().Str("item", item.Name).Str("category", item.Category.String()).Msg("skipping item without category")
		stats.skip(SkipNoCategory)
		return
	}

	bundle.AddCategory(category, Importance(price, quantity))

	if item.Price != nil {
		bundle.AddAttribute(category, domain.AttrPriceRange, e.dir.PriceRange(price, category), 1)
	}

	if len(item.Attributes) > 0 {
		schema, _ := e.dir.AttributesSchema(category)
		for attr, value := range item.Attributes {
			value = strings.ToLower(strings.TrimSpace(value))
			spec, declared := schema[attr]
			if value == "" || !declared {
				continue
			}
			if !spec.Allows(value) {
				e.log.Debug().Str("item", item.Name).Str("attribute", attr).Str("value", value).Msg("dropping attribute value outside schema")
				continue
			}
			bundle.AddAttribute(category, attr, value, 1)
		}
	}

	for attr, values := range mineName(name, purchaseMiners[e.dir.MainOf(category)]) {
		for _, v := range values {
			bundle.AddAttribute(category, attr, v, e.config.ImplicitWeight)
		}
	}
	stats.Processed++
}

// categoryOf resolves an item's category. A recognized raw category is used
// directly. Absent or unrecognized ones are inferred from the item name, and
// the generic fallback category is used only when inference fails.
func (e *Extractor) categoryOf(ctx context.Context, ref domain.CategoryRef, name string) (domain.CategoryID, bool) {
	id, ok := e.dir.Normalize(ref)
	if ok && id != domain.CategoryOther {
		return id, true
	}
	if name != "" {
		if inferred, source, found := e.resolver.ResolveItem(ctx, name); found {
			e.log.Debug().Str("item", name).Int("category", int(inferred)).Str("source", string(source)).Msg("inferred item category")
			return inferred, true
		}
	}
	if ok {
		return domain.CategoryOther, true
	}
	return 0, false
}

// Importance weighs an item by price and quantity as
// 0.5*priceFactor + 0.5*quantityFactor. The price factor is min(price/100, 3)
// and the quantity factor min(quantity, 5); a non-positive price or quantity
// contributes a factor of 1.
func Importance(price, quantity float64) float64 {
	priceFactor := 1.0
	if price > 0 {
		priceFactor = math.Min(price/100, 3)
	}
	quantityFactor := 1.0
	if quantity > 0 {
		quantityFactor = math.Min(quantity, 5)
	}
	return 0.5*priceFactor + 0.5*quantityFactor
}

// validAmount rejects only values that are not numbers. Negative prices are
// priced as "unknown" downstream.
func validAmount(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// =============================================================================
// Search path
// =============================================================================

func (e *Extractor) extractSearch(ctx context.Context, query string, bundle *domain.EvidenceBundle, stats *Stats) {
	query = strings.TrimSpace(query)
	if query == "" {
		stats.skip(SkipEmptyQuery)
		return
	}

	analysis := e.resolver.AnalyzeQuery(ctx, query)
	if len(analysis.Scores) == 0 {
		e.log.Debug().Str("query", query).Msg("query matched no category")
		stats.skip(SkipNoCategory)
		return
	}

	lower := strings.ToLower(query)
	tier, hasTier := priceIndication(lower)
	color, hasColor := firstContained(lower, searchColors)

	for category, score := range analysis.Scores {
		bundle.AddCategory(category, score)

		if hasTier {
			bundle.AddAttribute(category, domain.AttrPriceRange, tier, 1)
		}
		if hasColor {
			bundle.AddAttribute(category, domain.AttrColor, color, 1)
		}
		switch e.dir.MainOf(category) {
		case taxonomy.Electronics:
			if brand, ok := firstContained(lower, searchBrands); ok {
				bundle.AddAttribute(category, domain.AttrBrand, brand, 1)
			}
		case taxonomy.Clothing:
			if material, ok := firstContained(lower, searchMaterials); ok {
				bundle.AddAttribute(category, domain.AttrMaterial, material, 1)
			}
		}
	}
	stats.Processed++
}
