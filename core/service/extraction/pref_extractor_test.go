package extraction

import (
	"context"
	"math"
	"testing"

	"preference_server/core/domain"
	"preference_server/core/service/classification"
	"preference_server/core/service/taxonomy"
)

func newTestExtractor(t *testing.T, dir *taxonomy.Directory) *Extractor {
	t.Helper()
	resolver := classification.NewHybridResolver(
		classification.NewKeywordClassifier(dir),
		nil,
		classification.DefaultHybridConfig(),
	)
	return NewExtractor(dir, resolver, DefaultConfig())
}

func f(v float64) *float64 { return &v }

func near(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func attr(b *domain.EvidenceBundle, id domain.CategoryID, name, value string) float64 {
	return b.AttributeDistributions[id][name][value]
}

func TestImportance(t *testing.T) {
	tests := []struct {
		name     string
		price    float64
		quantity float64
		want     float64
	}{
		{"no price single item", 0, 1, 1.0},
		{"price at 100", 100, 1, 1.0},
		{"price capped at 3", 999, 1, 2.0},
		{"quantity capped at 5", 50, 10, 2.75},
		{"both capped", 1000, 7, 4.0},
		{"zero quantity", 200, 0, 1.5},
		{"nothing", 0, 0, 1.0},
		{"negative price", -5, 1, 1.0},
		{"negative quantity", 300, -2, 2.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Importance(tt.price, tt.quantity); !near(got, tt.want) {
				t.Errorf("Importance(%v, %v) = %v, want %v", tt.price, tt.quantity, got, tt.want)
			}
		})
	}
}

func TestExtractPurchaseEndToEnd(t *testing.T) {
	e := newTestExtractor(t, taxonomy.Default())
	entries := []domain.RawEntry{
		domain.PurchaseOf(domain.PurchaseItem{Name: "iphone 15", Price: f(999), Quantity: f(1)}),
	}

	bundle, stats := e.Extract(context.Background(), domain.DataTypePurchase, entries)

	if stats.Processed != 1 || stats.TotalSkipped() != 0 {
		t.Fatalf("stats = %+v, want 1 processed", stats)
	}
	if len(bundle.CategoryCounts) != 1 || !near(bundle.CategoryCounts[taxonomy.Smartphones], 2.0) {
		t.Errorf("CategoryCounts = %v, want {101: 2}", bundle.CategoryCounts)
	}
	if got := attr(bundle, taxonomy.Smartphones, domain.AttrPriceRange, domain.PricePremium); got != 1 {
		t.Errorf("price_range premium = %v, want 1", got)
	}
	if got := attr(bundle, taxonomy.Smartphones, domain.AttrBrand, "apple"); got != 0.5 {
		t.Errorf("brand apple = %v, want 0.5", got)
	}
	if _, ok := bundle.AttributeDistributions[taxonomy.Smartphones][domain.AttrColor]; ok {
		t.Error("unexpected color attribute")
	}
}

func TestExtractPurchaseMixedPricing(t *testing.T) {
	e := newTestExtractor(t, taxonomy.Default())
	bundle, stats := e.Extract(context.Background(), domain.DataTypePurchase, []domain.RawEntry{
		domain.PurchaseOf(
			domain.PurchaseItem{Name: "laptop"},
			domain.PurchaseItem{Name: "iphone", Price: f(100), Quantity: f(1)},
		),
	})

	if stats.Processed != 2 {
		t.Fatalf("stats = %+v, want 2 processed", stats)
	}
	want := map[domain.CategoryID]float64{taxonomy.Computers: 1.0, taxonomy.Smartphones: 1.0}
	if len(bundle.CategoryCounts) != len(want) {
		t.Fatalf("CategoryCounts = %v, want %v", bundle.CategoryCounts, want)
	}
	for id, w := range want {
		if !near(bundle.CategoryCounts[id], w) {
			t.Errorf("CategoryCounts[%d] = %v, want %v", id, bundle.CategoryCounts[id], w)
		}
	}
}

func TestExtractPurchaseItems(t *testing.T) {
	tests := []struct {
		name       string
		item       domain.PurchaseItem
		wantID     domain.CategoryID
		wantWeight float64
		wantAttrs  map[string]map[string]float64
	}{
		{
			name: "numeric category with explicit attributes",
			item: domain.PurchaseItem{
				Name:       "Laptop Pro",
				Category:   domain.CategoryNumber(102),
				Attributes: map[string]string{"color": "Black", "brand": "Samsung", "size": "XL"},
			},
			wantID:     taxonomy.Computers,
			wantWeight: 1.0,
			wantAttrs: map[string]map[string]float64{
				domain.AttrColor: {"black": 1},
				domain.AttrBrand: {"samsung": 1},
			},
		},
		{
			name: "explicit values outside a closed set are dropped",
			item: domain.PurchaseItem{
				Name:       "Feature phone",
				Category:   domain.CategoryNumber(101),
				Attributes: map[string]string{"brand": "Nokia", "color": "Silver", "release_year": "2009"},
			},
			wantID:     taxonomy.Smartphones,
			wantWeight: 1.0,
			wantAttrs: map[string]map[string]float64{
				domain.AttrColor: {"silver": 1},
				"release_year":   {"2009": 1},
			},
		},
		{
			name:       "negative price is priced as unknown",
			item:       domain.PurchaseItem{Name: "laptop", Price: f(-5)},
			wantID:     taxonomy.Computers,
			wantWeight: 1.0,
			wantAttrs: map[string]map[string]float64{
				domain.AttrPriceRange: {domain.PriceUnknown: 1},
			},
		},
		{
			name:       "named category with mined clothing attributes",
			item:       domain.PurchaseItem{Name: "Cotton casual t-shirt", Category: domain.CategoryName("Clothing"), Price: f(25), Quantity: f(2)},
			wantID:     taxonomy.Clothing,
			wantWeight: 1.125,
			wantAttrs: map[string]map[string]float64{
				domain.AttrPriceRange: {domain.PriceBudget: 1},
				domain.AttrMaterial:   {"cotton": 0.5},
				domain.AttrStyle:      {"casual": 0.5},
			},
		},
		{
			name:       "home attributes",
			item:       domain.PurchaseItem{Name: "Oak wood bedroom dresser", Category: domain.CategoryNumber(301)},
			wantID:     taxonomy.Furniture,
			wantWeight: 1.0,
			wantAttrs: map[string]map[string]float64{
				domain.AttrMaterial: {"wood": 0.5},
				domain.AttrRoom:     {"bedroom": 0.5},
			},
		},
		{
			name:       "aliases count once per value",
			item:       domain.PurchaseItem{Name: "Apple iPhone case"},
			wantID:     taxonomy.Smartphones,
			wantWeight: 1.0,
			wantAttrs: map[string]map[string]float64{
				domain.AttrBrand: {"apple": 0.5},
			},
		},
		{
			name:       "unrecognized category inferred from name",
			item:       domain.PurchaseItem{Name: "Wireless Mouse", Category: domain.CategoryName("gizmos"), Price: f(40)},
			wantID:     taxonomy.Computers,
			wantWeight: 0.7,
			wantAttrs: map[string]map[string]float64{
				domain.AttrPriceRange: {domain.PriceBudget: 1},
				domain.AttrFeature:    {"wireless": 0.5},
			},
		},
		{
			name:       "unrecognized category falls back to other",
			item:       domain.PurchaseItem{Name: "zzz qqq", Category: domain.CategoryName("gizmos")},
			wantID:     domain.CategoryOther,
			wantWeight: 1.0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newTestExtractor(t, taxonomy.Default())
			bundle, stats := e.Extract(context.Background(), domain.DataTypePurchase,
				[]domain.RawEntry{domain.PurchaseOf(tt.item)})

			if stats.Processed != 1 {
				t.Fatalf("stats = %+v, want 1 processed", stats)
			}
			if len(bundle.CategoryCounts) != 1 || !near(bundle.CategoryCounts[tt.wantID], tt.wantWeight) {
				t.Errorf("CategoryCounts = %v, want {%d: %v}", bundle.CategoryCounts, tt.wantID, tt.wantWeight)
			}

			got := bundle.AttributeDistributions[tt.wantID]
			if len(got) != len(tt.wantAttrs) {
				t.Errorf("attributes = %v, want %v", got, tt.wantAttrs)
			}
			for name, values := range tt.wantAttrs {
				for v, w := range values {
					if !near(got[name][v], w) {
						t.Errorf("%s[%s] = %v, want %v", name, v, got[name][v], w)
					}
				}
			}
		})
	}
}

func TestExtractPurchaseSkips(t *testing.T) {
	strict, err := taxonomy.NewDirectory(taxonomy.BuiltinCatalog(), taxonomy.WithStrict(true))
	if err != nil {
		t.Fatalf("NewDirectory() error = %v", err)
	}

	tests := []struct {
		name       string
		dir        *taxonomy.Directory
		item       domain.PurchaseItem
		wantReason string
	}{
		{"no category and unknown name", taxonomy.Default(), domain.PurchaseItem{Name: "zzz qqq"}, SkipNoCategory},
		{"no category and no name", taxonomy.Default(), domain.PurchaseItem{}, SkipNoCategory},
		{"strict unknown category", strict, domain.PurchaseItem{Name: "zzz qqq", Category: domain.CategoryName("gizmos")}, SkipNoCategory},
		{"infinite price", taxonomy.Default(), domain.PurchaseItem{Name: "laptop", Price: f(math.Inf(1))}, SkipMalformed},
		{"NaN quantity", taxonomy.Default(), domain.PurchaseItem{Name: "laptop", Quantity: f(math.NaN())}, SkipMalformed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newTestExtractor(t, tt.dir)
			bundle, stats := e.Extract(context.Background(), domain.DataTypePurchase,
				[]domain.RawEntry{domain.PurchaseOf(tt.item)})

			if !bundle.IsEmpty() {
				t.Errorf("bundle = %+v, want empty", bundle)
			}
			if stats.Skipped[tt.wantReason] != 1 {
				t.Errorf("Skipped = %v, want %s: 1", stats.Skipped, tt.wantReason)
			}
		})
	}
}

func TestExtractPurchaseStrictStillInfers(t *testing.T) {
	strict, err := taxonomy.NewDirectory(taxonomy.BuiltinCatalog(), taxonomy.WithStrict(true))
	if err != nil {
		t.Fatalf("NewDirectory() error = %v", err)
	}
	e := newTestExtractor(t, strict)

	bundle, _ := e.Extract(context.Background(), domain.DataTypePurchase, []domain.RawEntry{
		domain.PurchaseOf(domain.PurchaseItem{Name: "laptop stand", Category: domain.CategoryName("gizmos")}),
	})
	if _, ok := bundle.CategoryCounts[taxonomy.Computers]; !ok {
		t.Errorf("CategoryCounts = %v, want computers", bundle.CategoryCounts)
	}
}

func TestExtractSearch(t *testing.T) {
	tests := []struct {
		name      string
		query     string
		wantID    domain.CategoryID
		wantAttrs map[string]map[string]float64
	}{
		{
			name:   "budget color",
			query:  "cheap black laptop",
			wantID: taxonomy.Computers,
			wantAttrs: map[string]map[string]float64{
				domain.AttrPriceRange: {domain.PriceBudget: 1},
				domain.AttrColor:      {"black": 1},
			},
		},
		{
			name:   "electronics brand",
			query:  "affordable apple laptop",
			wantID: taxonomy.Computers,
			wantAttrs: map[string]map[string]float64{
				domain.AttrPriceRange: {domain.PriceBudget: 1},
				domain.AttrBrand:      {"apple": 1},
			},
		},
		{
			name:   "clothing material",
			query:  "wool sweater mens",
			wantID: taxonomy.MensClothing,
			wantAttrs: map[string]map[string]float64{
				domain.AttrMaterial: {"wool": 1},
			},
		},
		{
			name:   "inexpensive is budget",
			query:  "inexpensive headphone",
			wantID: taxonomy.Audio,
			wantAttrs: map[string]map[string]float64{
				domain.AttrPriceRange: {domain.PriceBudget: 1},
			},
		},
		{
			name:   "generic price mention",
			query:  "price of sofa",
			wantID: taxonomy.Furniture,
			wantAttrs: map[string]map[string]float64{
				domain.AttrPriceRange: {domain.PriceMidRange: 1},
			},
		},
		{
			name:   "premium main category",
			query:  "premium wireless headphones",
			wantID: taxonomy.Electronics,
			wantAttrs: map[string]map[string]float64{
				domain.AttrPriceRange: {domain.PricePremium: 1},
			},
		},
		{
			name:   "brand not mined outside electronics",
			query:  "red cotton shirt women apple",
			wantID: taxonomy.WomensClothing,
			wantAttrs: map[string]map[string]float64{
				domain.AttrColor:    {"red": 1},
				domain.AttrMaterial: {"cotton": 1},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newTestExtractor(t, taxonomy.Default())
			bundle, stats := e.Extract(context.Background(), domain.DataTypeSearch,
				[]domain.RawEntry{domain.SearchOf(tt.query)})

			if stats.Processed != 1 {
				t.Fatalf("stats = %+v, want 1 processed", stats)
			}
			if !near(bundle.CategoryCounts[tt.wantID], 1) || len(bundle.CategoryCounts) != 1 {
				t.Errorf("CategoryCounts = %v, want {%d: 1}", bundle.CategoryCounts, tt.wantID)
			}
			got := bundle.AttributeDistributions[tt.wantID]
			if len(got) != len(tt.wantAttrs) {
				t.Errorf("attributes = %v, want %v", got, tt.wantAttrs)
			}
			for name, values := range tt.wantAttrs {
				for v, w := range values {
					if got[name][v] != w {
						t.Errorf("%s[%s] = %v, want %v", name, v, got[name][v], w)
					}
				}
			}
		})
	}
}

func TestExtractSearchAccumulatesAndSkips(t *testing.T) {
	e := newTestExtractor(t, taxonomy.Default())
	entries := []domain.RawEntry{
		domain.SearchOf("laptop"),
		domain.SearchOf("laptop"),
		domain.SearchOf("   "),
		domain.SearchOf("zzz qqq"),
		domain.PurchaseOf(domain.PurchaseItem{Name: "sofa"}),
	}

	bundle, stats := e.Extract(context.Background(), domain.DataTypeSearch, entries)

	if got := bundle.CategoryCounts[taxonomy.Computers]; got != 2 {
		t.Errorf("computers = %v, want 2", got)
	}
	if len(bundle.CategoryCounts) != 1 {
		t.Errorf("CategoryCounts = %v, want only computers", bundle.CategoryCounts)
	}
	if stats.Processed != 2 || stats.Skipped[SkipEmptyQuery] != 1 || stats.Skipped[SkipNoCategory] != 1 {
		t.Errorf("stats = %+v", stats)
	}
}

func TestExtractUnknownDataType(t *testing.T) {
	e := newTestExtractor(t, taxonomy.Default())
	bundle, stats := e.Extract(context.Background(), domain.DataType("browse"),
		[]domain.RawEntry{domain.SearchOf("laptop")})
	if !bundle.IsEmpty() || stats.Processed != 0 {
		t.Errorf("Extract(browse) = %+v, %+v, want empty", bundle, stats)
	}
}
