package taxonomy

import (
	"reflect"
	"sync"
	"testing"

	"preference_server/core/domain"
)

func TestNormalize(t *testing.T) {
	d := Default()

	tests := []struct {
		name   string
		ref    domain.CategoryRef
		want   domain.CategoryID
		wantOK bool
	}{
		{name: "absent", ref: domain.CategoryRef{}, wantOK: false},
		{name: "blank name", ref: domain.CategoryName("   "), wantOK: false},
		{name: "exact subcategory id", ref: domain.CategoryNumber(101), want: Smartphones, wantOK: true},
		{name: "unknown id in known hundred", ref: domain.CategoryNumber(150), want: Electronics, wantOK: true},
		{name: "unknown hundred", ref: domain.CategoryNumber(4200), wantOK: false},
		{name: "numeric-looking string", ref: domain.CategoryName(" 204 "), want: Footwear, wantOK: true},
		{name: "canonical name", ref: domain.CategoryName("Smartphones"), want: Smartphones, wantOK: true},
		{name: "spaced name", ref: domain.CategoryName("Home & Garden"), want: HomeGarden, wantOK: true},
		{name: "pattern match", ref: domain.CategoryName("Mobile Electronics"), want: Electronics, wantOK: true},
		{name: "pattern match clothing", ref: domain.CategoryName("summer dresses"), want: Clothing, wantOK: true},
		{name: "fallback", ref: domain.CategoryName("zzz unknown zzz"), want: domain.CategoryOther, wantOK: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := d.Normalize(tt.ref)
			if ok != tt.wantOK {
				t.Fatalf("Normalize(%v) ok = %v, want %v", tt.ref, ok, tt.wantOK)
			}
			if ok && got != tt.want {
				t.Errorf("Normalize(%v) = %v, want %v", tt.ref, got, tt.want)
			}
		})
	}
}

func TestNormalizeStrict(t *testing.T) {
	d, err := NewDirectory(BuiltinCatalog(), WithStrict(true))
	if err != nil {
		t.Fatalf("NewDirectory() error = %v", err)
	}
	if _, ok := d.NormalizeString("zzz unknown zzz"); ok {
		t.Error("strict directory resolved an unknown name")
	}
	if got, ok := d.NormalizeString("electronics"); !ok || got != Electronics {
		t.Errorf("NormalizeString(electronics) = %v, %v", got, ok)
	}
}

func TestPriceRange(t *testing.T) {
	d := Default()

	tests := []struct {
		name     string
		amount   float64
		category domain.CategoryID
		want     string
	}{
		{name: "budget edge", amount: 99.99, category: Electronics, want: domain.PriceBudget},
		{name: "mid lower bound", amount: 100, category: Electronics, want: domain.PriceMidRange},
		{name: "premium", amount: 999, category: Smartphones, want: domain.PricePremium},
		{name: "luxury lower bound", amount: 1000, category: Electronics, want: domain.PriceLuxury},
		{name: "zero is budget", amount: 0, category: Electronics, want: domain.PriceBudget},
		{name: "negative", amount: -1, category: Electronics, want: domain.PriceUnknown},
		{name: "clothing tiers", amount: 30, category: Footwear, want: domain.PriceMidRange},
		{name: "home tiers", amount: 499.99, category: Furniture, want: domain.PricePremium},
		{name: "default tiers", amount: 150, category: BooksMedia, want: domain.PriceMidRange},
		{name: "unknown category uses default", amount: 50, category: 4200, want: domain.PriceBudget},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := d.PriceRange(tt.amount, tt.category); got != tt.want {
				t.Errorf("PriceRange(%v, %v) = %s, want %s", tt.amount, tt.category, got, tt.want)
			}
		})
	}
}

func TestAttributesSchema(t *testing.T) {
	d := Default()

	if _, ok := d.AttributesSchema(4200); ok {
		t.Error("unknown category returned a schema")
	}

	schema, ok := d.AttributesSchema(Smartphones)
	if !ok {
		t.Fatal("smartphones has no schema")
	}
	if !schema.Has(domain.AttrBrand) || !schema[domain.AttrBrand].Allows("apple") {
		t.Error("smartphones schema does not inherit electronics brand values")
	}
	if schema["release_year"].IsClosed() {
		t.Error("release_year should be numeric/free")
	}

	books, ok := d.AttributesSchema(BooksMedia)
	if !ok || len(books) != 0 {
		t.Errorf("books schema = %v, %v; want empty, true", books, ok)
	}
}

func TestHierarchy(t *testing.T) {
	d := Default()

	if got := d.MainOf(Smartphones); got != Electronics {
		t.Errorf("MainOf(101) = %v", got)
	}
	if got := d.MainOf(Electronics); got != Electronics {
		t.Errorf("MainOf(100) = %v", got)
	}
	if p, ok := d.Parent(Footwear); !ok || p != Clothing {
		t.Errorf("Parent(204) = %v, %v", p, ok)
	}
	if _, ok := d.Parent(Clothing); ok {
		t.Error("main category reported a parent")
	}
	if got := d.Name(Smartphones); got != "smartphones" {
		t.Errorf("Name(101) = %s", got)
	}

	for _, c := range d.Categories() {
		if c.IsMain() {
			continue
		}
		parent, ok := d.Resolve(c.Parent)
		if !ok || !parent.IsMain() {
			t.Errorf("subcategory %d has invalid parent %d", c.ID, c.Parent)
		}
	}
}

func TestDirectoryBuildIsIdempotent(t *testing.T) {
	a, err := NewDirectory(BuiltinCatalog())
	if err != nil {
		t.Fatal(err)
	}
	b, err := NewDirectory(BuiltinCatalog())
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(a.byID, b.byID) || !reflect.DeepEqual(a.byName, b.byName) {
		t.Error("two builds from the same catalog differ")
	}
	if !reflect.DeepEqual(a.Categories(), b.Categories()) {
		t.Error("category order differs between builds")
	}
}

func TestDefaultConcurrentAccess(t *testing.T) {
	var wg sync.WaitGroup
	dirs := make([]*Directory, 16)
	for i := range dirs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			dirs[i] = Default()
		}(i)
	}
	wg.Wait()
	for _, d := range dirs[1:] {
		if d != dirs[0] {
			t.Fatal("Default() returned different instances")
		}
	}
}
