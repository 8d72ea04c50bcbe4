// Package taxonomy resolves raw category signals to canonical categories and
// answers schema and price-tier questions about them.
package taxonomy

import (
	"fmt"
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"

	"preference_server/core/domain"
)

// Directory is an immutable, read-only view over a Catalog.
// It is safe for concurrent use.
type Directory struct {
	catalog  *Catalog
	strict   bool
	byID     map[domain.CategoryID]domain.Category
	byName   map[string]domain.CategoryID
	patterns []compiledPattern
	ordered  []domain.Category
}

type compiledPattern struct {
	re       *regexp.Regexp
	category domain.CategoryID
}

// Option configures a Directory.
type Option func(*Directory)

// WithStrict makes Normalize report unmapped raw categories as unresolved
// instead of returning the generic fallback category.
func WithStrict(strict bool) Option {
	return func(d *Directory) { d.strict = strict }
}

// NewDirectory validates the catalog and builds a directory from it.
// Building twice from equal catalogs yields identical directories.
func NewDirectory(catalog *Catalog, opts ...Option) (*Directory, error) {
	if catalog == nil {
		return nil, fmt.Errorf("taxonomy: nil catalog")
	}
	if err := catalog.Validate(); err != nil {
		return nil, err
	}

	d := &Directory{
		catalog: catalog,
		byID:    make(map[domain.CategoryID]domain.Category, len(catalog.Categories)),
		byName:  make(map[string]domain.CategoryID, len(catalog.Categories)),
	}
	for _, opt := range opts {
		opt(d)
	}

	for _, c := range catalog.Categories {
		d.byID[c.ID] = c
		d.byName[nameKey(c.Name)] = c.ID
	}
	for _, p := range catalog.Patterns {
		d.patterns = append(d.patterns, compiledPattern{
			re:       regexp.MustCompile("(?i)" + p.Pattern),
			category: p.Category,
		})
	}

	d.ordered = make([]domain.Category, 0, len(d.byID))
	for _, c := range d.byID {
		d.ordered = append(d.ordered, c)
	}
	sort.Slice(d.ordered, func(i, j int) bool { return d.ordered[i].ID < d.ordered[j].ID })

	return d, nil
}

var (
	defaultOnce sync.Once
	defaultDir  *Directory
)

// Default returns the process-wide directory built from the builtin catalog.
func Default() *Directory {
	defaultOnce.Do(func() {
		d, err := NewDirectory(BuiltinCatalog())
		if err != nil {
			panic(fmt.Sprintf("taxonomy: builtin catalog invalid: %v", err))
		}
		defaultDir = d
	})
	return defaultDir
}

// Catalog returns the catalog the directory was built from.
// Callers must not modify it.
func (d *Directory) Catalog() *Catalog {
	return d.catalog
}

// Version of the loaded catalog.
func (d *Directory) Version() string {
	return d.catalog.Version
}

// =============================================================================
// Resolution
// =============================================================================

// Normalize resolves a raw category reference to a canonical id.
// Numeric references resolve to the exact category if known, else to the
// main category of their hundred. Names resolve by exact canonical name,
// then by pattern group. Unmatched names resolve to domain.CategoryOther
// unless the directory is strict. An absent reference never resolves.
func (d *Directory) Normalize(ref domain.CategoryRef) (domain.CategoryID, bool) {
	if ref.IsZero() {
		return 0, false
	}
	if n, ok := ref.Number(); ok {
		return d.normalizeNumber(n)
	}
	name, _ := ref.Name()
	return d.NormalizeString(name)
}

// NormalizeString resolves a textual category.
func (d *Directory) NormalizeString(raw string) (domain.CategoryID, bool) {
	s := strings.ToLower(strings.TrimSpace(raw))
	if s == "" {
		return 0, false
	}
	if n, err := strconv.Atoi(s); err == nil {
		return d.normalizeNumber(n)
	}
	if id, ok := d.byName[nameKey(s)]; ok {
		return id, true
	}
	for _, p := range d.patterns {
		if p.re.MatchString(s) {
			return p.category, true
		}
	}
	if d.strict {
		return 0, false
	}
	return domain.CategoryOther, true
}

func (d *Directory) normalizeNumber(n int) (domain.CategoryID, bool) {
	if n <= 0 {
		return 0, false
	}
	id := domain.CategoryID(n)
	if _, ok := d.byID[id]; ok {
		return id, true
	}
	mainID := hundred(id)
	if c, ok := d.byID[mainID]; ok && c.IsMain() {
		return mainID, true
	}
	return 0, false
}

// Resolve looks up a canonical id.
func (d *Directory) Resolve(id domain.CategoryID) (domain.Category, bool) {
	c, ok := d.byID[id]
	return c, ok
}

// Name returns the canonical name, or the numeric form for unknown ids.
func (d *Directory) Name(id domain.CategoryID) string {
	if c, ok := d.byID[id]; ok {
		return c.Name
	}
	return id.String()
}

// Parent returns the parent of a subcategory.
func (d *Directory) Parent(id domain.CategoryID) (domain.CategoryID, bool) {
	c, ok := d.byID[id]
	if !ok || c.IsMain() {
		return 0, false
	}
	return c.Parent, true
}

// MainOf returns the main category an id belongs to. Main categories map to
// themselves; unknown ids fall back to their numeric hundred.
func (d *Directory) MainOf(id domain.CategoryID) domain.CategoryID {
	if c, ok := d.byID[id]; ok {
		if c.IsMain() {
			return c.ID
		}
		return c.Parent
	}
	return hundred(id)
}

// Categories returns all categories ordered by id.
func (d *Directory) Categories() []domain.Category {
	out := make([]domain.Category, len(d.ordered))
	copy(out, d.ordered)
	return out
}

// =============================================================================
// Schemas and price tiers
// =============================================================================

// AttributesSchema returns the schema of a category. Subcategories inherit
// their main category's schema. Unknown categories report false; known
// categories without attributes return an empty schema.
func (d *Directory) AttributesSchema(id domain.CategoryID) (domain.AttributeSchema, bool) {
	if _, ok := d.byID[id]; !ok {
		return nil, false
	}
	if s, ok := d.catalog.Schemas[id]; ok {
		return s, true
	}
	if s, ok := d.catalog.Schemas[d.MainOf(id)]; ok {
		return s, true
	}
	return domain.AttributeSchema{}, true
}

// Schemas returns every declared schema keyed by category name.
func (d *Directory) Schemas() map[string]domain.AttributeSchema {
	out := make(map[string]domain.AttributeSchema, len(d.catalog.Schemas))
	for id, s := range d.catalog.Schemas {
		out[d.Name(id)] = s
	}
	return out
}

// PriceTiers returns the tiers that apply to a category.
func (d *Directory) PriceTiers(id domain.CategoryID) []domain.PriceTier {
	if t, ok := d.catalog.PriceTiers[d.MainOf(id)]; ok {
		return t
	}
	return d.catalog.PriceTiers[d.catalog.DefaultTiers]
}

// PriceRange maps an amount to its tier name. Tiers are half-open [min, max)
// with the last unbounded. Negative or non-finite amounts are "unknown".
func (d *Directory) PriceRange(amount float64, id domain.CategoryID) string {
	if amount < 0 || math.IsNaN(amount) || math.IsInf(amount, 0) {
		return domain.PriceUnknown
	}
	for _, t := range d.PriceTiers(id) {
		if t.Contains(amount) {
			return t.Name
		}
	}
	return domain.PriceUnknown
}

// nameKey canonicalizes a category name: lowercase words joined by "_".
func nameKey(s string) string {
	fields := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9')
	})
	return strings.Join(fields, "_")
}
