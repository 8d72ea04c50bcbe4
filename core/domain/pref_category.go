package domain

import (
	"bytes"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/goccy/go-json"
)

// CategoryID is the canonical identifier of a taxonomy node.
// Main categories are multiples of 100, subcategories sit inside their
// parent's hundred (101..199 belong to 100).
type CategoryID int

// CategoryOther is the generic fallback category used when a raw category
// cannot be mapped and the directory is not strict.
const CategoryOther CategoryID = 0

func (id CategoryID) String() string {
	return strconv.Itoa(int(id))
}

// IsMain reports whether the id is in the main-category position of its range.
func (id CategoryID) IsMain() bool {
	return id > 0 && int(id)%100 == 0
}

// ParseCategoryID parses the string form produced by CategoryID.String.
func ParseCategoryID(s string) (CategoryID, error) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("invalid category id %q: %w", s, err)
	}
	if n < 0 {
		return 0, fmt.Errorf("invalid category id %q: negative", s)
	}
	return CategoryID(n), nil
}

// =============================================================================
// CategoryRef
// =============================================================================

type categoryRefKind uint8

const (
	categoryRefNone categoryRefKind = iota
	categoryRefNumber
	categoryRefName
)

// CategoryRef is a raw category reference as it arrives from callers:
// either a numeric id or a free-form name. It is resolved to a CategoryID
// by the taxonomy directory and never used downstream of it.
type CategoryRef struct {
	kind   categoryRefKind
	number int
	name   string
}

// CategoryNumber builds a numeric reference.
func CategoryNumber(n int) CategoryRef {
	return CategoryRef{kind: categoryRefNumber, number: n}
}

// CategoryName builds a name reference.
func CategoryName(name string) CategoryRef {
	return CategoryRef{kind: categoryRefName, name: name}
}

// IsZero reports whether no category was supplied.
func (r CategoryRef) IsZero() bool {
	return r.kind == categoryRefNone || (r.kind == categoryRefName && strings.TrimSpace(r.name) == "")
}

// Number returns the numeric form if the reference was numeric.
func (r CategoryRef) Number() (int, bool) {
	return r.number, r.kind == categoryRefNumber
}

// Name returns the textual form if the reference was a name.
func (r CategoryRef) Name() (string, bool) {
	return r.name, r.kind == categoryRefName
}

func (r CategoryRef) String() string {
	switch r.kind {
	case categoryRefNumber:
		return strconv.Itoa(r.number)
	case categoryRefName:
		return r.name
	default:
		return ""
	}
}

// UnmarshalJSON accepts a JSON number, string or null.
func (r *CategoryRef) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*r = CategoryRef{}
		return nil
	}

	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*r = CategoryName(s)
		return nil
	}

	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("category must be a number or string: %w", err)
	}
	if f != math.Trunc(f) || math.IsInf(f, 0) {
		return fmt.Errorf("category id must be an integer, got %v", f)
	}
	*r = CategoryNumber(int(f))
	return nil
}

// MarshalJSON writes the reference back in its original form.
func (r CategoryRef) MarshalJSON() ([]byte, error) {
	switch r.kind {
	case categoryRefNumber:
		return []byte(strconv.Itoa(r.number)), nil
	case categoryRefName:
		return json.Marshal(r.name)
	default:
		return []byte("null"), nil
	}
}

// =============================================================================
// Taxonomy types
// =============================================================================

// Category is a taxonomy node.
type Category struct {
	ID     CategoryID `json:"id" yaml:"id"`
	Name   string     `json:"name" yaml:"name"`
	Parent CategoryID `json:"parent,omitempty" yaml:"parent,omitempty"`
}

// IsMain reports whether the category has no parent.
func (c Category) IsMain() bool {
	return c.Parent == 0
}

// AttributeSpec describes one attribute of a category schema.
// An empty Values list means the attribute is numeric or free-form.
type AttributeSpec struct {
	Values  []string `json:"values,omitempty" yaml:"values,omitempty"`
	Numeric bool     `json:"numeric,omitempty" yaml:"numeric,omitempty"`
}

// IsClosed reports whether the attribute only accepts enumerated values.
func (a AttributeSpec) IsClosed() bool {
	return len(a.Values) > 0
}

// Allows reports whether value is acceptable for this attribute.
func (a AttributeSpec) Allows(value string) bool {
	if !a.IsClosed() {
		return true
	}
	for _, v := range a.Values {
		if v == value {
			return true
		}
	}
	return false
}

// AttributeSchema maps attribute name to its specification.
type AttributeSchema map[string]AttributeSpec

// Has reports whether the attribute is declared.
func (s AttributeSchema) Has(name string) bool {
	_, ok := s[name]
	return ok
}

// PriceTier is a half-open price interval [Min, Max). Max == 0 on the
// last tier means unbounded above.
type PriceTier struct {
	Name string  `json:"name" yaml:"name"`
	Min  float64 `json:"min" yaml:"min"`
	Max  float64 `json:"max,omitempty" yaml:"max,omitempty"`
}

// Contains reports whether amount falls inside the tier.
func (t PriceTier) Contains(amount float64) bool {
	if amount < t.Min {
		return false
	}
	return t.Max == 0 || amount < t.Max
}

// Price tier names.
const (
	PriceBudget   = "budget"
	PriceMidRange = "mid_range"
	PricePremium  = "premium"
	PriceLuxury   = "luxury"
	PriceUnknown  = "unknown"
)

// Derived attribute names that bypass schema validation.
const (
	AttrPriceRange = "price_range"
	AttrColor      = "color"
	AttrBrand      = "brand"
	AttrMaterial   = "material"
	AttrFeature    = "feature"
	AttrStyle      = "style"
	AttrRoom       = "room"
)
