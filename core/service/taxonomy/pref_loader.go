package taxonomy

import (
	"fmt"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"

	"preference_server/core/domain"
)

// Validate checks the structural invariants of a catalog: unique ids and
// names, main ids on a hundred, every subcategory under an existing main
// category within that main's hundred, compilable patterns, and ascending
// price tiers with an unbounded last tier.
func (c *Catalog) Validate() error {
	ids := make(map[domain.CategoryID]domain.Category, len(c.Categories))
	names := make(map[string]domain.CategoryID, len(c.Categories))
	for _, cat := range c.Categories {
		if _, dup := ids[cat.ID]; dup {
			return fmt.Errorf("taxonomy: duplicate category id %d", cat.ID)
		}
		key := nameKey(cat.Name)
		if key == "" {
			return fmt.Errorf("taxonomy: category %d has no name", cat.ID)
		}
		if other, dup := names[key]; dup {
			return fmt.Errorf("taxonomy: name %q used by %d and %d", cat.Name, other, cat.ID)
		}
		ids[cat.ID] = cat
		names[key] = cat.ID
	}

	for _, cat := range c.Categories {
		if cat.IsMain() {
			if cat.ID%100 != 0 {
				return fmt.Errorf("taxonomy: main category %d is not a multiple of 100", cat.ID)
			}
			continue
		}
		parent, ok := ids[cat.Parent]
		if !ok {
			return fmt.Errorf("taxonomy: category %d has unknown parent %d", cat.ID, cat.Parent)
		}
		if !parent.IsMain() {
			return fmt.Errorf("taxonomy: category %d nested under subcategory %d", cat.ID, cat.Parent)
		}
		if hundred(cat.ID) != cat.Parent {
			return fmt.Errorf("taxonomy: category %d outside the id range of parent %d", cat.ID, cat.Parent)
		}
	}

	for _, p := range c.Patterns {
		if _, err := regexp.Compile(p.Pattern); err != nil {
			return fmt.Errorf("taxonomy: pattern %q: %w", p.Pattern, err)
		}
		if _, ok := ids[p.Category]; !ok {
			return fmt.Errorf("taxonomy: pattern %q targets unknown category %d", p.Pattern, p.Category)
		}
	}

	for id, ts := range c.PriceTiers {
		if err := validateTiers(ts); err != nil {
			return fmt.Errorf("taxonomy: price tiers of %d: %w", id, err)
		}
	}
	if _, ok := c.PriceTiers[c.DefaultTiers]; !ok {
		return fmt.Errorf("taxonomy: default tiers %d not defined", c.DefaultTiers)
	}

	for _, groups := range [][]KeywordGroup{c.SubcategoryKeywords, c.MainKeywords, c.Synonyms} {
		for _, g := range groups {
			if _, ok := ids[g.Category]; !ok {
				return fmt.Errorf("taxonomy: keywords reference unknown category %d", g.Category)
			}
		}
	}
	return nil
}

// hundred is the main category id that numeric fallback assigns to id.
func hundred(id domain.CategoryID) domain.CategoryID {
	return (id / 100) * 100
}

func validateTiers(ts []domain.PriceTier) error {
	if len(ts) == 0 {
		return fmt.Errorf("no tiers")
	}
	for i, t := range ts {
		last := i == len(ts)-1
		switch {
		case last && t.Max != 0:
			return fmt.Errorf("last tier %q must be unbounded", t.Name)
		case !last && t.Max <= t.Min:
			return fmt.Errorf("tier %q has max %v <= min %v", t.Name, t.Max, t.Min)
		case i > 0 && t.Min != ts[i-1].Max:
			return fmt.Errorf("tier %q does not start where %q ends", t.Name, ts[i-1].Name)
		}
	}
	return nil
}

// LoadFile reads a YAML catalog overlay and merges it into base.
// Categories, schemas and tiers in the file replace entries with the same
// key; pattern and keyword groups are appended after the base groups.
func LoadFile(path string, base *Catalog) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("taxonomy: read %s: %w", path, err)
	}
	return Parse(data, base)
}

// Parse merges a YAML overlay into base and validates the result.
func Parse(data []byte, base *Catalog) (*Catalog, error) {
	var overlay Catalog
	if err := yaml.Unmarshal(data, &overlay); err != nil {
		return nil, fmt.Errorf("taxonomy: parse overlay: %w", err)
	}
	if base == nil {
		base = &Catalog{}
	}
	merged := merge(base, &overlay)
	if err := merged.Validate(); err != nil {
		return nil, err
	}
	return merged, nil
}

func merge(base, overlay *Catalog) *Catalog {
	out := &Catalog{
		Version:      base.Version,
		Schemas:      make(map[domain.CategoryID]domain.AttributeSchema, len(base.Schemas)),
		PriceTiers:   make(map[domain.CategoryID][]domain.PriceTier, len(base.PriceTiers)),
		DefaultTiers: base.DefaultTiers,
	}
	if overlay.Version != "" {
		out.Version = overlay.Version
	}
	if overlay.DefaultTiers != 0 {
		out.DefaultTiers = overlay.DefaultTiers
	}

	replaced := make(map[domain.CategoryID]domain.Category, len(overlay.Categories))
	for _, c := range overlay.Categories {
		replaced[c.ID] = c
	}
	for _, c := range base.Categories {
		if r, ok := replaced[c.ID]; ok {
			out.Categories = append(out.Categories, r)
			delete(replaced, c.ID)
			continue
		}
		out.Categories = append(out.Categories, c)
	}
	for _, c := range overlay.Categories {
		if _, ok := replaced[c.ID]; ok {
			out.Categories = append(out.Categories, c)
		}
	}

	for id, s := range base.Schemas {
		out.Schemas[id] = s
	}
	for id, s := range overlay.Schemas {
		out.Schemas[id] = s
	}
	for id, t := range base.PriceTiers {
		out.PriceTiers[id] = t
	}
	for id, t := range overlay.PriceTiers {
		out.PriceTiers[id] = t
	}

	out.Patterns = append(append([]PatternGroup{}, base.Patterns...), overlay.Patterns...)
	out.SubcategoryKeywords = append(append([]KeywordGroup{}, base.SubcategoryKeywords...), overlay.SubcategoryKeywords...)
	out.MainKeywords = append(append([]KeywordGroup{}, base.MainKeywords...), overlay.MainKeywords...)
	out.Synonyms = append(append([]KeywordGroup{}, base.Synonyms...), overlay.Synonyms...)
	return out
}
