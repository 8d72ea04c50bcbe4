package extraction

import (
	"strings"

	"preference_server/core/domain"
	"preference_server/core/service/taxonomy"
)

// term is a substring cue and the attribute value it implies.
type term struct {
	match string
	value string
}

func terms(values ...string) []term {
	out := make([]term, len(values))
	for i, v := range values {
		out[i] = term{match: v, value: v}
	}
	return out
}

// minedAttribute is one attribute mined from item names.
type minedAttribute struct {
	name  string
	terms []term
}

// purchaseMiners lists the attributes mined from item names per main category.
var purchaseMiners = map[domain.CategoryID][]minedAttribute{
	taxonomy.Electronics: {
		{domain.AttrColor, terms("black", "white", "silver", "gold", "blue", "red")},
		{domain.AttrBrand, append(terms("apple", "samsung", "sony", "google", "lg"),
			term{"iphone", "apple"},
			term{"ipad", "apple"},
			term{"macbook", "apple"},
			term{"airpods", "apple"},
			term{"galaxy", "samsung"},
			term{"pixel", "google"},
			term{"playstation", "sony"},
		)},
		{domain.AttrFeature, terms("wireless", "smart", "portable", "gaming", "waterproof")},
	},
	taxonomy.Clothing: {
		{domain.AttrMaterial, terms("cotton", "wool", "polyester", "leather", "denim")},
		{domain.AttrStyle, terms("casual", "formal", "sport", "vintage", "business")},
	},
	taxonomy.HomeGarden: {
		{domain.AttrMaterial, terms("wood", "metal", "plastic", "glass", "fabric")},
		{domain.AttrRoom, terms("living", "bedroom", "kitchen", "bathroom", "office")},
	},
}

// mineName returns every attribute value implied by the lowercased text.
// Each value is reported once even if several cues imply it.
func mineName(text string, miners []minedAttribute) map[string][]string {
	if text == "" || len(miners) == 0 {
		return nil
	}
	found := make(map[string][]string)
	for _, m := range miners {
		seen := make(map[string]bool)
		for _, t := range m.terms {
			if seen[t.value] || !strings.Contains(text, t.match) {
				continue
			}
			seen[t.value] = true
			found[m.name] = append(found[m.name], t.value)
		}
	}
	return found
}

// =============================================================================
// Search cues
// =============================================================================

var priceCues = []struct {
	tier  string
	terms []string
}{
	{domain.PriceBudget, []string{"cheap", "inexpensive", "affordable", "budget"}},
	{domain.PricePremium, []string{"premium", "high-end", "high end", "quality"}},
	{domain.PriceLuxury, []string{"luxury", "luxurious", "expensive", "high-class"}},
	{domain.PriceMidRange, []string{"price", "cost", "$"}},
}

var (
	searchColors    = []string{"black", "white", "red", "blue", "green", "silver", "gold"}
	searchBrands    = []string{"apple", "samsung", "sony", "google", "lg"}
	searchMaterials = []string{"cotton", "wool", "leather", "denim"}
)

// priceIndication returns the price tier a query hints at. Cues are checked
// in order, so "inexpensive" is budget even though it contains "expensive".
func priceIndication(query string) (string, bool) {
	for _, cue := range priceCues {
		if containsAny(query, cue.terms) {
			return cue.tier, true
		}
	}
	return "", false
}

func firstContained(text string, candidates []string) (string, bool) {
	for _, c := range candidates {
		if strings.Contains(text, c) {
			return c, true
		}
	}
	return "", false
}

func containsAny(text string, candidates []string) bool {
	_, ok := firstContained(text, candidates)
	return ok
}
