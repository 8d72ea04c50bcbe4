package classification

import (
	"strings"
	"sync"

	"preference_server/core/domain"
	"preference_server/core/service/taxonomy"
)

// =============================================================================
// Keyword Table
// =============================================================================

type keywordEntry struct {
	keyword  string
	category domain.CategoryID
}

// KeywordTable is an ordered keyword to category mapping.
// It is immutable after construction.
type KeywordTable struct {
	entries []keywordEntry
	index   map[string]domain.CategoryID
}

// BuildKeywordTable builds the table from a directory's catalog.
// Subcategory keywords are registered first, then category display names,
// then main-category fallback keywords. A keyword keeps the category it
// was first registered with.
func BuildKeywordTable(dir *taxonomy.Directory) *KeywordTable {
	t := &KeywordTable{index: make(map[string]domain.CategoryID)}
	catalog := dir.Catalog()

	for _, g := range catalog.SubcategoryKeywords {
		for _, kw := range g.Keywords {
			t.add(kw, g.Category)
		}
	}

	var mains []domain.Category
	for _, c := range dir.Categories() {
		if c.ID == domain.CategoryOther {
			continue
		}
		if c.IsMain() {
			mains = append(mains, c)
			continue
		}
		t.add(displayName(c.Name), c.ID)
	}

	for _, g := range catalog.MainKeywords {
		for _, kw := range g.Keywords {
			t.add(kw, g.Category)
		}
	}
	for _, c := range mains {
		t.add(displayName(c.Name), c.ID)
	}
	return t
}

func (t *KeywordTable) add(keyword string, category domain.CategoryID) {
	kw := strings.ToLower(strings.TrimSpace(keyword))
	if kw == "" {
		return
	}
	if _, exists := t.index[kw]; exists {
		return
	}
	t.index[kw] = category
	t.entries = append(t.entries, keywordEntry{keyword: kw, category: category})
}

// Len returns the number of keywords.
func (t *KeywordTable) Len() int {
	return len(t.entries)
}

// Lookup returns the category of an exact keyword.
func (t *KeywordTable) Lookup(keyword string) (domain.CategoryID, bool) {
	id, ok := t.index[keyword]
	return id, ok
}

// Mappings returns keyword to category id strings.
func (t *KeywordTable) Mappings() map[string]string {
	out := make(map[string]string, len(t.entries))
	for _, e := range t.entries {
		out[e.keyword] = e.category.String()
	}
	return out
}

func displayName(name string) string {
	return strings.ReplaceAll(name, "_", " ")
}

// =============================================================================
// Keyword Classifier
// =============================================================================

// KeywordClassifier maps text to categories with the keyword table.
// The table is built on first use and shared by all callers.
type KeywordClassifier struct {
	dir   *taxonomy.Directory
	once  sync.Once
	table *KeywordTable
}

// NewKeywordClassifier creates a classifier over the directory.
func NewKeywordClassifier(dir *taxonomy.Directory) *KeywordClassifier {
	return &KeywordClassifier{dir: dir}
}

// Table returns the keyword table, building it once.
func (k *KeywordClassifier) Table() *KeywordTable {
	k.once.Do(func() {
		k.table = BuildKeywordTable(k.dir)
	})
	return k.table
}

// Classify returns the category of the first keyword, in table order, that
// occurs as a substring of the lowercased text.
func (k *KeywordClassifier) Classify(text string) (domain.CategoryID, string, bool) {
	if strings.TrimSpace(text) == "" {
		return 0, "", false
	}
	lower := strings.ToLower(text)
	for _, e := range k.Table().entries {
		if strings.Contains(lower, e.keyword) {
			return e.category, e.keyword, true
		}
	}
	return 0, "", false
}

// ClassifyMulti counts exact token matches per category and normalizes the
// counts to sum to 1. No match yields an empty map.
func (k *KeywordClassifier) ClassifyMulti(tokens []string) map[domain.CategoryID]float64 {
	table := k.Table()
	counts := make(map[domain.CategoryID]float64)
	total := 0.0
	for _, tok := range tokens {
		if id, ok := table.Lookup(tok); ok {
			counts[id]++
			total++
		}
	}
	if total == 0 {
		return counts
	}
	for id, c := range counts {
		counts[id] = c / total
	}
	return counts
}
