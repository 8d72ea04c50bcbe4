package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/goccy/go-json"
)

// DataType identifies the kind of behavioral batch being processed.
type DataType string

const (
	DataTypePurchase DataType = "purchase"
	DataTypeSearch   DataType = "search"
)

// IsKnown reports whether the data type has a processing path.
func (t DataType) IsKnown() bool {
	return t == DataTypePurchase || t == DataTypeSearch
}

// PurchaseItem is one line of a purchase.
type PurchaseItem struct {
	Name       string            `json:"name"`
	Category   CategoryRef       `json:"category,omitempty"`
	Price      *float64          `json:"price,omitempty"`
	Quantity   *float64          `json:"quantity,omitempty"`
	Attributes map[string]string `json:"attributes,omitempty"`
}

// QuantityOrDefault returns the quantity, defaulting to 1 when absent.
func (i PurchaseItem) QuantityOrDefault() float64 {
	if i.Quantity == nil {
		return 1
	}
	return *i.Quantity
}

// PurchaseEntry is a single purchase event.
type PurchaseEntry struct {
	Items     []PurchaseItem `json:"items"`
	Timestamp *time.Time     `json:"timestamp,omitempty"`
}

// SearchEntry is a single search event.
type SearchEntry struct {
	Query     string      `json:"query"`
	Category  CategoryRef `json:"category,omitempty"`
	Timestamp *time.Time  `json:"timestamp,omitempty"`
	Clicked   []string    `json:"clicked,omitempty"`
}

// RawEntry holds exactly one of Purchase or Search.
type RawEntry struct {
	Purchase *PurchaseEntry
	Search   *SearchEntry
}

// PurchaseOf wraps a purchase entry.
func PurchaseOf(items ...PurchaseItem) RawEntry {
	return RawEntry{Purchase: &PurchaseEntry{Items: items}}
}

// SearchOf wraps a search entry.
func SearchOf(query string) RawEntry {
	return RawEntry{Search: &SearchEntry{Query: query}}
}

// MarshalJSON writes whichever variant is set.
func (e RawEntry) MarshalJSON() ([]byte, error) {
	switch {
	case e.Purchase != nil:
		return json.Marshal(e.Purchase)
	case e.Search != nil:
		return json.Marshal(e.Search)
	default:
		return []byte("null"), nil
	}
}

// =============================================================================
// Lenient decoding
// =============================================================================

type rawPurchaseEntry struct {
	Items     []json.RawMessage `json:"items"`
	Timestamp string            `json:"timestamp"`
}

type rawPurchaseItem struct {
	Name       string                 `json:"name"`
	Category   CategoryRef            `json:"category"`
	Price      *float64               `json:"price"`
	Quantity   *float64               `json:"quantity"`
	Attributes map[string]interface{} `json:"attributes"`
}

type rawSearchEntry struct {
	Query     string      `json:"query"`
	Category  CategoryRef `json:"category"`
	Timestamp string      `json:"timestamp"`
	Clicked   []string    `json:"clicked"`
}

// DecodeEntries decodes raw JSON entries for the given data type. Malformed
// entries and malformed purchase items are dropped individually and counted
// in skipped; the batch itself never fails. Unknown data types decode to nil.
func DecodeEntries(dataType DataType, raws []json.RawMessage) (entries []RawEntry, skipped int) {
	for _, raw := range raws {
		var (
			entry RawEntry
			drop  int
			err   error
		)
		switch dataType {
		case DataTypePurchase:
			entry, drop, err = decodePurchase(raw)
		case DataTypeSearch:
			entry, err = decodeSearch(raw)
		default:
			return nil, 0
		}
		skipped += drop
		if err != nil {
			skipped++
			continue
		}
		entries = append(entries, entry)
	}
	return entries, skipped
}

func decodePurchase(raw json.RawMessage) (RawEntry, int, error) {
	var in rawPurchaseEntry
	if err := json.Unmarshal(raw, &in); err != nil {
		return RawEntry{}, 0, fmt.Errorf("decode purchase entry: %w", err)
	}

	out := &PurchaseEntry{Timestamp: parseTimestamp(in.Timestamp)}
	dropped := 0
	for _, rawItem := range in.Items {
		item, err := decodePurchaseItem(rawItem)
		if err != nil {
			dropped++
			continue
		}
		out.Items = append(out.Items, item)
	}
	return RawEntry{Purchase: out}, dropped, nil
}

func decodePurchaseItem(raw json.RawMessage) (PurchaseItem, error) {
	var in rawPurchaseItem
	if err := json.Unmarshal(raw, &in); err != nil {
		return PurchaseItem{}, fmt.Errorf("decode purchase item: %w", err)
	}

	item := PurchaseItem{
		Name:     in.Name,
		Category: in.Category,
		Price:    in.Price,
		Quantity: in.Quantity,
	}
	if len(in.Attributes) > 0 {
		item.Attributes = make(map[string]string, len(in.Attributes))
		for k, v := range in.Attributes {
			s, ok := v.(string)
			if !ok || s == "" {
				continue
			}
			item.Attributes[k] = s
		}
	}
	return item, nil
}

func decodeSearch(raw json.RawMessage) (RawEntry, error) {
	var in rawSearchEntry
	if err := json.Unmarshal(raw, &in); err != nil {
		return RawEntry{}, fmt.Errorf("decode search entry: %w", err)
	}
	query := strings.TrimSpace(in.Query)
	if query == "" {
		return RawEntry{}, fmt.Errorf("empty search query")
	}
	return RawEntry{Search: &SearchEntry{
		Query:     query,
		Category:  in.Category,
		Timestamp: parseTimestamp(in.Timestamp),
		Clicked:   in.Clicked,
	}}, nil
}

// parseTimestamp accepts RFC 3339 and leaves unparseable values unset.
func parseTimestamp(s string) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return &t
		}
	}
	return nil
}
