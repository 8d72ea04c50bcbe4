package domain

// AttributeDistribution maps attribute name to value weights.
type AttributeDistribution map[string]map[string]float64

// Add accumulates weight for (attr, value).
func (d AttributeDistribution) Add(attr, value string, weight float64) {
	values, ok := d[attr]
	if !ok {
		values = make(map[string]float64)
		d[attr] = values
	}
	values[value] += weight
}

// Clone returns a deep copy.
func (d AttributeDistribution) Clone() AttributeDistribution {
	out := make(AttributeDistribution, len(d))
	for attr, values := range d {
		cp := make(map[string]float64, len(values))
		for v, w := range values {
			cp[v] = w
		}
		out[attr] = cp
	}
	return out
}

// EvidenceBundle is the category and attribute evidence derived from one
// batch of raw entries.
type EvidenceBundle struct {
	CategoryCounts         map[CategoryID]float64
	AttributeDistributions map[CategoryID]AttributeDistribution
}

// NewEvidenceBundle returns an empty bundle.
func NewEvidenceBundle() *EvidenceBundle {
	return &EvidenceBundle{
		CategoryCounts:         make(map[CategoryID]float64),
		AttributeDistributions: make(map[CategoryID]AttributeDistribution),
	}
}

// AddCategory accumulates category weight.
func (b *EvidenceBundle) AddCategory(id CategoryID, weight float64) {
	b.CategoryCounts[id] += weight
}

// AddAttribute accumulates an attribute observation for a category.
func (b *EvidenceBundle) AddAttribute(id CategoryID, attr, value string, weight float64) {
	dist, ok := b.AttributeDistributions[id]
	if !ok {
		dist = make(AttributeDistribution)
		b.AttributeDistributions[id] = dist
	}
	dist.Add(attr, value, weight)
}

// IsEmpty reports whether no evidence was collected.
func (b *EvidenceBundle) IsEmpty() bool {
	return len(b.CategoryCounts) == 0 && len(b.AttributeDistributions) == 0
}
