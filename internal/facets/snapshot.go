package facets

import "time"

// Dimension names one facet.
type Dimension string

const (
	Series   Dimension = "series"
	ItemType Dimension = "item_type"
	Language Dimension = "language"
	Decade   Dimension = "decade"
	Box      Dimension = "box"
	Year     Dimension = "year"
	Model    Dimension = "analysis_model"
)

// Dimensions lists every facet in display order.
var Dimensions = []Dimension{Series, ItemType, Language, Decade, Box, Year, Model}

// Bucket is one value and the number of items carrying it.
type Bucket struct {
	Value string `json:"value"`
	Count int    `json:"count"`
}

// Snapshot is an immutable set of facet counts. Callers must not modify
// the bucket slices; the same snapshot is shared by every cache reader.
type Snapshot struct {
	Facets     map[Dimension][]Bucket `json:"facets"`
	Total      int                    `json:"total"`
	ComputedAt time.Time              `json:"computed_at"`
}

// Buckets returns the counts for one dimension.
func (s Snapshot) Buckets(d Dimension) []Bucket {
	return s.Facets[d]
}
