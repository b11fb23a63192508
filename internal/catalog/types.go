package catalog

// Catalog file structure for catalog.json
type CatalogData struct {
	Cards      []CardEntry         `json:"cards"`
	Categories map[string][]string `json:"categories,omitempty"`
}

// CardEntry is one acceptable gift card product. Type doubles as the
// primary key within the catalog.
type CardEntry struct {
	Type    string    `json:"type"`
	Amounts []float64 `json:"amounts"`
}

// FilterCriteria narrows the catalog for faceted browsing. A nil/empty
// Category means "all"; an empty SearchTerm is a no-op.
type FilterCriteria struct {
	Category   string `json:"category,omitempty"`
	SearchTerm string `json:"search,omitempty"`
}
