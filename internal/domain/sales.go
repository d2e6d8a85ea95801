package domain

// SalesRow is one row-level unit count from a single window pull.
// Multiple raw report records with the same (ChildASIN, MarketplaceSKU)
// are summed during parsing.
type SalesRow struct {
	ChildASIN      string  `json:"child_asin"` // marketplace product identifier
	MarketplaceSKU string  `json:"amazon_sku"` // marketplace-local SKU, may carry a -LOC suffix
	Units          float64 `json:"units"`      // ordered units, >= 0
}

// MappingEntry maps a marketplace product identifier to the canonical SKU.
// Sourced as a bulk snapshot; suffix-stripped before use (see reconcile).
type MappingEntry struct {
	ChildASIN    string
	CanonicalSKU string
}

// ProductKey is the output identity of reconciliation: canonical SKU plus
// variant-adjusted ASIN. Variant rows carry a "-LOC"/"-loc" suffix so they
// never collapse into their base product.
type ProductKey struct {
	SKU  string
	ASIN string
}

// WindowUnits maps reconciled products to summed units for one window.
type WindowUnits map[ProductKey]float64
