package domain

import (
	"strings"
	"time"
)

// SummaryRow is one line of the outer-joined wide sales table.
// Window totals are rounded to whole units, averages to one decimal.
type SummaryRow struct {
	SKU           string
	ASIN          string
	Windows       map[string]int64 // window name -> rounded units, zero-filled
	FourWeekAvg   float64
	ThreeMonthAvg float64
	WarehouseQty  float64 // merged warehouse available quantity, zero-filled
}

// IsVariant reports whether the row is a location-variant (-LOC) product.
func (r SummaryRow) IsVariant() bool {
	return strings.HasSuffix(strings.ToUpper(r.SKU), "-LOC")
}

// SalesSummary is the final wide table for one pipeline run. Transient:
// rebuilt on every invocation, never persisted.
type SalesSummary struct {
	Anchor time.Time
	Rows   []SummaryRow
}
