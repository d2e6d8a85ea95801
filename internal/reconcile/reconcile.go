// Package reconcile maps marketplace-level sales rows onto canonical
// product identities, honoring the "-LOC" variant listing convention.
package reconcile

import (
	"strings"

	"go.uber.org/zap"

	"seller-report-lab/internal/domain"
)

const locSuffix = "-LOC"

// IsVariantSKU reports whether a marketplace SKU names a variant listing.
// The check is case-insensitive.
func IsVariantSKU(sku string) bool {
	return strings.HasSuffix(strings.ToUpper(sku), locSuffix)
}

// stripVariant removes a trailing "-LOC" (any case) from s, if present.
func stripVariant(s string) string {
	if len(s) >= len(locSuffix) && strings.EqualFold(s[len(s)-len(locSuffix):], locSuffix) {
		return s[:len(s)-len(locSuffix)]
	}
	return s
}

// Mapping resolves child ASINs to canonical SKUs. Keys are base ASINs
// with any variant suffix already stripped.
type Mapping map[string]string

// NormalizeMapping builds an ASIN-to-SKU lookup from mapping entries.
// Variant suffixes are stripped from both fields so variant rows resolve
// through their base listing; on duplicate base ASINs the first entry wins.
func NormalizeMapping(entries []domain.MappingEntry, log *zap.Logger) Mapping {
	m := make(Mapping, len(entries))
	for _, e := range entries {
		asin := strings.TrimSpace(stripVariant(e.ChildASIN))
		sku := strings.TrimSpace(stripVariant(e.CanonicalSKU))
		if asin == "" || sku == "" {
			continue
		}
		if prev, ok := m[asin]; ok {
			if prev != sku {
				log.Debug("duplicate mapping for ASIN, keeping first",
					zap.String("asin", asin),
					zap.String("kept_sku", prev),
					zap.String("ignored_sku", sku))
			}
			continue
		}
		m[asin] = sku
	}
	return m
}

// Apply folds marketplace sales rows into canonical per-product unit
// totals. Rows whose marketplace SKU carries the variant suffix resolve
// to a distinct variant identity (base ASIN + "-loc", canonical SKU +
// "-LOC"); all other rows resolve to the base identity. Rows whose ASIN
// has no mapping entry are dropped and counted.
func (m Mapping) Apply(rows []domain.SalesRow, log *zap.Logger) (domain.WindowUnits, int) {
	units := make(domain.WindowUnits)
	dropped := 0
	for _, row := range rows {
		baseASIN := stripVariant(row.ChildASIN)
		canonical, ok := m[baseASIN]
		if !ok {
			dropped++
			continue
		}

		key := domain.ProductKey{SKU: canonical, ASIN: baseASIN}
		if IsVariantSKU(row.MarketplaceSKU) {
			key = domain.ProductKey{
				SKU:  canonical + "-LOC",
				ASIN: baseASIN + "-loc",
			}
		}
		units[key] += row.Units
	}
	if dropped > 0 {
		log.Warn("dropped unmapped sales rows", zap.Int("dropped", dropped))
	}
	return units, dropped
}
