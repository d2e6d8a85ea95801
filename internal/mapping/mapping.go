// Package mapping loads the product mapping snapshot that ties child
// ASINs to canonical SKUs.
package mapping

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"strings"

	"seller-report-lab/internal/domain"
)

// Source yields the raw mapping entries for one run.
type Source interface {
	Load(ctx context.Context) ([]domain.MappingEntry, error)
}

// Header names accepted for each column, compared case-insensitively
// after trimming.
var (
	asinHeaders = []string{"asin", "child asin", "child_asin", "childasin"}
	skuHeaders  = []string{"sku", "merchant sku", "merchant_sku", "seller sku", "seller_sku", "canonical sku"}
)

// CSVSource reads mapping entries from a CSV snapshot file. The first
// row must be a header naming an ASIN column and a SKU column.
type CSVSource struct {
	Path string
}

var _ Source = (*CSVSource)(nil)

// Load parses the snapshot. Rows with a blank ASIN or SKU are skipped;
// duplicate handling is left to the reconciler.
func (s *CSVSource) Load(_ context.Context) ([]domain.MappingEntry, error) {
	f, err := os.Open(s.Path)
	if err != nil {
		return nil, fmt.Errorf("open mapping snapshot: %w", err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read mapping snapshot %s: %w", s.Path, err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("mapping snapshot %s: empty file", s.Path)
	}

	asinCol, skuCol, err := locateColumns(records[0])
	if err != nil {
		return nil, fmt.Errorf("mapping snapshot %s: %w", s.Path, err)
	}

	entries := make([]domain.MappingEntry, 0, len(records)-1)
	for _, rec := range records[1:] {
		if asinCol >= len(rec) || skuCol >= len(rec) {
			continue
		}
		asin := strings.TrimSpace(rec[asinCol])
		sku := strings.TrimSpace(rec[skuCol])
		if asin == "" || sku == "" {
			continue
		}
		entries = append(entries, domain.MappingEntry{ChildASIN: asin, CanonicalSKU: sku})
	}
	return entries, nil
}

func locateColumns(header []string) (asinCol, skuCol int, err error) {
	asinCol, skuCol = -1, -1
	for i, name := range header {
		name = strings.ToLower(strings.TrimSpace(name))
		if asinCol < 0 && contains(asinHeaders, name) {
			asinCol = i
		}
		if skuCol < 0 && contains(skuHeaders, name) {
			skuCol = i
		}
	}
	if asinCol < 0 {
		return 0, 0, fmt.Errorf("no ASIN column in header %v", header)
	}
	if skuCol < 0 {
		return 0, 0, fmt.Errorf("no SKU column in header %v", header)
	}
	return asinCol, skuCol, nil
}

func contains(candidates []string, name string) bool {
	for _, c := range candidates {
		if c == name {
			return true
		}
	}
	return false
}

// StaticSource serves a fixed entry list, for tests and dry runs.
type StaticSource struct {
	Entries []domain.MappingEntry
}

var _ Source = (*StaticSource)(nil)

func (s *StaticSource) Load(context.Context) ([]domain.MappingEntry, error) {
	return s.Entries, nil
}
