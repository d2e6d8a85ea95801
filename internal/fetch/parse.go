package fetch

import (
	"encoding/json"
	"sort"
	"strings"

	"seller-report-lab/internal/domain"
)

// rowContainer is the expected row list inside a sales-and-traffic payload.
const rowContainer = "salesAndTrafficByAsin"

// unitContainers are the known per-row shapes carrying unitsOrdered, in
// priority order. Upstream payload shapes drifted over time; SKU-granular
// reports currently populate salesByAsin, older ones salesBySku. A flat
// unitsOrdered field is the final fallback.
var unitContainers = []string{"salesBySku", "salesByAsin", "salesByDate"}

const maxSchemaKeys = 60

type rawRow struct {
	ChildASIN string `json:"childAsin"`
	SKU       string `json:"sku"`
}

// ParseSalesRows decodes a report document into row-level sales data.
// Rows missing either identifier are skipped; duplicate (asin, sku) pairs
// are summed. An empty row container yields zero rows, not an error:
// upstream legitimately returns no data for the most recent day.
func ParseSalesRows(content []byte) ([]domain.SalesRow, error) {
	text := strings.TrimSpace(string(content))

	var payload map[string]json.RawMessage
	if err := json.Unmarshal([]byte(text), &payload); err != nil {
		return nil, &DecodeError{Stage: "json", Preview: preview([]byte(text)), Err: err}
	}

	rawRows, ok := payload[rowContainer]
	if !ok {
		return nil, &SchemaError{Container: rowContainer, TopKeys: topKeys(payload)}
	}

	var rows []json.RawMessage
	if err := json.Unmarshal(rawRows, &rows); err != nil {
		return nil, &SchemaError{Container: rowContainer, TopKeys: topKeys(payload)}
	}

	units := make(map[domain.SalesRow]float64) // keyed with Units zeroed
	for _, r := range rows {
		var ids rawRow
		if err := json.Unmarshal(r, &ids); err != nil {
			continue
		}
		asin := strings.TrimSpace(ids.ChildASIN)
		sku := strings.TrimSpace(ids.SKU)
		if asin == "" || sku == "" {
			continue
		}
		key := domain.SalesRow{ChildASIN: asin, MarketplaceSKU: sku}
		units[key] += unitsOrdered(r)
	}

	out := make([]domain.SalesRow, 0, len(units))
	for key, u := range units {
		key.Units = u
		out = append(out, key)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ChildASIN != out[j].ChildASIN {
			return out[i].ChildASIN < out[j].ChildASIN
		}
		return out[i].MarketplaceSKU < out[j].MarketplaceSKU
	})
	return out, nil
}

// unitsOrdered extracts the unit count from one row, trying each known
// schema variant in priority order. Rows with no recognizable shape count
// as zero units rather than failing the whole report.
func unitsOrdered(row json.RawMessage) float64 {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(row, &fields); err != nil {
		return 0
	}

	for _, container := range unitContainers {
		raw, ok := fields[container]
		if !ok {
			continue
		}
		var inner struct {
			UnitsOrdered *float64 `json:"unitsOrdered"`
		}
		if err := json.Unmarshal(raw, &inner); err != nil {
			continue
		}
		if inner.UnitsOrdered != nil {
			return *inner.UnitsOrdered
		}
	}

	if raw, ok := fields["unitsOrdered"]; ok {
		var v float64
		if err := json.Unmarshal(raw, &v); err == nil {
			return v
		}
	}
	return 0
}

func topKeys(payload map[string]json.RawMessage) []string {
	keys := make([]string, 0, len(payload))
	for k := range payload {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	if len(keys) > maxSchemaKeys {
		keys = keys[:maxSchemaKeys]
	}
	return keys
}
