package export

import (
	"fmt"
	"strings"

	"seller-report-lab/internal/domain"
)

// RenderCSV renders the wide sales summary as a CSV string. Window
// columns appear in presentation order between the identity columns and
// the averages; the warehouse quantity closes each row.
func RenderCSV(summary *domain.SalesSummary) string {
	var sb strings.Builder

	// Header
	sb.WriteString("sku,asin")
	for _, name := range domain.WindowNames {
		sb.WriteString(",")
		sb.WriteString(csvField(name))
	}
	sb.WriteString(",4 Week Avg,3 Month Avg,Warehouse Qty\n")

	// Rows
	for _, row := range summary.Rows {
		sb.WriteString(csvField(row.SKU))
		sb.WriteString(",")
		sb.WriteString(csvField(row.ASIN))
		for _, name := range domain.WindowNames {
			sb.WriteString(fmt.Sprintf(",%d", row.Windows[name]))
		}
		sb.WriteString(fmt.Sprintf(",%.1f,%.1f,%g\n", row.FourWeekAvg, row.ThreeMonthAvg, row.WarehouseQty))
	}

	return sb.String()
}

// RenderVariantCSV renders only the location-variant rows, same columns.
func RenderVariantCSV(summary *domain.SalesSummary) string {
	filtered := &domain.SalesSummary{Anchor: summary.Anchor}
	for _, row := range summary.Rows {
		if row.IsVariant() {
			filtered.Rows = append(filtered.Rows, row)
		}
	}
	return RenderCSV(filtered)
}

// csvField quotes a field when it contains a separator, quote or newline.
func csvField(s string) string {
	if !strings.ContainsAny(s, ",\"\n") {
		return s
	}
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}
