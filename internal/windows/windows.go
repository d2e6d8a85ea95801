// Package windows derives the rolling report windows from an anchor date
// and aggregates per-window sales into the wide summary table.
package windows

import (
	"context"
	"math"
	"sort"
	"time"

	"go.uber.org/zap"

	"seller-report-lab/internal/domain"
	"seller-report-lab/internal/reconcile"
)

// BuildWindows returns the eight rolling windows anchored at the given
// date. All windows are inclusive on both ends.
func BuildWindows(anchor time.Time) []domain.Window {
	day := func(offset int) time.Time {
		a := anchor.UTC()
		return time.Date(a.Year(), a.Month(), a.Day(), 0, 0, 0, 0, time.UTC).AddDate(0, 0, offset)
	}
	return []domain.Window{
		{Name: domain.Window1Day, Start: day(0), End: day(0)},
		{Name: domain.Window7Days, Start: day(-6), End: day(0)},
		{Name: domain.Window8to14, Start: day(-13), End: day(-7)},
		{Name: domain.Window15to21, Start: day(-20), End: day(-14)},
		{Name: domain.Window22to28, Start: day(-27), End: day(-21)},
		{Name: domain.Window1to28, Start: day(-27), End: day(0)},
		{Name: domain.Window29to56, Start: day(-55), End: day(-28)},
		{Name: domain.Window57to84, Start: day(-83), End: day(-56)},
	}
}

// RowFetcher pulls row-level sales data for one window.
type RowFetcher interface {
	FetchWindow(ctx context.Context, w domain.Window) ([]domain.SalesRow, error)
}

// Aggregator builds the wide sales table window by window.
type Aggregator struct {
	fetcher RowFetcher
	mapping reconcile.Mapping
	log     *zap.Logger
}

// NewAggregator creates an Aggregator. A nil logger defaults to no-op.
func NewAggregator(fetcher RowFetcher, mapping reconcile.Mapping, log *zap.Logger) *Aggregator {
	if log == nil {
		log = zap.NewNop()
	}
	return &Aggregator{fetcher: fetcher, mapping: mapping, log: log}
}

// Build fetches every window anchored at the given date and assembles the
// summary table. A single failed window aborts the whole build.
func (a *Aggregator) Build(ctx context.Context, anchor time.Time) (*domain.SalesSummary, error) {
	perWindow := make(map[string]domain.WindowUnits)
	for _, w := range BuildWindows(anchor) {
		rows, err := a.fetcher.FetchWindow(ctx, w)
		if err != nil {
			return nil, err
		}
		units, dropped := a.mapping.Apply(rows, a.log)
		a.log.Info("window aggregated",
			zap.String("window", w.Name),
			zap.Int("rows", len(rows)),
			zap.Int("products", len(units)),
			zap.Int("dropped", dropped))
		perWindow[w.Name] = units
	}
	return &domain.SalesSummary{Anchor: anchor, Rows: BuildWideTable(perWindow)}, nil
}

// BuildWideTable outer-joins per-window unit totals into summary rows,
// zero-filling windows a product never sold in. Rows come back sorted by
// SKU then ASIN.
func BuildWideTable(perWindow map[string]domain.WindowUnits) []domain.SummaryRow {
	products := make(map[domain.ProductKey]struct{})
	for _, units := range perWindow {
		for key := range units {
			products[key] = struct{}{}
		}
	}

	rows := make([]domain.SummaryRow, 0, len(products))
	for key := range products {
		row := domain.SummaryRow{
			SKU:     key.SKU,
			ASIN:    key.ASIN,
			Windows: make(map[string]int64, len(domain.WindowNames)),
		}

		// Averages come from the unrounded per-window floats; only the
		// displayed window totals are rounded to whole units.
		raw := make(map[string]float64, len(domain.WindowNames))
		for _, name := range domain.WindowNames {
			v := perWindow[name][key]
			raw[name] = v
			row.Windows[name] = int64(math.Round(v))
		}
		row.FourWeekAvg = roundTo1(componentMean(perWindow, raw, domain.FourWeekWindows))
		row.ThreeMonthAvg = roundTo1(componentMean(perWindow, raw, domain.ThreeMonthWindows))
		rows = append(rows, row)
	}

	sort.Slice(rows, func(i, j int) bool {
		if rows[i].SKU != rows[j].SKU {
			return rows[i].SKU < rows[j].SKU
		}
		return rows[i].ASIN < rows[j].ASIN
	})
	return rows
}

// componentMean averages the named windows. The average is only
// meaningful when every component window made it into the joined table;
// if any is missing outright the whole average is 0. A window that is
// present but has no units for this product still contributes 0.
func componentMean(perWindow map[string]domain.WindowUnits, raw map[string]float64, names []string) float64 {
	if len(names) == 0 {
		return 0
	}
	var sum float64
	for _, name := range names {
		if _, ok := perWindow[name]; !ok {
			return 0
		}
		sum += raw[name]
	}
	return sum / float64(len(names))
}

func roundTo1(v float64) float64 {
	return math.Round(v*10) / 10
}
