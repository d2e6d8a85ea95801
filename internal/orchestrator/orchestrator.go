// Package orchestrator coordinates one end-to-end summary run.
// Flow: mapping load → window aggregation → warehouse merge → export
package orchestrator

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"seller-report-lab/internal/domain"
	"seller-report-lab/internal/export"
	"seller-report-lab/internal/fetch"
	"seller-report-lab/internal/mapping"
	"seller-report-lab/internal/reconcile"
	"seller-report-lab/internal/warehouse"
	"seller-report-lab/internal/windows"
)

// Orchestrator runs the weekly summary pipeline end to end.
type Orchestrator struct {
	pipeline      *fetch.Pipeline
	mappingSource mapping.Source
	inventory     warehouse.InventoryService // nil disables the warehouse merge
	generator     *export.Generator

	reportType    string
	marketplaceID string
	reportOptions map[string]string
	viewQuery     warehouse.ViewQuery
	reuseCache    bool

	log *zap.Logger
}

// Options for creating Orchestrator.
type Options struct {
	// Required collaborators
	Pipeline      *fetch.Pipeline
	MappingSource mapping.Source
	Generator     *export.Generator

	// Optional: when nil, warehouse quantities stay zero
	Inventory warehouse.InventoryService
	ViewQuery warehouse.ViewQuery

	// Report identity
	ReportType    string
	MarketplaceID string
	ReportOptions map[string]string

	// ReuseCache lets cached report windows short-circuit upstream pulls
	ReuseCache bool

	Logger *zap.Logger
}

// New creates an Orchestrator.
func New(opts Options) *Orchestrator {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Orchestrator{
		pipeline:      opts.Pipeline,
		mappingSource: opts.MappingSource,
		inventory:     opts.Inventory,
		generator:     opts.Generator,
		reportType:    opts.ReportType,
		marketplaceID: opts.MarketplaceID,
		reportOptions: opts.ReportOptions,
		viewQuery:     opts.ViewQuery,
		reuseCache:    opts.ReuseCache,
		log:           log,
	}
}

// RunResult summarizes one completed run.
type RunResult struct {
	Products        int
	VariantProducts int
	MainPath        string
	VariantPath     string
}

// Run executes the full pipeline for the given anchor date.
// Phases:
//  1. Load and normalize the product mapping
//  2. Pull and aggregate all sales windows
//  3. Merge warehouse quantities (when configured)
//  4. Write the report files
func (o *Orchestrator) Run(ctx context.Context, anchor time.Time) (*RunResult, error) {
	o.log.Info("summary run starting",
		zap.String("anchor", anchor.UTC().Format(domain.DateLayout)),
		zap.Bool("reuse_cache", o.reuseCache))

	// Phase 1: mapping
	entries, err := o.mappingSource.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load mapping: %w", err)
	}
	m := reconcile.NormalizeMapping(entries, o.log)
	o.log.Info("mapping loaded", zap.Int("entries", len(entries)), zap.Int("asins", len(m)))

	// Phase 2: windows
	aggregator := windows.NewAggregator(o.windowFetcher(), m, o.log)
	summary, err := aggregator.Build(ctx, anchor)
	if err != nil {
		return nil, fmt.Errorf("aggregate sales windows: %w", err)
	}

	// Phase 3: warehouse quantities
	if o.inventory != nil {
		quantities, err := o.inventory.Quantities(ctx, o.viewQuery)
		if err != nil {
			return nil, fmt.Errorf("pull warehouse inventory: %w", err)
		}
		mergeQuantities(summary, quantities)
		o.log.Info("warehouse quantities merged", zap.Int("skus", len(quantities)))
	}

	// Phase 4: export
	files, err := o.generator.Write(summary)
	if err != nil {
		return nil, fmt.Errorf("write report: %w", err)
	}

	result := &RunResult{
		Products:    len(summary.Rows),
		MainPath:    files.MainPath,
		VariantPath: files.VariantPath,
	}
	for _, row := range summary.Rows {
		if row.IsVariant() {
			result.VariantProducts++
		}
	}

	o.log.Info("summary run complete",
		zap.Int("products", result.Products),
		zap.Int("variant_products", result.VariantProducts),
		zap.String("main", result.MainPath))
	return result, nil
}

// windowFetcher adapts the fetch pipeline to the aggregator's per-window
// contract with this run's report identity baked in.
func (o *Orchestrator) windowFetcher() windows.RowFetcher {
	return &pipelineFetcher{
		pipeline: o.pipeline,
		base: fetch.Request{
			ReportType:    o.reportType,
			MarketplaceID: o.marketplaceID,
			Options:       o.reportOptions,
			ReuseCache:    o.reuseCache,
		},
	}
}

type pipelineFetcher struct {
	pipeline *fetch.Pipeline
	base     fetch.Request
}

func (f *pipelineFetcher) FetchWindow(ctx context.Context, w domain.Window) ([]domain.SalesRow, error) {
	req := f.base
	req.Start = w.Start
	req.End = w.End
	return f.pipeline.Fetch(ctx, req)
}

// mergeQuantities left-merges warehouse quantities onto summary rows.
// Variant rows resolve through their base SKU; unmatched rows keep zero.
func mergeQuantities(summary *domain.SalesSummary, quantities warehouse.Quantities) {
	for i := range summary.Rows {
		row := &summary.Rows[i]
		if qty, ok := quantities[row.SKU]; ok {
			row.WarehouseQty = qty
			continue
		}
		if row.IsVariant() {
			base := row.SKU[:len(row.SKU)-len("-LOC")]
			if qty, ok := quantities[base]; ok {
				row.WarehouseQty = qty
			}
		}
	}
}
