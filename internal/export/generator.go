// Package export writes the finished sales summary to disk: the main
// report plus a variant-only companion file.
package export

import (
	"fmt"
	"os"
	"path/filepath"

	"seller-report-lab/internal/domain"
)

// Generator writes summary files into an output directory. Filenames
// derive from the summary's anchor date, so reruns for the same anchor
// overwrite in place.
type Generator struct {
	outputDir string
}

// NewGenerator creates a generator rooted at outputDir.
func NewGenerator(outputDir string) *Generator {
	return &Generator{outputDir: outputDir}
}

// Result names the files one Write produced.
type Result struct {
	MainPath    string
	VariantPath string
}

// Write renders the summary and writes both files, creating the output
// directory if needed. Filenames carry the anchor date.
func (g *Generator) Write(summary *domain.SalesSummary) (*Result, error) {
	if err := os.MkdirAll(g.outputDir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}

	anchor := summary.Anchor.UTC().Format(domain.DateLayout)
	res := &Result{
		MainPath:    filepath.Join(g.outputDir, fmt.Sprintf("weekly_summary_%s.csv", anchor)),
		VariantPath: filepath.Join(g.outputDir, fmt.Sprintf("weekly_summary_%s_loc.csv", anchor)),
	}

	if err := os.WriteFile(res.MainPath, []byte(RenderCSV(summary)), 0o644); err != nil {
		return nil, fmt.Errorf("write main report: %w", err)
	}
	if err := os.WriteFile(res.VariantPath, []byte(RenderVariantCSV(summary)), 0o644); err != nil {
		return nil, fmt.Errorf("write variant report: %w", err)
	}
	return res, nil
}
