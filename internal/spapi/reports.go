// Package spapi provides the marketplace reporting API client: report
// generation, status polling, document lookup and download.
package spapi

import (
	"context"
	"encoding/json"
	"time"
)

// Report processing statuses. Anything else is treated as in-progress.
const (
	StatusDone      = "DONE"
	StatusFatal     = "FATAL"
	StatusCancelled = "CANCELLED"
)

// ReportsService defines the reporting API surface the fetch pipeline needs.
type ReportsService interface {
	// CreateReport requests generation of a report and returns its id.
	CreateReport(ctx context.Context, spec CreateReportSpec) (string, error)

	// GetReport retrieves current processing status for a report.
	GetReport(ctx context.Context, reportID string) (*ReportStatus, error)

	// GetReportDocument resolves a finished report's document location.
	GetReportDocument(ctx context.Context, documentID string) (*ReportDocument, error)

	// DownloadDocument fetches the raw document bytes from its delivered
	// location. No decryption or decompression is performed here.
	DownloadDocument(ctx context.Context, doc *ReportDocument) ([]byte, error)
}

// CreateReportSpec describes one report generation request.
type CreateReportSpec struct {
	ReportType     string
	MarketplaceIDs []string
	DataStartTime  time.Time
	DataEndTime    time.Time
	ReportOptions  map[string]string
}

// ReportStatus is the processing state of a requested report.
type ReportStatus struct {
	ReportID         string
	ProcessingStatus string
	DocumentID       string          // set once ProcessingStatus is DONE
	Raw              json.RawMessage // full upstream payload, for diagnostics
}

// Terminal reports whether the status will not change anymore.
func (s *ReportStatus) Terminal() bool {
	switch s.ProcessingStatus {
	case StatusDone, StatusFatal, StatusCancelled:
		return true
	}
	return false
}

// ReportDocument describes where and how to fetch a finished report.
type ReportDocument struct {
	DocumentID           string
	URL                  string
	CompressionAlgorithm string             // "GZIP" or empty
	EncryptionDetails    *EncryptionDetails // nil when the document is plaintext
}

// EncryptionDetails carries AES-CBC parameters for encrypted documents.
type EncryptionDetails struct {
	Standard             string // "AES"
	Key                  string // base64
	InitializationVector string // base64
}
