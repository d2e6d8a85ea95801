// Package stub provides a scripted in-memory ReportsService for testing.
package stub

import (
	"context"
	"errors"
	"fmt"

	"seller-report-lab/internal/spapi"
)

// ErrUnknownReport is returned for ids the stub never issued.
var ErrUnknownReport = errors.New("unknown report id")

// ReportsService implements spapi.ReportsService with scripted responses.
// Each CreateReport consumes the next script entry, so tests can stage
// throttles, failures and successes in order.
type ReportsService struct {
	// CreateErrs are returned (and consumed) before a create succeeds.
	CreateErrs []error

	// Statuses are returned (and consumed) by GetReport per call; once
	// drained, a DONE status carrying DocumentID is returned.
	Statuses []*spapi.ReportStatus

	// PollErrs are returned (and consumed) by GetReport before Statuses.
	PollErrs []error

	// Document and Payload describe the single report the stub serves.
	Document *spapi.ReportDocument
	Payload  []byte

	// CreateCalls counts CreateReport invocations, including throttled ones.
	CreateCalls int

	nextReportID int
}

// NewReportsService creates a stub serving the given document payload.
func NewReportsService(payload []byte) *ReportsService {
	return &ReportsService{
		Document: &spapi.ReportDocument{DocumentID: "doc-1", URL: "stub://doc-1"},
		Payload:  payload,
	}
}

// CreateReport consumes scripted errors, then issues a report id.
func (s *ReportsService) CreateReport(_ context.Context, _ spapi.CreateReportSpec) (string, error) {
	s.CreateCalls++
	if len(s.CreateErrs) > 0 {
		err := s.CreateErrs[0]
		s.CreateErrs = s.CreateErrs[1:]
		if err != nil {
			return "", err
		}
	}
	s.nextReportID++
	return fmt.Sprintf("report-%d", s.nextReportID), nil
}

// GetReport consumes scripted errors and statuses, then reports DONE.
func (s *ReportsService) GetReport(_ context.Context, reportID string) (*spapi.ReportStatus, error) {
	if s.nextReportID == 0 {
		return nil, ErrUnknownReport
	}
	if len(s.PollErrs) > 0 {
		err := s.PollErrs[0]
		s.PollErrs = s.PollErrs[1:]
		if err != nil {
			return nil, err
		}
	}
	if len(s.Statuses) > 0 {
		st := s.Statuses[0]
		s.Statuses = s.Statuses[1:]
		st.ReportID = reportID
		return st, nil
	}
	return &spapi.ReportStatus{
		ReportID:         reportID,
		ProcessingStatus: spapi.StatusDone,
		DocumentID:       s.Document.DocumentID,
	}, nil
}

// GetReportDocument returns the stub's single document.
func (s *ReportsService) GetReportDocument(_ context.Context, documentID string) (*spapi.ReportDocument, error) {
	if s.Document == nil || documentID != s.Document.DocumentID {
		return nil, ErrUnknownReport
	}
	return s.Document, nil
}

// DownloadDocument returns the scripted payload bytes.
func (s *ReportsService) DownloadDocument(_ context.Context, _ *spapi.ReportDocument) ([]byte, error) {
	return s.Payload, nil
}

// Compile-time interface check.
var _ spapi.ReportsService = (*ReportsService)(nil)
