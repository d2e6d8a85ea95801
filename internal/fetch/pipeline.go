// Package fetch implements the cached report-pull pipeline: cache check,
// report generation, status polling, document download and parsing, and
// cache population, with policy-driven retry and expiry.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"seller-report-lab/internal/domain"
	"seller-report-lab/internal/spapi"
	"seller-report-lab/internal/storage"
)

// Default polling configuration.
const (
	DefaultPollInterval = 20 * time.Second
	DefaultPollBudget   = 30 * time.Minute
)

// Request describes one report window pull.
type Request struct {
	ReportType    string
	MarketplaceID string
	Start         time.Time // calendar date, inclusive
	End           time.Time // calendar date, inclusive
	Options       map[string]string

	// ReuseCache controls whether a live cached result short-circuits the
	// pull. False forces a full refetch regardless of cache state.
	ReuseCache bool
}

// CacheKey returns the cache identity of this request.
func (r Request) CacheKey() domain.CacheKey {
	return domain.NewCacheKey(r.ReportType, r.MarketplaceID, r.Start, r.End, r.Options)
}

// state is one step of the fetch state machine.
type state int

const (
	stateRequesting state = iota
	statePolling
	stateDownloading
	stateParsing
	stateCaching
	stateDone
	stateFailed
)

// Pipeline orchestrates cached report pulls against a ReportsService.
type Pipeline struct {
	store   storage.ReportCacheStore
	reports spapi.ReportsService

	ttl           TTLPolicy
	createBackoff BackoffPolicy
	pollBackoff   BackoffPolicy
	pollInterval  time.Duration
	pollBudget    time.Duration
	errorTTL      time.Duration

	clock   Clock
	sleeper Sleeper
	log     *zap.Logger
}

// Option configures Pipeline.
type Option func(*Pipeline)

// WithTTLPolicy overrides the cache TTL policy.
func WithTTLPolicy(p TTLPolicy) Option {
	return func(pl *Pipeline) { pl.ttl = p }
}

// WithCreateBackoff overrides the report-creation backoff policy.
func WithCreateBackoff(p BackoffPolicy) Option {
	return func(pl *Pipeline) { pl.createBackoff = p }
}

// WithPollBackoff overrides the in-poll throttle backoff policy.
func WithPollBackoff(p BackoffPolicy) Option {
	return func(pl *Pipeline) { pl.pollBackoff = p }
}

// WithPollInterval sets the delay between status polls.
func WithPollInterval(d time.Duration) Option {
	return func(pl *Pipeline) { pl.pollInterval = d }
}

// WithPollBudget sets the polling wall-clock budget.
func WithPollBudget(d time.Duration) Option {
	return func(pl *Pipeline) { pl.pollBudget = d }
}

// WithClock injects a clock, for tests.
func WithClock(c Clock) Option {
	return func(pl *Pipeline) { pl.clock = c }
}

// WithSleeper injects a sleeper, for tests.
func WithSleeper(s Sleeper) Option {
	return func(pl *Pipeline) { pl.sleeper = s }
}

// WithLogger sets the pipeline logger.
func WithLogger(log *zap.Logger) Option {
	return func(pl *Pipeline) { pl.log = log }
}

// New creates a fetch pipeline over the given store and reports service.
func New(store storage.ReportCacheStore, reports spapi.ReportsService, opts ...Option) *Pipeline {
	p := &Pipeline{
		store:         store,
		reports:       reports,
		ttl:           DefaultTTLPolicy(),
		createBackoff: DefaultCreateBackoff,
		pollBackoff:   DefaultPollBackoff,
		pollInterval:  DefaultPollInterval,
		pollBudget:    DefaultPollBudget,
		errorTTL:      DefaultErrorTTL,
		clock:         SystemClock{},
		sleeper:       SystemSleeper{},
		log:           zap.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// run carries intermediate results across states.
type run struct {
	req        Request
	key        domain.CacheKey
	pulledAt   time.Time
	reportID   string
	documentID string
	content    []byte // decoded document bytes
	rows       []domain.SalesRow
}

// Fetch returns row-level sales data for the requested window, serving
// from cache when possible. Every failure past the cache check is recorded
// as a short-TTL ERROR entry and then returned to the caller.
func (p *Pipeline) Fetch(ctx context.Context, req Request) ([]domain.SalesRow, error) {
	key := req.CacheKey()
	log := p.log.With(
		zap.String("report_type", req.ReportType),
		zap.String("marketplace_id", req.MarketplaceID),
		zap.String("window_start", key.DataStartDate),
		zap.String("window_end", key.DataEndDate),
	)

	if req.ReuseCache {
		payload, err := p.store.GetCachedPayload(ctx, key)
		switch {
		case err == nil:
			log.Debug("cache hit", zap.Int("rows", len(payload.Rows)))
			return payload.Rows, nil
		case !errors.Is(err, storage.ErrNotFound):
			// Storage I/O failures are never treated as misses.
			return nil, err
		}
	}

	log.Info("cache miss, pulling report window")

	r := &run{req: req, key: key, pulledAt: p.clock.Now().Truncate(time.Second)}

	st := stateRequesting
	var err error
	for {
		switch st {
		case stateRequesting:
			st, err = p.request(ctx, r, log)
		case statePolling:
			st, err = p.poll(ctx, r, log)
		case stateDownloading:
			st, err = p.download(ctx, r)
		case stateParsing:
			st, err = p.parse(r)
		case stateCaching:
			st, err = p.cacheResult(ctx, r)
		case stateDone:
			log.Info("report window pulled", zap.Int("rows", len(r.rows)))
			return r.rows, nil
		case stateFailed:
			return nil, p.recordFailure(ctx, r, err, log)
		}
		if err != nil {
			st = stateFailed
		}
	}
}

// request asks the reports service to generate the report, backing off on
// throttles up to the policy's attempt budget.
func (p *Pipeline) request(ctx context.Context, r *run, log *zap.Logger) (state, error) {
	spec := spapi.CreateReportSpec{
		ReportType:     r.req.ReportType,
		MarketplaceIDs: []string{r.req.MarketplaceID},
		DataStartTime:  dayStart(r.req.Start),
		DataEndTime:    dayEnd(r.req.End),
		ReportOptions:  r.req.Options,
	}

	var lastErr error
	for attempt := 1; attempt <= p.createBackoff.MaxAttempts; attempt++ {
		reportID, err := p.reports.CreateReport(ctx, spec)
		switch {
		case err == nil:
			r.reportID = reportID
			return statePolling, nil
		case errors.Is(err, spapi.ErrThrottled):
			lastErr = err
			delay := p.createBackoff.Delay(attempt)
			log.Warn("throttled creating report",
				zap.Int("attempt", attempt),
				zap.Duration("backoff", delay))
			if serr := p.sleeper.Sleep(ctx, delay); serr != nil {
				return stateFailed, serr
			}
		case errors.Is(err, spapi.ErrForbidden):
			return stateFailed, &PermissionDeniedError{Operation: "create report", Options: r.req.Options, Err: err}
		default:
			return stateFailed, err
		}
	}
	return stateFailed, &RateLimitedError{Operation: "create report", Attempts: p.createBackoff.MaxAttempts, Err: lastErr}
}

// poll waits for the report to reach a terminal status within the
// wall-clock budget. Throttles back off and retry within this state.
func (p *Pipeline) poll(ctx context.Context, r *run, log *zap.Logger) (state, error) {
	deadline := p.clock.Now().Add(p.pollBudget)
	throttles := 0

	for {
		if p.clock.Now().After(deadline) {
			return stateFailed, &TimeoutError{ReportID: r.reportID, Budget: p.pollBudget}
		}

		status, err := p.reports.GetReport(ctx, r.reportID)
		if err != nil {
			if errors.Is(err, spapi.ErrThrottled) {
				throttles++
				if serr := p.sleeper.Sleep(ctx, p.pollBackoff.Delay(throttles)); serr != nil {
					return stateFailed, serr
				}
				continue
			}
			return stateFailed, err
		}

		switch status.ProcessingStatus {
		case spapi.StatusDone:
			if status.DocumentID == "" {
				return stateFailed, &UpstreamProcessingFailedError{
					ReportID: r.reportID,
					Status:   status.ProcessingStatus,
					Payload:  status.Raw,
				}
			}
			r.documentID = status.DocumentID
			return stateDownloading, nil
		case spapi.StatusFatal, spapi.StatusCancelled:
			return stateFailed, &UpstreamProcessingFailedError{
				ReportID: r.reportID,
				Status:   status.ProcessingStatus,
				Payload:  status.Raw,
			}
		}

		log.Debug("report not ready", zap.String("status", status.ProcessingStatus))
		if serr := p.sleeper.Sleep(ctx, p.pollInterval); serr != nil {
			return stateFailed, serr
		}
	}
}

// download resolves the document location, fetches the bytes and decodes
// them (decrypt, decompress) into plaintext content.
func (p *Pipeline) download(ctx context.Context, r *run) (state, error) {
	doc, err := p.reports.GetReportDocument(ctx, r.documentID)
	if err != nil {
		return stateFailed, err
	}

	raw, err := p.reports.DownloadDocument(ctx, doc)
	if err != nil {
		return stateFailed, err
	}

	content, err := DecodeDocument(raw, doc)
	if err != nil {
		return stateFailed, err
	}
	r.content = content
	return stateParsing, nil
}

func (p *Pipeline) parse(r *run) (state, error) {
	rows, err := ParseSalesRows(r.content)
	if err != nil {
		return stateFailed, err
	}
	r.rows = rows
	return stateCaching, nil
}

func (p *Pipeline) cacheResult(ctx context.Context, r *run) (state, error) {
	ttl := p.ttl.For(r.req.End, p.clock.Now())
	rowCount := int64(len(r.rows))

	err := p.store.PutOK(ctx, r.key, &domain.ReportPayload{Rows: r.rows}, storage.PutMeta{
		TTL:        &ttl,
		PulledAt:   &r.pulledAt,
		ReportID:   r.reportID,
		DocumentID: r.documentID,
		RawBytes:   r.content,
		RowCount:   &rowCount,
	})
	if err != nil {
		return stateFailed, err
	}
	return stateDone, nil
}

// recordFailure caches the failure with a short TTL so the next run
// retries soon, then hands the original error back to the caller.
func (p *Pipeline) recordFailure(ctx context.Context, r *run, cause error, log *zap.Logger) error {
	log.Error("report window pull failed", zap.Error(cause))

	// Caller cancellation is not an upstream failure; caching it would
	// block the key until the error TTL lapses.
	if errors.Is(cause, context.Canceled) || errors.Is(cause, context.DeadlineExceeded) {
		return cause
	}

	ttl := p.errorTTL
	putErr := p.store.PutError(ctx, r.key, cause.Error(), storage.PutMeta{
		TTL:        &ttl,
		PulledAt:   &r.pulledAt,
		ReportID:   r.reportID,
		DocumentID: r.documentID,
	})
	if putErr != nil {
		// Storage failures are never suppressed, but the original cause
		// still matters most to the caller.
		return errors.Join(cause, fmt.Errorf("record cache error: %w", putErr))
	}
	return cause
}

func dayStart(d time.Time) time.Time {
	d = d.UTC()
	return time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, time.UTC)
}

func dayEnd(d time.Time) time.Time {
	d = d.UTC()
	return time.Date(d.Year(), d.Month(), d.Day(), 23, 59, 59, 0, time.UTC)
}
