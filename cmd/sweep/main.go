// Command sweep performs cache maintenance: deleting expired entries
// and inspecting the status of individual cache keys.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"seller-report-lab/internal/config"
	"seller-report-lab/internal/domain"
	"seller-report-lab/internal/storage"
	pgstore "seller-report-lab/internal/storage/postgres"
	"seller-report-lab/internal/storage/sqlite"
)

func main() {
	dbPath := flag.String("db", "", "SQLite cache path (overrides CACHE_DB_PATH)")
	reportType := flag.String("report-type", "", "Inspect: report type")
	marketplaceID := flag.String("marketplace", "", "Inspect: marketplace id")
	start := flag.String("start", "", "Inspect: window start (YYYY-MM-DD)")
	end := flag.String("end", "", "Inspect: window end (YYYY-MM-DD)")
	flag.Parse()

	cfg, err := config.LoadStorageOnly()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	if *dbPath != "" {
		cfg.CacheDBPath = *dbPath
	}

	ctx := context.Background()

	store, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening cache store: %v\n", err)
		os.Exit(1)
	}
	defer closeStore()

	if err := store.Initialize(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing cache store: %v\n", err)
		os.Exit(1)
	}

	// Key inspection mode when a full key is given, otherwise sweep.
	if *reportType != "" || *marketplaceID != "" || *start != "" || *end != "" {
		if err := inspect(ctx, store, *reportType, *marketplaceID, *start, *end); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	deleted, err := store.SweepExpired(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error sweeping cache: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Deleted %d expired cache entries\n", deleted)
}

func inspect(ctx context.Context, store storage.ReportCacheStore, reportType, marketplaceID, start, end string) error {
	if reportType == "" || marketplaceID == "" || start == "" || end == "" {
		return fmt.Errorf("inspection needs --report-type, --marketplace, --start and --end")
	}
	startDate, err := time.Parse(domain.DateLayout, start)
	if err != nil {
		return fmt.Errorf("invalid --start %q: expected YYYY-MM-DD", start)
	}
	endDate, err := time.Parse(domain.DateLayout, end)
	if err != nil {
		return fmt.Errorf("invalid --end %q: expected YYYY-MM-DD", end)
	}

	// Same report options the report CLI sends, so the fingerprint
	// matches the entries it writes.
	options := map[string]string{
		"dateGranularity": "DAY",
		"asinGranularity": "CHILD",
	}
	key := domain.NewCacheKey(reportType, marketplaceID, startDate, endDate, options)
	info, err := store.GetStatus(ctx, key)
	if errors.Is(err, storage.ErrNotFound) {
		fmt.Println("Status: MISS (no entry)")
		return nil
	}
	if err != nil {
		return err
	}

	fmt.Printf("Status:  %s\n", info.Status)
	fmt.Printf("Expired: %v\n", info.IsExpired)
	if info.PulledAtUTC != nil {
		fmt.Printf("Pulled:  %s\n", info.PulledAtUTC.Format(time.RFC3339))
	}
	if info.ExpiresAtUTC != nil {
		fmt.Printf("Expires: %s\n", info.ExpiresAtUTC.Format(time.RFC3339))
	}
	if info.RowCount != nil {
		fmt.Printf("Rows:    %d\n", *info.RowCount)
	}
	if info.ErrorMessage != nil {
		fmt.Printf("Error:   %s\n", *info.ErrorMessage)
	}
	return nil
}

func openStore(ctx context.Context, cfg *config.Config) (storage.ReportCacheStore, func(), error) {
	if cfg.PostgresDSN != "" {
		pool, err := pgstore.NewPool(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, nil, fmt.Errorf("connect to postgres: %w", err)
		}
		return pgstore.NewCacheStore(pool), pool.Close, nil
	}

	db, err := sqlite.Open(cfg.CacheDBPath)
	if err != nil {
		return nil, nil, fmt.Errorf("open sqlite cache: %w", err)
	}
	return sqlite.NewCacheStore(db), func() { db.Close() }, nil
}
