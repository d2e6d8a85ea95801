package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"seller-report-lab/internal/config"
	"seller-report-lab/internal/domain"
	"seller-report-lab/internal/export"
	"seller-report-lab/internal/fetch"
	"seller-report-lab/internal/mapping"
	"seller-report-lab/internal/orchestrator"
	"seller-report-lab/internal/spapi"
	"seller-report-lab/internal/storage"
	pgstore "seller-report-lab/internal/storage/postgres"
	"seller-report-lab/internal/storage/sqlite"
	"seller-report-lab/internal/warehouse"
)

func main() {
	// Parse flags
	anchorFlag := flag.String("anchor", "", "Anchor date (YYYY-MM-DD); defaults to yesterday UTC")
	reuseCache := flag.Bool("reuse-cache", true, "Serve report windows from cache when a live entry exists")
	outputDir := flag.String("output-dir", "", "Output directory (overrides OUTPUT_DIR)")
	mappingPath := flag.String("mapping", "", "Mapping snapshot CSV (overrides MAPPING_PATH)")
	dbPath := flag.String("db", "", "SQLite cache path (overrides CACHE_DB_PATH)")
	verbose := flag.Bool("verbose", false, "Enable debug logging")
	flag.Parse()

	log, err := newLogger(*verbose)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	applyOverrides(cfg, *outputDir, *mappingPath, *dbPath)

	anchor, err := resolveAnchor(*anchorFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
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

	reports := spapi.NewClient(spapi.Credentials{
		ClientID:     cfg.SPClientID,
		ClientSecret: cfg.SPClientSecret,
		RefreshToken: cfg.SPRefreshToken,
	}, spapi.WithEndpoint(cfg.SPEndpoint))

	pipeline := fetch.New(store, reports,
		fetch.WithTTLPolicy(fetch.TTLPolicy{
			Short:       fetch.DefaultShortTTL,
			Long:        fetch.DefaultLongTTL,
			RecencyDays: cfg.RecencyDays,
		}),
		fetch.WithLogger(log))

	opts := orchestrator.Options{
		Pipeline:      pipeline,
		MappingSource: &mapping.CSVSource{Path: cfg.MappingPath},
		Generator:     export.NewGenerator(cfg.OutputDir),
		ReportType:    cfg.ReportType,
		MarketplaceID: cfg.MarketplaceID,
		ReportOptions: map[string]string{
			"dateGranularity": "DAY",
			"asinGranularity": "CHILD",
		},
		ReuseCache: *reuseCache,
		Logger:     log,
	}

	if cfg.WarehouseConfigured() {
		opts.Inventory = warehouse.NewClient(cfg.WarehouseEndpoint, warehouse.Credentials{
			Username: cfg.WarehouseUser,
			Password: cfg.WarehousePassword,
		})
		opts.ViewQuery = warehouse.ViewQuery{
			ViewID:      cfg.WarehouseViewID,
			QtyField:    cfg.WarehouseQtyField,
			SKUFields:   cfg.WarehouseSKUKeys,
			ExcludeZero: true,
		}
	} else {
		log.Warn("warehouse not configured, quantities will be zero")
	}

	result, err := orchestrator.New(opts).Run(ctx, anchor)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error running summary: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("Weekly summary generated successfully:")
	fmt.Printf("  - %s (%d products)\n", result.MainPath, result.Products)
	fmt.Printf("  - %s (%d variant products)\n", result.VariantPath, result.VariantProducts)
}

// resolveAnchor parses the anchor flag, defaulting to yesterday UTC.
func resolveAnchor(s string) (time.Time, error) {
	if s == "" {
		return time.Now().UTC().AddDate(0, 0, -1), nil
	}
	anchor, err := time.Parse(domain.DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid --anchor %q: expected YYYY-MM-DD", s)
	}
	return anchor, nil
}

// openStore picks the postgres cache when a DSN is configured, the
// local sqlite file otherwise.
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

func applyOverrides(cfg *config.Config, outputDir, mappingPath, dbPath string) {
	if outputDir != "" {
		cfg.OutputDir = outputDir
	}
	if mappingPath != "" {
		cfg.MappingPath = mappingPath
	}
	if dbPath != "" {
		cfg.CacheDBPath = dbPath
	}
}

func newLogger(verbose bool) (*zap.Logger, error) {
	if verbose {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
