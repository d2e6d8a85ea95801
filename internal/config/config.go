// Package config loads runtime configuration from the environment, with
// optional .env file support for local runs.
package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Error is a fatal configuration problem. Runs do not retry on it.
type Error struct {
	Field  string
	Reason string
}

func (e *Error) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Field, e.Reason)
}

// Config holds everything a summary run needs.
type Config struct {
	// Reporting API credentials.
	SPClientID     string `env:"SPAPI_CLIENT_ID"`
	SPClientSecret string `env:"SPAPI_CLIENT_SECRET"`
	SPRefreshToken string `env:"SPAPI_REFRESH_TOKEN"`
	SPEndpoint     string `env:"SPAPI_ENDPOINT" envDefault:"https://sellingpartnerapi-na.amazon.com"`

	MarketplaceID string `env:"MARKETPLACE_ID" envDefault:"ATVPDKIKX0DER"`
	ReportType    string `env:"REPORT_TYPE" envDefault:"GET_SALES_AND_TRAFFIC_REPORT"`

	// Warehouse API.
	WarehouseEndpoint string   `env:"WAREHOUSE_ENDPOINT"`
	WarehouseUser     string   `env:"WAREHOUSE_USER"`
	WarehousePassword string   `env:"WAREHOUSE_PASSWORD"`
	WarehouseViewID   int      `env:"WAREHOUSE_VIEW_ID"`
	WarehouseQtyField string   `env:"WAREHOUSE_QTY_FIELD" envDefault:"AggregatedQtyAvailable"`
	WarehouseSKUKeys  []string `env:"WAREHOUSE_SKU_FIELDS" envSeparator:"," envDefault:"ProductID,SKU"`

	// Local paths.
	CacheDBPath string `env:"CACHE_DB_PATH" envDefault:"weekly_summary_cache.sqlite3"`
	MappingPath string `env:"MAPPING_PATH" envDefault:"mapping.csv"`
	OutputDir   string `env:"OUTPUT_DIR" envDefault:"out"`

	// Optional shared cache; when set, the postgres store is used instead
	// of the sqlite one.
	PostgresDSN string `env:"CACHE_POSTGRES_DSN"`

	RecencyDays int `env:"RECENCY_DAYS" envDefault:"1"`
}

// Load reads .env (when present) and the process environment, then
// validates that the credentials a live run cannot do without are set.
func Load() (*Config, error) {
	// A missing .env is fine; explicit environment always wins.
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadStorageOnly loads configuration without requiring upstream
// credentials. Maintenance commands that only touch the cache use it.
func LoadStorageOnly() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}
	return cfg, nil
}

// Validate checks required fields.
func (c *Config) Validate() error {
	required := []struct {
		field string
		value string
	}{
		{"SPAPI_CLIENT_ID", c.SPClientID},
		{"SPAPI_CLIENT_SECRET", c.SPClientSecret},
		{"SPAPI_REFRESH_TOKEN", c.SPRefreshToken},
	}
	for _, r := range required {
		if r.value == "" {
			return &Error{Field: r.field, Reason: "required"}
		}
	}
	if c.RecencyDays < 0 {
		return &Error{Field: "RECENCY_DAYS", Reason: "must be >= 0"}
	}
	return nil
}

// WarehouseConfigured reports whether the warehouse pull can run.
func (c *Config) WarehouseConfigured() bool {
	return c.WarehouseEndpoint != "" && c.WarehouseUser != "" && c.WarehousePassword != "" && c.WarehouseViewID != 0
}
