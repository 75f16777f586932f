package config

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"billable/internal/log"
)

type Config struct {
	// HTTP Server
	Port               string
	CORSOrigin         string
	MaxLogoBytes       int64
	RateLimitPerMinute int
	TrustedProxies     []string

	// Ledger
	DataDir         string
	PropagationMode string
	MonthlyOverflow string
	SweepInterval   time.Duration

	// Catalog
	CatalogBackend string
	SQLiteDBPath   string

	// Month view cache
	MonthCacheSize int
	MonthCacheTTL  time.Duration

	// Logging
	LogLevel  string
	LogFormat string

	// AMQP
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Google Sheets billing export
	GoogleSpreadsheetID      string
	GoogleServiceAccountFile string
	GoogleServiceAccountJSON string
	BillingSheetPrefix       string

	// Worker
	StartupSyncMonths int
}

var (
	catalogBackends  = []string{"json", "sqlite"}
	propagationModes = []string{"lazy", "eager"}
	overflowPolicies = []string{"clamp", "skip"}
	logFormats       = []string{"text", "json"}
)

func Load() *Config {
	cfg := &Config{
		Port:               getEnv("PORT", "3002"),
		CORSOrigin:         getEnv("CORS_ORIGIN", "*"),
		MaxLogoBytes:       int64(getEnvInt("MAX_LOGO_BYTES", 2<<20)),
		RateLimitPerMinute: getEnvInt("RATE_LIMIT_PER_MINUTE", 120),
		TrustedProxies:     getEnvList("TRUSTED_PROXIES"),

		DataDir:         getEnv("DATA_DIR", "./data"),
		PropagationMode: getEnv("PROPAGATION_MODE", "lazy"),
		MonthlyOverflow: getEnv("MONTHLY_OVERFLOW", "clamp"),
		SweepInterval:   getEnvDuration("SWEEP_INTERVAL", 0),

		CatalogBackend: getEnv("CATALOG_BACKEND", "json"),
		SQLiteDBPath:   getEnv("SQLITE_DB_PATH", "./data/catalog.db"),

		MonthCacheSize: getEnvInt("MONTH_CACHE_SIZE", 24),
		MonthCacheTTL:  getEnvDuration("MONTH_CACHE_TTL", 5*time.Minute),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "text"),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "billable"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "ledger_changed"),

		GoogleSpreadsheetID:      getEnv("GOOGLE_SPREADSHEET_ID", ""),
		GoogleServiceAccountFile: getEnv("GOOGLE_SERVICE_ACCOUNT_FILE", ""),
		GoogleServiceAccountJSON: getEnv("GOOGLE_SERVICE_ACCOUNT_JSON", ""),
		BillingSheetPrefix:       getEnv("BILLING_SHEET_PREFIX", "Billing"),

		StartupSyncMonths: getEnvInt("STARTUP_SYNC_MONTHS", 3),
	}

	return cfg
}

// Validate validates the configuration and returns an error listing every
// problem found.
func (c *Config) Validate() error {
	var errors []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	if strings.TrimSpace(c.DataDir) == "" {
		errors = append(errors, "data directory cannot be empty")
	}

	errors = appendChoice(errors, "catalog backend", c.CatalogBackend, catalogBackends)
	errors = appendChoice(errors, "propagation mode", c.PropagationMode, propagationModes)
	errors = appendChoice(errors, "monthly overflow policy", c.MonthlyOverflow, overflowPolicies)
	errors = appendChoice(errors, "log format", c.LogFormat, logFormats)

	if c.CatalogBackend == "sqlite" && c.SQLiteDBPath == "" {
		errors = append(errors, "SQLite database path cannot be empty when using sqlite catalog backend")
	}

	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		errors = append(errors, err.Error())
	}

	if c.MaxLogoBytes < 1 {
		errors = append(errors, fmt.Sprintf("invalid max logo size %d: must be positive", c.MaxLogoBytes))
	}
	if c.RateLimitPerMinute < 1 {
		errors = append(errors, fmt.Sprintf("invalid rate limit %d: must be at least 1 request per minute", c.RateLimitPerMinute))
	}
	if c.MonthCacheSize < 1 {
		errors = append(errors, fmt.Sprintf("invalid month cache size %d: must be at least 1", c.MonthCacheSize))
	}
	if c.MonthCacheTTL <= 0 {
		errors = append(errors, fmt.Sprintf("invalid month cache TTL %v: must be positive", c.MonthCacheTTL))
	}
	for _, cidr := range c.TrustedProxies {
		if _, _, err := net.ParseCIDR(cidr); err != nil {
			errors = append(errors, fmt.Sprintf("invalid trusted proxy '%s': must be a CIDR", cidr))
		}
	}
	if c.SweepInterval < 0 {
		errors = append(errors, fmt.Sprintf("invalid sweep interval %v: must not be negative", c.SweepInterval))
	}

	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPQueue == "" {
			errors = append(errors, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
	}

	if c.GoogleServiceAccountFile != "" {
		if _, err := os.Stat(c.GoogleServiceAccountFile); os.IsNotExist(err) {
			errors = append(errors, fmt.Sprintf("Google service account file does not exist: %s", c.GoogleServiceAccountFile))
		}
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}

// ValidateWorker adds the requirements of the billing worker on top of
// Validate.
func (c *Config) ValidateWorker() error {
	if err := c.Validate(); err != nil {
		return err
	}
	var errors []string
	if c.AMQPURL == "" {
		errors = append(errors, "AMQP URL is required by the billing worker")
	}
	if c.StartupSyncMonths < 0 {
		errors = append(errors, fmt.Sprintf("invalid startup sync months %d: must not be negative", c.StartupSyncMonths))
	}
	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}
	return nil
}

// SheetsEnabled reports whether billing sheets go to Google Sheets.
func (c *Config) SheetsEnabled() bool {
	return c.GoogleSpreadsheetID != ""
}

func appendChoice(errors []string, what, value string, valid []string) []string {
	if slices.Contains(valid, value) {
		return errors
	}
	return append(errors, fmt.Sprintf("invalid %s '%s': must be one of %v", what, value, valid))
}

func getEnvList(key string) []string {
	var out []string
	for _, item := range strings.Split(os.Getenv(key), ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
