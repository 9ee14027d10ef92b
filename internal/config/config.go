package config

import (
	"fmt"
	"log/slog"
	"net/netip"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"

	"spendwise/internal/core"
)

// Backends accepted by DATA_BACKEND.
const (
	BackendSQLite = "sqlite"
	BackendMySQL  = "mysql"
	BackendMemory = "memory"
)

type Config struct {
	// HTTP Server
	Port               string
	LogLevel           string
	MaxUploadBytes     int64
	CORSAllowedOrigins []string
	UploadsPerMinute   int
	RequestTimeout     time.Duration
	TrustedProxies     []string

	// Storage
	DataBackend  string
	SQLiteDBPath string
	MySQLDSN     string

	// AMQP, disabled when AMQPURL is empty
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Rules, budgets and nudge thresholds; built-in defaults when empty
	RulesFile string

	// Insights
	TopMerchants      int
	InsightsCacheTTL  time.Duration
	InsightsCacheSize int

	// Google Sheets nudge export, disabled when the spreadsheet id is empty
	GoogleSpreadsheetID      string
	GoogleNudgesSheet        string
	GoogleServiceAccountFile string
	GoogleServiceAccountJSON string

	// Worker
	NudgeRefreshInterval time.Duration
}

func Load() *Config {
	return &Config{
		Port:               getEnv("PORT", "8081"),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		MaxUploadBytes:     getEnvInt64("MAX_UPLOAD_BYTES", 10<<20),
		CORSAllowedOrigins: getEnvList("CORS_ALLOWED_ORIGINS"),
		UploadsPerMinute:   getEnvInt("UPLOADS_PER_MINUTE", 30),
		RequestTimeout:     getEnvDuration("REQUEST_TIMEOUT", 30*time.Second),
		TrustedProxies:     getEnvList("TRUSTED_PROXIES"),

		DataBackend:  getEnv("DATA_BACKEND", BackendSQLite),
		SQLiteDBPath: getEnv("SQLITE_DB_PATH", "./data/spendwise.db"),
		MySQLDSN:     getEnv("MYSQL_DSN", ""),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "spendwise"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "transactions_ingested"),

		RulesFile: getEnv("RULES_FILE", ""),

		TopMerchants:      getEnvInt("TOP_MERCHANTS", 5),
		InsightsCacheTTL:  getEnvDuration("INSIGHTS_CACHE_TTL", 5*time.Minute),
		InsightsCacheSize: getEnvInt("INSIGHTS_CACHE_SIZE", 128),

		GoogleSpreadsheetID:      getEnv("GOOGLE_SPREADSHEET_ID", ""),
		GoogleNudgesSheet:        getEnv("GOOGLE_NUDGES_SHEET", "Nudges"),
		GoogleServiceAccountFile: getEnv("GOOGLE_SERVICE_ACCOUNT_FILE", ""),
		GoogleServiceAccountJSON: getEnv("GOOGLE_SERVICE_ACCOUNT_JSON", ""),

		NudgeRefreshInterval: getEnvDuration("NUDGE_REFRESH_INTERVAL", 15*time.Minute),
	}
}

// Validate checks every setting and reports all problems at once as a
// *core.ConfigError.
func (c *Config) Validate() error {
	var problems []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		problems = append(problems, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		problems = append(problems, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	if _, err := ParseLogLevel(c.LogLevel); err != nil {
		problems = append(problems, err.Error())
	}

	if c.MaxUploadBytes < 1 {
		problems = append(problems, fmt.Sprintf("invalid max upload bytes %d: must be positive", c.MaxUploadBytes))
	}

	if c.UploadsPerMinute < 1 {
		problems = append(problems, fmt.Sprintf("invalid uploads per minute %d: must be positive", c.UploadsPerMinute))
	}
	if c.RequestTimeout < time.Second {
		problems = append(problems, fmt.Sprintf("invalid request timeout %v: must be at least 1 second", c.RequestTimeout))
	}
	for _, cidr := range c.TrustedProxies {
		if _, err := netip.ParsePrefix(cidr); err != nil {
			problems = append(problems, fmt.Sprintf("invalid trusted proxy '%s': %v", cidr, err))
		}
	}

	validBackends := []string{BackendMemory, BackendMySQL, BackendSQLite}
	if !slices.Contains(validBackends, c.DataBackend) {
		problems = append(problems, fmt.Sprintf("invalid data backend '%s': must be one of %v", c.DataBackend, validBackends))
	}

	switch c.DataBackend {
	case BackendSQLite:
		if c.SQLiteDBPath == "" {
			problems = append(problems, "SQLite database path cannot be empty when using sqlite backend")
		} else if dir := filepath.Dir(c.SQLiteDBPath); dir != "." && dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				problems = append(problems, fmt.Sprintf("cannot create SQLite database directory '%s': %v", dir, err))
			}
		}
	case BackendMySQL:
		if c.MySQLDSN == "" {
			problems = append(problems, "MYSQL_DSN is required when using mysql backend")
		} else if _, err := mysql.ParseDSN(c.MySQLDSN); err != nil {
			problems = append(problems, fmt.Sprintf("invalid MYSQL_DSN: %v", err))
		}
	}

	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			problems = append(problems, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			problems = append(problems, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			problems = append(problems, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPQueue == "" {
			problems = append(problems, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
	}

	if c.TopMerchants < 1 || c.TopMerchants > 100 {
		problems = append(problems, fmt.Sprintf("invalid top merchants %d: must be between 1 and 100", c.TopMerchants))
	}
	if c.InsightsCacheTTL < 0 {
		problems = append(problems, fmt.Sprintf("invalid insights cache TTL %v: must not be negative", c.InsightsCacheTTL))
	}
	if c.InsightsCacheSize < 1 {
		problems = append(problems, fmt.Sprintf("invalid insights cache size %d: must be at least 1", c.InsightsCacheSize))
	}

	if c.GoogleSpreadsheetID != "" {
		if c.GoogleServiceAccountFile == "" && c.GoogleServiceAccountJSON == "" {
			problems = append(problems, "either GOOGLE_SERVICE_ACCOUNT_FILE or GOOGLE_SERVICE_ACCOUNT_JSON must be provided for the nudge export")
		}
		if c.GoogleServiceAccountFile != "" {
			if _, err := os.Stat(c.GoogleServiceAccountFile); os.IsNotExist(err) {
				problems = append(problems, fmt.Sprintf("Google service account file does not exist: %s", c.GoogleServiceAccountFile))
			}
		}
	}

	if c.NudgeRefreshInterval != 0 && c.NudgeRefreshInterval < time.Second {
		problems = append(problems, fmt.Sprintf("invalid nudge refresh interval %v: must be at least 1 second or 0 to disable", c.NudgeRefreshInterval))
	}

	if len(problems) > 0 {
		return &core.ConfigError{Problems: problems}
	}
	return nil
}

// SheetsEnabled reports whether nudges are exported to Google Sheets.
func (c *Config) SheetsEnabled() bool {
	return c.GoogleSpreadsheetID != ""
}

// ParseLogLevel maps LOG_LEVEL to a slog level.
func ParseLogLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return slog.LevelInfo, fmt.Errorf("invalid log level '%s': must be debug, info, warn or error", s)
	}
	return level, nil
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

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.ParseInt(value, 10, 64); err == nil {
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

// getEnvList splits a comma separated variable, dropping empty items.
func getEnvList(key string) []string {
	var out []string
	for _, item := range strings.Split(os.Getenv(key), ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
