package storage

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	_ "modernc.org/sqlite"
)

type Dialect string

const (
	DialectSQLite Dialect = "sqlite"
	DialectMySQL  Dialect = "mysql"
)

func (d Dialect) driverName() string {
	return string(d)
}

// SQLiteDSN builds a modernc.org/sqlite DSN for dbPath with WAL, a busy
// timeout and immediate write transactions.
func SQLiteDSN(dbPath string) string {
	params := url.Values{}
	params.Add("_pragma", "busy_timeout(5000)")
	params.Add("_pragma", "journal_mode(WAL)")
	params.Add("_pragma", "foreign_keys(1)")
	params.Set("_txlock", "immediate")
	return dbPath + "?" + params.Encode()
}

// OpenSQLite creates the parent directory, opens the database and migrates it.
func OpenSQLite(dbPath string) (*Repository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}
	return Open(DialectSQLite, SQLiteDSN(dbPath))
}

// OpenMySQL opens a MySQL database from a go-sql-driver DSN and migrates it.
func OpenMySQL(dsn string) (*Repository, error) {
	normalized, err := normalizeMySQLDSN(dsn, false)
	if err != nil {
		return nil, err
	}
	return Open(DialectMySQL, normalized)
}

// normalizeMySQLDSN forces the options the repository relies on. Migrations
// need multi-statement support; regular connections do not.
func normalizeMySQLDSN(dsn string, multiStatements bool) (string, error) {
	if strings.TrimSpace(dsn) == "" {
		return "", fmt.Errorf("mysql dsn is empty")
	}
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return "", fmt.Errorf("parse mysql dsn: %w", err)
	}
	cfg.ParseTime = true
	cfg.Loc = time.UTC
	cfg.MultiStatements = multiStatements
	if cfg.Params == nil {
		cfg.Params = map[string]string{}
	}
	if _, ok := cfg.Params["charset"]; !ok {
		cfg.Params["charset"] = "utf8mb4"
	}
	return cfg.FormatDSN(), nil
}
