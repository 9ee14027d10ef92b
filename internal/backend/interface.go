package backend

import (
	"context"

	"spendwise/internal/storage"
)

// Backend is the store every binary reads and writes through.
type Backend interface {
	storage.Store
}

// CleanupFunc represents a cleanup function for resources
type CleanupFunc func() error

// BackendResult contains the backend instance and its cleanup function
type BackendResult struct {
	Backend Backend
	Cleanup CleanupFunc
}

// Factory creates backends based on configuration
type Factory interface {
	// CreateBackend creates a backend instance based on the provided config
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
}

// Config holds configuration for backend creation
type Config struct {
	Type BackendType

	// SQLite specific
	SQLiteDBPath string

	// MySQL specific, a go-sql-driver DSN
	MySQLDSN string
}

// BackendType represents the type of backend
type BackendType string

const (
	SQLiteBackend BackendType = "sqlite"
	MySQLBackend  BackendType = "mysql"
	MemoryBackend BackendType = "memory"
)

// String implements fmt.Stringer
func (bt BackendType) String() string {
	return string(bt)
}

// IsValid returns true if the backend type is valid
func (bt BackendType) IsValid() bool {
	switch bt {
	case SQLiteBackend, MySQLBackend, MemoryBackend:
		return true
	default:
		return false
	}
}

// Persistent reports whether the backend keeps data across restarts.
func (bt BackendType) Persistent() bool {
	return bt == SQLiteBackend || bt == MySQLBackend
}
