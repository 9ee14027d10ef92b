package backend

import (
	"errors"
	"fmt"

	"spendwise/internal/config"
	"spendwise/internal/storage"
)

// FromAppConfig converts the application config to backend config
func FromAppConfig(appConfig *config.Config) (Config, error) {
	if appConfig == nil {
		return Config{}, errors.New("app config is nil")
	}

	backendType := BackendType(appConfig.DataBackend)
	if !backendType.IsValid() {
		return Config{}, fmt.Errorf("invalid backend type in config: %s", appConfig.DataBackend)
	}

	return Config{
		Type:         backendType,
		SQLiteDBPath: appConfig.SQLiteDBPath,
		MySQLDSN:     appConfig.MySQLDSN,
	}, nil
}

// Validate validates the backend configuration
func (c Config) Validate() error {
	if !c.Type.IsValid() {
		return fmt.Errorf("invalid backend type: %s", c.Type)
	}

	switch c.Type {
	case SQLiteBackend:
		if c.SQLiteDBPath == "" {
			return errors.New("SQLite database path is required for sqlite backend")
		}
	case MySQLBackend:
		if c.MySQLDSN == "" {
			return errors.New("MySQL DSN is required for mysql backend")
		}
	case MemoryBackend:
		// Nothing to configure.
	}

	return nil
}

// MigrationTarget returns the dialect and DSN schema migrations run against.
func (c Config) MigrationTarget() (storage.Dialect, string, error) {
	if err := c.Validate(); err != nil {
		return "", "", err
	}
	switch c.Type {
	case SQLiteBackend:
		return storage.DialectSQLite, storage.SQLiteDSN(c.SQLiteDBPath), nil
	case MySQLBackend:
		return storage.DialectMySQL, c.MySQLDSN, nil
	default:
		return "", "", fmt.Errorf("%s backend has no schema to migrate", c.Type)
	}
}

// GetBackendTypes returns all valid backend types
func GetBackendTypes() []BackendType {
	return []BackendType{SQLiteBackend, MySQLBackend, MemoryBackend}
}

// GetBackendTypeStrings returns all valid backend type strings
func GetBackendTypeStrings() []string {
	types := GetBackendTypes()
	out := make([]string, len(types))
	for i, t := range types {
		out[i] = t.String()
	}
	return out
}
