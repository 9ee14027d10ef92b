package core

import (
	"fmt"
	"strings"
)

// ValidationError reports a user-correctable upload or request problem.
type ValidationError struct {
	Msg      string
	Rejected int
}

func (e *ValidationError) Error() string {
	if e.Rejected > 0 {
		return fmt.Sprintf("%s (%d rows rejected)", e.Msg, e.Rejected)
	}
	return e.Msg
}

// NotFoundError is returned by single-resource lookups.
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Resource, e.ID)
}

// StorageError wraps a persistence failure with the operation that failed.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// ConfigError collects every problem found while validating configuration.
type ConfigError struct {
	Problems []string
}

func (e *ConfigError) Error() string {
	return "configuration validation failed:\n- " + strings.Join(e.Problems, "\n- ")
}
