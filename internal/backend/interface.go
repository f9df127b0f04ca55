// Package backend builds the persistence adapter selected by DATA_BACKEND.
package backend

import (
	"context"
	"time"

	"duka/internal/ports"
	"duka/internal/storage"
)

// CleanupFunc represents a cleanup function for resources
type CleanupFunc func() error

// BackendResult contains the store and optional cleanup function
type BackendResult struct {
	Store ports.Store
	// SQLite is set only for the sqlite backend; the Sheets sync reads
	// unsynced transactions from it.
	SQLite  *storage.SQLiteRepository
	Cleanup CleanupFunc
}

// Factory creates backends based on configuration
type Factory interface {
	// CreateBackend creates a backend instance based on the provided config
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
}

// Config holds configuration for backend creation
type Config struct {
	// Backend type
	Type BackendType

	// SQLite specific
	SQLiteDBPath string

	// Memory specific; empty means the built-in catalogue
	SeedFile string

	// Remote specific
	RemoteAPIURL   string
	RemoteAPIToken string
	RemoteTimeout  time.Duration
}

// BackendType represents the type of backend
type BackendType string

const (
	MemoryBackend BackendType = "memory"
	SQLiteBackend BackendType = "sqlite"
	RemoteBackend BackendType = "remote"
)

// String implements fmt.Stringer
func (bt BackendType) String() string {
	return string(bt)
}

// IsValid returns true if the backend type is valid
func (bt BackendType) IsValid() bool {
	switch bt {
	case MemoryBackend, SQLiteBackend, RemoteBackend:
		return true
	default:
		return false
	}
}
