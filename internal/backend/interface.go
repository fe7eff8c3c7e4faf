// Package backend opens the journal store selected by DATA_BACKEND.
package backend

import (
	"context"

	"carnote/internal/ports"
)

// CleanupFunc releases the store. For a persisted memory backend it also
// writes the snapshot back to disk.
type CleanupFunc func() error

// BackendResult contains the repository and optional cleanup function
type BackendResult struct {
	Repository ports.Repository
	Cleanup    CleanupFunc
}

// Close runs Cleanup when one is set.
func (r *BackendResult) Close() error {
	if r == nil || r.Cleanup == nil {
		return nil
	}
	return r.Cleanup()
}

// Factory creates backends based on configuration
type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
}

// Config holds configuration for backend creation
type Config struct {
	Type BackendType

	// SQLite specific
	SQLiteDBPath string

	// Memory backend: DataDirectory is read on start and, with Persist,
	// written back on cleanup
	DataDirectory string
	Persist       bool
}

// BackendType represents the type of backend
type BackendType string

const (
	SQLiteBackend BackendType = "sqlite"
	MemoryBackend BackendType = "memory"
)

func (bt BackendType) String() string {
	return string(bt)
}

func (bt BackendType) IsValid() bool {
	switch bt {
	case SQLiteBackend, MemoryBackend:
		return true
	default:
		return false
	}
}
