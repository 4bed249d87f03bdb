package coworking

import (
	"context"
	"fmt"
)

// Gateway moves the whole database between memory and durable storage.
type Gateway interface {
	// Load replaces the in-memory state with what is stored. Missing storage
	// yields an empty database.
	Load(ctx context.Context, db *Database) error
	// Save overwrites the stored state with the in-memory state.
	Save(ctx context.Context, db *Database) error
}

// Backend selects a Gateway implementation.
type Backend string

const (
	BackendCSV      Backend = "csv"
	BackendSQLite   Backend = "sqlite"
	BackendPostgres Backend = "postgres"
)

// ParseBackend validates a backend name.
func ParseBackend(s string) (Backend, error) {
	switch b := Backend(s); b {
	case BackendCSV, BackendSQLite, BackendPostgres:
		return b, nil
	case "":
		return BackendCSV, nil
	default:
		return "", fmt.Errorf("unknown backend %q (want csv, sqlite or postgres)", s)
	}
}
