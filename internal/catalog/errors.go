package catalog

import (
	"errors"
	"fmt"

	"archivist/internal/services"
)

var (
	// ErrStateConflict marks a status change outside the transition table.
	ErrStateConflict = errors.New("state conflict")
	// ErrIndexWrite marks a failure to maintain the full-text index.
	ErrIndexWrite = errors.New("index write failed")
	// ErrUnknownStage marks a stage name the store does not recognise.
	ErrUnknownStage = fmt.Errorf("unknown stage: %w", services.ErrConfiguration)
	// ErrNotFound marks a missing item.
	ErrNotFound = fmt.Errorf("item %w", services.ErrNotFound)
	// ErrSchemaMismatch indicates the database schema version doesn't match the expected version.
	ErrSchemaMismatch = errors.New("schema version mismatch")
)

func conflict(nodeID int64, stage Stage, from, to Status) error {
	return fmt.Errorf("%w: node %d %s %s -> %s", ErrStateConflict, nodeID, stage, from, to)
}

func indexError(nodeID int64, err error) error {
	return fmt.Errorf("%w: node %d: %w", ErrIndexWrite, nodeID, err)
}
