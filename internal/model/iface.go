package model

import "errors"

// ErrStoreUnavailable reports that the backing store location cannot be
// created, written, or read. Ingestion callers swallow it; admin reads
// treat it as an empty store.
var ErrStoreUnavailable = errors.New("search log store unavailable")

// EventStore is the capability contract shared by the flat-file and
// structured store backends. The store exclusively owns its backing
// location; no other component touches it directly.
type EventStore interface {
	// Append persists one event. Concurrent appends never interleave.
	Append(ev SearchEvent) error
	// ReadAll returns all stored events in append order (oldest first).
	// A missing store reads as empty, not as an error.
	ReadAll() ([]SearchEvent, error)
	// Truncate resets the store to empty. Idempotent; atomic with
	// respect to concurrent readers.
	Truncate() error
	Close() error
}
