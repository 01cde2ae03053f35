// Package store persists the pipeline's documents (cache payloads, prediction
// ledger, top picks) behind a small key-value contract so the caching and
// ledger logic stay storage-agnostic. Keys are slash-separated paths like
// "predictions/2025-06-01"; values are JSON documents.
package store

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Read when no document exists for the key.
var ErrNotFound = errors.New("store: key not found")

// Store is the persistence contract shared by the filesystem, Postgres and
// Redis backends.
//
// WriteIfAbsent is the ledger's idempotence primitive: the first writer for a
// key wins and later writers observe created=false, not an error.
type Store interface {
	// Read returns the document for key, or ErrNotFound.
	Read(ctx context.Context, key string) ([]byte, error)

	// WriteIfAbsent stores value only if key does not exist yet. It reports
	// whether this call created the document.
	WriteIfAbsent(ctx context.Context, key string, value []byte) (bool, error)

	// Overwrite stores value unconditionally. Implementations must replace
	// atomically: a reader never sees a partially written document.
	Overwrite(ctx context.Context, key string, value []byte) error

	// List returns all keys with the given prefix, in no particular order.
	List(ctx context.Context, prefix string) ([]string, error)
}
