// Package memorystorage provides a purely in-memory storage backend,
// reusing the jsondb cache without any file persistence. It is the default
// when neither a database DSN nor a storage file is configured, and the
// usual backend for tests.
package memorystorage

import (
	"context"

	"github.com/apetrenko/hublink/internal/db/jsondb"
)

// MemoryStorage is an in-memory implementation of the storage interface.
type MemoryStorage struct {
	*jsondb.JSONDB
}

// New returns an empty in-memory storage.
func New() (*MemoryStorage, error) {
	return &MemoryStorage{
		JSONDB: jsondb.NewWithCache(jsondb.NewCache()),
	}, nil
}

// Close is a no-op: there is nothing to flush.
func (theStorage *MemoryStorage) Close() error {
	return nil
}

// Ping reports the storage as always reachable.
func (theStorage *MemoryStorage) Ping(ctx context.Context) error {
	return nil
}
