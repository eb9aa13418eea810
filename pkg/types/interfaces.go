package types

import (
	"context"
)

// Backend is the slow-tier persistence contract: opaque bytes keyed by
// string. The cache engine owns serialization; implementations store and
// return the bytes verbatim. Read returns ErrNotFound (possibly wrapped)
// when the key has no record; Delete of an absent key may do the same, and
// callers treat that as success.
//
// Implementations must be safe for concurrent use; the engine calls them
// outside its own locks.
type Backend interface {
	Read(ctx context.Context, key string) ([]byte, error)
	Write(ctx context.Context, key string, data []byte) error
	Delete(ctx context.Context, key string) error
	Close() error
}
