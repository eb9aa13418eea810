/*
Package types provides the shared data structures and contracts for the
stratacache engine.

This package defines the vocabulary spoken across the module: tiers,
access events, predictions, telemetry snapshots, and the persistence
backend contract. It has no behavior of its own beyond trivial accessors,
so every other package can import it without cycles.

# Core Types

Tier:
One of two storage pools. The fast tier is memory-resident and accounted
in bytes; the slow tier is larger, optionally persisted through a Backend,
and accounted in entries.

AccessEvent / Prediction / KeyCount / PatternReport:
The analyzer's input and output types. Predictions carry parallel
candidate/confidence slices where each confidence is the fraction of
observed transitions from the trigger key to that candidate.

TierStats / GlobalStats:
Telemetry snapshots returned by the cache facade. Counters are cumulative
since construction (or the last Clear); HitRate is derived and defined as
0 when no requests have been observed.

# Backend Contract

Backend abstracts durable storage for the slow tier as a read/write/delete
trio over opaque bytes:

	type Backend interface {
		Read(ctx context.Context, key string) ([]byte, error)
		Write(ctx context.Context, key string, data []byte) error
		Delete(ctx context.Context, key string) error
		Close() error
	}

Read reports an absent key with ErrNotFound so callers can distinguish
"no record" from a transport failure with errors.Is. Implementations live
in internal/storage (filesystem, Redis, S3) and must be safe for
concurrent use: the engine invokes them outside its own locks so that
slow-tier I/O never blocks unrelated foreground operations.
*/
package types
