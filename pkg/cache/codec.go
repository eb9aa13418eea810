package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Codec converts cached values to and from the byte payloads stored in a
// backend. The engine wraps the encoded payload in a record envelope that
// carries entry metadata and an integrity checksum.
type Codec[V any] interface {
	Marshal(v V) ([]byte, error)
	Unmarshal(data []byte) (V, error)
}

// JSONCodec encodes values as JSON. It is the default codec.
type JSONCodec[V any] struct{}

func (JSONCodec[V]) Marshal(v V) ([]byte, error) {
	return json.Marshal(v)
}

func (JSONCodec[V]) Unmarshal(data []byte) (V, error) {
	var v V
	err := json.Unmarshal(data, &v)
	return v, err
}

// errCorruptRecord marks a backend payload that failed envelope validation.
// Corrupt records are removed and reported as misses rather than surfaced to
// callers.
var errCorruptRecord = errors.New("corrupt record")

const envelopeVersion = 1

// envelope is the durable form of a cache entry. All timestamps are Unix
// milliseconds so records survive process restarts and clock implementations.
type envelope struct {
	Version      int    `json:"version"`
	Key          string `json:"key"`
	CreatedAt    int64  `json:"created_at_ms"`
	LastAccessAt int64  `json:"last_access_at_ms"`
	TTLMillis    int64  `json:"ttl_ms"`
	AccessCount  int64  `json:"access_count"`
	SlowHits     int    `json:"slow_hits"`
	SizeBytes    int64  `json:"size_bytes"`
	Checksum     string `json:"checksum"`
	Value        []byte `json:"value"`
}

func payloadChecksum(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func unixMilli(ms int64) time.Time {
	return time.UnixMilli(ms)
}

func durationMillis(ms int64) time.Duration {
	return time.Duration(ms) * time.Millisecond
}

// sealEntry encodes an entry's value and wraps it in a checksummed envelope
// ready for a backend write.
func sealEntry[V any](codec Codec[V], e *Entry[V]) ([]byte, error) {
	payload, err := codec.Marshal(e.Value)
	if err != nil {
		return nil, fmt.Errorf("encode value for %q: %w", e.Key, err)
	}
	env := envelope{
		Version:      envelopeVersion,
		Key:          e.Key,
		CreatedAt:    e.CreatedAt.UnixMilli(),
		LastAccessAt: e.LastAccessAt.UnixMilli(),
		TTLMillis:    e.TTL.Milliseconds(),
		AccessCount:  e.AccessCount,
		SlowHits:     e.slowHits,
		SizeBytes:    e.SizeBytes,
		Checksum:     payloadChecksum(payload),
		Value:        payload,
	}
	data, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("encode record for %q: %w", e.Key, err)
	}
	return data, nil
}

// openEntry validates a backend payload and decodes it back into a value.
// Any structural problem, version or key mismatch, checksum failure, or
// value decode error is reported as errCorruptRecord.
func openEntry[V any](codec Codec[V], key string, data []byte, logger *zap.Logger) (V, *envelope, error) {
	var zero V
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		logger.Warn("record envelope unreadable",
			zap.String("key", key),
			zap.Error(err))
		return zero, nil, errCorruptRecord
	}
	if env.Version != envelopeVersion {
		logger.Warn("record version mismatch",
			zap.String("key", key),
			zap.Int("version", env.Version))
		return zero, nil, errCorruptRecord
	}
	if env.Key != key {
		logger.Warn("record key mismatch",
			zap.String("key", key),
			zap.String("record_key", env.Key))
		return zero, nil, errCorruptRecord
	}
	if payloadChecksum(env.Value) != env.Checksum {
		logger.Warn("record checksum mismatch", zap.String("key", key))
		return zero, nil, errCorruptRecord
	}
	v, err := codec.Unmarshal(env.Value)
	if err != nil {
		logger.Warn("record value undecodable",
			zap.String("key", key),
			zap.Error(err))
		return zero, nil, errCorruptRecord
	}
	return v, &env, nil
}

// indexEntry is the persisted metadata for one slow tier entry. The value
// itself lives in its own backend record; the index lets a restarted cache
// rediscover what the backend holds without listing it.
type indexEntry struct {
	Key          string `json:"key"`
	CreatedAt    int64  `json:"created_at_ms"`
	LastAccessAt int64  `json:"last_access_at_ms"`
	TTLMillis    int64  `json:"ttl_ms"`
	AccessCount  int64  `json:"access_count"`
	SlowHits     int    `json:"slow_hits"`
	SizeBytes    int64  `json:"size_bytes"`
}

// indexSnapshot is the durable slow tier index written under the reserved
// index key.
type indexSnapshot struct {
	Version int          `json:"version"`
	SavedAt int64        `json:"saved_at_ms"`
	Entries []indexEntry `json:"entries"`
}

func encodeIndex(entries []indexEntry, savedAtMillis int64) ([]byte, error) {
	snap := indexSnapshot{
		Version: envelopeVersion,
		SavedAt: savedAtMillis,
		Entries: entries,
	}
	return json.Marshal(snap)
}

func decodeIndex(data []byte) (*indexSnapshot, error) {
	var snap indexSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("decode slow tier index: %w", err)
	}
	if snap.Version != envelopeVersion {
		return nil, fmt.Errorf("slow tier index version %d not supported", snap.Version)
	}
	return &snap, nil
}
