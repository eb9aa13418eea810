// Package fs implements the persistence backend on the local filesystem.
// Each record lives in its own file named by a hash of its key; writes go
// through a temp file and rename so readers never observe a partial record.
package fs

import (
	"bytes"
	"compress/gzip"
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/stratacache/stratacache/pkg/types"
)

// Config configures the filesystem backend.
type Config struct {
	Dir      string
	Compress bool
}

// Backend stores records as files under a single directory.
type Backend struct {
	dir      string
	compress bool
	logger   *zap.Logger
}

// New creates the record directory if needed and returns the backend.
func New(cfg Config, logger *zap.Logger) (*Backend, error) {
	if cfg.Dir == "" {
		return nil, fmt.Errorf("record directory is required")
	}
	if err := os.MkdirAll(cfg.Dir, 0750); err != nil {
		return nil, fmt.Errorf("create record directory: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Backend{
		dir:      cfg.Dir,
		compress: cfg.Compress,
		logger:   logger.With(zap.String("component", "fs-backend")),
	}, nil
}

// Read returns the record for key, or types.ErrNotFound.
func (b *Backend) Read(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(b.path(key))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, types.ErrNotFound
		}
		return nil, fmt.Errorf("read record: %w", err)
	}
	// Compressed records carry the gzip magic bytes; sniffing keeps old
	// records readable after the compression setting changes.
	if len(data) >= 2 && data[0] == 0x1f && data[1] == 0x8b {
		zr, err := gzip.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("open compressed record: %w", err)
		}
		defer func() { _ = zr.Close() }()
		out, err := io.ReadAll(zr)
		if err != nil {
			return nil, fmt.Errorf("decompress record: %w", err)
		}
		return out, nil
	}
	return data, nil
}

// Write stores the record for key atomically.
func (b *Backend) Write(ctx context.Context, key string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	payload := data
	if b.compress {
		var buf bytes.Buffer
		zw := gzip.NewWriter(&buf)
		if _, err := zw.Write(data); err != nil {
			_ = zw.Close()
			return fmt.Errorf("compress record: %w", err)
		}
		if err := zw.Close(); err != nil {
			return fmt.Errorf("compress record: %w", err)
		}
		payload = buf.Bytes()
	}

	path := b.path(key)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, payload, 0600); err != nil {
		return fmt.Errorf("write record: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("publish record: %w", err)
	}
	return nil
}

// Delete removes the record for key, or returns types.ErrNotFound.
func (b *Backend) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	err := os.Remove(b.path(key))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return types.ErrNotFound
		}
		return fmt.Errorf("delete record: %w", err)
	}
	return nil
}

// Close is a no-op; the backend holds no open handles between calls.
func (b *Backend) Close() error {
	return nil
}

func (b *Backend) path(key string) string {
	hash := sha256.Sum256([]byte(key))
	return filepath.Join(b.dir, fmt.Sprintf("%x.rec", hash[:8]))
}
