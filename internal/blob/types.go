// Package blob defines the storage backends for entity blob payloads.
// Entities reference payloads by key; the transactional engine owns key
// lifecycle, so a Put here replaces any existing payload under the key.
package blob

import (
	"context"
	"errors"
	"io"
	"time"
)

// Driver identifies a concrete blob storage backend implementation.
type Driver string

const (
	// DriverMemory is the in-memory implementation (tests, ephemeral).
	DriverMemory Driver = "memory"
	// DriverFilesystem stores payloads under the environment directory.
	DriverFilesystem Driver = "fs"
	// DriverS3 is an S3 / MinIO compatible implementation.
	DriverS3 Driver = "s3"
)

// Info describes a stored payload.
type Info struct {
	Key          string
	Size         int64
	LastModified time.Time
}

// Store is the payload backend used by the transactional engine. Get
// returns a streaming handle; callers own closing it.
type Store interface {
	Put(ctx context.Context, key string, r io.Reader) (Info, error)
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
	List(ctx context.Context, prefix string) ([]string, error)
	Driver() Driver
}

// ErrNotFound is returned by Get for keys that have no payload.
var ErrNotFound = errors.New("blob: not found")
