// Package transport defines the capability surface drift uses to reach a
// remote host. The state core never implements a wire protocol; a real SSH
// or SFTP transport satisfies these interfaces from outside.
package transport

import (
	"context"
	"errors"
	"time"

	"drift/internal/types"
)

var ErrClosed = errors.New("transport: connection closed")

// Stat is the result of polling one remote path's metadata. A missing file
// is reported with Exists=false rather than an error so the reconciler can
// classify it.
type Stat struct {
	Mtime  time.Time
	Size   int64
	Exists bool
}

// Conn is one live channel to a remote host.
type Conn interface {
	// List returns the immediate children of a remote directory.
	List(ctx context.Context, path string) ([]*types.FileEntry, error)
	// Stat polls metadata for one remote path.
	Stat(ctx context.Context, path string) (Stat, error)
	// Read fetches the remote file content with the metadata it was read at.
	Read(ctx context.Context, path string) ([]byte, Stat, error)
	// Write stores content remotely and returns the resulting metadata.
	Write(ctx context.Context, path string, data []byte) (Stat, error)
	Close() error
}

// Transport establishes connections from saved profiles.
type Transport interface {
	Dial(ctx context.Context, profile types.ConnectionProfile) (Conn, error)
}
