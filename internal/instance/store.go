package instance

import (
	"context"
	"errors"

	"github.com/seventv/chatsync/internal/stream"
)

var (
	ErrNotFound     = errors.New("store: key not found")
	ErrDisconnected = errors.New("store: disconnected")
	ErrInvalidPath  = errors.New("store: invalid path")
)

// Store is the remote real-time data store. Paths are slash separated.
type Store interface {
	// Get returns the value at path, or ErrNotFound.
	Get(ctx context.Context, path string) ([]byte, error)
	// Subscribe delivers the subtree at path once registration completes and
	// again after every change beneath it.
	Subscribe(ctx context.Context, path string) (stream.Handle[Snapshot], error)
	// Set writes value at path. A nil value removes the path.
	Set(ctx context.Context, path string, value []byte) error
	Ping(ctx context.Context) error
}

// Snapshot is the state of a subtree. Values is keyed by path relative to
// Path; the empty key holds the value stored at Path itself.
type Snapshot struct {
	Path   string
	Values map[string][]byte
}
