package store

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/seventv/chatsync/internal/instance"
	"github.com/seventv/chatsync/internal/stream"
	"github.com/seventv/common/sync_map"
)

type mockWatcher struct {
	path   string
	notify chan struct{}
	fail   chan error
}

// MockInstance is an in-process store. It backs the memory mode and every test.
type MockInstance struct {
	data      map[string][]byte
	watchers  *sync_map.Map[uint64, *mockWatcher]
	seq       atomic.Uint64
	connected bool
	failSet   func(path string) error
	mtx       sync.RWMutex
}

func NewMock() *MockInstance {
	return &MockInstance{
		data:      map[string][]byte{},
		watchers:  &sync_map.Map[uint64, *mockWatcher]{},
		connected: true,
	}
}

// SetConnected toggles connectivity. Disconnecting fails writes and ends every
// live subscription with instance.ErrDisconnected.
func (i *MockInstance) SetConnected(connected bool) {
	i.mtx.Lock()
	i.connected = connected
	i.mtx.Unlock()

	if connected {
		return
	}

	i.watchers.Range(func(key uint64, w *mockWatcher) bool {
		select {
		case w.fail <- instance.ErrDisconnected:
		default:
		}

		return true
	})
}

// FailSet installs a hook consulted before every write. A non-nil error from
// the hook fails that write without touching the data.
func (i *MockInstance) FailSet(fn func(path string) error) {
	i.mtx.Lock()
	i.failSet = fn
	i.mtx.Unlock()
}

// Watchers returns the number of live subscriptions.
func (i *MockInstance) Watchers() int {
	n := 0

	i.watchers.Range(func(key uint64, w *mockWatcher) bool {
		n++
		return true
	})

	return n
}

func (i *MockInstance) Ping(ctx context.Context) error {
	i.mtx.RLock()
	defer i.mtx.RUnlock()

	if !i.connected {
		return instance.ErrDisconnected
	}

	return nil
}

func (i *MockInstance) Get(ctx context.Context, path string) ([]byte, error) {
	if !validPath(path) {
		return nil, fmt.Errorf("%w: %q", instance.ErrInvalidPath, path)
	}

	i.mtx.RLock()
	defer i.mtx.RUnlock()

	if !i.connected {
		return nil, instance.ErrDisconnected
	}

	v, ok := i.data[path]
	if !ok {
		return nil, instance.ErrNotFound
	}

	b := make([]byte, len(v))
	copy(b, v)

	return b, nil
}

func (i *MockInstance) Set(ctx context.Context, path string, value []byte) error {
	if !validPath(path) {
		return fmt.Errorf("%w: %q", instance.ErrInvalidPath, path)
	}

	i.mtx.Lock()
	if !i.connected {
		i.mtx.Unlock()
		return instance.ErrDisconnected
	}

	if i.failSet != nil {
		if err := i.failSet(path); err != nil {
			i.mtx.Unlock()
			return err
		}
	}

	if value == nil {
		delete(i.data, path)
	} else {
		b := make([]byte, len(value))
		copy(b, value)
		i.data[path] = b
	}
	i.mtx.Unlock()

	i.watchers.Range(func(key uint64, w *mockWatcher) bool {
		if within(w.path, path) {
			select {
			case w.notify <- struct{}{}:
			default:
			}
		}

		return true
	})

	return nil
}

func (i *MockInstance) Subscribe(ctx context.Context, path string) (stream.Handle[instance.Snapshot], error) {
	if !validPath(path) {
		return nil, fmt.Errorf("%w: %q", instance.ErrInvalidPath, path)
	}

	if err := i.Ping(ctx); err != nil {
		return nil, err
	}

	w := &mockWatcher{
		path:   path,
		notify: make(chan struct{}, 1),
		fail:   make(chan error, 1),
	}
	w.notify <- struct{}{}

	id := i.seq.Add(1)
	i.watchers.Store(id, w)

	return stream.New(ctx, func(ctx context.Context, emit func(instance.Snapshot) bool) error {
		defer i.watchers.Delete(id)

		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case err := <-w.fail:
				return err
			case <-w.notify:
				if !emit(i.snapshot(path)) {
					return ctx.Err()
				}
			}
		}
	}), nil
}

func (i *MockInstance) snapshot(path string) instance.Snapshot {
	i.mtx.RLock()
	defer i.mtx.RUnlock()

	values := map[string][]byte{}

	for k, v := range i.data {
		if within(path, k) {
			values[relative(path, k)] = v
		}
	}

	return newSnapshot(path, values)
}
