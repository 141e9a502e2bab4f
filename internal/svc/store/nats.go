package store

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/nats-io/nats.go"
	"github.com/seventv/chatsync/internal/instance"
	"github.com/seventv/chatsync/internal/stream"
	"go.uber.org/multierr"
)

var natsToken = regexp.MustCompile(`^[-_=a-zA-Z0-9]+$`)

type NatsOptions struct {
	URL    string
	Bucket string
}

// NatsInstance keeps the tree in a JetStream key/value bucket. Path segments
// become dot separated key tokens.
type NatsInstance struct {
	nc *nats.Conn
	kv nats.KeyValue
}

func NewNats(ctx context.Context, o NatsOptions) (*NatsInstance, error) {
	nc, err := nats.Connect(o.URL, nats.Name("chatsync"))
	if err != nil {
		return nil, fmt.Errorf("nats: connect: %w", err)
	}

	js, err := nc.JetStream()
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("nats: jetstream: %w", err)
	}

	kv, err := js.KeyValue(o.Bucket)
	if errors.Is(err, nats.ErrBucketNotFound) {
		kv, err = js.CreateKeyValue(&nats.KeyValueConfig{
			Bucket:      o.Bucket,
			Description: "chatsync remote store",
			History:     1,
		})
	}

	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("nats: bucket %s: %w", o.Bucket, err)
	}

	return &NatsInstance{
		nc: nc,
		kv: kv,
	}, nil
}

// natsKey maps a slash path onto a key/value key.
func natsKey(path string) (string, error) {
	if !validPath(path) {
		return "", fmt.Errorf("%w: %q", instance.ErrInvalidPath, path)
	}

	segs := strings.Split(path, "/")
	for _, s := range segs {
		if !natsToken.MatchString(s) {
			return "", fmt.Errorf("%w: segment %q", instance.ErrInvalidPath, s)
		}
	}

	return strings.Join(segs, "."), nil
}

func (n *NatsInstance) Ping(ctx context.Context) error {
	if n.nc.Status() != nats.CONNECTED {
		return instance.ErrDisconnected
	}

	_, err := n.nc.RTT()

	return err
}

func (n *NatsInstance) Close() error {
	return n.nc.Drain()
}

func (n *NatsInstance) Get(ctx context.Context, path string) ([]byte, error) {
	key, err := natsKey(path)
	if err != nil {
		return nil, err
	}

	e, err := n.kv.Get(key)
	if errors.Is(err, nats.ErrKeyNotFound) {
		return nil, instance.ErrNotFound
	}

	if err != nil {
		return nil, err
	}

	return e.Value(), nil
}

func (n *NatsInstance) Set(ctx context.Context, path string, value []byte) error {
	key, err := natsKey(path)
	if err != nil {
		return err
	}

	if value == nil {
		if err := n.kv.Delete(key); err != nil && !errors.Is(err, nats.ErrKeyNotFound) {
			return err
		}

		return nil
	}

	_, err = n.kv.Put(key, value)

	return err
}

func (n *NatsInstance) Subscribe(ctx context.Context, path string) (stream.Handle[instance.Snapshot], error) {
	key, err := natsKey(path)
	if err != nil {
		return nil, err
	}

	node, err := n.kv.Watch(key)
	if err != nil {
		return nil, fmt.Errorf("nats: watch %s: %w", key, err)
	}

	tree, err := n.kv.Watch(key + ".>")
	if err != nil {
		_ = node.Stop()
		return nil, fmt.Errorf("nats: watch %s.>: %w", key, err)
	}

	return stream.New(ctx, func(ctx context.Context, emit func(instance.Snapshot) bool) (err error) {
		defer func() {
			err = multierr.Combine(err, node.Stop(), tree.Stop())
		}()

		var (
			values               = map[string][]byte{}
			nodeReady, treeReady bool
			started              bool
		)

		apply := func(e nats.KeyValueEntry) {
			rel := strings.ReplaceAll(strings.TrimPrefix(strings.TrimPrefix(e.Key(), key), "."), ".", "/")

			switch e.Operation() {
			case nats.KeyValueDelete, nats.KeyValuePurge:
				delete(values, rel)
			default:
				values[rel] = e.Value()
			}
		}

		for {
			var (
				e  nats.KeyValueEntry
				ok bool
			)

			select {
			case <-ctx.Done():
				return ctx.Err()
			case e, ok = <-node.Updates():
				if ok && e == nil {
					nodeReady = true
				}
			case e, ok = <-tree.Updates():
				if ok && e == nil {
					treeReady = true
				}
			}

			if !ok {
				return stream.ErrEnded
			}

			if e != nil {
				apply(e)
			}

			if !nodeReady || !treeReady {
				continue
			}

			if e == nil && started {
				continue
			}

			started = true

			if !emit(newSnapshot(path, values)) {
				return ctx.Err()
			}
		}
	}), nil
}
