package store

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"maps"
	"strings"

	"github.com/go-redis/redis/v8"
	"github.com/seventv/chatsync/internal/instance"
	"github.com/seventv/chatsync/internal/stream"
	"github.com/seventv/common/utils"
	"go.uber.org/zap"
)

const (
	redisOpSet    = 's'
	redisOpDelete = 'd'
)

type RedisOptions struct {
	Addresses  []string
	Username   string
	Password   string
	Database   int
	Sentinel   bool
	MasterName string
	Prefix     string
}

// RedisInstance keeps every path as a plain key and announces each write on a
// per-path pub/sub channel.
type RedisInstance struct {
	cl     redis.UniversalClient
	prefix string
}

func NewRedis(ctx context.Context, o RedisOptions) (*RedisInstance, error) {
	if len(o.Addresses) == 0 {
		return nil, errors.New("redis: no addresses configured")
	}

	var cl redis.UniversalClient
	if o.Sentinel {
		cl = redis.NewFailoverClient(&redis.FailoverOptions{
			MasterName:    o.MasterName,
			SentinelAddrs: o.Addresses,
			Username:      o.Username,
			Password:      o.Password,
			DB:            o.Database,
		})
	} else {
		cl = redis.NewClient(&redis.Options{
			Addr:     o.Addresses[0],
			Username: o.Username,
			Password: o.Password,
			DB:       o.Database,
		})
	}

	if err := cl.Ping(ctx).Err(); err != nil {
		_ = cl.Close()
		return nil, fmt.Errorf("redis: ping: %w", err)
	}

	return &RedisInstance{
		cl:     cl,
		prefix: o.Prefix,
	}, nil
}

func (r *RedisInstance) key(path string) string {
	return r.prefix + path
}

func (r *RedisInstance) channel(path string) string {
	return r.prefix + "change:" + path
}

func (r *RedisInstance) Ping(ctx context.Context) error {
	return r.cl.Ping(ctx).Err()
}

// Client exposes the connection for services that share it.
func (r *RedisInstance) Client() redis.UniversalClient {
	return r.cl
}

func (r *RedisInstance) Close() error {
	return r.cl.Close()
}

func (r *RedisInstance) Get(ctx context.Context, path string) ([]byte, error) {
	if !validPath(path) {
		return nil, fmt.Errorf("%w: %q", instance.ErrInvalidPath, path)
	}

	b, err := r.cl.Get(ctx, r.key(path)).Bytes()
	if err == redis.Nil {
		return nil, instance.ErrNotFound
	}

	return b, err
}

func (r *RedisInstance) Set(ctx context.Context, path string, value []byte) error {
	if !validPath(path) {
		return fmt.Errorf("%w: %q", instance.ErrInvalidPath, path)
	}

	_, err := r.cl.TxPipelined(ctx, func(p redis.Pipeliner) error {
		if value == nil {
			p.Del(ctx, r.key(path))
			p.Publish(ctx, r.channel(path), []byte{redisOpDelete})
		} else {
			p.Set(ctx, r.key(path), value, 0)
			p.Publish(ctx, r.channel(path), append([]byte{redisOpSet}, value...))
		}

		return nil
	})

	return err
}

func (r *RedisInstance) Subscribe(ctx context.Context, path string) (stream.Handle[instance.Snapshot], error) {
	if !validPath(path) {
		return nil, fmt.Errorf("%w: %q", instance.ErrInvalidPath, path)
	}

	node := r.channel(path)
	ps := r.cl.PSubscribe(ctx, escapeGlob(node), escapeGlob(node)+"/*")

	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("redis: subscribe %s: %w", path, err)
	}

	// Registration is complete before the initial read, so no write can fall
	// between the snapshot and the first delta.
	values, err := r.load(ctx, path)
	if err != nil {
		_ = ps.Close()
		return nil, err
	}

	ch := ps.ChannelWithSubscriptions(ctx, 256)
	changePrefix := r.channel("")

	return stream.New(ctx, func(ctx context.Context, emit func(instance.Snapshot) bool) error {
		defer func() {
			if err := ps.Close(); err != nil {
				zap.S().Named("store").Warnw("redis unsubscribe failed",
					"path", path,
					"error", err,
				)
			}
		}()

		if !emit(newSnapshot(path, values)) {
			return ctx.Err()
		}

		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case v, ok := <-ch:
				if !ok {
					return stream.ErrEnded
				}

				switch msg := v.(type) {
				case *redis.Subscription:
					// The client resubscribes after a reconnect. Deltas
					// published while it was away are gone, so the subtree
					// is read again.
					if msg.Kind != "psubscribe" {
						continue
					}

					fresh, err := r.load(ctx, path)
					if err != nil {
						return err
					}

					if sameValues(values, fresh) {
						continue
					}

					values = fresh
				case *redis.Message:
					changed := strings.TrimPrefix(msg.Channel, changePrefix)
					if !within(path, changed) || msg.Payload == "" {
						continue
					}

					rel := relative(path, changed)

					payload := utils.S2B(msg.Payload)
					switch payload[0] {
					case redisOpDelete:
						delete(values, rel)
					case redisOpSet:
						b := make([]byte, len(payload)-1)
						copy(b, payload[1:])
						values[rel] = b
					default:
						continue
					}
				default:
					continue
				}

				if !emit(newSnapshot(path, values)) {
					return ctx.Err()
				}
			}
		}
	}), nil
}

func sameValues(a, b map[string][]byte) bool {
	return maps.EqualFunc(a, b, bytes.Equal)
}

// load reads the node and its subtree.
func (r *RedisInstance) load(ctx context.Context, path string) (map[string][]byte, error) {
	values := map[string][]byte{}

	b, err := r.cl.Get(ctx, r.key(path)).Bytes()
	switch {
	case err == nil:
		values[""] = b
	case err != redis.Nil:
		return nil, fmt.Errorf("redis: get %s: %w", path, err)
	}

	var keys []string

	iter := r.cl.Scan(ctx, 0, escapeGlob(r.key(path))+"/*", 256).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}

	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("redis: scan %s: %w", path, err)
	}

	if len(keys) == 0 {
		return values, nil
	}

	res, err := r.cl.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: mget %s: %w", path, err)
	}

	base := r.key(path)
	for i, v := range res {
		s, ok := v.(string)
		if !ok {
			continue
		}

		values[relative(base, keys[i])] = []byte(s)
	}

	return values, nil
}

func escapeGlob(s string) string {
	var sb strings.Builder

	for _, c := range s {
		switch c {
		case '*', '?', '[', ']', '\\':
			sb.WriteRune('\\')
		}

		sb.WriteRune(c)
	}

	return sb.String()
}
