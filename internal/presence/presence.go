package presence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/seventv/chatsync/internal/instance"
	"github.com/seventv/chatsync/internal/stream"
	"github.com/seventv/chatsync/internal/structures"
	"go.uber.org/zap"
)

const (
	metricKind = "presence"

	// cacheTTL bounds how long a flag written by another process can be
	// served from this one's cache.
	cacheTTL = 5 * time.Second
)

var ErrMissingUser = errors.New("presence: missing user id")

type Options struct {
	Store      instance.Store
	Prometheus instance.Prometheus
}

// Tracker maps user ids to their online flag. The cache is process local,
// holds the last value read from or written to the store and is only served
// while the store cannot be read.
type Tracker struct {
	store instance.Store
	prom  instance.Prometheus
	cache *cache.Cache
	log   *zap.SugaredLogger
}

func New(opt Options) *Tracker {
	return &Tracker{
		store: opt.Store,
		prom:  opt.Prometheus,
		cache: cache.New(cacheTTL, time.Minute),
		log:   zap.S().Named("presence"),
	}
}

// SetOnline writes the presence flag for userID.
func (t *Tracker) SetOnline(ctx context.Context, userID string, online bool) error {
	if userID == "" {
		return ErrMissingUser
	}

	if err := t.store.Set(ctx, structures.PresencePath(userID), structures.EncodeOnline(online)); err != nil {
		return fmt.Errorf("presence: set %s: %w", userID, err)
	}

	t.cache.Set(userID, online, cache.DefaultExpiration)

	return nil
}

// GoOffline marks userID offline on a best effort basis. A failed write
// leaves the stored flag stale and is only logged.
func (t *Tracker) GoOffline(ctx context.Context, userID string) {
	if err := t.SetOnline(ctx, userID, false); err != nil {
		t.log.Warnw("failed to mark user offline",
			"user_id", userID,
			"error", err,
		)
	}
}

func (t *Tracker) cached(userID string) (bool, bool) {
	v, ok := t.cache.Get(userID)
	if !ok {
		return false, false
	}

	online, ok := v.(bool)

	return online, ok
}

// Online is a one-shot lookup against the store. A user without a record
// reports offline. A failed read falls back to a recently cached flag, and
// to offline when there is none.
func (t *Tracker) Online(ctx context.Context, userID string) bool {
	b, err := t.store.Get(ctx, structures.PresencePath(userID))
	if err != nil {
		if errors.Is(err, instance.ErrNotFound) {
			t.cache.Delete(userID)

			return false
		}

		v, ok := t.cached(userID)

		t.log.Warnw("presence lookup failed",
			"user_id", userID,
			"cached", ok,
			"error", err,
		)

		return ok && v
	}

	online := structures.DecodeOnline(b)
	t.cache.Set(userID, online, cache.DefaultExpiration)

	return online
}

// Subscribe yields the cached flag for userID if one was seen recently, then
// the stored flag, then every change. Repeated values are not re-emitted. The
// stream ends with an error if the store subscription breaks.
func (t *Tracker) Subscribe(ctx context.Context, userID string) (stream.Handle[bool], error) {
	if userID == "" {
		return nil, ErrMissingUser
	}

	src, err := t.store.Subscribe(ctx, structures.PresencePath(userID))
	if err != nil {
		return nil, fmt.Errorf("presence: subscribe %s: %w", userID, err)
	}

	t.prom.SubscriptionOpened(metricKind)

	return stream.New(ctx, func(ctx context.Context, emit func(bool) bool) error {
		defer t.prom.SubscriptionClosed(metricKind)
		defer func() {
			_ = src.Close()
		}()

		var (
			last    bool
			emitted bool
		)

		send := func(v bool) bool {
			if emitted && v == last {
				return true
			}

			last, emitted = v, true

			return emit(v)
		}

		if v, ok := t.cached(userID); ok {
			if !send(v) {
				return ctx.Err()
			}
		}

		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case snap, ok := <-src.Updates():
				if !ok {
					return stream.Terminal(src)
				}

				online := structures.DecodeOnline(snap.Values[""])
				t.cache.Set(userID, online, cache.DefaultExpiration)

				if !send(online) {
					return ctx.Err()
				}
			}
		}
	}), nil
}
