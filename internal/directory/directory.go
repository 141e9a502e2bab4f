package directory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/seventv/chatsync/internal/instance"
	"github.com/seventv/chatsync/internal/stream"
	"github.com/seventv/chatsync/internal/structures"
	"go.uber.org/zap"
)

const (
	metricKind = "directory"

	// cacheTTL bounds how long a profile edited by another process can be
	// served from this one's cache.
	cacheTTL = time.Minute
)

var (
	ErrUnknownUser = errors.New("directory: unknown user")
	ErrMissingID   = errors.New("directory: missing user id")
)

type Options struct {
	Store      instance.Store
	Prometheus instance.Prometheus
}

// Directory lists registered users. It never carries presence; Online is
// always false on users it returns.
type Directory struct {
	store instance.Store
	prom  instance.Prometheus
	cache *cache.Cache
	log   *zap.SugaredLogger
}

func New(opt Options) *Directory {
	return &Directory{
		store: opt.Store,
		prom:  opt.Prometheus,
		cache: cache.New(cacheTTL, 5*time.Minute),
		log:   zap.S().Named("directory"),
	}
}

// Put writes the profile for u.ID.
func (d *Directory) Put(ctx context.Context, u structures.User) error {
	if u.ID == "" {
		return ErrMissingID
	}

	u.Online = false

	b, err := u.Encode()
	if err != nil {
		return err
	}

	if err := d.store.Set(ctx, structures.UserPath(u.ID), b); err != nil {
		return fmt.Errorf("directory: put %s: %w", u.ID, err)
	}

	d.cache.Set(u.ID, u, cache.DefaultExpiration)

	return nil
}

// Get returns one profile.
func (d *Directory) Get(ctx context.Context, id string) (structures.User, error) {
	if v, ok := d.cache.Get(id); ok {
		return v.(structures.User), nil
	}

	b, err := d.store.Get(ctx, structures.UserPath(id))
	if errors.Is(err, instance.ErrNotFound) {
		return structures.User{}, ErrUnknownUser
	}

	if err != nil {
		return structures.User{}, fmt.Errorf("directory: get %s: %w", id, err)
	}

	u, ok := structures.DecodeUser(id, b)
	if !ok {
		return structures.User{}, ErrUnknownUser
	}

	d.cache.Set(id, u, cache.DefaultExpiration)

	return u, nil
}

// SubscribeAll emits every known user except selfID, sorted by id, each time
// any directory entry changes.
func (d *Directory) SubscribeAll(ctx context.Context, selfID string) (stream.Handle[[]structures.User], error) {
	src, err := d.store.Subscribe(ctx, structures.UsersPath)
	if err != nil {
		return nil, fmt.Errorf("directory: subscribe: %w", err)
	}

	d.prom.SubscriptionOpened(metricKind)

	s := stream.Map(ctx, src, func(snap instance.Snapshot) ([]structures.User, bool) {
		return d.decode(snap, selfID), true
	})

	go func() {
		<-s.Done()
		d.prom.SubscriptionClosed(metricKind)
	}()

	return s, nil
}

func (d *Directory) decode(snap instance.Snapshot, selfID string) []structures.User {
	users := make([]structures.User, 0, len(snap.Values))

	for key, raw := range snap.Values {
		if !structures.IsChild(key) {
			continue
		}

		u, ok := structures.DecodeUser(key, raw)
		if !ok {
			d.log.Warnw("skipping malformed directory record",
				"key", key,
			)

			continue
		}

		d.cache.Set(u.ID, u, cache.DefaultExpiration)

		if u.ID == selfID {
			continue
		}

		users = append(users, u)
	}

	sort.Slice(users, func(i, j int) bool {
		return users[i].ID < users[j].ID
	})

	return users
}
