package summary

import (
	"context"
	"errors"
	"fmt"

	"github.com/hashicorp/go-multierror"
	"github.com/seventv/chatsync/internal/instance"
	"github.com/seventv/chatsync/internal/stream"
	"github.com/seventv/chatsync/internal/structures"
	"go.uber.org/zap"
)

const metricKind = "summary"

var ErrMissingUser = errors.New("summary: missing user id")

type DirectorySource interface {
	SubscribeAll(ctx context.Context, selfID string) (stream.Handle[[]structures.User], error)
}

type PresenceSource interface {
	Subscribe(ctx context.Context, userID string) (stream.Handle[bool], error)
}

type LatestSource interface {
	SubscribeLatest(ctx context.Context, owner, peer string) (stream.Handle[*structures.Message], error)
}

type Options struct {
	Directory     DirectorySource
	Presence      PresenceSource
	Conversations LatestSource
	Prometheus    instance.Prometheus
}

// Aggregator joins the user directory with each peer's presence and the
// latest message of the matching mailbox.
type Aggregator struct {
	directory DirectorySource
	presence  PresenceSource
	latest    LatestSource
	prom      instance.Prometheus
	log       *zap.SugaredLogger
}

func New(opt Options) *Aggregator {
	return &Aggregator{
		directory: opt.Directory,
		presence:  opt.Presence,
		latest:    opt.Conversations,
		prom:      opt.Prometheus,
		log:       zap.S().Named("summary"),
	}
}

// Subscribe emits one row per other user, most recent conversation first.
// A new list is emitted when the directory changes or when a peer's presence
// or latest message changes. Peers leaving the directory have their
// subscriptions closed before they are dropped from the list.
//
// A failing peer subscription only affects that peer: a failed presence
// stream reports the peer offline, a failed mailbox stream keeps the last
// known message. The summary ends when the directory stream ends.
func (a *Aggregator) Subscribe(ctx context.Context, selfID string) (stream.Handle[[]structures.ChatSummary], error) {
	if selfID == "" {
		return nil, ErrMissingUser
	}

	dir, err := a.directory.SubscribeAll(ctx, selfID)
	if err != nil {
		return nil, fmt.Errorf("summary: subscribe directory: %w", err)
	}

	a.prom.SubscriptionOpened(metricKind)

	return stream.New(ctx, func(ctx context.Context, emit func([]structures.ChatSummary) bool) (err error) {
		j := &join{
			agg:    a,
			selfID: selfID,
			rows:   newIndex(),
			peers:  map[string]*peer{},
			events: make(chan event, 64),
		}

		defer func() {
			if errors.Is(err, context.Canceled) {
				err = nil
			}

			var result *multierror.Error
			if err != nil {
				result = multierror.Append(result, err)
			}

			if cerr := dir.Close(); cerr != nil && !errors.Is(err, cerr) {
				result = multierror.Append(result, cerr)
			}

			if cerr := j.closeAll(); cerr != nil {
				result = multierror.Append(result, cerr)
			}

			a.prom.SubscriptionClosed(metricKind)

			err = result.ErrorOrNil()
		}()

		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case users, ok := <-dir.Updates():
				if !ok {
					return stream.Terminal(dir)
				}

				j.sync(ctx, users)
			case ev := <-j.events:
				if !j.apply(ev) {
					continue
				}
			}

			rows := j.rows.list()
			if !emit(rows) {
				return ctx.Err()
			}

			a.prom.SummaryEmitted(len(rows))
		}
	}), nil
}

type peer struct {
	id       string
	cancel   context.CancelFunc
	presence stream.Handle[bool]
	latest   stream.Handle[*structures.Message]
}

// close stops both subscriptions and returns their combined terminal errors.
func (p *peer) close() error {
	p.cancel()

	var result *multierror.Error

	if p.presence != nil {
		if err := p.presence.Close(); err != nil {
			result = multierror.Append(result, fmt.Errorf("presence %s: %w", p.id, err))
		}

		p.presence = nil
	}

	if p.latest != nil {
		if err := p.latest.Close(); err != nil {
			result = multierror.Append(result, fmt.Errorf("latest %s: %w", p.id, err))
		}

		p.latest = nil
	}

	return result.ErrorOrNil()
}

type eventKind uint8

const (
	eventPresence eventKind = iota
	eventLatest
)

type event struct {
	peer   *peer
	kind   eventKind
	online bool
	msg    *structures.Message
	err    error
}

// join is the state of one summary subscription. It is only touched by the
// goroutine running the subscription.
type join struct {
	agg    *Aggregator
	selfID string
	rows   *index
	peers  map[string]*peer
	events chan event
}

func (j *join) sync(ctx context.Context, users []structures.User) {
	seen := make(map[string]struct{}, len(users))

	for _, u := range users {
		seen[u.ID] = struct{}{}

		row, ok := j.rows.get(u.ID)
		if !ok {
			row = structures.ChatSummary{PeerID: u.ID}
		}

		row.PeerName = u.Name
		row.PeerAvatarURL = u.AvatarURL
		j.rows.upsert(row)

		if _, ok := j.peers[u.ID]; !ok {
			j.open(ctx, u.ID)
		}
	}

	for id, p := range j.peers {
		if _, ok := seen[id]; ok {
			continue
		}

		if err := p.close(); err != nil {
			j.agg.log.Warnw("closing peer subscriptions",
				"user_id", j.selfID,
				"peer_id", id,
				"error", err,
			)
		}

		delete(j.peers, id)
		j.rows.remove(id)
	}
}

func (j *join) open(ctx context.Context, peerID string) {
	pctx, cancel := context.WithCancel(ctx)
	p := &peer{id: peerID, cancel: cancel}
	j.peers[peerID] = p

	presence, err := j.agg.presence.Subscribe(pctx, peerID)
	if err != nil {
		j.agg.log.Warnw("peer presence unavailable",
			"user_id", j.selfID,
			"peer_id", peerID,
			"error", err,
		)
	} else {
		p.presence = presence
		go forward(pctx, presence, j.events, func(v bool, err error) event {
			return event{peer: p, kind: eventPresence, online: v, err: err}
		})
	}

	latest, err := j.agg.latest.SubscribeLatest(pctx, j.selfID, peerID)
	if err != nil {
		j.agg.log.Warnw("peer mailbox unavailable",
			"user_id", j.selfID,
			"peer_id", peerID,
			"error", err,
		)
	} else {
		p.latest = latest
		go forward(pctx, latest, j.events, func(v *structures.Message, err error) event {
			return event{peer: p, kind: eventLatest, msg: v, err: err}
		})
	}
}

// forward relays every value of h into out, then one final event carrying the
// terminal error once h ends.
func forward[T any](ctx context.Context, h stream.Handle[T], out chan<- event, wrap func(T, error) event) {
	for {
		var (
			ev   event
			done bool
		)

		select {
		case <-ctx.Done():
			return
		case v, ok := <-h.Updates():
			if ok {
				ev = wrap(v, nil)
			} else {
				var zero T
				ev, done = wrap(zero, stream.Terminal(h)), true
			}
		}

		select {
		case out <- ev:
		case <-ctx.Done():
			return
		}

		if done {
			return
		}
	}
}

// apply folds ev into the index and reports whether a row changed. Events of
// peers that were removed since are dropped.
func (j *join) apply(ev event) bool {
	p := ev.peer
	if cur, ok := j.peers[p.id]; !ok || cur != p {
		return false
	}

	row, ok := j.rows.get(p.id)
	if !ok {
		return false
	}

	switch ev.kind {
	case eventPresence:
		if ev.err != nil {
			j.agg.log.Warnw("peer presence ended",
				"user_id", j.selfID,
				"peer_id", p.id,
				"error", ev.err,
			)

			_ = p.presence.Close()
			p.presence = nil
			row.Online = false

			break
		}

		row.Online = ev.online
	case eventLatest:
		if ev.err != nil {
			j.agg.log.Warnw("peer mailbox ended",
				"user_id", j.selfID,
				"peer_id", p.id,
				"error", ev.err,
			)

			_ = p.latest.Close()
			p.latest = nil

			return false
		}

		if ev.msg == nil {
			row.LastMessageText = ""
			row.LastMessageTimestamp = 0
		} else {
			row.LastMessageText = ev.msg.Text
			row.LastMessageTimestamp = ev.msg.Timestamp
		}
	}

	return j.rows.upsert(row)
}

func (j *join) closeAll() error {
	var result *multierror.Error

	for id, p := range j.peers {
		if err := p.close(); err != nil {
			result = multierror.Append(result, err)
		}

		delete(j.peers, id)
	}

	return result.ErrorOrNil()
}
