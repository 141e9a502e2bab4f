package conversation

import (
	"context"
	"errors"
	"fmt"

	"github.com/seventv/chatsync/internal/instance"
	"github.com/seventv/chatsync/internal/stream"
	"github.com/seventv/chatsync/internal/structures"
	"go.uber.org/zap"
)

const (
	metricKindMailbox = "mailbox"
	metricKindLatest  = "latest"
)

var ErrMissingParticipant = errors.New("conversation: owner and peer are required")

type Options struct {
	Store      instance.Store
	Prometheus instance.Prometheus
}

// Feed serves live views of mailboxes.
type Feed struct {
	store instance.Store
	prom  instance.Prometheus
	log   *zap.SugaredLogger
}

func New(opt Options) *Feed {
	return &Feed{
		store: opt.Store,
		prom:  opt.Prometheus,
		log:   zap.S().Named("conversation"),
	}
}

// Messages decodes a mailbox snapshot into messages ordered by timestamp then id.
// Entries that are not objects are skipped.
func (f *Feed) Messages(snap instance.Snapshot) []structures.Message {
	msgs := make([]structures.Message, 0, len(snap.Values))

	for key, raw := range snap.Values {
		if !structures.IsChild(key) {
			continue
		}

		msg, ok := structures.DecodeMessage(key, raw)
		if !ok {
			f.log.Warnw("skipping malformed message",
				"mailbox", snap.Path,
				"key", key,
			)

			continue
		}

		msgs = append(msgs, msg)
	}

	structures.SortMessages(msgs)

	return msgs
}

// Latest returns the message with the greatest timestamp, the greater id
// winning ties, or nil for an empty list.
func Latest(msgs []structures.Message) *structures.Message {
	if len(msgs) == 0 {
		return nil
	}

	best := msgs[0]
	for _, m := range msgs[1:] {
		if best.Before(m) {
			best = m
		}
	}

	return &best
}

func (f *Feed) open(ctx context.Context, owner, peer, kind string) (stream.Handle[instance.Snapshot], error) {
	if owner == "" || peer == "" {
		return nil, ErrMissingParticipant
	}

	src, err := f.store.Subscribe(ctx, structures.MailboxPath(owner, peer))
	if err != nil {
		return nil, fmt.Errorf("conversation: subscribe %s/%s: %w", owner, peer, err)
	}

	f.prom.SubscriptionOpened(kind)

	return src, nil
}

func track[T any](prom instance.Prometheus, s *stream.Stream[T], kind string) {
	go func() {
		<-s.Done()
		prom.SubscriptionClosed(kind)
	}()
}

// Subscribe emits the full ordered contents of Mailbox(owner, peer) on every change.
func (f *Feed) Subscribe(ctx context.Context, owner, peer string) (stream.Handle[[]structures.Message], error) {
	src, err := f.open(ctx, owner, peer, metricKindMailbox)
	if err != nil {
		return nil, err
	}

	s := stream.Map(ctx, src, func(snap instance.Snapshot) ([]structures.Message, bool) {
		return f.Messages(snap), true
	})
	track(f.prom, s, metricKindMailbox)

	return s, nil
}

// SubscribeLatest emits the latest message of Mailbox(owner, peer), nil while
// it is empty. The latest message is recomputed from the whole mailbox on each
// update and only emitted when it differs from the previous one.
func (f *Feed) SubscribeLatest(ctx context.Context, owner, peer string) (stream.Handle[*structures.Message], error) {
	src, err := f.open(ctx, owner, peer, metricKindLatest)
	if err != nil {
		return nil, err
	}

	var (
		last    *structures.Message
		emitted bool
	)

	s := stream.Map(ctx, src, func(snap instance.Snapshot) (*structures.Message, bool) {
		latest := Latest(f.Messages(snap))

		if emitted && sameMessage(last, latest) {
			return nil, false
		}

		last, emitted = latest, true

		return latest, true
	})

	track(f.prom, s, metricKindLatest)

	return s, nil
}

func sameMessage(a, b *structures.Message) bool {
	if a == nil || b == nil {
		return a == b
	}

	return *a == *b
}
