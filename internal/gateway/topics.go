package gateway

import (
	"context"
	"errors"

	"github.com/seventv/chatsync/internal/stream"
	"github.com/seventv/chatsync/internal/structures"
	"github.com/seventv/chatsync/internal/summary"
)

var (
	ErrUnknownTopic = errors.New("unknown topic")
	ErrMissingPeer  = errors.New("peer_id is required")
)

// serve streams one topic to the client until ctx ends or the source fails.
// Conversations are always read from the caller's own mailbox.
func (c *wsConnection) serve(ctx context.Context, id string, p SubscribePayload) error {
	inst := c.gw.gCtx.Inst()

	switch p.Topic {
	case TopicPresence:
		userID := p.UserID
		if userID == "" {
			userID = c.userID
		}

		h, err := inst.Presence.Subscribe(ctx, userID)
		if err != nil {
			return err
		}

		return pump(ctx, c, id, h, func(online bool) interface{} {
			return structures.Presence{UserID: userID, Online: online}
		})
	case TopicDirectory:
		h, err := inst.Directory.SubscribeAll(ctx, c.userID)
		if err != nil {
			return err
		}

		return pump(ctx, c, id, h, func(users []structures.User) interface{} {
			return users
		})
	case TopicConversation:
		if p.PeerID == "" {
			return ErrMissingPeer
		}

		h, err := inst.Conversations.Subscribe(ctx, c.userID, p.PeerID)
		if err != nil {
			return err
		}

		return pump(ctx, c, id, h, func(msgs []structures.Message) interface{} {
			return msgs
		})
	case TopicSummary:
		h, err := inst.Summary.Subscribe(ctx, c.userID)
		if err != nil {
			return err
		}

		return pump(ctx, c, id, h, func(rows []structures.ChatSummary) interface{} {
			now := c.gw.now()
			out := make([]SummaryRow, len(rows))

			for i, r := range rows {
				out[i] = SummaryRow{ChatSummary: r}
				if r.LastMessageTimestamp > 0 {
					out[i].Label = summary.FormatTimestamp(r.LastMessageTimestamp, now)
				}
			}

			return out
		})
	}

	return ErrUnknownTopic
}

func pump[T any](ctx context.Context, c *wsConnection, id string, h stream.Handle[T], render func(T) interface{}) error {
	c.scope.Add(h)

	defer func() {
		c.scope.Release(h)
		_ = h.Close()
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case v, ok := <-h.Updates():
			if !ok {
				return stream.Terminal(h)
			}

			c.sendData(id, render(v))
		}
	}
}
