package dispatcher

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/seventv/chatsync/internal/conversation"
	"github.com/seventv/chatsync/internal/instance"
	"github.com/seventv/chatsync/internal/structures"
	"github.com/seventv/chatsync/internal/svc/prometheus"
	"github.com/seventv/chatsync/internal/svc/store"
	"github.com/seventv/chatsync/internal/testutil"
)

func setup() (*Dispatcher, *conversation.Feed, *store.MockInstance) {
	s := store.NewMock()
	prom := prometheus.New(prometheus.Options{})

	return New(Options{Store: s, Prometheus: prom}),
		conversation.New(conversation.Options{Store: s, Prometheus: prom}),
		s
}

func TestSendWritesBothMailboxes(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	d, f, s := setup()

	m1 := structures.Message{ID: "m1", Text: "hi", SenderID: "A", ReceiverID: "B", Timestamp: 1000}
	testutil.IsNil(t, d.Send(ctx, m1), "send")

	_, err := s.Get(ctx, "chats/A/B/m1")
	testutil.IsNil(t, err, "sender copy")
	_, err = s.Get(ctx, "chats/B/A/m1")
	testutil.IsNil(t, err, "receiver copy")

	ab, err := f.Subscribe(ctx, "A", "B")
	testutil.IsNil(t, err, "subscribe A/B")

	defer ab.Close()

	ba, err := f.Subscribe(ctx, "B", "A")
	testutil.IsNil(t, err, "subscribe B/A")

	defer ba.Close()

	left := testutil.Recv(t, ab.Updates(), "A/B")
	right := testutil.Recv(t, ba.Updates(), "B/A")

	testutil.Assert(t, 1, len(left), "A/B size")
	testutil.Assert(t, 1, len(right), "B/A size")
	testutil.Assert(t, m1, left[0], "A/B content")
	testutil.Assert(t, left[0], right[0], "mailboxes agree")
}

func TestSendPartialFailure(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	d, _, s := setup()

	boom := errors.New("write refused")
	s.FailSet(func(path string) error {
		if path == "chats/B/A/m1" {
			return boom
		}

		return nil
	})

	err := d.Send(ctx, structures.Message{ID: "m1", Text: "hi", SenderID: "A", ReceiverID: "B", Timestamp: 1000})
	testutil.AssertErr(t, ErrPartialDelivery, err, "partial delivery reported")
	testutil.AssertErr(t, boom, err, "cause kept")

	var se *SendError
	testutil.Assert(t, true, errors.As(err, &se), "typed error")
	testutil.Assert(t, StageReceiver, se.Stage, "stage")

	_, err = s.Get(ctx, "chats/A/B/m1")
	testutil.IsNil(t, err, "sender copy kept, no rollback")

	_, err = s.Get(ctx, "chats/B/A/m1")
	testutil.AssertErr(t, instance.ErrNotFound, err, "receiver copy missing")

	// Resending the same message once the store recovers converges both copies.
	s.FailSet(nil)
	testutil.IsNil(t, d.Send(ctx, structures.Message{ID: "m1", Text: "hi", SenderID: "A", ReceiverID: "B", Timestamp: 1000}), "resend")

	_, err = s.Get(ctx, "chats/B/A/m1")
	testutil.IsNil(t, err, "receiver copy after resend")
}

func TestSendFirstWriteFails(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	d, _, s := setup()

	s.SetConnected(false)

	err := d.Send(ctx, structures.Message{ID: "m1", Text: "hi", SenderID: "A", ReceiverID: "B", Timestamp: 1})

	var se *SendError
	testutil.Assert(t, true, errors.As(err, &se), "typed error")
	testutil.Assert(t, StageSender, se.Stage, "stage")
	testutil.Assert(t, false, errors.Is(err, ErrPartialDelivery), "nothing was delivered")
	testutil.AssertErr(t, instance.ErrDisconnected, err, "cause")
}

func TestSendValidation(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	d, _, _ := setup()

	testutil.AssertErr(t, ErrEmptyMessage, d.Send(ctx, structures.Message{ID: "m", Text: "  ", SenderID: "A", ReceiverID: "B"}), "blank")
	testutil.AssertErr(t, ErrInvalidParticipants, d.Send(ctx, structures.Message{ID: "m", Text: "x", SenderID: "A", ReceiverID: "A"}), "self")
	testutil.AssertErr(t, ErrMissingID, d.Send(ctx, structures.Message{Text: "x", SenderID: "A", ReceiverID: "B"}), "no id")
}

func TestSendRejectsNestedID(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	d, _, s := setup()

	writes := 0
	s.FailSet(func(path string) error {
		writes++
		return nil
	})

	for _, id := range []string{"x/y", "/", "m/"} {
		testutil.AssertErr(t, ErrInvalidID, d.Send(ctx, structures.Message{ID: id, Text: "x", SenderID: "A", ReceiverID: "B"}), "id "+id)
	}

	testutil.AssertErr(t, ErrInvalidParticipants, d.Send(ctx, structures.Message{ID: "m", Text: "x", SenderID: "A/B", ReceiverID: "C"}), "nested sender")

	testutil.Assert(t, 0, writes, "nothing written")
}

func TestCompose(t *testing.T) {
	t.Parallel()

	now := time.UnixMilli(1700000000123)

	msg, err := Compose("A", "B", "  hello  ", now)
	testutil.IsNil(t, err, "compose")
	testutil.Assert(t, "hello", msg.Text, "trimmed")
	testutil.Assert(t, int64(1700000000123), msg.Timestamp, "timestamp")
	testutil.Assert(t, true, len(msg.ID) > len("1700000000123"), "id has random suffix")
	testutil.Assert(t, "1700000000123", msg.ID[:13], "id starts with millis")

	_, err = Compose("A", "B", "\n\t", now)
	testutil.AssertErr(t, ErrEmptyMessage, err, "blank text")
}
