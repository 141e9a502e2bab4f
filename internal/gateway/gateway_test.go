package gateway

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/fasthttp/websocket"
	"github.com/seventv/chatsync/internal/app"
	"github.com/seventv/chatsync/internal/configure"
	"github.com/seventv/chatsync/internal/global"
	"github.com/seventv/chatsync/internal/structures"
	"github.com/seventv/chatsync/internal/svc/identity"
	"github.com/seventv/chatsync/internal/svc/store"
	"github.com/seventv/chatsync/internal/testutil"
	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttputil"
)

type harness struct {
	t    *testing.T
	gCtx global.Context
	ln   *fasthttputil.InmemoryListener
}

func setup(t *testing.T, heartbeat time.Duration) *harness {
	t.Helper()

	config := configure.Default()
	config.Credentials.JWTSecret = "test"
	config.Gateway.HeartbeatInterval = heartbeat
	config.Gateway.PingInterval = 0

	gCtx, cancel := global.WithCancel(global.New(context.Background(), &config))
	app.Setup(gCtx, app.Options{
		Store:    store.NewMock(),
		Identity: identity.NewMock(),
	})

	gw := New(gCtx)
	ln := fasthttputil.NewInmemoryListener()

	srv := &fasthttp.Server{
		Handler: func(ctx *fasthttp.RequestCtx) {
			_ = gw.Do(ctx, string(ctx.QueryArgs().Peek("user")))
		},
	}

	go func() {
		_ = srv.Serve(ln)
	}()

	t.Cleanup(func() {
		cancel()
		_ = srv.Shutdown()
	})

	return &harness{t: t, gCtx: gCtx, ln: ln}
}

func (h *harness) dial(userID string) *websocket.Conn {
	h.t.Helper()

	d := websocket.Dialer{
		NetDial: func(network, addr string) (net.Conn, error) {
			return h.ln.Dial()
		},
	}

	conn, _, err := d.Dial("ws://chatsync/?user="+userID, nil)
	testutil.IsNil(h.t, err, "dial")

	h.t.Cleanup(func() {
		_ = conn.Close()
	})

	return conn
}

func send(t *testing.T, conn *websocket.Conn, f Frame, payload interface{}) {
	t.Helper()

	if payload != nil {
		b, err := json.Marshal(payload)
		testutil.IsNil(t, err, "encode payload")
		f.D = b
	}

	b, err := json.Marshal(f)
	testutil.IsNil(t, err, "encode frame")
	testutil.IsNil(t, conn.WriteMessage(websocket.TextMessage, b), "write frame")
}

// next reads frames until one satisfies ok.
func next(t *testing.T, conn *websocket.Conn, ok func(Frame) bool, msg string) Frame {
	t.Helper()

	_ = conn.SetReadDeadline(time.Now().Add(testutil.Timeout))

	for {
		_, b, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("%s: %v", msg, err)
		}

		f := Frame{}
		testutil.IsNil(t, json.Unmarshal(b, &f), "decode frame")

		if ok(f) {
			return f
		}
	}
}

func op(o Op, id string) func(Frame) bool {
	return func(f Frame) bool {
		return f.Op == o && f.ID == id
	}
}

func TestHello(t *testing.T) {
	t.Parallel()

	h := setup(t, 0)
	conn := h.dial("A")

	f := next(t, conn, op(OpHello, ""), "hello")

	hello := HelloPayload{}
	testutil.IsNil(t, json.Unmarshal(f.D, &hello), "decode hello")
	testutil.Assert(t, "A", hello.UserID, "user")

	send(t, conn, Frame{Op: OpPing, ID: "p"}, nil)
	next(t, conn, op(OpPong, "p"), "pong")
}

func TestSummarySubscription(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	h := setup(t, 0)
	inst := h.gCtx.Inst()

	for _, id := range []string{"A", "B"} {
		testutil.IsNil(t, inst.Directory.Put(ctx, structures.User{ID: id, Name: id}), "put "+id)
	}

	conn := h.dial("A")
	send(t, conn, Frame{Op: OpSubscribe, ID: "s"}, SubscribePayload{Topic: TopicSummary})

	testutil.IsNil(t, inst.Dispatcher.Send(ctx, structures.Message{
		ID:         "m1",
		Text:       "hi",
		SenderID:   "A",
		ReceiverID: "B",
		Timestamp:  time.Now().UnixMilli(),
	}), "send")

	var rows []SummaryRow

	next(t, conn, func(f Frame) bool {
		if f.Op != OpData || f.ID != "s" {
			return false
		}

		rows = nil
		testutil.IsNil(t, json.Unmarshal(f.D, &rows), "decode rows")

		return len(rows) == 1 && rows[0].LastMessageText == "hi"
	}, "summary after send")

	testutil.Assert(t, "B", rows[0].PeerID, "peer")
	testutil.Assert(t, "Just now", rows[0].Label, "label")

	send(t, conn, Frame{Op: OpUnsubscribe, ID: "s"}, nil)
	next(t, conn, op(OpComplete, "s"), "complete after unsubscribe")
}

func TestConversationSubscription(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	h := setup(t, 0)
	inst := h.gCtx.Inst()

	conn := h.dial("A")

	send(t, conn, Frame{Op: OpSubscribe, ID: "c"}, SubscribePayload{Topic: TopicConversation, PeerID: "B"})

	testutil.IsNil(t, inst.Dispatcher.Send(ctx, structures.Message{ID: "m1", Text: "yo", SenderID: "B", ReceiverID: "A", Timestamp: 7}), "send")

	var msgs []structures.Message

	next(t, conn, func(f Frame) bool {
		if f.Op != OpData || f.ID != "c" {
			return false
		}

		msgs = nil
		testutil.IsNil(t, json.Unmarshal(f.D, &msgs), "decode messages")

		return len(msgs) > 0
	}, "message delivered")

	testutil.Assert(t, 1, len(msgs), "one message")
	testutil.Assert(t, "yo", msgs[0].Text, "text")
	testutil.Assert(t, "B", msgs[0].SenderID, "sender")
}

func TestPresenceSubscription(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	h := setup(t, 0)

	conn := h.dial("A")
	send(t, conn, Frame{Op: OpSubscribe, ID: "p"}, SubscribePayload{Topic: TopicPresence, UserID: "B"})
	f := next(t, conn, op(OpData, "p"), "initial presence")

	p := structures.Presence{}
	testutil.IsNil(t, json.Unmarshal(f.D, &p), "decode presence")
	testutil.Assert(t, structures.Presence{UserID: "B"}, p, "offline by default")

	testutil.IsNil(t, h.gCtx.Inst().Presence.SetOnline(ctx, "B", true), "B online")

	next(t, conn, func(f Frame) bool {
		p = structures.Presence{}

		return f.Op == OpData && f.ID == "p" && json.Unmarshal(f.D, &p) == nil && p.Online
	}, "presence change")
}

func TestSubscribeErrors(t *testing.T) {
	t.Parallel()

	h := setup(t, 0)
	conn := h.dial("A")

	send(t, conn, Frame{Op: OpSubscribe, ID: "x"}, SubscribePayload{Topic: "weather"})
	f := next(t, conn, op(OpError, "x"), "unknown topic")

	e := ErrorPayload{}
	testutil.IsNil(t, json.Unmarshal(f.D, &e), "decode error")
	testutil.Assert(t, ErrUnknownTopic.Error(), e.Message, "message")
	next(t, conn, op(OpComplete, "x"), "completed")

	send(t, conn, Frame{Op: OpSubscribe, ID: "c"}, SubscribePayload{Topic: TopicConversation})
	next(t, conn, op(OpError, "c"), "missing peer")

	send(t, conn, Frame{Op: "dance", ID: "d"}, nil)
	next(t, conn, op(OpError, "d"), "unknown op")
}

func TestHeartbeat(t *testing.T) {
	t.Parallel()

	h := setup(t, 20*time.Millisecond)
	conn := h.dial("A")

	next(t, conn, op(OpHeartbeat, ""), "heartbeat")
}
