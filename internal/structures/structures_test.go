package structures

import (
	"testing"

	"github.com/seventv/chatsync/internal/testutil"
)

func TestPaths(t *testing.T) {
	t.Parallel()

	testutil.Assert(t, "users/a", UserPath("a"), "user path")
	testutil.Assert(t, "status/a/online", PresencePath("a"), "presence path")
	testutil.Assert(t, "chats/a/b", MailboxPath("a", "b"), "mailbox path")
	testutil.Assert(t, "chats/a/b/m1", MessagePath("a", "b", "m1"), "message path")
}

func TestDecodeMessageDefaults(t *testing.T) {
	t.Parallel()

	msg, ok := DecodeMessage("m7", []byte(`{"message":"hi","timestamp":"later","senderId":5}`))
	testutil.Assert(t, true, ok, "object decodes")
	testutil.Assert(t, "m7", msg.ID, "id falls back to key")
	testutil.Assert(t, "hi", msg.Text, "text")
	testutil.Assert(t, "", msg.SenderID, "mistyped sender defaults")
	testutil.Assert(t, int64(0), msg.Timestamp, "mistyped timestamp defaults")

	_, ok = DecodeMessage("m8", []byte(`"just a string"`))
	testutil.Assert(t, false, ok, "non-object is rejected")

	_, ok = DecodeMessage("m9", []byte(`{broken`))
	testutil.Assert(t, false, ok, "invalid json is rejected")
}

func TestMessageRoundTrip(t *testing.T) {
	t.Parallel()

	in := Message{ID: "m1", Text: "hi", SenderID: "A", ReceiverID: "B", Timestamp: 1700000000123}

	b, err := in.Encode()
	testutil.IsNil(t, err, "encode")

	out, ok := DecodeMessage("ignored", b)
	testutil.Assert(t, true, ok, "decode")
	testutil.Assert(t, in, out, "message")
}

func TestDecodeUserDropsPresence(t *testing.T) {
	t.Parallel()

	u, ok := DecodeUser("u1", []byte(`{"name":"Ann","email":"ann@example.com","isOnline":true}`))
	testutil.Assert(t, true, ok, "decode")
	testutil.Assert(t, "u1", u.ID, "id from key")
	testutil.Assert(t, false, u.Online, "stored presence ignored")

	b, err := User{ID: "u1", Name: "Ann", Online: true}.Encode()
	testutil.IsNil(t, err, "encode")
	testutil.Assert(t, `{"email":"","name":"Ann","profileImageUrl":"","uid":"u1"}`, sortedJSON(t, b), "online not persisted")
}

func TestDecodeOnline(t *testing.T) {
	t.Parallel()

	testutil.Assert(t, true, DecodeOnline(EncodeOnline(true)), "true")
	testutil.Assert(t, false, DecodeOnline(nil), "absent")
	testutil.Assert(t, false, DecodeOnline([]byte(`"yes"`)), "garbage")
}

func TestSortSummaries(t *testing.T) {
	t.Parallel()

	rows := []ChatSummary{
		{PeerID: "c"},
		{PeerID: "b", LastMessageTimestamp: 10},
		{PeerID: "a"},
		{PeerID: "d", LastMessageTimestamp: 10},
		{PeerID: "e", LastMessageTimestamp: 20},
	}

	SortSummaries(rows)

	got := ""
	for _, r := range rows {
		got += r.PeerID
	}

	testutil.Assert(t, "ebdac", got, "order")
}

func TestSortMessages(t *testing.T) {
	t.Parallel()

	msgs := []Message{
		{ID: "b", Timestamp: 5},
		{ID: "a", Timestamp: 5},
		{ID: "z", Timestamp: 1},
	}

	SortMessages(msgs)

	testutil.Assert(t, "z", msgs[0].ID, "earliest first")
	testutil.Assert(t, "a", msgs[1].ID, "tie broken by id")
}

func sortedJSON(t *testing.T, b []byte) string {
	t.Helper()

	var m map[string]any
	testutil.IsNil(t, codec.Unmarshal(b, &m), "unmarshal")

	out, err := codec.Marshal(m)
	testutil.IsNil(t, err, "marshal")

	return string(out)
}
