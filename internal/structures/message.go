package structures

import (
	"sort"
)

type Message struct {
	ID         string `json:"messageId"`
	Text       string `json:"message"`
	SenderID   string `json:"senderId"`
	ReceiverID string `json:"receiverId"`
	Timestamp  int64  `json:"timestamp"`
}

func (m Message) Encode() ([]byte, error) {
	return codec.Marshal(m)
}

// Before orders messages by timestamp, then by id.
func (m Message) Before(o Message) bool {
	if m.Timestamp != o.Timestamp {
		return m.Timestamp < o.Timestamp
	}

	return m.ID < o.ID
}

// DecodeMessage reads a mailbox entry stored under key. Missing fields default
// to their zero value and a missing id takes the key.
func DecodeMessage(key string, raw []byte) (Message, bool) {
	m, ok := fields(raw)
	if !ok {
		return Message{}, false
	}

	msg := Message{
		ID:         str(m, "messageId"),
		Text:       str(m, "message"),
		SenderID:   str(m, "senderId"),
		ReceiverID: str(m, "receiverId"),
		Timestamp:  integer(m, "timestamp"),
	}

	if msg.ID == "" {
		msg.ID = key
	}

	return msg, true
}

// SortMessages sorts ascending by timestamp, then id.
func SortMessages(msgs []Message) {
	sort.Slice(msgs, func(i, j int) bool {
		return msgs[i].Before(msgs[j])
	})
}

type ChatSummary struct {
	PeerID               string `json:"peer_id"`
	PeerName             string `json:"peer_name"`
	PeerAvatarURL        string `json:"peer_avatar_url"`
	LastMessageText      string `json:"last_message_text"`
	LastMessageTimestamp int64  `json:"last_message_timestamp"`
	Online               bool   `json:"online"`
}

// SortSummaries sorts most recent activity first, then by peer id.
func SortSummaries(rows []ChatSummary) {
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].LastMessageTimestamp != rows[j].LastMessageTimestamp {
			return rows[i].LastMessageTimestamp > rows[j].LastMessageTimestamp
		}

		return rows[i].PeerID < rows[j].PeerID
	})
}
