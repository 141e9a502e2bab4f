package gateway

import (
	jsoniter "github.com/json-iterator/go"
	"github.com/seventv/chatsync/internal/structures"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type Op string

const (
	// client
	OpSubscribe   Op = "subscribe"
	OpUnsubscribe Op = "unsubscribe"
	OpPing        Op = "ping"

	// server
	OpHello     Op = "hello"
	OpData      Op = "data"
	OpError     Op = "error"
	OpComplete  Op = "complete"
	OpPong      Op = "pong"
	OpHeartbeat Op = "heartbeat"
)

type Topic string

const (
	TopicPresence     Topic = "presence"
	TopicDirectory    Topic = "directory"
	TopicConversation Topic = "conversation"
	TopicSummary      Topic = "summary"
)

// Frame is the envelope of every message in both directions.
type Frame struct {
	Op Op                  `json:"op"`
	ID string              `json:"id,omitempty"`
	D  jsoniter.RawMessage `json:"d,omitempty"`
}

type SubscribePayload struct {
	Topic  Topic  `json:"topic"`
	UserID string `json:"user_id,omitempty"`
	PeerID string `json:"peer_id,omitempty"`
}

type HelloPayload struct {
	UserID            string `json:"user_id"`
	HeartbeatInterval int64  `json:"heartbeat_interval"`
}

type ErrorPayload struct {
	Message string `json:"message"`
}

type SummaryRow struct {
	structures.ChatSummary
	Label string `json:"label"`
}
