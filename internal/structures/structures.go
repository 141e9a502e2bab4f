package structures

import (
	"strings"

	jsoniter "github.com/json-iterator/go"
)

var codec = jsoniter.Config{
	EscapeHTML:             true,
	SortMapKeys:            true,
	ValidateJsonRawMessage: true,
	UseNumber:              true,
}.Froze()

const (
	UsersPath    = "users"
	StatusPath   = "status"
	ChatsPath    = "chats"
	onlineSuffix = "online"
)

func UserPath(id string) string {
	return UsersPath + "/" + id
}

func PresencePath(id string) string {
	return StatusPath + "/" + id + "/" + onlineSuffix
}

func MailboxPath(owner, peer string) string {
	return ChatsPath + "/" + owner + "/" + peer
}

func MessagePath(owner, peer, messageID string) string {
	return MailboxPath(owner, peer) + "/" + messageID
}

// IsChild reports whether rel names a direct child of a snapshot root.
func IsChild(rel string) bool {
	return rel != "" && !strings.Contains(rel, "/")
}

// fields decodes raw into a generic object, reporting false if it is not one.
func fields(raw []byte) (map[string]any, bool) {
	if len(raw) == 0 {
		return nil, false
	}

	var m map[string]any
	if err := codec.Unmarshal(raw, &m); err != nil || m == nil {
		return nil, false
	}

	return m, true
}

func str(m map[string]any, key string) string {
	s, _ := m[key].(string)

	return s
}

type number interface {
	Int64() (int64, error)
	Float64() (float64, error)
}

func integer(m map[string]any, key string) int64 {
	switch v := m[key].(type) {
	case number:
		if i, err := v.Int64(); err == nil {
			return i
		}

		if f, err := v.Float64(); err == nil {
			return int64(f)
		}
	case float64:
		return int64(v)
	case int64:
		return v
	}

	return 0
}
