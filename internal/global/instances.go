package global

import (
	"github.com/seventv/chatsync/internal/conversation"
	"github.com/seventv/chatsync/internal/directory"
	"github.com/seventv/chatsync/internal/dispatcher"
	"github.com/seventv/chatsync/internal/instance"
	"github.com/seventv/chatsync/internal/presence"
	"github.com/seventv/chatsync/internal/session"
	"github.com/seventv/chatsync/internal/summary"
	"github.com/seventv/chatsync/internal/svc/auth"
)

type Instances struct {
	Store      instance.Store
	Identity   instance.Identity
	Auth       auth.Authorizer
	Prometheus instance.Prometheus
	Limiter    instance.Limiter

	Presence      *presence.Tracker
	Directory     *directory.Directory
	Conversations *conversation.Feed
	Dispatcher    *dispatcher.Dispatcher
	Summary       *summary.Aggregator
	Sessions      *session.Manager
}
