package app

import (
	"github.com/seventv/chatsync/internal/conversation"
	"github.com/seventv/chatsync/internal/directory"
	"github.com/seventv/chatsync/internal/dispatcher"
	"github.com/seventv/chatsync/internal/global"
	"github.com/seventv/chatsync/internal/instance"
	"github.com/seventv/chatsync/internal/presence"
	"github.com/seventv/chatsync/internal/session"
	"github.com/seventv/chatsync/internal/summary"
	"github.com/seventv/chatsync/internal/svc/auth"
	"github.com/seventv/chatsync/internal/svc/limiter"
	"github.com/seventv/chatsync/internal/svc/prometheus"
)

type Options struct {
	Store    instance.Store
	Identity instance.Identity
	// Limiter defaults to in process counters.
	Limiter instance.Limiter
}

// Setup builds the chat services on top of a store and an identity provider
// and attaches them to gCtx.
func Setup(gCtx global.Context, opt Options) {
	cfg := gCtx.Config()
	inst := gCtx.Inst()

	inst.Store = opt.Store
	inst.Identity = opt.Identity
	inst.Limiter = opt.Limiter

	if inst.Limiter == nil {
		inst.Limiter = limiter.NewMemory()
	}

	if inst.Prometheus == nil {
		inst.Prometheus = prometheus.New(prometheus.Options{
			Labels: cfg.Monitoring.Labels.ToPrometheus(),
		})
	}

	inst.Auth = auth.New(auth.AuthorizerOptions{
		JWTSecret: cfg.Credentials.JWTSecret,
		TTL:       cfg.Credentials.SessionTTL,
		Domain:    cfg.Credentials.CookieDomain,
		Secure:    cfg.Credentials.CookieSecure,
	})

	inst.Presence = presence.New(presence.Options{
		Store:      inst.Store,
		Prometheus: inst.Prometheus,
	})

	inst.Directory = directory.New(directory.Options{
		Store:      inst.Store,
		Prometheus: inst.Prometheus,
	})

	inst.Conversations = conversation.New(conversation.Options{
		Store:      inst.Store,
		Prometheus: inst.Prometheus,
	})

	inst.Dispatcher = dispatcher.New(dispatcher.Options{
		Store:      inst.Store,
		Prometheus: inst.Prometheus,
	})

	inst.Summary = summary.New(summary.Options{
		Directory:     inst.Directory,
		Presence:      inst.Presence,
		Conversations: inst.Conversations,
		Prometheus:    inst.Prometheus,
	})

	inst.Sessions = session.New(session.Options{
		Identity:   inst.Identity,
		Authorizer: inst.Auth,
		Profiles:   inst.Directory,
		Presence:   inst.Presence,
	})
}
