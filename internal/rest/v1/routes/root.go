package routes

import (
	"github.com/seventv/chatsync/internal/global"
	"github.com/seventv/chatsync/internal/rest/middleware"
	"github.com/seventv/chatsync/internal/rest/rest"
	"github.com/seventv/chatsync/internal/rest/v1/routes/auth"
	"github.com/seventv/chatsync/internal/rest/v1/routes/messages"
	"github.com/seventv/chatsync/internal/rest/v1/routes/users"
	"github.com/seventv/chatsync/internal/rest/v1/routes/ws"
)

type Route struct {
	Ctx global.Context
}

func New(gCtx global.Context) rest.Route {
	return &Route{gCtx}
}

func (r *Route) Config() rest.RouteConfig {
	return rest.RouteConfig{
		URI:    "/v1",
		Method: rest.GET,
		Children: []rest.Route{
			auth.New(r.Ctx),
			messages.New(r.Ctx),
			users.New(r.Ctx),
			ws.New(r.Ctx),
		},
		Middleware: []rest.Middleware{
			middleware.SetCacheControl(30, nil),
		},
	}
}

func (r *Route) Handler(ctx *rest.Ctx) rest.APIError {
	return ctx.JSON(rest.OK, &Response{
		Online: true,
	})
}

type Response struct {
	Online bool `json:"online"`
}
