package auth

import (
	"github.com/seventv/chatsync/internal/global"
	"github.com/seventv/chatsync/internal/rest/middleware"
	"github.com/seventv/chatsync/internal/rest/rest"
)

type me struct {
	Ctx global.Context
}

func newMe(gCtx global.Context) rest.Route {
	return &me{gCtx}
}

func (r *me) Config() rest.RouteConfig {
	return rest.RouteConfig{
		URI:    "/me",
		Method: rest.GET,
		Middleware: []rest.Middleware{
			middleware.NoStore(),
			middleware.Auth(r.Ctx),
		},
	}
}

type meResponse struct {
	UserID string `json:"user_id"`
}

func (r *me) Handler(ctx *rest.Ctx) rest.APIError {
	userID, _ := ctx.GetActor()

	return ctx.JSON(rest.OK, &meResponse{UserID: userID})
}
