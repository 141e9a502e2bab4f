package auth

import (
	"github.com/seventv/chatsync/internal/global"
	"github.com/seventv/chatsync/internal/rest/middleware"
	"github.com/seventv/chatsync/internal/rest/rest"
	authsvc "github.com/seventv/chatsync/internal/svc/auth"
)

type logout struct {
	Ctx global.Context
}

func newLogout(gCtx global.Context) rest.Route {
	return &logout{gCtx}
}

func (r *logout) Config() rest.RouteConfig {
	return rest.RouteConfig{
		URI:    "/logout",
		Method: rest.POST,
		Middleware: []rest.Middleware{
			middleware.Auth(r.Ctx),
		},
	}
}

func (r *logout) Handler(ctx *rest.Ctx) rest.APIError {
	token, _ := ctx.GetToken()

	if err := r.Ctx.Inst().Sessions.Logout(ctx, token); err != nil {
		return rest.Error(err)
	}

	// expire the cookie immediately
	ctx.Response.Header.SetCookie(r.Ctx.Inst().Auth.Cookie(authsvc.COOKIE_AUTH, "", 0))

	return ctx.NoContent()
}
