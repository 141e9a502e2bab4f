package auth

import (
	"github.com/seventv/chatsync/internal/global"
	"github.com/seventv/chatsync/internal/rest/middleware"
	"github.com/seventv/chatsync/internal/rest/rest"
)

type login struct {
	Ctx global.Context
}

func newLogin(gCtx global.Context) rest.Route {
	return &login{gCtx}
}

func (r *login) Config() rest.RouteConfig {
	return rest.RouteConfig{
		URI:    "/login",
		Method: rest.POST,
		Middleware: []rest.Middleware{
			middleware.RateLimit(r.Ctx, "auth", r.Ctx.Config().Limits.Auth),
		},
	}
}

type loginBody struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (r *login) Handler(ctx *rest.Ctx) rest.APIError {
	body := loginBody{}
	if err := ctx.Bind(&body); err != nil {
		return err
	}

	sess, err := r.Ctx.Inst().Sessions.Login(ctx, body.Email, body.Password)
	if err != nil {
		return rest.Error(err)
	}

	return respond(r.Ctx, ctx, rest.OK, sess)
}
