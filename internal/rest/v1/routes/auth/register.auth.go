package auth

import (
	"github.com/seventv/chatsync/internal/global"
	"github.com/seventv/chatsync/internal/rest/middleware"
	"github.com/seventv/chatsync/internal/rest/rest"
)

type register struct {
	Ctx global.Context
}

func newRegister(gCtx global.Context) rest.Route {
	return &register{gCtx}
}

func (r *register) Config() rest.RouteConfig {
	return rest.RouteConfig{
		URI:    "/register",
		Method: rest.POST,
		Middleware: []rest.Middleware{
			middleware.RateLimit(r.Ctx, "auth", r.Ctx.Config().Limits.Auth),
		},
	}
}

type registerBody struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

func (r *register) Handler(ctx *rest.Ctx) rest.APIError {
	body := registerBody{}
	if err := ctx.Bind(&body); err != nil {
		return err
	}

	sess, err := r.Ctx.Inst().Sessions.Register(ctx, body.Email, body.Password, body.Name)
	if err != nil {
		return rest.Error(err)
	}

	return respond(r.Ctx, ctx, rest.Created, sess)
}
