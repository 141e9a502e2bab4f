package auth

import (
	"time"

	"github.com/seventv/chatsync/internal/global"
	"github.com/seventv/chatsync/internal/rest/rest"
	"github.com/seventv/chatsync/internal/session"
	authsvc "github.com/seventv/chatsync/internal/svc/auth"
	"github.com/seventv/common/errors"
)

type Route struct {
	Ctx global.Context
}

func New(gCtx global.Context) rest.Route {
	return &Route{gCtx}
}

func (r *Route) Config() rest.RouteConfig {
	return rest.RouteConfig{
		URI:    "/auth",
		Method: rest.GET,
		Children: []rest.Route{
			newRegister(r.Ctx),
			newLogin(r.Ctx),
			newLogout(r.Ctx),
			newMe(r.Ctx),
		},
		Middleware: []rest.Middleware{},
	}
}

func (r *Route) Handler(ctx *rest.Ctx) rest.APIError {
	return errors.ErrInvalidRequest().SetDetail("Use /auth/register or /auth/login")
}

type sessionResponse struct {
	UserID    string    `json:"user_id"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// respond writes the session as JSON and stores the token in the auth cookie.
func respond(gCtx global.Context, ctx *rest.Ctx, status rest.HttpStatusCode, sess session.Session) rest.APIError {
	ctx.Response.Header.SetCookie(gCtx.Inst().Auth.Cookie(authsvc.COOKIE_AUTH, sess.Token, time.Until(sess.ExpiresAt)))

	return ctx.JSON(status, &sessionResponse{
		UserID:    sess.UserID,
		Token:     sess.Token,
		ExpiresAt: sess.ExpiresAt,
	})
}
