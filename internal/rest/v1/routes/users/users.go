package users

import (
	"github.com/seventv/chatsync/internal/global"
	"github.com/seventv/chatsync/internal/rest/middleware"
	"github.com/seventv/chatsync/internal/rest/rest"
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
		URI:    "/users/{user.id}",
		Method: rest.GET,
		Middleware: []rest.Middleware{
			middleware.NoStore(),
			middleware.Auth(r.Ctx),
		},
	}
}

type userResponse struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	AvatarURL string `json:"avatar_url"`
	Online    bool   `json:"online"`
}

// Handler returns a directory profile with its live presence.
func (r *Route) Handler(ctx *rest.Ctx) rest.APIError {
	id, ok := ctx.UserValue(rest.UserIDKey).String()
	if !ok {
		return errors.ErrMissingRequiredField().SetFields(errors.Fields{"field": "user.id"})
	}

	u, err := r.Ctx.Inst().Directory.Get(ctx, id)
	if err != nil {
		return rest.Error(err)
	}

	return ctx.JSON(rest.OK, &userResponse{
		ID:        u.ID,
		Name:      u.Name,
		AvatarURL: u.AvatarURL,
		Online:    r.Ctx.Inst().Presence.Online(ctx, u.ID),
	})
}
