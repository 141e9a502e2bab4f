package ws

import (
	"github.com/seventv/chatsync/internal/gateway"
	"github.com/seventv/chatsync/internal/global"
	"github.com/seventv/chatsync/internal/rest/middleware"
	"github.com/seventv/chatsync/internal/rest/rest"
	"github.com/seventv/common/errors"
	"go.uber.org/zap"
)

type Route struct {
	Ctx global.Context
	gw  *gateway.Gateway
}

func New(gCtx global.Context) rest.Route {
	return &Route{
		Ctx: gCtx,
		gw:  gateway.New(gCtx),
	}
}

func (r *Route) Config() rest.RouteConfig {
	return rest.RouteConfig{
		URI:    "/ws",
		Method: rest.GET,
		Middleware: []rest.Middleware{
			middleware.Auth(r.Ctx),
		},
	}
}

func (r *Route) Handler(ctx *rest.Ctx) rest.APIError {
	if !r.gw.Supports(ctx.RequestCtx) {
		return errors.ErrInvalidRequest().SetDetail("Expected a websocket upgrade")
	}

	userID, _ := ctx.GetActor()

	if err := r.gw.Do(ctx.RequestCtx, userID); err != nil {
		zap.S().Named("gateway").Warnw("upgrade failed",
			"user_id", userID,
			"error", err,
		)

		return errors.ErrInvalidRequest().SetDetail("Unable to upgrade")
	}

	return nil
}
