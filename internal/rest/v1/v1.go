package v1

import (
	"github.com/seventv/chatsync/internal/global"
	"github.com/seventv/chatsync/internal/rest/rest"
	"github.com/seventv/chatsync/internal/rest/v1/routes"
)

func API(gCtx global.Context, router *rest.Router) rest.Route {
	return routes.New(gCtx)
}
