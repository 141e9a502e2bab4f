package messages

import (
	"strings"
	"time"

	"github.com/seventv/chatsync/internal/dispatcher"
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
		URI:    "/messages",
		Method: rest.POST,
		Middleware: []rest.Middleware{
			middleware.Auth(r.Ctx),
			middleware.RateLimit(r.Ctx, "send", r.Ctx.Config().Limits.Messages),
		},
	}
}

type sendBody struct {
	ReceiverID string `json:"receiver_id"`
	Text       string `json:"text"`
}

// Handler sends a message from the signed in user. The receiver must exist in
// the directory.
func (r *Route) Handler(ctx *rest.Ctx) rest.APIError {
	senderID, _ := ctx.GetActor()

	body := sendBody{}
	if err := ctx.Bind(&body); err != nil {
		return err
	}

	body.ReceiverID = strings.TrimSpace(body.ReceiverID)
	if body.ReceiverID == "" {
		return errors.ErrMissingRequiredField().SetFields(errors.Fields{"field": "receiver_id"})
	}

	if _, err := r.Ctx.Inst().Directory.Get(ctx, body.ReceiverID); err != nil {
		return rest.Error(err)
	}

	msg, err := dispatcher.Compose(senderID, body.ReceiverID, body.Text, time.Now())
	if err != nil {
		return rest.Error(err)
	}

	if err := r.Ctx.Inst().Dispatcher.Send(ctx, msg); err != nil {
		return rest.Error(err)
	}

	return ctx.JSON(rest.Created, msg)
}
