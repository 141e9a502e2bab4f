package middleware

import (
	"strings"

	"github.com/seventv/chatsync/internal/global"
	"github.com/seventv/chatsync/internal/rest/rest"
	"github.com/seventv/chatsync/internal/svc/auth"
	"github.com/seventv/common/errors"
	"github.com/seventv/common/utils"
	"github.com/valyala/fasthttp"
)

// Token finds the session token of a request: a bearer header first, then the
// auth cookie, then the token query parameter.
func Token(ctx *fasthttp.RequestCtx) (string, bool) {
	if h := utils.B2S(ctx.Request.Header.Peek("Authorization")); h != "" {
		s := strings.Split(h, "Bearer ")
		if len(s) != 2 || s[1] == "" {
			return "", false
		}

		return s[1], true
	}

	if c := ctx.Request.Header.Cookie(auth.COOKIE_AUTH); len(c) > 0 {
		return string(c), true
	}

	if q := ctx.QueryArgs().Peek("token"); len(q) > 0 {
		return string(q), true
	}

	return "", false
}

func Auth(gCtx global.Context) rest.Middleware {
	return func(ctx *rest.Ctx) rest.APIError {
		t, ok := Token(ctx.RequestCtx)
		if !ok {
			return errors.ErrUnauthorized().SetFields(errors.Fields{"message": "Bad Authorization Header"})
		}

		userID, ok := gCtx.Inst().Sessions.CurrentID(ctx, t)
		if !ok {
			return errors.ErrUnauthorized().SetDetail("Invalid or expired token")
		}

		ctx.SetActor(userID, t)

		return nil
	}
}
