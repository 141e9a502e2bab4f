package middleware

import (
	"strconv"

	"github.com/seventv/chatsync/internal/configure"
	"github.com/seventv/chatsync/internal/global"
	"github.com/seventv/chatsync/internal/rest/rest"
	"github.com/seventv/common/errors"
	"go.uber.org/zap"
)

// RateLimit counts requests per bucket for the signed in user, or the remote
// address before sign in. Limiter failures let the request through.
func RateLimit(gCtx global.Context, bucket string, limit configure.Limit) rest.Middleware {
	return func(ctx *rest.Ctx) rest.APIError {
		if limit.Count <= 0 || gCtx.Inst().Limiter == nil {
			return nil
		}

		identifier, ok := ctx.GetActor()
		if !ok {
			identifier = ctx.RemoteIP().String()
		}

		res, err := gCtx.Inst().Limiter.Take(ctx, bucket+":"+identifier, limit.Count, limit.Window)
		if err != nil {
			zap.S().Named("rest").Errorw("Error while rate limiting a request",
				"bucket", bucket,
				"error", err,
			)

			return nil
		}

		ctx.Response.Header.Set("X-RateLimit-Limit", strconv.FormatInt(res.Limit, 10))
		ctx.Response.Header.Set("X-RateLimit-Remaining", strconv.FormatInt(res.Remaining, 10))
		ctx.Response.Header.Set("X-RateLimit-Reset", strconv.FormatInt(res.Reset, 10))

		if res.Remaining < 1 {
			return errors.ErrRateLimited().WithHTTPStatus(int(rest.TooManyRequests))
		}

		return nil
	}
}
