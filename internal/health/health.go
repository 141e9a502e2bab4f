package health

import (
	"context"
	"net"
	"time"

	"github.com/seventv/chatsync/internal/global"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"
)

const pingTimeout = time.Second * 5

func New(gCtx global.Context) <-chan struct{} {
	ln, err := net.Listen("tcp", gCtx.Config().Health.Bind)
	if err != nil {
		zap.S().Fatalw("failed to bind health",
			"error", err,
		)
	}

	zap.S().Infow("Health enabled",
		"bind", gCtx.Config().Health.Bind,
	)

	return Serve(gCtx, ln)
}

// Serve answers health checks on ln until gCtx is done. A check fails with
// 500 when the store or the identity backend does not answer a ping.
func Serve(gCtx global.Context, ln net.Listener) <-chan struct{} {
	done := make(chan struct{})

	srv := fasthttp.Server{
		Handler: func(ctx *fasthttp.RequestCtx) {
			defer func() {
				if err := recover(); err != nil {
					zap.S().Errorw("panic in health",
						"panic", err,
					)
				}
			}()

			var (
				storeDown    bool
				identityDown bool
			)

			if gCtx.Inst().Store != nil {
				lCtx, cancel := context.WithTimeout(context.Background(), pingTimeout)
				if err := gCtx.Inst().Store.Ping(lCtx); err != nil {
					zap.S().Warnw("store is not responding",
						"error", err,
					)
					storeDown = true
				}
				cancel()
			}

			if gCtx.Inst().Identity != nil {
				lCtx, cancel := context.WithTimeout(context.Background(), pingTimeout)
				if err := gCtx.Inst().Identity.Ping(lCtx); err != nil {
					zap.S().Warnw("identity is not responding",
						"error", err,
					)
					identityDown = true
				}
				cancel()
			}

			if storeDown || identityDown {
				ctx.SetStatusCode(500)
			}
		},
	}

	go func() {
		defer close(done)

		if err := srv.Serve(ln); err != nil {
			zap.S().Errorw("health server stopped",
				"error", err,
			)
		}
	}()

	go func() {
		<-gCtx.Done()
		_ = srv.Shutdown()
	}()

	return done
}
