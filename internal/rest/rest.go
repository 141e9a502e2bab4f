package rest

import (
	"fmt"
	"net"
	"time"

	"github.com/fasthttp/router"
	"github.com/seventv/chatsync/internal/global"
	"github.com/seventv/common/utils"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"
)

type HttpServer struct {
	listener net.Listener
	router   *router.Router
}

func New(gCtx global.Context) error {
	port := gCtx.Config().Http.Port
	if port == 0 {
		port = 80
	}

	ln, err := net.Listen("tcp", fmt.Sprintf("%s:%d", gCtx.Config().Http.Addr, port))
	if err != nil {
		return err
	}

	return Serve(gCtx, ln)
}

// Serve runs the API on ln until the global context is cancelled.
func Serve(gCtx global.Context, ln net.Listener) error {
	s := HttpServer{
		listener: ln,
		router:   router.New(),
	}

	s.SetupHandlers()
	s.V1(gCtx)

	srv := &fasthttp.Server{
		Handler:            s.handler(gCtx),
		ReadTimeout:        time.Second * 30,
		IdleTimeout:        time.Second * 10,
		MaxRequestBodySize: 1 << 20,
		LogAllErrors:       true,
		CloseOnShutdown:    true,
	}

	zap.S().Infow("rest enabled",
		"bind", ln.Addr().String(),
	)

	// Gracefully exit when the global context is canceled
	go func() {
		<-gCtx.Done()
		_ = srv.Shutdown()
	}()

	return srv.Serve(s.listener)
}

func (s *HttpServer) handler(gCtx global.Context) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		start := time.Now()
		defer func() {
			if err := recover(); err != nil {
				zap.S().Errorw("panic in rest request handler",
					"panic", err,
					"status", ctx.Response.StatusCode(),
					"duration", time.Since(start)/time.Millisecond,
					"method", utils.B2S(ctx.Method()),
					"path", utils.B2S(ctx.Path()),
				)
			} else {
				zap.S().Debugw("rest request",
					"status", ctx.Response.StatusCode(),
					"duration", time.Since(start)/time.Millisecond,
					"method", utils.B2S(ctx.Method()),
					"path", utils.B2S(ctx.Path()),
					"ip", ctx.RemoteIP().String(),
				)
			}
		}()

		ctx.Response.Header.Set("Access-Control-Allow-Credentials", "true")
		ctx.Response.Header.Set("Access-Control-Allow-Headers", "Authorization, Content-Type")
		ctx.Response.Header.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		ctx.Response.Header.Set("Access-Control-Allow-Origin", "*")

		ctx.Response.Header.Set("X-Node-Name", gCtx.Config().K8S.NodeName)
		ctx.Response.Header.Set("X-Pod-Name", gCtx.Config().K8S.PodName)
		if ctx.IsOptions() {
			return
		}

		// Routing
		ctx.Response.Header.Set("Content-Type", "application/json") // default to JSON
		s.router.Handler(ctx)
	}
}
