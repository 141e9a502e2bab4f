package monitoring

import (
	"net"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/seventv/chatsync/internal/global"
	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"
	"go.uber.org/zap"
)

func New(gCtx global.Context) <-chan struct{} {
	ln, err := net.Listen("tcp", gCtx.Config().Monitoring.Bind)
	if err != nil {
		zap.S().Fatalw("failed to start monitoring bind",
			"error", err,
		)
	}

	zap.S().Infow("Monitoring enabled",
		"bind", gCtx.Config().Monitoring.Bind,
	)

	return Serve(gCtx, ln)
}

// Serve exposes the chat metrics alongside the go runtime collectors.
func Serve(gCtx global.Context, ln net.Listener) <-chan struct{} {
	r := prometheus.NewRegistry()
	r.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	gCtx.Inst().Prometheus.Register(r)

	server := fasthttp.Server{
		Handler: fasthttpadaptor.NewFastHTTPHandler(promhttp.HandlerFor(r, promhttp.HandlerOpts{
			Registry:          r,
			EnableOpenMetrics: true,
		})),
		GetOnly:          true,
		DisableKeepalive: true,
	}

	done := make(chan struct{})

	go func() {
		defer close(done)

		if err := server.Serve(ln); err != nil {
			zap.S().Errorw("monitoring server stopped",
				"error", err,
			)
		}
	}()

	go func() {
		<-gCtx.Done()

		_ = server.Shutdown()
	}()

	return done
}
