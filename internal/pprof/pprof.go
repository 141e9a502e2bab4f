package pprof

import (
	"net/http"
	_ "net/http/pprof"
	"time"

	"github.com/seventv/chatsync/internal/global"
	"go.uber.org/zap"
)

// New serves the runtime profiles on the pprof bind until gCtx is done.
func New(gCtx global.Context) <-chan struct{} {
	done := make(chan struct{})

	srv := &http.Server{
		Addr:              gCtx.Config().PProf.Bind,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		defer close(done)

		zap.S().Infow("PProf enabled",
			"bind", srv.Addr,
		)

		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zap.S().Fatalw("pprof failed to listen",
				"error", err,
			)
		}
	}()

	go func() {
		<-gCtx.Done()
		_ = srv.Close()
	}()

	return done
}
