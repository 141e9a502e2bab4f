package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"runtime/debug"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/bugsnag/panicwrap"
	"github.com/seventv/chatsync/internal/app"
	"github.com/seventv/chatsync/internal/configure"
	"github.com/seventv/chatsync/internal/global"
	"github.com/seventv/chatsync/internal/health"
	"github.com/seventv/chatsync/internal/instance"
	"github.com/seventv/chatsync/internal/monitoring"
	"github.com/seventv/chatsync/internal/pprof"
	"github.com/seventv/chatsync/internal/rest"
	"github.com/seventv/chatsync/internal/svc/identity"
	"github.com/seventv/chatsync/internal/svc/limiter"
	"github.com/seventv/chatsync/internal/svc/store"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

var (
	Version = "development"
	Unix    = ""
	Time    = "unknown"
	User    = "unknown"
)

func init() {
	debug.SetGCPercent(2000)
	if i, err := strconv.Atoi(Unix); err == nil {
		Time = time.Unix(int64(i), 0).Format(time.RFC3339)
	}
}

func main() {
	config := configure.New()

	exitStatus, err := panicwrap.BasicWrap(func(s string) {
		zap.S().Errorw("panic detected",
			"panic", s,
		)
	})
	if err != nil {
		zap.S().Errorw("failed to setup panic handler",
			"error", err,
		)
		os.Exit(2)
	}

	if exitStatus >= 0 {
		os.Exit(exitStatus)
	}

	if !config.NoHeader {
		zap.S().Info("Chat Sync")
		zap.S().Infof("Version: %s", Version)
		zap.S().Infof("build.Time: %s", Time)
		zap.S().Infof("build.User: %s", User)
	}

	zap.S().Debugf("MaxProcs: %d", runtime.GOMAXPROCS(0))

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)

	gCtx, cancel := global.WithCancel(global.New(context.Background(), config))

	var closers []func() error

	{
		ctx, cancel := context.WithTimeout(gCtx, time.Second*15)
		s, closeStore, err := setupStore(ctx, config)
		cancel()
		if err != nil {
			zap.S().Fatalw("failed to setup store",
				"mode", config.Store.Mode,
				"error", err,
			)
		}

		gCtx.Inst().Store = s
		closers = append(closers, closeStore)
	}

	{
		ctx, cancel := context.WithTimeout(gCtx, time.Second*15)
		id, closeIdentity, err := setupIdentity(ctx, config)
		cancel()
		if err != nil {
			zap.S().Fatalw("failed to setup identity",
				"mode", config.Identity.Mode,
				"error", err,
			)
		}

		gCtx.Inst().Identity = id
		closers = append(closers, closeIdentity)
	}

	var lim instance.Limiter

	if rs, ok := gCtx.Inst().Store.(*store.RedisInstance); ok {
		ctx, cancel := context.WithTimeout(gCtx, time.Second*15)
		lim, err = limiter.NewRedis(ctx, rs.Client(), config.Redis.Prefix)
		cancel()
		if err != nil {
			zap.S().Fatalw("failed to setup rate limiter",
				"error", err,
			)
		}
	}

	app.Setup(gCtx, app.Options{
		Store:    gCtx.Inst().Store,
		Identity: gCtx.Inst().Identity,
		Limiter:  lim,
	})

	wg := sync.WaitGroup{}

	if gCtx.Config().Health.Enabled {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-health.New(gCtx)
		}()
	}
	if gCtx.Config().Monitoring.Enabled {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-monitoring.New(gCtx)
		}()
	}

	if gCtx.Config().PProf.Enabled {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-pprof.New(gCtx)
		}()
	}

	done := make(chan struct{})
	go func() {
		<-sig
		cancel()
		go func() {
			select {
			case <-time.After(time.Minute):
			case <-sig:
			}
			zap.S().Fatal("force shutdown")
		}()

		zap.S().Info("shutting down")

		wg.Wait()

		var err error
		for _, c := range closers {
			err = multierr.Append(err, c())
		}

		if err != nil {
			zap.S().Warnw("failed to close backends",
				"error", err,
			)
		}

		close(done)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := rest.New(gCtx); err != nil {
			zap.S().Fatalw("rest failed",
				"error", err,
			)
		}
	}()

	zap.S().Info("running")

	<-done

	zap.S().Info("shutdown")
	os.Exit(0)
}

func setupStore(ctx context.Context, config *configure.Config) (instance.Store, func() error, error) {
	switch config.Store.Mode {
	case configure.StoreModeMemory, "":
		return store.NewMock(), func() error { return nil }, nil
	case configure.StoreModeRedis:
		s, err := store.NewRedis(ctx, store.RedisOptions{
			Addresses:  config.Redis.Addresses,
			Username:   config.Redis.Username,
			Password:   config.Redis.Password,
			Database:   config.Redis.Database,
			Sentinel:   config.Redis.Sentinel,
			MasterName: config.Redis.MasterName,
			Prefix:     config.Redis.Prefix,
		})
		if err != nil {
			return nil, nil, err
		}

		return s, s.Close, nil
	case configure.StoreModeNats:
		s, err := store.NewNats(ctx, store.NatsOptions{
			URL:    config.Nats.URL,
			Bucket: config.Nats.Bucket,
		})
		if err != nil {
			return nil, nil, err
		}

		return s, s.Close, nil
	}

	return nil, nil, fmt.Errorf("unknown store mode %q", config.Store.Mode)
}

func setupIdentity(ctx context.Context, config *configure.Config) (instance.Identity, func() error, error) {
	switch config.Identity.Mode {
	case configure.IdentityModeMemory, "":
		return identity.NewMock(), func() error { return nil }, nil
	case configure.IdentityModeMongo:
		id, err := identity.NewMongo(ctx, identity.MongoOptions{
			URI:      config.Mongo.URI,
			Username: config.Mongo.Username,
			Password: config.Mongo.Password,
			DB:       config.Mongo.DB,
			Direct:   config.Mongo.Direct,
		})
		if err != nil {
			return nil, nil, err
		}

		return id, func() error {
			ctx, cancel := context.WithTimeout(context.Background(), time.Second*5)
			defer cancel()

			return id.Close(ctx)
		}, nil
	}

	return nil, nil, fmt.Errorf("unknown identity mode %q", config.Identity.Mode)
}
