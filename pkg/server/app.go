package server

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	domrepo "VolStack/internal/domain/repository"
	"VolStack/internal/handler/api"
	"VolStack/internal/usecase"
	"VolStack/pkg/cache"
	pkgch "VolStack/pkg/clickhouse"
	"VolStack/pkg/config"
	xhttp "VolStack/pkg/http"
	applogger "VolStack/pkg/logger"
	pkgpg "VolStack/pkg/postgres"
)

// App owns the process lifecycle: the prediction cycle loop, the ops HTTP
// server, and every infrastructure client that needs closing on the way
// out.
type App struct {
	cfg       *config.Config
	l         *applogger.Logger
	loop      *usecase.CycleLoop
	handler   xhttp.Handler
	hub       *api.SignalHub
	chClient  *pkgch.Client
	pgClient  *pkgpg.Client
	publisher domrepo.SignalPublisher
	cacheSvc  cache.Service

	httpServer *xhttp.Server
}

func New(
	cfg *config.Config,
	l *applogger.Logger,
	loop *usecase.CycleLoop,
	handler xhttp.Handler,
	hub *api.SignalHub,
	chClient *pkgch.Client,
	pgClient *pkgpg.Client,
	publisher domrepo.SignalPublisher,
	cacheSvc cache.Service,
) *App {
	return &App{
		cfg:       cfg,
		l:         l,
		loop:      loop,
		handler:   handler,
		hub:       hub,
		chClient:  chClient,
		pgClient:  pgClient,
		publisher: publisher,
		cacheSvc:  cacheSvc,
	}
}

// Run starts the HTTP server and the cycle loop, then blocks until an
// interrupt arrives. It returns nil on a clean interrupt-driven shutdown.
func (a *App) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a.httpServer = xhttp.NewServer(a.handler,
		xhttp.WithPort(a.cfg.Server.Port),
		xhttp.WithTimeouts(a.cfg.Server.ReadTimeout, a.cfg.Server.WriteTimeout, a.cfg.Server.ShutdownTimeout),
		xhttp.WithLogger(a.l),
	)
	if err := a.httpServer.Start(); err != nil {
		return err
	}
	a.l.Info("http server started", applogger.Int("port", a.cfg.Server.Port))

	loopDone := make(chan error, 1)
	go func() { loopDone <- a.loop.Run(ctx) }()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		a.l.Info("shutdown signal received", applogger.String("signal", sig.String()))
		cancel()
		// The loop honors cancellation only between cycles; give the
		// in-flight cycle time to finish.
		select {
		case <-loopDone:
		case <-time.After(a.cfg.Server.ShutdownTimeout):
			a.l.Warn("cycle loop did not stop in time")
		}
	case err := <-loopDone:
		// The loop only returns on cancellation; reaching here first
		// means something went badly wrong.
		if err != nil && !errors.Is(err, context.Canceled) {
			a.l.Error("cycle loop exited", applogger.Error(err))
			a.shutdown()
			return err
		}
	}

	a.shutdown()
	return nil
}

func (a *App) shutdown() {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()

	if a.hub != nil {
		a.hub.Close()
	}
	if a.httpServer != nil {
		if err := a.httpServer.Stop(shutdownCtx); err != nil {
			a.l.Warn("http shutdown error", applogger.Error(err))
		}
	}
	if a.publisher != nil {
		if err := a.publisher.Close(); err != nil {
			a.l.Warn("publisher close error", applogger.Error(err))
		}
	}
	if a.cacheSvc != nil {
		if err := a.cacheSvc.Close(); err != nil {
			a.l.Warn("cache close error", applogger.Error(err))
		}
	}
	if a.pgClient != nil {
		if err := a.pgClient.Close(); err != nil {
			a.l.Warn("postgres close error", applogger.Error(err))
		}
	}
	if a.chClient != nil {
		if err := a.chClient.Close(); err != nil {
			a.l.Warn("clickhouse close error", applogger.Error(err))
		}
	}
	a.l.Info("shutdown complete")
}
