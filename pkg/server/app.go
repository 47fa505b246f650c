package server

import (
	"context"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"

	mid "RiskWatch/internal/middleware"
	"RiskWatch/internal/service/notify"
	"RiskWatch/internal/usecase"
	"RiskWatch/pkg/config"
	xhttp "RiskWatch/pkg/http"
	pkgkafka "RiskWatch/pkg/kafka"
	applogger "RiskWatch/pkg/logger"
)

type namedCloser struct {
	name string
	c    io.Closer
}

// App encapsulates the entire application lifecycle.
type App struct {
	cfg        *config.Config
	l          *applogger.Logger
	cycle      *usecase.RefreshCycle
	pipeline   *mid.NotificationPipeline
	consumer   *pkgkafka.Consumer
	hub        *notify.Hub
	httpServer *xhttp.Server
	closers    []namedCloser
}

// New creates a new App instance with all dependencies. The consumer may be nil.
func New(
	cfg *config.Config,
	l *applogger.Logger,
	cycle *usecase.RefreshCycle,
	pipeline *mid.NotificationPipeline,
	consumer *pkgkafka.Consumer,
	hub *notify.Hub,
	httpServer *xhttp.Server,
) *App {
	return &App{
		cfg:        cfg,
		l:          l,
		cycle:      cycle,
		pipeline:   pipeline,
		consumer:   consumer,
		hub:        hub,
		httpServer: httpServer,
	}
}

// AddCloser registers an infrastructure client to close on shutdown, in reverse order of registration.
func (a *App) AddCloser(name string, c io.Closer) {
	if c == nil {
		return
	}
	a.closers = append(a.closers, namedCloser{name: name, c: c})
}

// Run starts the application and blocks until ctx is cancelled or a signal arrives.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	a.pipeline.Start(ctx)
	a.l.Info("notification pipeline started", applogger.Strings("sinks", a.pipeline.Sinks()))

	if a.consumer != nil {
		if err := a.consumer.Start(); err != nil {
			a.l.Error("kafka consumer start error", applogger.Error(err))
			a.shutdown(context.Background())
			return err
		}
	}

	if err := a.httpServer.Start(); err != nil {
		a.l.Error("http server start error", applogger.Error(err))
		a.shutdown(context.Background())
		return err
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		a.cycle.Run(ctx)
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	select {
	case s := <-sigCh:
		a.l.Info("shutdown signal received", applogger.String("signal", s.String()))
	case <-ctx.Done():
		a.l.Info("context cancelled")
	}

	cancel()
	wg.Wait()
	a.shutdown(context.Background())
	return nil
}

// shutdown gracefully stops all services. The refresh loop has already returned.
func (a *App) shutdown(ctx context.Context) {
	a.l.Info("shutting down...")

	if err := a.httpServer.Stop(ctx); err != nil {
		a.l.Error("http shutdown error", applogger.Error(err))
	}

	if a.consumer != nil {
		stopCtx, cancel := context.WithTimeout(ctx, a.cfg.Server.ShutdownTimeout)
		if err := a.consumer.Stop(stopCtx); err != nil {
			a.l.Warn("kafka consumer stop error", applogger.Error(err))
		}
		cancel()
	}

	a.pipeline.Stop()
	if a.hub != nil {
		a.hub.Close()
	}

	// the collector publishes through the producer, detach it first
	a.l.RemoveCollector()
	for i := len(a.closers) - 1; i >= 0; i-- {
		nc := a.closers[i]
		if err := nc.c.Close(); err != nil {
			a.l.Warn("close error", applogger.String("resource", nc.name), applogger.Error(err))
		}
	}

	a.l.Info("shutdown complete")
}
