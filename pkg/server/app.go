package server

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	xhttp "github.com/EasyE-base/neural-command-layer/pkg/http"
	pkgkafka "github.com/EasyE-base/neural-command-layer/pkg/kafka"
	applogger "github.com/EasyE-base/neural-command-layer/pkg/logger"

	"golang.org/x/sync/errgroup"
)

// Runner is a background component that works until ctx is cancelled.
type Runner interface {
	Run(ctx context.Context) error
}

// App owns the process lifecycle: HTTP server, audit consumer and
// background runners. Shared clients are closed by the injector cleanup.
type App struct {
	log             *applogger.Logger
	httpServer      *xhttp.Server
	consumer        *pkgkafka.Consumer
	runners         []Runner
	shutdownTimeout time.Duration
}

type Option func(*App)

// WithConsumer starts c with the app and stops it on shutdown.
func WithConsumer(c *pkgkafka.Consumer) Option {
	return func(a *App) { a.consumer = c }
}

// WithRunner adds a background component.
func WithRunner(r Runner) Option {
	return func(a *App) {
		if r != nil {
			a.runners = append(a.runners, r)
		}
	}
}

func WithShutdownTimeout(d time.Duration) Option {
	return func(a *App) {
		if d > 0 {
			a.shutdownTimeout = d
		}
	}
}

func New(l *applogger.Logger, srv *xhttp.Server, opts ...Option) *App {
	a := &App{log: l, httpServer: srv, shutdownTimeout: 10 * time.Second}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Run starts every component and blocks until SIGINT/SIGTERM or ctx ends.
func (a *App) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	return a.serve(ctx)
}

func (a *App) serve(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	if a.consumer != nil {
		if err := a.consumer.Start(gctx); err != nil {
			return fmt.Errorf("start consumer: %w", err)
		}
	}
	for _, r := range a.runners {
		r := r
		g.Go(func() error {
			if err := r.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		})
	}
	if err := a.httpServer.Start(); err != nil {
		return fmt.Errorf("start http server: %w", err)
	}

	<-gctx.Done()
	a.log.Info("shutting down")
	err := g.Wait()
	return errors.Join(err, a.shutdown())
}

func (a *App) shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), a.shutdownTimeout)
	defer cancel()

	var errs []error
	if err := a.httpServer.Stop(ctx); err != nil {
		a.log.Error("http shutdown error", applogger.Error(err))
		errs = append(errs, err)
	}
	if a.consumer != nil {
		if err := a.consumer.Stop(ctx); err != nil {
			a.log.Warn("kafka consumer stop error", applogger.Error(err))
			errs = append(errs, err)
		}
	}
	a.log.Info("shutdown complete")
	// flush log digests while the producer is still open
	a.log.RemoveCollector()
	return errors.Join(errs...)
}
