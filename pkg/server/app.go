package server

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"ReserveDesk/internal/usecase"
	"ReserveDesk/pkg/config"
	xhttp "ReserveDesk/pkg/http"
	applogger "ReserveDesk/pkg/logger"
)

// App encapsulates the entire application lifecycle.
type App struct {
	cfg        *config.Config
	l          *applogger.Logger
	handler    xhttp.Handler
	recorder   *usecase.AuditRecorder
	httpServer *xhttp.Server
}

// New creates a new App instance with all dependencies.
func New(cfg *config.Config, l *applogger.Logger, handler xhttp.Handler, recorder *usecase.AuditRecorder) *App {
	return &App{cfg: cfg, l: l, handler: handler, recorder: recorder}
}

// Run starts the application and blocks until interrupted.
func (a *App) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if a.recorder != nil {
		a.recorder.Start(ctx)
		a.l.Info("audit recorder started", applogger.String("backend", a.cfg.Audit.Backend))
	}

	a.httpServer = xhttp.NewServer(a.handler,
		xhttp.WithPort(a.cfg.Server.Port),
		xhttp.WithTimeouts(a.cfg.Server.ReadTimeout, a.cfg.Server.WriteTimeout, a.cfg.Server.ShutdownTimeout),
	)
	if err := a.httpServer.Start(); err != nil {
		a.l.Error("http server start error", applogger.Error(err))
		return err
	}
	a.l.Info("http server started", applogger.Int("port", a.cfg.Server.Port))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	a.l.Info("shutdown signal received")
	return a.shutdown(ctx)
}

// shutdown gracefully stops all services.
func (a *App) shutdown(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, a.cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := a.httpServer.Stop(shutdownCtx); err != nil {
		a.l.Error("http shutdown error", applogger.Error(err))
	}

	if a.recorder != nil {
		a.recorder.Stop()
		if err := a.recorder.Close(); err != nil {
			a.l.Warn("audit sink close error", applogger.Error(err))
		}
	}
	a.l.RemoveCollector()

	a.l.Info("shutdown complete")
	return nil
}
