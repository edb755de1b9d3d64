package main

import (
	"context"
	"errors"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/park285/checkmate-ai/internal/appbuilder"
	appcfg "github.com/park285/checkmate-ai/internal/config"
	"github.com/park285/checkmate-ai/internal/obslog"
	"github.com/park285/checkmate-ai/internal/session"
	"github.com/park285/checkmate-ai/internal/webui"
)

func main() {
	cfg, err := appcfg.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	if err := obslog.Init(appbuilder.LogOptions(cfg.Log, nil)); err != nil {
		log.Fatalf("logger error: %v", err)
	}
	defer obslog.Sync()
	logger := obslog.L()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	deps, err := appbuilder.New(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("init failed", zap.Error(err))
	}
	defer deps.Close()

	factory := func(context.Context) (*session.Controller, error) { return deps.NewController() }
	srv := webui.NewServer(factory, deps.Formatter, deps.Renderer,
		webui.WithOriginPatterns(cfg.Web.AllowedOrigins...),
		webui.WithLogger(logger.Named("webui")),
	)

	httpSrv := &http.Server{
		Addr:              cfg.Web.Addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", zap.String("addr", cfg.Web.Addr))
		errCh <- httpSrv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server failed", zap.Error(err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("shutdown incomplete", zap.Error(err))
	}
	srv.Wait()
	logger.Info("stopped")
}
