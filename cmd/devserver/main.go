// Command devserver runs an in-memory codive backend: rooms, the waiting-room
// socket, answer storage and stub hint/analysis endpoints.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/DoyleJ11/codive/internal/config"
	"github.com/DoyleJ11/codive/internal/httpapi"
	"github.com/DoyleJ11/codive/internal/hub"
	"github.com/DoyleJ11/codive/internal/metrics"
	"github.com/DoyleJ11/codive/pkg/logger"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "devserver:", err)
		os.Exit(1)
	}
}

func run() error {
	fs := pflag.NewFlagSet("devserver", pflag.ContinueOnError)
	configDir := fs.String("config", ".", "directory containing config.yaml")
	fs.String("addr", "", "listen address")
	fs.String("log-mode", "", "debug or release")
	fs.String("log-file", "", "log file path")
	if err := fs.Parse(os.Args[1:]); err != nil {
		return err
	}

	cfg, err := config.Load(*configDir, fs)
	if err != nil {
		return err
	}
	log := logger.New(cfg.Log)
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	h := hub.NewHub(ctx, hub.WithRetention(cfg.DevServer.RoomRetention))
	defer h.Shutdown()

	// Build the router *with* the hub injected
	handler := httpapi.SetupRoutes(h, httpapi.Deps{Metrics: metrics.New(), Log: log})

	srv := &http.Server{
		Addr:              cfg.DevServer.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("listening", zap.String("addr", srv.Addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
