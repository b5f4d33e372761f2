package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/maltedev/outlet-scraper/internal/api"
	"github.com/maltedev/outlet-scraper/internal/scraper"
	"github.com/spf13/cobra"
)

func newServeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the extraction HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return a.serve(ctx)
		},
	}
}

func (a *app) serve(ctx context.Context) error {
	cfg := a.cfg.Server

	if !a.hasRowSink() {
		a.logger.Warn("no sqlite or postgres sink configured, persist requests store nothing",
			"sinks", a.cfg.Storage.Sinks)
	}

	opts, sink, err := a.storeOptions(ctx, false)
	if err != nil {
		return a.fail("failed to initialize sinks", err)
	}

	svc := scraper.NewService(a.normalizer(), a.logger, opts...)
	defer svc.Close()

	handlers := api.NewHandlers(svc, cfg.MaxBodyBytes, a.logger)
	server := &http.Server{
		Addr:         net.JoinHostPort(cfg.Host, cfg.Port),
		Handler:      api.NewRouter(handlers, cfg.WriteTimeout),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	// Graceful shutdown
	go func() {
		<-ctx.Done()
		a.logger.Info("shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			a.logger.Error("server shutdown failed", "error", err)
		}
	}()

	a.logger.Info("server starting", "addr", server.Addr, "sinks", sink.Len())
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return a.fail("server failed", err)
	}

	a.logger.Info("server stopped")
	return nil
}
