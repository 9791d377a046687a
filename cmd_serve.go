package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	collectionhttp "meter-collector/internal/collection/interfaces/http"
	"meter-collector/internal/config"
)

const shutdownTimeout = 10 * time.Second

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the collection engine and its control API",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "HTTP listen address (overrides HTTP_ADDR)")
}

func runServe(cmd *cobra.Command, args []string) error {
	logger := newLogger()
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if serveAddr != "" {
		cfg.HTTPAddr = serveAddr
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := buildApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			logger.Printf("event=shutdown_close_failed err=%v", err)
		}
	}()

	if err := a.seedMeters(ctx, cfg.Meters); err != nil {
		return err
	}
	if err := startCollection(ctx, a, cfg); err != nil {
		return err
	}

	handler, err := collectionhttp.NewHandler(a.engine)
	if err != nil {
		return err
	}
	mux := http.NewServeMux()
	mux.Handle(collectionhttp.PathPrefix, handler)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           loggingMiddleware(mux, logger),
		ReadHeaderTimeout: 10 * time.Second,
	}
	serverErr := make(chan error, 1)
	go func() {
		logger.Printf("event=http_listening addr=%s", cfg.HTTPAddr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case <-ctx.Done():
		logger.Printf("event=shutdown_requested")
	case err := <-serverErr:
		if err != nil {
			a.engine.Shutdown()
			return fmt.Errorf("http server: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Printf("event=http_shutdown_failed err=%v", err)
	}
	a.engine.Shutdown()
	return nil
}

// startCollection resumes the stored schedule, falling back to the configured autostart schedule.
func startCollection(ctx context.Context, a *app, cfg config.Config) error {
	if cfg.Collection.Resume {
		resumed, err := a.engine.Resume(ctx)
		if err != nil {
			return err
		}
		if resumed {
			return nil
		}
	}
	if !cfg.Collection.Autostart || cfg.Collection.Schedule == nil {
		return nil
	}
	schedule, err := cfg.Collection.Schedule.Config()
	if err != nil {
		return err
	}
	return a.engine.Start(ctx, schedule)
}
