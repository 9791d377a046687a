package main

import (
	"log"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	"meter-collector/internal/config"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "meter-collector",
	Short: "Poll IAMMETER three-phase meters on a schedule and store their readings",
	Long: `meter-collector polls every registered meter through the IAMMETER REST API
inside a daily collection window and stores one row per phase per sample.

Examples:
  meter-collector serve --config collector.yaml
  STORE_DRIVER=memory IAMMETER_TOKEN=... meter-collector collect`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if configPath != "" {
			return os.Setenv("COLLECTOR_CONFIG", configPath)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "YAML config file (overrides COLLECTOR_CONFIG)")
	rootCmd.AddCommand(serveCmd, collectCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newLogger() *log.Logger {
	return log.New(os.Stdout, "", log.LstdFlags)
}

func loadConfig() (config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return cfg, err
	}
	if err := cfg.RequireVendorToken(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func loggingMiddleware(next http.Handler, logger *log.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		resp := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(resp, r)
		logger.Printf("event=http_request method=%s path=%s status=%d duration=%s", r.Method, r.URL.Path, resp.status, time.Since(start))
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}
