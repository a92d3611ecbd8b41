package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/MeKo-Tech/langdetect/internal/config"
	"github.com/MeKo-Tech/langdetect/internal/detector"
	"github.com/MeKo-Tech/langdetect/internal/server"
	"github.com/MeKo-Tech/langdetect/internal/version"
	"github.com/spf13/cobra"
)

// serveCmd represents the serve command.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start HTTP server for language detection",
	Long: `Start an HTTP server that exposes the language detector.

The server provides the following endpoints:
  POST /detect    - Detect the language of {"text": "...", "full": bool, "tokens": bool}
  GET  /ws        - WebSocket, every text message is detected
  GET  /languages - List supported languages
  GET  /health    - Health check endpoint
  GET  /metrics   - Prometheus metrics

Examples:
  langdetect serve
  langdetect serve --port 8080
  langdetect serve --host 0.0.0.0 --port 3000 --dictionary models/langdetect.dict`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringP("host", "H", "localhost", "server host")
	serveCmd.Flags().IntP("port", "p", 8080, "server port")
	serveCmd.Flags().String("cors-origin", "*", "CORS allowed origins")
	serveCmd.Flags().Int("max-body-size", 256, "maximum request body size in KB")
	serveCmd.Flags().Int("timeout", 30, "request timeout in seconds")
	serveCmd.Flags().Int("shutdown-timeout", 10, "shutdown timeout in seconds")
	serveCmd.Flags().Int("cache-size", 10000, "token cache entries (0 disables the cache)")
	serveCmd.Flags().StringP("model", "m", "", "model file (default from model.path)")
	serveCmd.Flags().StringP("dictionary", "d", "", "words frequency dictionary (default from model.dictionary_path when model.use_dictionary is set)")
	// Rate limiting flags
	serveCmd.Flags().Int("requests-per-minute", 0, "maximum requests per minute per client (0 disables)")
	serveCmd.Flags().Int("daily-quota", 0, "maximum text per day per client in KB (0 disables)")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := *GetConfig()
	cfg.Server.Host = stringFlag(cmd, "host", cfg.Server.Host)
	cfg.Server.Port = intFlag(cmd, "port", cfg.Server.Port)
	cfg.Server.CORSOrigin = stringFlag(cmd, "cors-origin", cfg.Server.CORSOrigin)
	cfg.Server.MaxBodyKB = intFlag(cmd, "max-body-size", cfg.Server.MaxBodyKB)
	cfg.Server.TimeoutSec = intFlag(cmd, "timeout", cfg.Server.TimeoutSec)
	cfg.Server.ShutdownTimeout = intFlag(cmd, "shutdown-timeout", cfg.Server.ShutdownTimeout)
	cfg.Server.CacheSize = intFlag(cmd, "cache-size", cfg.Server.CacheSize)
	cfg.Server.RateLimit = intFlag(cmd, "requests-per-minute", cfg.Server.RateLimit)
	cfg.Server.DailyQuotaKB = intFlag(cmd, "daily-quota", cfg.Server.DailyQuotaKB)
	cfg.Model.Path = stringFlag(cmd, "model", cfg.Model.Path)

	// Validate port number
	if cfg.Server.Port < 1 || cfg.Server.Port > 65535 {
		return fmt.Errorf("invalid port number: %d (must be between 1 and 65535)", cfg.Server.Port)
	}

	httpServer, err := newHTTPServer(cmd, &cfg)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	go func() {
		slog.Info("Starting language detection server", "host", cfg.Server.Host, "port", cfg.Server.Port)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server error", "error", err)
			cancel()
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)
	defer signal.Stop(sigChan)

	select {
	case sig := <-sigChan:
		slog.Info("Received shutdown signal", "signal", sig.String())
	case <-ctx.Done():
		slog.Info("Context cancelled, initiating shutdown")
	}

	slog.Info("Starting graceful shutdown", "timeout", fmt.Sprintf("%ds", cfg.Server.ShutdownTimeout))
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(),
		time.Duration(cfg.Server.ShutdownTimeout)*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
		return err
	}
	slog.Info("Graceful shutdown completed")
	return nil
}

// newHTTPServer loads the detector and wires it into an http.Server with all routes.
func newHTTPServer(cmd *cobra.Command, cfg *config.Config) (*http.Server, error) {
	det, err := loadDetector(cmd.ErrOrStderr(), cfg, detectorOptions{
		modelPath:      cfg.Model.Path,
		dictionaryPath: dictionaryPath(cmd, cfg),
		withCache:      true,
		extra:          []detector.Option{detector.WithCacheObserver(server.ObserveCache)},
	})
	if err != nil {
		return nil, err
	}

	srv, err := server.NewServer(det, server.Config{
		Host:       cfg.Server.Host,
		Port:       cfg.Server.Port,
		CORSOrigin: cfg.Server.CORSOrigin,
		MaxBodyKB:  cfg.Server.MaxBodyKB,
		TimeoutSec: cfg.Server.TimeoutSec,
		RateLimit: server.RateLimitConfig{
			RequestsPerMinute: cfg.Server.RateLimit,
			MaxTextPerDay:     int64(cfg.Server.DailyQuotaKB) * 1024,
		},
		Version: version.Version,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize server: %w", err)
	}

	mux := http.NewServeMux()
	srv.SetupRoutes(mux)

	timeout := time.Duration(cfg.Server.TimeoutSec) * time.Second
	return &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       timeout,
		WriteTimeout:      timeout,
	}, nil
}
