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

	"github.com/MeKo-Tech/mvgeo/internal/config"
	"github.com/MeKo-Tech/mvgeo/internal/server"
	"github.com/spf13/cobra"
)

// serveCmd represents the serve command.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start HTTP server for the estimation API",
	Long: `Start an HTTP server that provides REST API endpoints for estimation.

The server provides the following endpoints:
  POST /v1/estimate    - Estimate the relation named in the body (or inferred)
  POST /v1/fundamental - Fundamental matrix from point pairs
  POST /v1/essential   - Essential matrix from point pairs
  POST /v1/homography  - Homography from point pairs
  POST /v1/trifocal    - Trifocal tensor from point triples
  GET  /v1/info        - Pipeline settings and supported relations
  GET  /ws/estimate    - WebSocket streaming estimation
  GET  /health         - Health check endpoint
  GET  /metrics        - Prometheus metrics

Examples:
  mvgeo serve
  mvgeo serve --port 8080
  mvgeo serve --host 0.0.0.0 --port 3000 --rate-limit-enabled`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := GetConfig()

		serverConfig, shutdownTimeout := serverConfigFromFlags(cfg, cmd)

		if serverConfig.Port < 1 || serverConfig.Port > 65535 {
			return fmt.Errorf("invalid port number: %d (must be between 1 and 65535)", serverConfig.Port)
		}

		ctx, cancel := context.WithCancel(commandContext(cmd))
		defer cancel()

		estServer, err := server.NewServer(serverConfig)
		if err != nil {
			return fmt.Errorf("failed to initialize server: %w", err)
		}
		defer func() { _ = estServer.Close() }()

		mux := http.NewServeMux()
		estServer.SetupRoutes(mux)

		timeout := time.Duration(serverConfig.TimeoutSec) * time.Second
		httpServer := &http.Server{
			Addr:              fmt.Sprintf("%s:%d", serverConfig.Host, serverConfig.Port),
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       timeout,
			WriteTimeout:      timeout + 5*time.Second,
		}

		go func() {
			slog.Info("Starting estimation server", "host", serverConfig.Host, "port", serverConfig.Port)
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

		slog.Info("Starting graceful shutdown", "timeout", fmt.Sprintf("%ds", shutdownTimeout))

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), time.Duration(shutdownTimeout)*time.Second)
		defer shutdownCancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			slog.Error("HTTP server shutdown error", "error", err)
		} else {
			slog.Info("HTTP server shutdown completed")
		}

		if err := estServer.Close(); err != nil {
			slog.Error("Server cleanup error", "error", err)
		}

		slog.Info("Graceful shutdown completed")
		return nil
	},
}

// serverConfigFromFlags applies the serve flags on top of cfg and returns the
// server settings together with the shutdown timeout in seconds.
func serverConfigFromFlags(cfg *config.Config, cmd *cobra.Command) (server.Config, int) {
	sc := cfg.Server
	flags := cmd.Flags()

	if flags.Changed("host") {
		sc.Host, _ = flags.GetString("host")
	}
	if flags.Changed("port") {
		sc.Port, _ = flags.GetInt("port")
	}
	if flags.Changed("cors-origin") {
		sc.CORSOrigin, _ = flags.GetString("cors-origin")
	}
	if flags.Changed("max-body-kb") {
		sc.MaxBodyKB, _ = flags.GetInt("max-body-kb")
	}
	if flags.Changed("timeout") {
		sc.TimeoutSec, _ = flags.GetInt("timeout")
	}
	if flags.Changed("shutdown-timeout") {
		sc.ShutdownTimeout, _ = flags.GetInt("shutdown-timeout")
	}

	// Rate limiting
	if flags.Changed("rate-limit-enabled") {
		sc.RateLimitEnabled, _ = flags.GetBool("rate-limit-enabled")
	}
	if flags.Changed("requests-per-second") {
		sc.RequestsPerSecond, _ = flags.GetFloat64("requests-per-second")
	}
	if flags.Changed("burst") {
		sc.Burst, _ = flags.GetInt("burst")
	}
	if flags.Changed("requests-per-hour") {
		sc.RequestsPerHour, _ = flags.GetInt("requests-per-hour")
	}
	if flags.Changed("max-requests-per-day") {
		sc.MaxRequestsPerDay, _ = flags.GetInt("max-requests-per-day")
	}
	if flags.Changed("max-data-per-day") {
		sc.MaxDataPerDay, _ = flags.GetInt64("max-data-per-day")
	}

	return server.Config{
		Host:       sc.Host,
		Port:       sc.Port,
		CORSOrigin: sc.CORSOrigin,
		MaxBodyKB:  int64(sc.MaxBodyKB),
		TimeoutSec: sc.TimeoutSec,
		Estimation: cfg.ToEstimateConfig(),
		RateLimit: server.RateLimitConfig{
			Enabled:           sc.RateLimitEnabled,
			RequestsPerSecond: sc.RequestsPerSecond,
			Burst:             sc.Burst,
			RequestsPerHour:   sc.RequestsPerHour,
			MaxRequestsPerDay: sc.MaxRequestsPerDay,
			MaxDataPerDay:     sc.MaxDataPerDay,
		},
		Logger: slog.Default(),
	}, sc.ShutdownTimeout
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringP("host", "H", "localhost", "server host")
	serveCmd.Flags().IntP("port", "p", 8080, "server port")
	serveCmd.Flags().String("cors-origin", "*", "CORS allowed origins")
	serveCmd.Flags().Int("max-body-kb", 4096, "maximum request body size in KiB")
	serveCmd.Flags().Int("timeout", 30, "request timeout in seconds")
	serveCmd.Flags().Int("shutdown-timeout", 10, "shutdown timeout in seconds")
	// Rate limiting flags
	serveCmd.Flags().Bool("rate-limit-enabled", false, "enable rate limiting")
	serveCmd.Flags().Float64("requests-per-second", 10, "sustained requests per second per client")
	serveCmd.Flags().Int("burst", 20, "burst size per client")
	serveCmd.Flags().Int("requests-per-hour", 1000, "maximum requests per hour per client")
	serveCmd.Flags().Int("max-requests-per-day", 5000, "maximum requests per day per client")
	serveCmd.Flags().Int64("max-data-per-day", 100*1024*1024, "maximum data processed per day per client (bytes)")
}
