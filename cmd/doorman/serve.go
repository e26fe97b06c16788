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

	"github.com/aretw0/doorman"
	"github.com/aretw0/doorman/internal/presentation/tui"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 5 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the webhook server",
	Long: `Starts the HTTP server Twilio calls for every turn of a call.

Routes: the webhook endpoint (GET/POST), /health, /metrics and static assets.
Send SIGHUP to reload the scripts file without dropping calls in progress.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		flags := cmd.Flags()
		if flags.Changed("port") {
			cfg.Port, _ = flags.GetInt("port")
		}
		if flags.Changed("host") {
			cfg.Host, _ = flags.GetString("host")
		}
		if flags.Changed("endpoint") {
			cfg.Endpoint, _ = flags.GetString("endpoint")
		}
		if flags.Changed("assets") {
			cfg.AssetPath, _ = flags.GetString("assets")
		}
		if flags.Changed("store") {
			cfg.Store, _ = flags.GetString("store")
		}
		if dev, _ := flags.GetBool("dev"); dev {
			cfg.Env = "development"
		}

		logger, err := newLogger(cfg)
		if err != nil {
			return err
		}

		app, err := doorman.New(cfg, doorman.WithLogger(logger))
		if err != nil {
			return err
		}
		defer app.Close()

		srv := &http.Server{
			Addr:              cfg.Addr(),
			Handler:           app.Handler(),
			ReadHeaderTimeout: 10 * time.Second,
		}

		if quiet, _ := flags.GetBool("quiet"); !quiet {
			tui.PrintBanner(os.Stderr, doorman.Version)
		}
		if cfg.Development() {
			logger.Warn("Development mode: webhook authenticity checks are disabled")
		}

		// Channel to listen for errors coming from the listener.
		serverErrors := make(chan error, 1)

		go func() {
			logger.Info("Doorman running", "addr", srv.Addr, "endpoint", cfg.Endpoint, "store", cfg.Store)
			serverErrors <- srv.ListenAndServe()
		}()

		// Channel to listen for interrupt, terminate and reload signals.
		signals := make(chan os.Signal, 1)
		signal.Notify(signals, os.Interrupt, syscall.SIGTERM, syscall.SIGHUP)
		defer signal.Stop(signals)

		for {
			select {
			case err := <-serverErrors:
				if errors.Is(err, http.ErrServerClosed) {
					return nil
				}
				return fmt.Errorf("server error: %w", err)

			case sig := <-signals:
				if sig == syscall.SIGHUP {
					if err := app.Reload(); err != nil {
						logger.Error("Failed to reload scripts", "err", err)
					} else {
						logger.Info("Scripts reloaded")
					}
					continue
				}

				logger.Info("Start shutdown", "signal", sig.String())

				// Give outstanding requests a deadline for completion.
				ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
				defer cancel()

				if err := srv.Shutdown(ctx); err != nil {
					logger.Error("Graceful shutdown did not complete", "timeout", shutdownTimeout, "err", err)
					if err := srv.Close(); err != nil {
						return fmt.Errorf("error killing server: %w", err)
					}
				}
				logger.Info("Doorman stopped gracefully")
				return nil
			}
		}
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().IntP("port", "p", 8080, "Port to listen on (env DOORMAN_PORT)")
	serveCmd.Flags().String("host", "", "Interface to listen on (env DOORMAN_HOST)")
	serveCmd.Flags().String("endpoint", "/twilio", "Webhook path (env DOORMAN_ENDPOINT)")
	serveCmd.Flags().String("assets", "./assets", "Static assets directory (env DOORMAN_ASSET_PATH)")
	serveCmd.Flags().String("store", "memory", "Session store: memory, file or redis (env DOORMAN_STORE)")
	serveCmd.Flags().Bool("dev", false, "Development mode: skip webhook authenticity checks")
	serveCmd.Flags().BoolP("quiet", "q", false, "Do not print the banner")
}
