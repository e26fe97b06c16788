package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/aretw0/doorman/internal/config"
	"github.com/aretw0/doorman/internal/logging"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "doorman",
	Short: "Doorman answers phone calls with scripted call trees",
	Long: `Doorman is a telephony webhook server. Each caller id maps to a script of
steps (say, play, sendDigits, sendSms, forwardCall, gatherDigits, hangUp) that
is played back one webhook turn at a time.

Configuration is read from DOORMAN_* environment variables; flags override them.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	// Persistent flags (available to all commands)
	rootCmd.PersistentFlags().String("scripts", "", "Caller scripts file, YAML or JSON (env DOORMAN_SCRIPTS)")
	rootCmd.PersistentFlags().String("log-level", "", "Log level: debug, info, warn, error (env DOORMAN_LOG_LEVEL)")
}

// loadConfig reads the environment and applies the flags the user set.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return config.Config{}, err
	}

	flags := cmd.Flags()
	if flags.Changed("scripts") {
		cfg.ScriptsPath, _ = flags.GetString("scripts")
	}
	if flags.Changed("log-level") {
		cfg.LogLevel, _ = flags.GetString("log-level")
	}
	return cfg, nil
}

func newLogger(cfg config.Config) (*slog.Logger, error) {
	level, err := logging.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	return logging.New(level), nil
}
