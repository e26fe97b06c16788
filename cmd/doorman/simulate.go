package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/aretw0/doorman/internal/presentation/tui"
	"github.com/aretw0/doorman/pkg/adapters/file"
	"github.com/aretw0/doorman/pkg/adapters/memory"
	"github.com/aretw0/doorman/pkg/domain"
	"github.com/aretw0/doorman/pkg/runner"
	"github.com/aretw0/doorman/pkg/session"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var simulateCmd = &cobra.Command{
	Use:   "simulate <caller>",
	Short: "Play a caller's script locally",
	Long: `Plays the script of <caller> from the scripts file as if Twilio were calling,
printing the TwiML of every turn and prompting for the digits to enter.

With --digits the call runs unattended over the given entries.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		logger, err := newLogger(cfg)
		if err != nil {
			return err
		}

		lookup, err := file.NewLookup(cfg.ScriptsPath)
		if err != nil {
			return err
		}

		jsonMode, _ := cmd.Flags().GetBool("json")
		to, _ := cmd.Flags().GetString("to")
		rawDigits, _ := cmd.Flags().GetString("digits")

		registry := session.NewRegistry(memory.NewStore(),
			session.WithRegistryLogger(logger),
			session.WithEndpoint(cfg.Endpoint),
		)
		call := domain.Call{ID: "SIM-" + uuid.NewString(), From: args[0], To: to}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		if cmd.Flags().Changed("digits") {
			digits, err := runner.ParseDigits(rawDigits)
			if err != nil {
				return err
			}
			r := runner.NewRunner(registry, lookup, runner.WithLogger(logger), runner.WithMaxDigits(cfg.MaxDigits))
			turns, simErr := runner.Simulate(ctx, r, call, digits)
			if jsonMode {
				enc := json.NewEncoder(os.Stdout)
				for _, t := range turns {
					if err := enc.Encode(t); err != nil {
						return err
					}
				}
			} else {
				render := renderer()
				for _, t := range turns {
					out, _ := render(runner.Summary(t))
					fmt.Println(out)
				}
			}
			return simErr
		}

		var handler runner.IOHandler
		if jsonMode {
			handler = runner.NewJSONHandler(os.Stdin, os.Stdout)
		} else {
			handler = runner.NewTextHandler(os.Stdin, os.Stdout, runner.WithTextHandlerRenderer(renderer()))
		}

		r := runner.NewRunner(registry, lookup,
			runner.WithHandler(handler),
			runner.WithLogger(logger),
			runner.WithMaxDigits(cfg.MaxDigits),
		)
		return r.Run(ctx, call)
	},
}

// renderer uses glamour on terminals and prints plain markdown otherwise.
func renderer() runner.ContentRenderer {
	if runner.IsTerminal(os.Stdout) {
		return tui.NewRenderer()
	}
	return func(s string) (string, error) { return s, nil }
}

func init() {
	rootCmd.AddCommand(simulateCmd)
	simulateCmd.Flags().String("digits", "", "Digits for successive turns, comma-separated or a JSON array")
	simulateCmd.Flags().String("to", "", "Dialed number (sender of SMS steps)")
	simulateCmd.Flags().Bool("json", false, "Emit turns as JSON lines")
}
