// Package cli implements the tdbctl command-line interface with cobra.
// It loads the YAML config, installs a pterm-backed slog logger and wires
// profiles, the keychain and the tdb client into subcommands.
package cli

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/LLIEPJIOK/tdb-client/internal/config"
	"github.com/LLIEPJIOK/tdb-client/internal/logging"
)

var (
	configPath string
	logLevel   string

	cfg    = config.Default()
	logger = slog.Default()
)

// rootCmd is the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:           "tdbctl",
	Short:         "Client for TDB servers over authenticated websocket connections",
	Long:          `tdbctl opens authenticated websocket connections to TDB servers and sends insert, select, update and delete requests over them.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load(configPath)
		if err != nil {
			return err
		}

		level := c.LogLevel
		if logLevel != "" {
			level = logLevel
		}

		l, err := logging.NewLogger(os.Stderr, level)
		if err != nil {
			return err
		}

		cfg = c
		logger = l
		slog.SetDefault(l)

		return nil
	},
}

// Execute runs the CLI and exits non-zero on failure.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	err := rootCmd.ExecuteContext(ctx)
	stop()

	if err != nil {
		logging.PrintError("tdbctl", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default $XDG_CONFIG_HOME/tdbctl/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error (overrides config)")
}
