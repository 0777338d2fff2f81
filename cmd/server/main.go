// Command server runs the ezclaim API.
//
//	server serve    start the HTTP API and the audit pipeline
//	server migrate  apply the Postgres schema and exit
//
// All settings come from the environment; see internal/platform/config.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"ezclaim/internal/platform/config"
	"ezclaim/internal/platform/logger"
)

var (
	cfg config.Config
	log *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:           "server",
	Short:         "ezclaim claims reimbursement API",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		var err error
		if cfg, err = config.FromEnv(); err != nil {
			return err
		}
		log = logger.New(cfg.Log.Level, cfg.Log.Format)
		slog.SetDefault(log)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(migrateCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		if log == nil {
			log = slog.Default()
		}
		log.Error("server exited", "error", err)
		stop()
		os.Exit(1)
	}
}
