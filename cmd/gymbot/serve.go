package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/franz/gym-league/internal/store"
	"github.com/franz/gym-league/internal/util"
	"github.com/franz/gym-league/internal/web"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Reconcile the database and serve the league dashboard",
	Long: `Open the league database, bring its schema in line with the declared one
and serve the read-only dashboard API until interrupted.

With --fix-database the whole file is rebuilt first: the original is backed
up next to it, every table is copied into a fresh file with the declared
schema, and the fresh file replaces the original.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().Bool("fix-database", false, "rebuild the database file before serving")
	serveCmd.Flags().String(util.KeyWebHost, "localhost", "dashboard listen host")
	serveCmd.Flags().Int(util.KeyWebPort, 3000, "dashboard listen port")

	viper.BindPFlag(util.KeyWebHost, serveCmd.Flags().Lookup(util.KeyWebHost))
	viper.BindPFlag(util.KeyWebPort, serveCmd.Flags().Lookup(util.KeyWebPort))
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fix, _ := cmd.Flags().GetBool("fix-database")

	s, closeStore, err := openStore(ctx, !fix)
	if err != nil {
		return err
	}
	defer closeStore()

	if fix {
		if err := fixDatabase(ctx, s); err != nil {
			return err
		}
	}

	util.SuccessLog("Database ready (%s)", s.Path())
	return web.NewServer(s, util.GetWebHost(), util.GetWebPort()).Run(ctx)
}

// fixDatabase runs a file-level rebuild followed by one reconciliation pass
func fixDatabase(ctx context.Context, s *store.Store) error {
	res, err := s.QuickFix(ctx)
	if err != nil {
		if res.Backup != "" {
			util.ErrorLog("Original database backed up to %s", res.Backup)
		}
		return fmt.Errorf("failed to fix database: %w", err)
	}
	util.InfoLog("Backup kept at %s", res.Backup)
	for table, rows := range res.Copied {
		util.DebugLog("  %s: %d rows", table, rows)
	}

	if _, err := s.Reconcile(ctx); err != nil {
		return fmt.Errorf("reconciliation after fix failed: %w", err)
	}
	return nil
}
