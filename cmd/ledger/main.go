package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"ledger/internal/cli"
	"ledger/internal/log"
)

var (
	cfgFile string
	app     *cli.App
	rootCmd = &cobra.Command{
		Use:   "ledger",
		Short: "Personal budgeting ledger",
		Long: `ledger keeps categories, transactions, budgets and savings goals in a
local store and reports how spending tracks against them.`,
		SilenceUsage:       true,
		PersistentPreRunE:  setup,
		PersistentPostRunE: teardown,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./ledger.yaml or $HOME/.config/ledger/ledger.yaml)")

	rootCmd.AddCommand(seedCmd())
	rootCmd.AddCommand(importCmd())
	rootCmd.AddCommand(reportCmd())
	rootCmd.AddCommand(loginCmd())
	rootCmd.AddCommand(categoriesCmd())
	rootCmd.AddCommand(goalsCmd())
	rootCmd.AddCommand(migrateCmd())
}

func main() {
	ctx, stop := cli.SignalContext(context.Background())
	err := rootCmd.ExecuteContext(ctx)
	stop()

	if closeErr := app.Close(); closeErr != nil && err == nil {
		err = closeErr
	}
	if err != nil {
		if cli.IsCancelled(err) {
			fmt.Fprintln(os.Stderr, "interrupted")
			os.Exit(130)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func setup(cmd *cobra.Command, _ []string) error {
	var err error
	if app, err = cli.Bootstrap(cfgFile); err != nil {
		return err
	}
	cmd.SetContext(log.WithContext(cmd.Context(), app.Logger))
	return nil
}

func teardown(_ *cobra.Command, _ []string) error {
	err := app.Close()
	app = nil
	return err
}

var errSQLiteOnly = errors.New("command requires the sqlite backend")
