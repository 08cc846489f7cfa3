package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"ledger/internal/seed"
)

func importCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Import transactions, budgets and goals from JSON",
		Long: `Import a JSON document of the form
  {"transactions": [...], "budgets": [...], "goals": [...]}

Items reference categories by name; categories must already exist. Items
that fail validation are skipped and listed, the rest are committed.
Use "-" to read from standard input.`,
		Args: cobra.ExactArgs(1),
		RunE: runImport,
	}

	cmd.Flags().Bool("replace", false, "clear transactions, budgets and goals before importing")

	return cmd
}

func runImport(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	replace, _ := cmd.Flags().GetBool("replace")

	in := cmd.InOrStdin()
	if args[0] != "-" {
		f, err := os.Open(args[0])
		if err != nil {
			return fmt.Errorf("open import file: %w", err)
		}
		defer f.Close()
		in = f
	}

	store, err := app.Store(ctx)
	if err != nil {
		return err
	}

	report, err := seed.NewImporter(store, app.Logger).Import(ctx, in, seed.ImportOptions{Replace: replace})
	if err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), renderImportReport(report))
	return nil
}
