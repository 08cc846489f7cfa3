package main

import (
	"fmt"
	"os"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"ledger/internal/log"
	"ledger/internal/seed"
)

func seedCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Replace the ledger with generated sample data",
		Long: `Clear every transaction, budget, goal and category, then generate a
fresh sample ledger: twelve categories, several months of history with a few
recurring transactions, one budget per expense category and five goals.`,
		Args: cobra.NoArgs,
		RunE: runSeed,
	}

	cmd.Flags().Uint64("seed", 0, "random seed for reproducible data (default from config, 0 for random)")
	cmd.Flags().Int("months", 0, "months of history to generate (default from config)")
	cmd.Flags().Bool("quiet", false, "do not show progress")

	return cmd
}

func runSeed(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	store, err := app.Store(ctx)
	if err != nil {
		return err
	}

	randomSeed := app.Config.RandomSeed
	if cmd.Flags().Changed("seed") {
		randomSeed, _ = cmd.Flags().GetUint64("seed")
	}
	months := app.Config.SeedMonths
	if cmd.Flags().Changed("months") {
		months, _ = cmd.Flags().GetInt("months")
	}
	quiet, _ := cmd.Flags().GetBool("quiet")

	opts := []seed.GeneratorOption{seed.WithMonths(months)}
	if randomSeed != 0 {
		opts = append(opts, seed.WithSeed(randomSeed))
	}
	gen := seed.NewGenerator(opts...)

	total := 0
	for _, n := range gen.ExpectedCounts() {
		total += n
	}
	var bar *progressbar.ProgressBar
	if !quiet {
		bar = progressbar.NewOptions(total,
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionEnableColorCodes(true),
			progressbar.OptionShowCount(),
			progressbar.OptionSetWidth(40),
			progressbar.OptionSetDescription("[cyan]Seeding[reset]"),
			progressbar.OptionOnCompletion(func() { fmt.Fprintln(os.Stderr) }),
		)
	}

	pipeline := seed.NewPipeline(store, gen,
		seed.WithLogger(app.Logger),
		seed.WithObserver(func(tr seed.Transition) {
			if bar == nil {
				return
			}
			bar.Describe(fmt.Sprintf("[cyan]%s[reset]", tr.To))
			if tr.Count > 0 {
				if err := bar.Add(tr.Count); err != nil {
					app.Logger.Warn("Failed to update progress bar", log.FieldError, err)
				}
			}
		}),
	)

	report, err := pipeline.Run(ctx)
	if err != nil {
		if bar != nil {
			_ = bar.Exit()
		}
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), renderSeedReport(report))
	return nil
}
