package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"ledger/internal/cache"
	"ledger/internal/core"
	"ledger/internal/log"
	"ledger/internal/projection"
)

func reportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Show the monthly summary, budgets and goals",
		Long: `Show income and expenses for the month containing --date (default
today), recurring transactions included, with the spend of every active budget
and the progress of every savings goal.`,
		Args: cobra.NoArgs,
		RunE: runReport,
	}

	cmd.Flags().String("date", "", "reference date, YYYY-MM-DD (default today)")
	cmd.Flags().Duration("watch", 0, "re-render at this interval until interrupted")

	return cmd
}

func runReport(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	var ref core.Date
	if s, _ := cmd.Flags().GetString("date"); s != "" {
		d, err := core.ParseDate(s)
		if err != nil {
			return err
		}
		ref = d
	}
	watch, _ := cmd.Flags().GetDuration("watch")

	store, err := app.Store(ctx)
	if err != nil {
		return err
	}
	projector := projection.New(store, projection.Options{
		CacheSize: app.Config.CacheSize,
		CacheTTL:  app.Config.CacheTTL,
		Logger:    app.Logger,
	})

	out := cmd.OutOrStdout()
	if watch <= 0 {
		return printSummary(ctx, out, projector, ref)
	}

	caches := cache.NewManager(app.Logger)
	caches.Register(projector.Cache())
	sweepCtx, stopSweeping := context.WithCancel(ctx)
	caches.Start(sweepCtx, watch)
	defer caches.Wait()
	defer stopSweeping()

	ticker := time.NewTicker(watch)
	defer ticker.Stop()
	for {
		if err := printSummary(ctx, out, projector, ref); err != nil {
			return err
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func printSummary(ctx context.Context, out io.Writer, p *projection.Projector, ref core.Date) error {
	start := time.Now()
	summary, err := p.Summary(ctx, ref)
	if err != nil {
		return fmt.Errorf("build report: %w", err)
	}
	log.FromContext(ctx).DebugContext(ctx, "Report rendered",
		log.FieldOperation, log.OpReport,
		log.FieldDuration, time.Since(start).Milliseconds())

	fmt.Fprintln(out, renderSummary(summary))
	return nil
}
