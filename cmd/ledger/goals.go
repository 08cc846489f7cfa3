package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"ledger/internal/core"
	"ledger/internal/services"
	"ledger/internal/storage"
)

func goalsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "goals",
		Aliases: []string{"goal"},
		Short:   "Manage savings goals",
	}

	cmd.AddCommand(goalsAddCmd())
	cmd.AddCommand(goalsContributeCmd())

	return cmd
}

func goalsAddCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add <name>",
		Short: "Create a savings goal",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			targetFlag, _ := cmd.Flags().GetString("target")
			currentFlag, _ := cmd.Flags().GetString("current")
			byFlag, _ := cmd.Flags().GetString("by")

			in := core.GoalInput{Name: args[0]}
			var err error
			if in.TargetAmount, err = core.ParseAmount(targetFlag); err != nil {
				return err
			}
			if in.CurrentAmount, err = core.ParseAmount(currentFlag); err != nil {
				return err
			}
			if byFlag != "" {
				if in.TargetDate, err = core.ParseDate(byFlag); err != nil {
					return err
				}
			}

			store, err := app.Store(ctx)
			if err != nil {
				return err
			}
			goal, warnings, err := services.NewLedgerService(store, app.Logger).AddGoal(ctx, in)
			if err != nil {
				return err
			}
			printGoal(cmd, "Created goal", goal, warnings)
			return nil
		},
	}

	cmd.Flags().String("target", "", "target amount")
	cmd.Flags().String("current", "0", "amount already saved")
	cmd.Flags().String("by", "", "target date, YYYY-MM-DD")
	_ = cmd.MarkFlagRequired("target")

	return cmd
}

func goalsContributeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "contribute <name|id> <amount>",
		Short: "Add savings to a goal",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			amount, err := core.ParseAmount(args[1])
			if err != nil {
				return err
			}
			store, err := app.Store(ctx)
			if err != nil {
				return err
			}
			goal, err := lookupGoal(ctx, store, args[0])
			if err != nil {
				return err
			}

			goal, warnings, err := services.NewLedgerService(store, app.Logger).Contribute(ctx, goal.ID, amount)
			if err != nil {
				return err
			}
			printGoal(cmd, "Updated goal", goal, warnings)
			return nil
		},
	}
}

func printGoal(cmd *cobra.Command, verb string, g core.FinancialGoal, warnings []core.ComputationWarning) {
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, successStyle.Render(fmt.Sprintf("%s %s: %s of %s",
		verb, g.Name, core.FormatAmount(g.CurrentAmount), core.FormatAmount(g.TargetAmount))))
	for _, line := range renderWarnings(warnings) {
		fmt.Fprintln(out, line)
	}
}

func lookupGoal(ctx context.Context, store storage.Store, ref string) (core.FinancialGoal, error) {
	goals, err := storage.Goals(ctx, store)
	if err != nil {
		return core.FinancialGoal{}, err
	}
	id, idErr := uuid.Parse(ref)
	for _, g := range goals {
		if (idErr == nil && g.ID == id) || strings.EqualFold(g.Name, ref) {
			return g, nil
		}
	}
	return core.FinancialGoal{}, fmt.Errorf("%w: goal %q", services.ErrNotFound, ref)
}
