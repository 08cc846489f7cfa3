package main

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"ledger/internal/core"
	"ledger/internal/projection"
	"ledger/internal/services"
	"ledger/internal/storage"
)

func categoriesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "categories",
		Aliases: []string{"category"},
		Short:   "Manage income and expense categories",
	}

	cmd.AddCommand(categoriesListCmd())
	cmd.AddCommand(categoriesAddCmd())
	cmd.AddCommand(categoriesDeleteCmd())

	return cmd
}

func categoriesListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List categories by type and name",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			store, err := app.Store(ctx)
			if err != nil {
				return err
			}
			cats, err := projection.New(store, projection.Options{Logger: app.Logger}).Categories(ctx)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			var current core.CategoryType
			for _, c := range cats {
				if c.Type != current {
					current = c.Type
					fmt.Fprintln(out, titleStyle.Render(string(current)))
				}
				fmt.Fprintf(out, "  %s %-20s %s\n", c.Icon, c.Name, labelStyle.Render(c.ID.String()))
			}
			return nil
		},
	}
}

func categoriesAddCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add <name>",
		Short: "Create a category",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			typeName, _ := cmd.Flags().GetString("type")
			icon, _ := cmd.Flags().GetString("icon")
			color, _ := cmd.Flags().GetString("color")

			categoryType, err := core.ParseCategoryType(typeName)
			if err != nil {
				return err
			}
			store, err := app.Store(ctx)
			if err != nil {
				return err
			}

			c, err := services.NewLedgerService(store, app.Logger).CreateCategory(ctx, args[0], icon, color, categoryType)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), successStyle.Render(fmt.Sprintf("Created %s category %s", c.Type, c.Name)))
			return nil
		},
	}

	cmd.Flags().String("type", "expense", "category type (income or expense)")
	cmd.Flags().String("icon", "", "icon shown next to the name")
	cmd.Flags().String("color", "", "display color")

	return cmd
}

func categoriesDeleteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete <name|id>",
		Short: "Delete a category",
		Long: `Delete a category. A category still used by transactions or budgets is
only deleted when --reassign-to names a category of the same type to move
them to.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			target, _ := cmd.Flags().GetString("reassign-to")

			store, err := app.Store(ctx)
			if err != nil {
				return err
			}
			victim, err := lookupCategory(ctx, store, args[0])
			if err != nil {
				return err
			}
			var reassignTo uuid.NullUUID
			if target != "" {
				to, err := lookupCategory(ctx, store, target)
				if err != nil {
					return err
				}
				reassignTo = uuid.NullUUID{UUID: to.ID, Valid: true}
			}

			if err := services.NewLedgerService(store, app.Logger).DeleteCategory(ctx, victim.ID, reassignTo); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), successStyle.Render("Deleted category "+victim.Name))
			return nil
		},
	}

	cmd.Flags().String("reassign-to", "", "category receiving the deleted category's transactions and budgets")

	return cmd
}

// lookupCategory resolves a category by ID or by a name unique across types.
func lookupCategory(ctx context.Context, store storage.Store, ref string) (core.Category, error) {
	cats, err := storage.Categories(ctx, store)
	if err != nil {
		return core.Category{}, err
	}
	idx := core.IndexCategories(cats)

	if id, err := uuid.Parse(ref); err == nil {
		if c, ok := idx.Category(id); ok {
			return c, nil
		}
	}
	switch matches := idx.ByName(ref); len(matches) {
	case 0:
		return core.Category{}, fmt.Errorf("%w: category %q", services.ErrNotFound, ref)
	case 1:
		return matches[0], nil
	default:
		return core.Category{}, fmt.Errorf("category name %q is shared by several types, use its ID", ref)
	}
}
