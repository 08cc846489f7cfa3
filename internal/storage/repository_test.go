package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ledger/internal/core"
)

var _ Store = (*SQLiteRepository)(nil)
var _ UserRecorder = (*SQLiteRepository)(nil)

func newTestRepository(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "data", "ledger.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })
	return repo
}

func seedCategory(t *testing.T, ctx context.Context, repo *SQLiteRepository, name string, typ core.CategoryType) core.Category {
	t.Helper()
	c, err := core.NewCategory(name, "🛒", "#ff0000", typ)
	require.NoError(t, err)
	require.NoError(t, repo.Insert(ctx, c))
	require.NoError(t, repo.Commit(ctx))
	return c
}

func TestMigrationsApplied(t *testing.T) {
	repo := newTestRepository(t)

	version, dirty, err := MigrationVersion(repo.Path())
	require.NoError(t, err)
	assert.Equal(t, uint(1), version)
	assert.False(t, dirty)
}

func TestRoundTripEntities(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepository(t)
	food := seedCategory(t, ctx, repo, "Food", core.Expense)
	created := time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)

	txn := core.Transaction{
		ID:                 uuid.New(),
		Amount:             decimal.RequireFromString("12.34"),
		Title:              "Groceries",
		Date:               core.NewDate(2024, 2, 29),
		CategoryID:         food.ID,
		Type:               core.ExpenseTransaction,
		Notes:              "weekly shop",
		IsRecurring:        true,
		RecurringFrequency: core.Weekly,
	}
	budget := core.Budget{
		ID:         uuid.New(),
		CategoryID: food.ID,
		Amount:     decimal.NewFromInt(400),
		Period:     core.QuarterlyPeriod,
		StartDate:  core.NewDate(2024, 2, 1),
		CreatedAt:  created,
	}
	goal := core.FinancialGoal{
		ID:            uuid.New(),
		Name:          "Holiday",
		TargetAmount:  decimal.NewFromInt(2000),
		CurrentAmount: decimal.RequireFromString("150.50"),
		CreatedAt:     created,
	}

	require.NoError(t, repo.Insert(ctx, txn))
	require.NoError(t, repo.Insert(ctx, budget))
	require.NoError(t, repo.Insert(ctx, goal))
	require.NoError(t, repo.Commit(ctx))

	txns, err := Transactions(ctx, repo)
	require.NoError(t, err)
	require.Len(t, txns, 1)
	assert.Equal(t, txn.ID, txns[0].ID)
	assert.True(t, txn.Amount.Equal(txns[0].Amount))
	assert.True(t, txn.Date.Equal(txns[0].Date.Time))
	assert.Equal(t, core.Weekly, txns[0].RecurringFrequency)
	assert.True(t, txns[0].IsRecurring)
	assert.Equal(t, "weekly shop", txns[0].Notes)

	budgets, err := Budgets(ctx, repo)
	require.NoError(t, err)
	require.Len(t, budgets, 1)
	assert.Equal(t, core.QuarterlyPeriod, budgets[0].Period)
	assert.True(t, budgets[0].Active())
	assert.True(t, created.Equal(budgets[0].CreatedAt))

	goals, err := Goals(ctx, repo)
	require.NoError(t, err)
	require.Len(t, goals, 1)
	assert.True(t, goals[0].TargetDate.IsZero())
	assert.True(t, goal.CurrentAmount.Equal(goals[0].CurrentAmount))
}

func TestStagedWritesAndRollback(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepository(t)
	seedCategory(t, ctx, repo, "Food", core.Expense)

	rent, err := core.NewCategory("Rent", "", "", core.Expense)
	require.NoError(t, err)
	require.NoError(t, repo.Insert(ctx, rent))

	staged, err := Categories(ctx, repo)
	require.NoError(t, err)
	assert.Len(t, staged, 2)

	require.NoError(t, repo.Rollback())

	after, err := Categories(ctx, repo)
	require.NoError(t, err)
	assert.Len(t, after, 1)
}

func TestForeignKeysRestrictCategoryDelete(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepository(t)
	food := seedCategory(t, ctx, repo, "Food", core.Expense)

	txn, err := core.NewTransaction(core.TransactionInput{
		Amount:     decimal.NewFromInt(5),
		Title:      "Bread",
		Date:       core.NewDate(2024, 3, 1),
		CategoryID: food.ID,
		Type:       core.ExpenseTransaction,
	}, core.IndexCategories([]core.Category{food}))
	require.NoError(t, err)
	require.NoError(t, repo.Insert(ctx, txn))
	require.NoError(t, repo.Commit(ctx))

	err = repo.Delete(ctx, core.KindCategory, food.ID)
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrPersistence)
	require.NoError(t, repo.Rollback())

	for _, kind := range core.ClearOrder {
		require.NoError(t, repo.DeleteAll(ctx, kind))
	}
	require.NoError(t, repo.Commit(ctx))

	cats, err := Categories(ctx, repo)
	require.NoError(t, err)
	assert.Empty(t, cats)
}

func TestUniqueConstraints(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepository(t)
	food := seedCategory(t, ctx, repo, "Food", core.Expense)

	t.Run("category name is unique within type", func(t *testing.T) {
		dup, err := core.NewCategory("food", "", "", core.Expense)
		require.NoError(t, err)
		assert.ErrorIs(t, repo.Insert(ctx, dup), core.ErrPersistence)
		require.NoError(t, repo.Rollback())

		other, err := core.NewCategory("Food", "", "", core.Income)
		require.NoError(t, err)
		require.NoError(t, repo.Insert(ctx, other))
		require.NoError(t, repo.Commit(ctx))
	})

	t.Run("one active budget per category", func(t *testing.T) {
		first := core.Budget{ID: uuid.New(), CategoryID: food.ID, Amount: decimal.NewFromInt(100),
			Period: core.MonthlyPeriod, StartDate: core.NewDate(2024, 1, 1), CreatedAt: time.Now()}
		second := first
		second.ID = uuid.New()

		require.NoError(t, repo.Insert(ctx, first))
		assert.ErrorIs(t, repo.Insert(ctx, second), core.ErrPersistence)
		require.NoError(t, repo.Rollback())
	})
}

func TestInsertRejectsOccurrence(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepository(t)

	occ := core.Transaction{ID: uuid.New(), TemplateID: uuid.New(), Type: core.ExpenseTransaction}
	assert.ErrorIs(t, repo.Insert(ctx, occ), core.ErrPersistence)
}

func TestSaveUserUpsertsAndCommits(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepository(t)

	u, err := core.NewUser("Ada", "ada@example.com", time.Now().UTC())
	require.NoError(t, err)
	require.NoError(t, repo.SaveUser(ctx, u))

	u.Email = "ada@lovelace.dev"
	require.NoError(t, repo.SaveUser(ctx, u))

	users, err := Fetch[core.User](ctx, repo, core.KindUser)
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, "ada@lovelace.dev", users[0].Email)
}
