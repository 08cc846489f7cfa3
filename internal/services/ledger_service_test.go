package services

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ledger/internal/core"
	"ledger/internal/storage"
	"ledger/internal/storage/memory"
)

var fixedNow = time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)

func newTestLedger(t *testing.T) (*LedgerService, *memory.Store) {
	t.Helper()
	store := memory.New()
	return NewLedgerService(store, nil).WithClock(func() time.Time { return fixedNow }), store
}

func mustCategory(t *testing.T, svc *LedgerService, name string, typ core.CategoryType) core.Category {
	t.Helper()
	c, err := svc.CreateCategory(context.Background(), name, "", "", typ)
	require.NoError(t, err)
	return c
}

func mustExpense(t *testing.T, svc *LedgerService, cat core.Category, amount int64) core.Transaction {
	t.Helper()
	txn, err := svc.AddTransaction(context.Background(), core.TransactionInput{
		Amount:     decimal.NewFromInt(amount),
		Title:      "purchase",
		Date:       core.NewDate(2024, 6, 1),
		CategoryID: cat.ID,
		Type:       core.ExpenseTransaction,
	})
	require.NoError(t, err)
	return txn
}

func TestCreateCategoryUniqueWithinType(t *testing.T) {
	ctx := context.Background()
	svc, store := newTestLedger(t)
	mustCategory(t, svc, "Food", core.Expense)

	_, err := svc.CreateCategory(ctx, "  food ", "", "", core.Expense)
	assert.ErrorIs(t, err, core.ErrValidation)
	assert.ErrorIs(t, err, core.ErrDuplicateCategory)

	_, err = svc.CreateCategory(ctx, "Food", "", "", core.Income)
	assert.NoError(t, err)

	_, err = svc.CreateCategory(ctx, "", "", "", core.Income)
	assert.ErrorIs(t, err, core.ErrEmptyName)

	assert.Equal(t, 2, store.Counts()[core.KindCategory])
}

func TestAddTransaction(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestLedger(t)
	food := mustCategory(t, svc, "Food", core.Expense)

	tests := []struct {
		name   string
		in     core.TransactionInput
		target error
	}{
		{
			name:   "unknown category",
			in:     core.TransactionInput{Amount: decimal.NewFromInt(1), Date: core.NewDate(2024, 1, 1), CategoryID: uuid.New(), Type: core.ExpenseTransaction},
			target: core.ErrReference,
		},
		{
			name:   "type mismatch",
			in:     core.TransactionInput{Amount: decimal.NewFromInt(1), Date: core.NewDate(2024, 1, 1), CategoryID: food.ID, Type: core.IncomeTransaction},
			target: core.ErrTypeMismatch,
		},
		{
			name:   "negative amount",
			in:     core.TransactionInput{Amount: decimal.NewFromInt(-1), Date: core.NewDate(2024, 1, 1), CategoryID: food.ID, Type: core.ExpenseTransaction},
			target: core.ErrInvalidAmount,
		},
		{
			name:   "frequency without recurring flag",
			in:     core.TransactionInput{Amount: decimal.NewFromInt(1), Date: core.NewDate(2024, 1, 1), CategoryID: food.ID, Type: core.ExpenseTransaction, RecurringFrequency: core.Monthly},
			target: core.ErrFrequencyMismatch,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.AddTransaction(ctx, tt.in)
			assert.ErrorIs(t, err, tt.target)
		})
	}

	txn := mustExpense(t, svc, food, 12)
	stored, err := storage.Transactions(ctx, svc.store)
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, txn.ID, stored[0].ID)
}

func TestAddBudgetRejectsSecondActive(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestLedger(t)
	food := mustCategory(t, svc, "Food", core.Expense)

	in := core.BudgetInput{CategoryID: food.ID, Amount: decimal.NewFromInt(400), Period: core.MonthlyPeriod, StartDate: core.NewDate(2024, 1, 1)}
	b, err := svc.AddBudget(ctx, in)
	require.NoError(t, err)
	assert.True(t, fixedNow.Equal(b.CreatedAt))

	_, err = svc.AddBudget(ctx, in)
	assert.ErrorIs(t, err, core.ErrValidation)
	assert.ErrorIs(t, err, core.ErrDuplicateBudget)
}

func TestSupersedeBudget(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestLedger(t)
	food := mustCategory(t, svc, "Food", core.Expense)

	old, err := svc.AddBudget(ctx, core.BudgetInput{CategoryID: food.ID, Amount: decimal.NewFromInt(400), Period: core.MonthlyPeriod, StartDate: core.NewDate(2024, 1, 1)})
	require.NoError(t, err)

	next, err := svc.SupersedeBudget(ctx, old.ID, core.BudgetInput{Amount: decimal.NewFromInt(500), Period: core.QuarterlyPeriod, StartDate: core.NewDate(2024, 7, 1)})
	require.NoError(t, err)
	assert.Equal(t, food.ID, next.CategoryID)

	budgets, err := storage.Budgets(ctx, svc.store)
	require.NoError(t, err)
	require.Len(t, budgets, 2)
	for _, b := range budgets {
		switch b.ID {
		case old.ID:
			assert.False(t, b.Active())
			assert.Equal(t, next.ID, b.SupersededBy.UUID)
			assert.True(t, b.Amount.Equal(decimal.NewFromInt(400)))
		case next.ID:
			assert.True(t, b.Active())
		default:
			t.Fatalf("unexpected budget %s", b.ID)
		}
	}

	_, err = svc.SupersedeBudget(ctx, old.ID, core.BudgetInput{Amount: decimal.NewFromInt(1), Period: core.MonthlyPeriod, StartDate: core.NewDate(2024, 1, 1)})
	assert.ErrorIs(t, err, core.ErrValidation)

	_, err = svc.SupersedeBudget(ctx, uuid.New(), core.BudgetInput{})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGoalContributions(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestLedger(t)

	g, warnings, err := svc.AddGoal(ctx, core.GoalInput{Name: "Bike", TargetAmount: decimal.NewFromInt(1000), CurrentAmount: decimal.NewFromInt(900)})
	require.NoError(t, err)
	assert.Empty(t, warnings)

	g, warnings, err = svc.Contribute(ctx, g.ID, decimal.NewFromInt(50))
	require.NoError(t, err)
	assert.True(t, g.CurrentAmount.Equal(decimal.NewFromInt(950)))
	assert.Empty(t, warnings)

	g, warnings, err = svc.Contribute(ctx, g.ID, decimal.NewFromInt(100))
	require.NoError(t, err)
	assert.True(t, g.CurrentAmount.Equal(decimal.NewFromInt(1050)))
	require.Len(t, warnings, 1)
	assert.Equal(t, core.WarnOverTarget, warnings[0].Code)

	_, _, err = svc.Contribute(ctx, g.ID, decimal.Zero)
	assert.ErrorIs(t, err, core.ErrInvalidAmount)

	_, _, err = svc.Contribute(ctx, uuid.New(), decimal.NewFromInt(1))
	assert.ErrorIs(t, err, ErrNotFound)

	goals, err := storage.Goals(ctx, svc.store)
	require.NoError(t, err)
	require.Len(t, goals, 1)
	assert.True(t, goals[0].CurrentAmount.Equal(decimal.NewFromInt(1050)))
}

func TestDeleteCategory(t *testing.T) {
	ctx := context.Background()

	t.Run("unreferenced category is removed", func(t *testing.T) {
		svc, store := newTestLedger(t)
		food := mustCategory(t, svc, "Food", core.Expense)

		require.NoError(t, svc.DeleteCategory(ctx, food.ID, uuid.NullUUID{}))
		assert.Zero(t, store.Counts()[core.KindCategory])
	})

	t.Run("referenced category is rejected", func(t *testing.T) {
		svc, store := newTestLedger(t)
		food := mustCategory(t, svc, "Food", core.Expense)
		mustExpense(t, svc, food, 10)

		err := svc.DeleteCategory(ctx, food.ID, uuid.NullUUID{})
		assert.ErrorIs(t, err, core.ErrReference)
		assert.Equal(t, 1, store.Counts()[core.KindCategory])
		assert.Equal(t, 1, store.Counts()[core.KindTransaction])
	})

	t.Run("reassignment must keep the type", func(t *testing.T) {
		svc, _ := newTestLedger(t)
		food := mustCategory(t, svc, "Food", core.Expense)
		salary := mustCategory(t, svc, "Salary", core.Income)
		mustExpense(t, svc, food, 10)

		err := svc.DeleteCategory(ctx, food.ID, uuid.NullUUID{UUID: salary.ID, Valid: true})
		assert.ErrorIs(t, err, core.ErrTypeMismatch)
	})

	t.Run("dependents move to the reassignment target", func(t *testing.T) {
		svc, store := newTestLedger(t)
		food := mustCategory(t, svc, "Food", core.Expense)
		groceries := mustCategory(t, svc, "Groceries", core.Expense)
		mustExpense(t, svc, food, 10)
		mustExpense(t, svc, food, 20)
		_, err := svc.AddBudget(ctx, core.BudgetInput{CategoryID: food.ID, Amount: decimal.NewFromInt(100), Period: core.MonthlyPeriod, StartDate: core.NewDate(2024, 1, 1)})
		require.NoError(t, err)
		kept, err := svc.AddBudget(ctx, core.BudgetInput{CategoryID: groceries.ID, Amount: decimal.NewFromInt(300), Period: core.MonthlyPeriod, StartDate: core.NewDate(2024, 1, 1)})
		require.NoError(t, err)

		require.NoError(t, svc.DeleteCategory(ctx, food.ID, uuid.NullUUID{UUID: groceries.ID, Valid: true}))

		assert.Equal(t, 1, store.Counts()[core.KindCategory])
		txns, err := storage.Transactions(ctx, store)
		require.NoError(t, err)
		require.Len(t, txns, 2)
		for _, txn := range txns {
			assert.Equal(t, groceries.ID, txn.CategoryID)
		}

		budgets, err := storage.Budgets(ctx, store)
		require.NoError(t, err)
		require.Len(t, budgets, 2)
		var active []core.Budget
		for _, b := range budgets {
			assert.Equal(t, groceries.ID, b.CategoryID)
			if b.Active() {
				active = append(active, b)
			}
		}
		require.Len(t, active, 1)
		assert.Equal(t, kept.ID, active[0].ID)
	})
}

func TestCancelledContextSkipsWork(t *testing.T) {
	svc, store := newTestLedger(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := svc.CreateCategory(ctx, "Food", "", "", core.Expense)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, store.Counts()[core.KindCategory])
}
