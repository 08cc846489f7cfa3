package seed

import (
	"context"
	"strings"
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

func importFixture() (*memory.Store, core.Category, core.Category) {
	groceries := core.Category{ID: uuid.New(), Name: "Groceries", Type: core.Expense}
	salary := core.Category{ID: uuid.New(), Name: "Salary", Type: core.Income}
	return memory.NewWith(groceries, salary), groceries, salary
}

func newTestImporter(store storage.Store) *Importer {
	return NewImporter(store, nil).WithClock(func() time.Time { return testNow })
}

const payload = `{
  "transactions": [
    {"amount": 50, "date": "2024-03-02", "category": "groceries", "type": "expense", "title": "Market"},
    {"amount": "120.5", "date": "2024-03-15T09:30:00Z", "category": "Groceries", "type": "Expense"},
    {"amount": 3000, "date": "2024-03-01", "category": "Salary", "type": "income", "ignored": true},
    {"amount": 10, "date": "2024-03-05", "category": "Pets", "type": "expense"},
    {"amount": 10, "date": "2024-03-05", "type": "expense"},
    {"amount": 10, "date": "not a date", "category": "Groceries", "type": "expense"}
  ],
  "budgets": [
    {"category": "Groceries", "amount": 400, "period": "Monthly", "startDate": "2024-03-01"},
    {"category": "Groceries", "amount": 500, "period": "Quarterly"},
    {"category": "Travel", "amount": 100, "period": "Monthly"}
  ],
  "goals": [
    {"name": "Emergency Fund", "targetAmount": 10000, "currentAmount": 12000, "targetDate": "2025-01-01"},
    {"name": "Vacation", "targetAmount": 0, "currentAmount": 0}
  ]
}`

func TestImportSkipsFailedItems(t *testing.T) {
	ctx := context.Background()
	store, groceries, _ := importFixture()

	report, err := newTestImporter(store).Import(ctx, strings.NewReader(payload), ImportOptions{})
	require.NoError(t, err)

	assert.Equal(t, map[core.Kind]int{
		core.KindTransaction: 3,
		core.KindBudget:      1,
		core.KindGoal:        1,
	}, report.Committed)

	type failure struct {
		kind  core.Kind
		index int
	}
	var got []failure
	for _, f := range report.Failures {
		got = append(got, failure{f.Kind, f.Index})
	}
	assert.Equal(t, []failure{
		{core.KindTransaction, 3},
		{core.KindTransaction, 4},
		{core.KindTransaction, 5},
		{core.KindBudget, 1},
		{core.KindBudget, 2},
		{core.KindGoal, 1},
	}, got)

	assert.ErrorIs(t, report.Failures[0], core.ErrReference)
	assert.ErrorIs(t, report.Failures[1], core.ErrMissingField)
	assert.ErrorIs(t, report.Failures[2], core.ErrValidation)
	assert.ErrorIs(t, report.Failures[3], core.ErrDuplicateBudget)
	assert.ErrorIs(t, report.Failures[4], core.ErrReference)
	assert.ErrorIs(t, report.Failures[5], core.ErrInvalidAmount)

	require.Len(t, report.Warnings, 1)
	assert.Equal(t, core.WarnOverTarget, report.Warnings[0].Code)

	txns, err := storage.Transactions(ctx, store)
	require.NoError(t, err)
	for _, txn := range txns {
		if txn.Type == core.ExpenseTransaction {
			assert.Equal(t, groceries.ID, txn.CategoryID)
		}
	}
}

func TestImportResolvesSharedNamesByType(t *testing.T) {
	ctx := context.Background()
	otherExpense := core.Category{ID: uuid.New(), Name: "Other", Type: core.Expense}
	otherIncome := core.Category{ID: uuid.New(), Name: "Other", Type: core.Income}
	store := memory.NewWith(otherExpense, otherIncome)

	doc := `{"transactions": [
		{"amount": 1, "date": "2024-01-01", "category": "Other", "type": "income"},
		{"amount": 1, "date": "2024-01-01", "category": "Other", "type": "expense"}
	]}`
	report, err := newTestImporter(store).Import(ctx, strings.NewReader(doc), ImportOptions{})
	require.NoError(t, err)
	assert.Empty(t, report.Failures)

	txns, err := storage.Transactions(ctx, store)
	require.NoError(t, err)
	require.Len(t, txns, 2)
	for _, txn := range txns {
		if txn.Type == core.IncomeTransaction {
			assert.Equal(t, otherIncome.ID, txn.CategoryID)
		} else {
			assert.Equal(t, otherExpense.ID, txn.CategoryID)
		}
	}
}

func TestImportReplaceKeepsCategories(t *testing.T) {
	ctx := context.Background()
	store, groceries, _ := importFixture()
	old := core.Transaction{ID: uuid.New(), Amount: decimal.NewFromInt(9), Date: core.NewDate(2024, 1, 1), CategoryID: groceries.ID, Type: core.ExpenseTransaction}
	require.NoError(t, store.Insert(ctx, old))
	require.NoError(t, store.Commit(ctx))

	doc := `{"transactions": [{"amount": 1, "date": "2024-02-01", "category": "Groceries", "type": "expense"}]}`
	report, err := newTestImporter(store).Import(ctx, strings.NewReader(doc), ImportOptions{Replace: true})
	require.NoError(t, err)
	assert.Equal(t, 1, report.Committed[core.KindTransaction])

	counts := store.Counts()
	assert.Equal(t, 1, counts[core.KindTransaction])
	assert.Equal(t, 2, counts[core.KindCategory])
}

func TestImportCommitFailureIsFatal(t *testing.T) {
	ctx := context.Background()
	base, _, _ := importFixture()
	store := &faultyStore{Store: base, failCommitAt: 1}

	report, err := newTestImporter(store).Import(ctx, strings.NewReader(payload), ImportOptions{})
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrPersistence)
	assert.Zero(t, report.Committed[core.KindTransaction])
	assert.Zero(t, base.Counts()[core.KindTransaction])
	assert.Zero(t, base.Counts()[core.KindGoal])
}

func TestImportMalformedDocument(t *testing.T) {
	store, _, _ := importFixture()

	_, err := newTestImporter(store).Import(context.Background(), strings.NewReader(`{"transactions": [`), ImportOptions{})
	assert.ErrorIs(t, err, core.ErrValidation)
}

func TestImportRejectsNegativeAmounts(t *testing.T) {
	store, _, _ := importFixture()
	doc := `{"transactions": [{"amount": -50, "date": "2024-03-02", "category": "Groceries", "type": "expense"}]}`

	report, err := newTestImporter(store).Import(context.Background(), strings.NewReader(doc), ImportOptions{})
	require.NoError(t, err)
	require.Len(t, report.Failures, 1)
	assert.ErrorIs(t, report.Failures[0], core.ErrInvalidAmount)
}
