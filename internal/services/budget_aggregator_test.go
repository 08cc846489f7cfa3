package services

import (
	"math"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ledger/internal/core"
)

func expenseOn(cat uuid.UUID, amount string, d core.Date) core.Transaction {
	return core.Transaction{
		ID:         uuid.New(),
		Amount:     decimal.RequireFromString(amount),
		Date:       d,
		CategoryID: cat,
		Type:       core.ExpenseTransaction,
	}
}

func TestSnapshotMonthlySpend(t *testing.T) {
	food := uuid.New()
	b := core.Budget{ID: uuid.New(), CategoryID: food, Amount: decimal.NewFromInt(400), Period: core.MonthlyPeriod, StartDate: core.NewDate(2024, 1, 1)}

	txns := []core.Transaction{
		expenseOn(food, "-50", core.NewDate(2024, 3, 2)),
		expenseOn(food, "-120", core.NewDate(2024, 3, 15)),
		expenseOn(food, "-80", core.NewDate(2024, 3, 31)),
		expenseOn(food, "999", core.NewDate(2024, 2, 29)),
		expenseOn(uuid.New(), "999", core.NewDate(2024, 3, 10)),
		{ID: uuid.New(), Amount: decimal.NewFromInt(999), Date: core.NewDate(2024, 3, 10), CategoryID: food, Type: core.IncomeTransaction},
	}

	snap, err := NewAggregator().Snapshot(b, txns, core.NewDate(2024, 3, 20))
	require.NoError(t, err)

	assert.True(t, snap.Spent.Equal(decimal.NewFromInt(250)), "spent %s", snap.Spent)
	assert.True(t, snap.Remaining.Equal(decimal.NewFromInt(150)), "remaining %s", snap.Remaining)
	assert.InDelta(t, 62.5, snap.PercentUsed, 1e-9)
	assert.True(t, snap.PercentValid)
	assert.True(t, snap.Remaining.Add(snap.Spent).Equal(snap.Amount))
	assert.Equal(t, "2024-03-01", snap.PeriodStart.String())
	assert.Equal(t, "2024-03-31", snap.PeriodEnd.String())
	assert.Empty(t, snap.Warnings)
}

func TestSnapshotExpandsRecurring(t *testing.T) {
	rent := uuid.New()
	b := core.Budget{ID: uuid.New(), CategoryID: rent, Amount: decimal.NewFromInt(100), Period: core.MonthlyPeriod, StartDate: core.NewDate(2024, 1, 1)}
	weekly := expenseOn(rent, "30", core.NewDate(2024, 1, 1))
	weekly.IsRecurring = true
	weekly.RecurringFrequency = core.Weekly

	snap, err := NewAggregator().Snapshot(b, []core.Transaction{weekly}, core.NewDate(2024, 1, 10))
	require.NoError(t, err)

	// Jan 1, 8, 15, 22, 29
	assert.True(t, snap.Spent.Equal(decimal.NewFromInt(150)))
	assert.True(t, snap.Remaining.Equal(decimal.NewFromInt(-50)))
	assert.True(t, snap.OverBudget())
	require.Len(t, snap.Warnings, 1)
	assert.Equal(t, core.WarnOverBudget, snap.Warnings[0].Code)
	assert.True(t, snap.Remaining.Add(snap.Spent).Equal(snap.Amount))
}

func TestSnapshotZeroAmount(t *testing.T) {
	cat := uuid.New()
	b := core.Budget{ID: uuid.New(), CategoryID: cat, Amount: decimal.Zero, Period: core.MonthlyPeriod, StartDate: core.NewDate(2024, 1, 1)}

	snap, err := NewAggregator().Snapshot(b, []core.Transaction{expenseOn(cat, "10", core.NewDate(2024, 4, 4))}, core.NewDate(2024, 4, 1))
	require.NoError(t, err)

	assert.True(t, math.IsNaN(snap.PercentUsed))
	assert.False(t, snap.PercentValid)
	codes := make([]core.WarningCode, 0, len(snap.Warnings))
	for _, w := range snap.Warnings {
		codes = append(codes, w.Code)
	}
	assert.ElementsMatch(t, []core.WarningCode{core.WarnZeroBudget, core.WarnOverBudget}, codes)
}

func TestSnapshotDefaultsToToday(t *testing.T) {
	now := time.Date(2024, 8, 20, 9, 0, 0, 0, time.UTC)
	b := core.Budget{ID: uuid.New(), CategoryID: uuid.New(), Amount: decimal.NewFromInt(10), Period: core.MonthlyPeriod, StartDate: core.NewDate(2024, 1, 1)}

	snap, err := NewAggregatorAt(func() time.Time { return now }).Snapshot(b, nil, core.Date{})
	require.NoError(t, err)
	assert.Equal(t, "2024-08-01", snap.PeriodStart.String())
	assert.Equal(t, "2024-08-31", snap.PeriodEnd.String())
}

func TestPeriodBoundsQuarterly(t *testing.T) {
	tests := []struct {
		name      string
		start     core.Date
		ref       core.Date
		wantStart string
		wantEnd   string
	}{
		{"january start", core.NewDate(2024, 1, 1), core.NewDate(2024, 5, 10), "2024-04-01", "2024-06-30"},
		{"february start", core.NewDate(2024, 2, 1), core.NewDate(2024, 3, 31), "2024-02-01", "2024-04-30"},
		{"february start later quarter", core.NewDate(2024, 2, 1), core.NewDate(2024, 7, 1), "2024-05-01", "2024-07-31"},
		{"quarter spanning new year", core.NewDate(2024, 2, 1), core.NewDate(2025, 1, 15), "2024-11-01", "2025-01-31"},
		{"ref before start", core.NewDate(2024, 3, 1), core.NewDate(2024, 1, 20), "2023-12-01", "2024-02-29"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := core.Budget{Period: core.QuarterlyPeriod, StartDate: tt.start}
			start, end := PeriodBounds(b, tt.ref)
			assert.Equal(t, tt.wantStart, start.String())
			assert.Equal(t, tt.wantEnd, end.String())
		})
	}
}
