package services

import (
	"slices"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ledger/internal/core"
)

func recurringTemplate(freq core.RecurringFrequency, anchor core.Date) core.Transaction {
	return core.Transaction{
		ID:                 uuid.MustParse("6f1c1d1e-0000-4000-8000-000000000001"),
		Amount:             decimal.NewFromInt(30),
		Title:              "subscription",
		Date:               anchor,
		CategoryID:         uuid.New(),
		Type:               core.ExpenseTransaction,
		IsRecurring:        true,
		RecurringFrequency: freq,
	}
}

func dates(t *testing.T, txn core.Transaction, from, to core.Date) []string {
	t.Helper()
	seq, err := Resolver{}.Occurrences(txn, from, to)
	require.NoError(t, err)
	var out []string
	for occ := range seq {
		out = append(out, occ.Date.String())
	}
	return out
}

func TestOccurrencesPerFrequency(t *testing.T) {
	tests := []struct {
		name     string
		freq     core.RecurringFrequency
		anchor   core.Date
		from, to core.Date
		want     []string
	}{
		{
			name:   "daily",
			freq:   core.Daily,
			anchor: core.NewDate(2024, 2, 27),
			from:   core.NewDate(2024, 2, 28),
			to:     core.NewDate(2024, 3, 1),
			want:   []string{"2024-02-28", "2024-02-29", "2024-03-01"},
		},
		{
			name:   "weekly",
			freq:   core.Weekly,
			anchor: core.NewDate(2024, 1, 1),
			from:   core.NewDate(2024, 1, 10),
			to:     core.NewDate(2024, 1, 31),
			want:   []string{"2024-01-15", "2024-01-22", "2024-01-29"},
		},
		{
			name:   "monthly clamps to month end without drift",
			freq:   core.Monthly,
			anchor: core.NewDate(2024, 1, 31),
			from:   core.NewDate(2024, 1, 1),
			to:     core.NewDate(2024, 5, 31),
			want:   []string{"2024-01-31", "2024-02-29", "2024-03-31", "2024-04-30", "2024-05-31"},
		},
		{
			name:   "monthly in a non-leap year",
			freq:   core.Monthly,
			anchor: core.NewDate(2023, 1, 31),
			from:   core.NewDate(2023, 2, 1),
			to:     core.NewDate(2023, 2, 28),
			want:   []string{"2023-02-28"},
		},
		{
			name:   "yearly leap day",
			freq:   core.Yearly,
			anchor: core.NewDate(2024, 2, 29),
			from:   core.NewDate(2024, 1, 1),
			to:     core.NewDate(2028, 12, 31),
			want:   []string{"2024-02-29", "2025-02-28", "2026-02-28", "2027-02-28", "2028-02-29"},
		},
		{
			name:   "range before anchor",
			freq:   core.Monthly,
			anchor: core.NewDate(2024, 6, 1),
			from:   core.NewDate(2024, 1, 1),
			to:     core.NewDate(2024, 5, 31),
			want:   nil,
		},
		{
			name:   "inverted range",
			freq:   core.Daily,
			anchor: core.NewDate(2024, 1, 1),
			from:   core.NewDate(2024, 3, 1),
			to:     core.NewDate(2024, 2, 1),
			want:   nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, dates(t, recurringTemplate(tt.freq, tt.anchor), tt.from, tt.to))
		})
	}
}

func TestOccurrencesAreDeterministicAndRestartable(t *testing.T) {
	tmpl := recurringTemplate(core.Weekly, core.NewDate(2024, 1, 3))
	seq, err := Resolver{}.Occurrences(tmpl, core.NewDate(2024, 1, 1), core.NewDate(2024, 3, 31))
	require.NoError(t, err)

	first := slices.Collect(seq)
	second := slices.Collect(seq)
	require.NotEmpty(t, first)
	assert.Equal(t, first, second)

	seen := make(map[uuid.UUID]bool)
	for i, occ := range first {
		assert.False(t, seen[occ.ID], "duplicate occurrence id")
		seen[occ.ID] = true
		assert.Equal(t, tmpl.ID, occ.TemplateID)
		assert.True(t, occ.IsOccurrence())
		assert.False(t, occ.IsRecurring)
		assert.Equal(t, tmpl.CategoryID, occ.CategoryID)
		assert.True(t, tmpl.Amount.Equal(occ.Amount))
		if i > 0 {
			assert.True(t, occ.Date.After(first[i-1].Date.Time), "dates must strictly increase")
		}
	}
}

func TestOccurrencesStopEarly(t *testing.T) {
	seq, err := Resolver{}.Occurrences(recurringTemplate(core.Daily, core.NewDate(2024, 1, 1)), core.NewDate(2024, 1, 1), core.NewDate(2030, 1, 1))
	require.NoError(t, err)

	n := 0
	for range seq {
		n++
		if n == 3 {
			break
		}
	}
	assert.Equal(t, 3, n)
}

func TestOccurrencesNonRecurring(t *testing.T) {
	txn := core.Transaction{ID: uuid.New(), Date: core.NewDate(2024, 5, 5), Type: core.ExpenseTransaction}

	assert.Equal(t, []string{"2024-05-05"}, dates(t, txn, core.NewDate(2024, 5, 1), core.NewDate(2024, 5, 31)))
	assert.Empty(t, dates(t, txn, core.NewDate(2024, 6, 1), core.NewDate(2024, 6, 30)))
}

func TestOccurrencesUnknownFrequency(t *testing.T) {
	_, err := Resolver{}.Occurrences(recurringTemplate("fortnightly", core.NewDate(2024, 1, 1)), core.NewDate(2024, 1, 1), core.NewDate(2024, 2, 1))
	assert.Error(t, err)
}

func TestExpandSortsByDate(t *testing.T) {
	monthly := recurringTemplate(core.Monthly, core.NewDate(2024, 1, 15))
	single := core.Transaction{ID: uuid.New(), Date: core.NewDate(2024, 2, 1), Type: core.IncomeTransaction}
	outside := core.Transaction{ID: uuid.New(), Date: core.NewDate(2023, 12, 31), Type: core.IncomeTransaction}

	got, err := Resolver{}.Expand([]core.Transaction{monthly, single, outside}, core.NewDate(2024, 1, 1), core.NewDate(2024, 3, 31))
	require.NoError(t, err)

	var ds []string
	for _, txn := range got {
		ds = append(ds, txn.Date.String())
	}
	assert.Equal(t, []string{"2024-01-15", "2024-02-01", "2024-02-15", "2024-03-15"}, ds)
}
