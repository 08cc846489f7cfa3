package services

import (
	"fmt"
	"math"
	"time"

	"github.com/shopspring/decimal"

	"ledger/internal/core"
)

var hundred = decimal.NewFromInt(100)

// Aggregator computes period-to-date spend for budgets. It is stateless and
// safe for concurrent use.
type Aggregator struct {
	resolver Resolver
	now      func() time.Time
}

// NewAggregator returns an aggregator whose default reference date is today.
func NewAggregator() Aggregator {
	return Aggregator{now: time.Now}
}

// NewAggregatorAt returns an aggregator whose default reference date comes
// from now.
func NewAggregatorAt(now func() time.Time) Aggregator {
	return Aggregator{now: now}
}

// PeriodBounds returns the first and last day of the budget period that
// contains ref.
//
// Monthly periods are calendar months. Quarterly periods are three-month
// blocks aligned to the budget's start month modulo 3, so a budget starting
// in February has quarters Feb-Apr, May-Jul, Aug-Oct and Nov-Jan.
func PeriodBounds(b core.Budget, ref core.Date) (core.Date, core.Date) {
	switch b.Period {
	case core.QuarterlyPeriod:
		offset := ((int(ref.Month())-int(b.StartDate.Month()))%3 + 3) % 3
		start := core.NewDate(ref.Year(), ref.Month()-time.Month(offset), 1)
		return start, start.AddMonthsClamped(2).MonthEnd()
	default:
		return ref.MonthStart(), ref.MonthEnd()
	}
}

// Snapshot computes spent, remaining and percent used for the period of b
// containing ref. A zero ref means today.
//
// Spent sums the absolute amount of expense transactions in the budget's
// category dated inside the period, with recurring templates expanded over
// the period. Remaining may go negative; that and a zero budget amount are
// reported as warnings, never as errors.
func (a Aggregator) Snapshot(b core.Budget, transactions []core.Transaction, ref core.Date) (core.BudgetSnapshot, error) {
	if ref.IsZero() {
		ref = core.DateOf(a.clock())
	}
	start, end := PeriodBounds(b, ref)

	spent := decimal.Zero
	for _, t := range transactions {
		if t.Type != core.ExpenseTransaction || t.CategoryID != b.CategoryID {
			continue
		}
		seq, err := a.resolver.Occurrences(t, start, end)
		if err != nil {
			return core.BudgetSnapshot{}, fmt.Errorf("budget %s: %w", b.ID, err)
		}
		for occ := range seq {
			spent = spent.Add(occ.Amount.Abs())
		}
	}

	snap := core.BudgetSnapshot{
		BudgetID:     b.ID,
		CategoryID:   b.CategoryID,
		Amount:       b.Amount,
		Spent:        spent,
		Remaining:    b.Amount.Sub(spent),
		PeriodStart:  start,
		PeriodEnd:    end,
		PercentValid: !b.Amount.IsZero(),
	}

	if snap.PercentValid {
		snap.PercentUsed = spent.Div(b.Amount).Mul(hundred).InexactFloat64()
	} else {
		snap.PercentUsed = math.NaN()
		snap.Warnings = append(snap.Warnings, core.ComputationWarning{
			Code:    core.WarnZeroBudget,
			Message: "budget amount is zero, percentage undefined",
		})
	}

	if snap.OverBudget() {
		snap.Warnings = append(snap.Warnings, core.ComputationWarning{
			Code:    core.WarnOverBudget,
			Message: fmt.Sprintf("spent %s of %s for %s to %s", spent.StringFixed(2), b.Amount.StringFixed(2), start, end),
		})
	}

	return snap, nil
}

func (a Aggregator) clock() time.Time {
	if a.now == nil {
		return time.Now()
	}
	return a.now()
}
