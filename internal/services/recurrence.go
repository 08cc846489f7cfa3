// Package services provides the ledger computations and orchestration.
//
// This file implements the Strategy Pattern for recurring transaction
// expansion. Each frequency (daily, weekly, monthly, yearly) has its own
// stepper that encapsulates how the k-th occurrence is derived from the
// template's anchor date.

package services

import (
	"fmt"
	"iter"
	"slices"
	"time"

	"github.com/google/uuid"

	"ledger/internal/core"
)

// Stepper is the strategy interface for placing occurrences of a template.
type Stepper interface {
	// Step returns the k-th occurrence date (k = 0 is the anchor itself).
	// It is computed from the anchor, never from the previous occurrence, so
	// month-end clamping does not drift.
	Step(anchor core.Date, k int) core.Date

	// FirstIndex returns an index whose occurrence is not after from. It lets
	// the resolver skip ahead without missing an occurrence.
	FirstIndex(anchor, from core.Date) int
}

// DailyStepper steps one calendar day at a time.
type DailyStepper struct{}

func (DailyStepper) Step(anchor core.Date, k int) core.Date { return anchor.AddDays(k) }

func (DailyStepper) FirstIndex(anchor, from core.Date) int {
	return max(0, daysBetween(anchor, from))
}

// WeeklyStepper steps seven days at a time.
type WeeklyStepper struct{}

func (WeeklyStepper) Step(anchor core.Date, k int) core.Date { return anchor.AddDays(7 * k) }

func (WeeklyStepper) FirstIndex(anchor, from core.Date) int {
	return max(0, daysBetween(anchor, from)/7)
}

// MonthlyStepper steps one calendar month at a time, clamping to the last day
// of shorter months.
type MonthlyStepper struct{}

func (MonthlyStepper) Step(anchor core.Date, k int) core.Date { return anchor.AddMonthsClamped(k) }

func (MonthlyStepper) FirstIndex(anchor, from core.Date) int {
	return max(0, core.MonthsBetween(anchor, from)-1)
}

// YearlyStepper steps one calendar year at a time; Feb 29 anchors land on
// Feb 28 in non-leap years.
type YearlyStepper struct{}

func (YearlyStepper) Step(anchor core.Date, k int) core.Date { return anchor.AddYearsClamped(k) }

func (YearlyStepper) FirstIndex(anchor, from core.Date) int {
	return max(0, from.Year()-anchor.Year()-1)
}

func daysBetween(a, b core.Date) int {
	return int(b.Sub(a.Time) / (24 * time.Hour))
}

// steppers maps frequencies to their stepping strategy.
var steppers = map[core.RecurringFrequency]Stepper{
	core.Daily:   DailyStepper{},
	core.Weekly:  WeeklyStepper{},
	core.Monthly: MonthlyStepper{},
	core.Yearly:  YearlyStepper{},
}

// GetStepper returns the stepper for a frequency.
func GetStepper(frequency core.RecurringFrequency) (Stepper, error) {
	s, ok := steppers[frequency]
	if !ok {
		return nil, fmt.Errorf("unknown recurring frequency: %q", frequency)
	}
	return s, nil
}

// Resolver expands recurring templates into concrete occurrences. It holds no
// state and is safe for concurrent use.
type Resolver struct{}

// Occurrences returns the occurrences of t dated within [from, to].
//
// The sequence is lazy, finite and restartable: ranging over it again yields
// the same values. Occurrences share the template's category, amount and type;
// each gets a deterministic ID derived from the template ID and its date. A
// non-recurring transaction yields itself when its date is in range. An
// inverted range yields nothing.
func (Resolver) Occurrences(t core.Transaction, from, to core.Date) (iter.Seq[core.Transaction], error) {
	if !t.IsRecurring {
		return func(yield func(core.Transaction) bool) {
			if !from.After(to.Time) && t.Date.Between(from, to) {
				yield(t)
			}
		}, nil
	}

	stepper, err := GetStepper(t.RecurringFrequency)
	if err != nil {
		return nil, err
	}
	anchor := t.Date

	return func(yield func(core.Transaction) bool) {
		if from.After(to.Time) {
			return
		}
		for k := stepper.FirstIndex(anchor, from); ; k++ {
			d := stepper.Step(anchor, k)
			if d.After(to.Time) {
				return
			}
			if d.Before(from.Time) {
				continue
			}
			if !yield(occurrence(t, d)) {
				return
			}
		}
	}, nil
}

// Expand resolves every transaction over [from, to] and returns the result
// sorted by date. Non-recurring transactions outside the range are dropped.
func (r Resolver) Expand(transactions []core.Transaction, from, to core.Date) ([]core.Transaction, error) {
	var out []core.Transaction
	for _, t := range transactions {
		seq, err := r.Occurrences(t, from, to)
		if err != nil {
			return nil, fmt.Errorf("expand transaction %s: %w", t.ID, err)
		}
		out = slices.AppendSeq(out, seq)
	}
	slices.SortStableFunc(out, func(a, b core.Transaction) int {
		if c := a.Date.Compare(b.Date.Time); c != 0 {
			return c
		}
		return slices.Compare(a.ID[:], b.ID[:])
	})
	return out, nil
}

func occurrence(template core.Transaction, on core.Date) core.Transaction {
	occ := template
	occ.ID = uuid.NewSHA1(template.ID, []byte(on.String()))
	occ.Date = on
	occ.IsRecurring = false
	occ.RecurringFrequency = ""
	occ.TemplateID = template.ID
	return occ
}
