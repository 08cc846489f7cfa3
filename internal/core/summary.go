package core

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// BudgetSnapshot is the spend position of a budget for one period.
type BudgetSnapshot struct {
	BudgetID     uuid.UUID
	CategoryID   uuid.UUID
	Amount       decimal.Decimal
	Spent        decimal.Decimal
	Remaining    decimal.Decimal // negative when over budget
	PercentUsed  float64         // NaN when Amount is zero
	PercentValid bool
	PeriodStart  Date
	PeriodEnd    Date
	Warnings     []ComputationWarning
}

// OverBudget reports whether spend exceeded the budget amount.
func (s BudgetSnapshot) OverBudget() bool { return s.Remaining.IsNegative() }

// GoalProgress is the tracked position of a savings goal.
type GoalProgress struct {
	GoalID              uuid.UUID
	PercentComplete     float64 // clamped to [0, 100]
	Remaining           decimal.Decimal
	ProjectedCompletion time.Time
	ProjectionAvailable bool
	OnTrack             bool
	Warnings            []ComputationWarning
}
