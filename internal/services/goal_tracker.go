package services

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"ledger/internal/core"
)

// maxProjectionDays bounds projections so they stay representable as a
// time.Duration.
const maxProjectionDays = 100 * 365

// Tracker computes goal progress and projected completion. It is stateless
// and safe for concurrent use.
type Tracker struct{}

// Progress reports how far g is from its target as of now.
//
// PercentComplete is clamped to [0, 100] even when the current amount
// exceeds the target. When a target date is set and the goal is not yet
// reached, the completion date is projected linearly from the contribution
// rate since the goal was created; a rate that is zero or negative makes the
// projection unavailable, reported as a warning.
func (Tracker) Progress(g core.FinancialGoal, now time.Time) core.GoalProgress {
	p := core.GoalProgress{
		GoalID:    g.ID,
		Remaining: decimal.Max(g.TargetAmount.Sub(g.CurrentAmount), decimal.Zero),
		Warnings:  g.Warnings(),
	}

	if g.TargetAmount.IsPositive() {
		pct := g.CurrentAmount.Div(g.TargetAmount).Mul(hundred).InexactFloat64()
		p.PercentComplete = min(100, max(0, pct))
	}

	if !g.CurrentAmount.LessThan(g.TargetAmount) {
		p.OnTrack = true
		return p
	}
	if g.TargetDate.IsZero() {
		return p
	}

	elapsedDays := now.Sub(g.CreatedAt).Hours() / 24
	if elapsedDays <= 0 || !g.CurrentAmount.IsPositive() {
		p.Warnings = append(p.Warnings, unavailable(g, "no positive contribution rate since creation"))
		return p
	}

	rate := g.CurrentAmount.InexactFloat64() / elapsedDays
	daysNeeded := p.Remaining.InexactFloat64() / rate
	if daysNeeded > maxProjectionDays {
		p.Warnings = append(p.Warnings, unavailable(g, fmt.Sprintf("completion more than %d days away", maxProjectionDays)))
		return p
	}

	p.ProjectedCompletion = now.Add(time.Duration(daysNeeded * float64(24*time.Hour)))
	p.ProjectionAvailable = true
	p.OnTrack = !core.DateOf(p.ProjectedCompletion).After(g.TargetDate.Time)
	return p
}

func unavailable(g core.FinancialGoal, reason string) core.ComputationWarning {
	return core.ComputationWarning{
		Code:    core.WarnProjectionUnavailable,
		Message: fmt.Sprintf("goal %q projection unavailable: %s", g.Name, reason),
	}
}
