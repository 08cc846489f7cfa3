package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"ledger/internal/core"
	"ledger/internal/projection"
	"ledger/internal/seed"
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("86"))
	labelStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	boxStyle     = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("62")).Padding(0, 1)
)

var reportKinds = []core.Kind{core.KindCategory, core.KindTransaction, core.KindBudget, core.KindGoal}

func renderCounts(counts map[core.Kind]int) []string {
	lines := make([]string, 0, len(reportKinds))
	for _, k := range reportKinds {
		lines = append(lines, fmt.Sprintf("%s %d", labelStyle.Render(fmt.Sprintf("%-14s", k)), counts[k]))
	}
	return lines
}

func renderWarnings(warnings []core.ComputationWarning) []string {
	lines := make([]string, 0, len(warnings))
	for _, w := range warnings {
		lines = append(lines, warnStyle.Render("! "+w.String()))
	}
	return lines
}

func renderSeedReport(r seed.Report) string {
	lines := []string{titleStyle.Render("Sample ledger generated")}
	lines = append(lines, renderCounts(r.Counts)...)
	lines = append(lines, labelStyle.Render(fmt.Sprintf("took %s", r.Duration.Round(time.Millisecond))))
	return boxStyle.Render(strings.Join(lines, "\n"))
}

func renderImportReport(r seed.ImportReport) string {
	lines := []string{titleStyle.Render("Import finished")}
	lines = append(lines, renderCounts(r.Committed)...)
	if len(r.Failures) > 0 {
		lines = append(lines, "", errorStyle.Render(fmt.Sprintf("%d items skipped", len(r.Failures))))
		for _, f := range r.Failures {
			lines = append(lines, errorStyle.Render("x "+f.Error()))
		}
	}
	if len(r.Warnings) > 0 {
		lines = append(lines, "")
		lines = append(lines, renderWarnings(r.Warnings)...)
	}
	return boxStyle.Render(strings.Join(lines, "\n"))
}

func renderSummary(s projection.Summary) string {
	net := successStyle
	if s.Net.IsNegative() {
		net = errorStyle
	}
	totals := strings.Join([]string{
		titleStyle.Render(s.Ref.Format("January 2006")),
		fmt.Sprintf("%s %12s", labelStyle.Render("Income  "), core.FormatAmount(s.Income)),
		fmt.Sprintf("%s %12s", labelStyle.Render("Expenses"), core.FormatAmount(s.Expenses)),
		fmt.Sprintf("%s %s", labelStyle.Render("Net     "), net.Render(fmt.Sprintf("%12s", core.FormatAmount(s.Net)))),
	}, "\n")

	sections := []string{boxStyle.Render(totals)}
	if len(s.Budgets) > 0 {
		sections = append(sections, boxStyle.Render(renderBudgets(s.Budgets)))
	}
	if len(s.Goals) > 0 {
		sections = append(sections, boxStyle.Render(renderGoals(s.Goals)))
	}
	if len(s.Warnings) > 0 {
		sections = append(sections, strings.Join(renderWarnings(s.Warnings), "\n"))
	}
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func renderBudgets(views []projection.BudgetView) string {
	lines := []string{titleStyle.Render("Budgets")}
	for _, v := range views {
		snap := v.Snapshot
		percent := "n/a"
		if snap.PercentValid {
			percent = fmt.Sprintf("%.1f%%", snap.PercentUsed)
		}
		style := successStyle
		if snap.OverBudget() {
			style = errorStyle
		}
		lines = append(lines, fmt.Sprintf("%s %s %10s / %-10s %s",
			v.Category.Icon,
			fmt.Sprintf("%-16s", v.Category.Name),
			core.FormatAmount(snap.Spent),
			core.FormatAmount(snap.Amount),
			style.Render(percent)))
	}
	return strings.Join(lines, "\n")
}

func renderGoals(views []projection.GoalView) string {
	lines := []string{titleStyle.Render("Goals")}
	for _, v := range views {
		p := v.Progress
		projected := labelStyle.Render("no projection")
		if p.ProjectionAvailable {
			style := successStyle
			if !p.OnTrack {
				style = warnStyle
			}
			projected = style.Render("done by " + p.ProjectedCompletion.Format("2006-01-02"))
		}
		lines = append(lines, fmt.Sprintf("%-18s %10s / %-10s %6.1f%%  %s",
			v.Goal.Name,
			core.FormatAmount(v.Goal.CurrentAmount),
			core.FormatAmount(v.Goal.TargetAmount),
			p.PercentComplete,
			projected))
	}
	return strings.Join(lines, "\n")
}
