package seed

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/shopspring/decimal"

	"ledger/internal/core"
)

// Fixed batch sizes of one generated run.
const (
	DefaultMonths          = 7
	ExpensesPerMonth       = 20
	IncomesPerMonth        = 2
	goalCount              = 5
	recurringTemplateCount = 3
)

// Source produces the entities of each generating stage. Transactions and
// budgets receive the categories committed by the previous stage.
type Source interface {
	Categories() ([]core.Category, error)
	Transactions(categories []core.Category) ([]core.Transaction, error)
	Budgets(categories []core.Category) ([]core.Budget, error)
	Goals() ([]core.FinancialGoal, error)
}

type categorySpec struct {
	name  string
	icon  string
	color string
	typ   core.CategoryType
}

var sampleCategories = []categorySpec{
	{"Groceries", "cart", "#4CAF50", core.Expense},
	{"Dining Out", "fork.knife", "#FF9800", core.Expense},
	{"Transportation", "car", "#2196F3", core.Expense},
	{"Utilities", "bolt", "#FFC107", core.Expense},
	{"Rent/Mortgage", "house", "#795548", core.Expense},
	{"Entertainment", "tv", "#9C27B0", core.Expense},
	{"Shopping", "bag", "#E91E63", core.Expense},
	{"Healthcare", "cross.case", "#F44336", core.Expense},
	{"Salary", "dollarsign.circle", "#009688", core.Income},
	{"Freelance", "laptopcomputer", "#3F51B5", core.Income},
	{"Investments", "chart.line.uptrend.xyaxis", "#8BC34A", core.Income},
	{"Side Hustle", "hammer", "#607D8B", core.Income},
}

var sampleGoals = []string{"Emergency Fund", "Vacation", "New Car", "Home Down Payment", "Retirement"}

// recurringSpec describes a recurring template generated on top of the
// monthly history.
type recurringSpec struct {
	title    string
	category string
	freq     core.RecurringFrequency
	minCents int64
	maxCents int64
}

var sampleRecurring = []recurringSpec{
	{"Rent", "Rent/Mortgage", core.Monthly, 90000, 150000},
	{"Streaming subscription", "Entertainment", core.Monthly, 999, 1999},
	{"Bus pass", "Transportation", core.Weekly, 1500, 3000},
}

// Generator builds synthetic ledger data. It is created per run with its own
// clock and random source, so runs never share state. Entity counts are fixed;
// only amounts, dates and IDs vary.
type Generator struct {
	now    func() time.Time
	rng    *rand.Rand
	months int
}

// GeneratorOption configures a Generator.
type GeneratorOption func(*Generator)

// WithClock sets the clock that anchors generated dates.
func WithClock(now func() time.Time) GeneratorOption {
	return func(g *Generator) { g.now = now }
}

// WithSeed makes amounts and dates reproducible.
func WithSeed(seed uint64) GeneratorOption {
	return func(g *Generator) { g.rng = rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)) }
}

// WithMonths sets how many months of history are generated, the current
// month included.
func WithMonths(n int) GeneratorOption {
	return func(g *Generator) {
		if n > 0 {
			g.months = n
		}
	}
}

func NewGenerator(opts ...GeneratorOption) *Generator {
	g := &Generator{now: time.Now, months: DefaultMonths}
	for _, opt := range opts {
		opt(g)
	}
	if g.rng == nil {
		seed := uint64(g.now().UnixNano())
		g.rng = rand.New(rand.NewPCG(seed, seed>>1))
	}
	return g
}

// ExpectedCounts returns the number of entities one run produces per kind.
func (g *Generator) ExpectedCounts() map[core.Kind]int {
	expense := 0
	for _, c := range sampleCategories {
		if c.typ == core.Expense {
			expense++
		}
	}
	return map[core.Kind]int{
		core.KindCategory:    len(sampleCategories),
		core.KindTransaction: g.months*(ExpensesPerMonth+IncomesPerMonth) + recurringTemplateCount,
		core.KindBudget:      expense,
		core.KindGoal:        goalCount,
	}
}

// Categories implements Source.
func (g *Generator) Categories() ([]core.Category, error) {
	out := make([]core.Category, 0, len(sampleCategories))
	for _, spec := range sampleCategories {
		c, err := core.NewCategory(spec.name, spec.icon, spec.color, spec.typ)
		if err != nil {
			return nil, fmt.Errorf("category %q: %w", spec.name, err)
		}
		out = append(out, c)
	}
	return out, nil
}

// Transactions implements Source. Each month gets a fixed number of expenses
// and incomes on random days; the current month never goes past today.
func (g *Generator) Transactions(categories []core.Category) ([]core.Transaction, error) {
	idx := core.IndexCategories(categories)
	expenses, incomes := split(categories)
	if len(expenses) == 0 || len(incomes) == 0 {
		return nil, errors.New("generating transactions needs at least one expense and one income category")
	}

	today := core.DateOf(g.now())
	out := make([]core.Transaction, 0, g.ExpectedCounts()[core.KindTransaction])

	for m := -(g.months - 1); m <= 0; m++ {
		month := today.AddMonthsClamped(m).MonthStart()
		lastDay := 28
		if m == 0 {
			lastDay = min(lastDay, today.Day())
		}

		for i := range ExpensesPerMonth + IncomesPerMonth {
			cat := pick(g.rng, expenses)
			lo, hi := int64(2000), int64(50000)
			if i >= ExpensesPerMonth {
				cat = pick(g.rng, incomes)
				lo, hi = 100000, 500000
			}
			t, err := core.NewTransaction(core.TransactionInput{
				Amount:     g.amount(lo, hi),
				Title:      cat.Name,
				Date:       month.AddDays(g.rng.IntN(lastDay)),
				CategoryID: cat.ID,
				Type:       core.TransactionTypeFor(cat.Type),
			}, idx)
			if err != nil {
				return nil, err
			}
			out = append(out, t)
		}
	}

	anchor := today.AddMonthsClamped(-(g.months - 1)).MonthStart()
	for _, spec := range sampleRecurring {
		cat, ok := byName(categories, spec.category, core.Expense)
		if !ok {
			cat = pick(g.rng, expenses)
		}
		t, err := core.NewTransaction(core.TransactionInput{
			Amount:             g.amount(spec.minCents, spec.maxCents),
			Title:              spec.title,
			Date:               anchor.AddDays(g.rng.IntN(28)),
			CategoryID:         cat.ID,
			Type:               core.ExpenseTransaction,
			IsRecurring:        true,
			RecurringFrequency: spec.freq,
		}, idx)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}

// Budgets implements Source: one budget per expense category, starting this
// month.
func (g *Generator) Budgets(categories []core.Category) ([]core.Budget, error) {
	idx := core.IndexCategories(categories)
	expenses, _ := split(categories)
	start := core.DateOf(g.now()).MonthStart()
	periods := []core.BudgetPeriod{core.MonthlyPeriod, core.QuarterlyPeriod}

	out := make([]core.Budget, 0, len(expenses))
	for _, cat := range expenses {
		b, err := core.NewBudget(core.BudgetInput{
			CategoryID: cat.ID,
			Amount:     g.amount(30000, 200000),
			Period:     pick(g.rng, periods),
			StartDate:  start,
			CreatedAt:  g.now().UTC(),
		}, idx)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, nil
}

// Goals implements Source. Goals are backdated so that a contribution rate
// exists, and never start above target.
func (g *Generator) Goals() ([]core.FinancialGoal, error) {
	now := g.now().UTC()
	out := make([]core.FinancialGoal, 0, len(sampleGoals))
	for _, name := range sampleGoals {
		target := g.amount(500000, 5000000)
		current := decimal.New(g.rng.Int64N(target.Mul(decimal.NewFromInt(100)).IntPart()+1), -2)
		goal, err := core.NewGoal(core.GoalInput{
			Name:          name,
			TargetAmount:  target,
			CurrentAmount: current,
			TargetDate:    core.DateOf(now).AddYearsClamped(1 + g.rng.IntN(3)),
			CreatedAt:     now.AddDate(0, 0, -(30 + g.rng.IntN(336))),
		})
		if err != nil {
			return nil, err
		}
		out = append(out, goal)
	}
	return out, nil
}

// amount returns a random amount in [lo, hi] cents.
func (g *Generator) amount(lo, hi int64) decimal.Decimal {
	return decimal.New(lo+g.rng.Int64N(hi-lo+1), -2)
}

func split(categories []core.Category) (expenses, incomes []core.Category) {
	for _, c := range categories {
		if c.Type == core.Income {
			incomes = append(incomes, c)
		} else {
			expenses = append(expenses, c)
		}
	}
	return expenses, incomes
}

func byName(categories []core.Category, name string, typ core.CategoryType) (core.Category, bool) {
	for _, c := range categories {
		if c.Name == name && c.Type == typ {
			return c, true
		}
	}
	return core.Category{}, false
}

func pick[T any](rng *rand.Rand, items []T) T {
	return items[rng.IntN(len(items))]
}
