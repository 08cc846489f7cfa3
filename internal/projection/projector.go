// Package projection builds the read-only views the presentation layer
// renders. Nothing computed here is written back to the store.
package projection

import (
	"cmp"
	"context"
	"fmt"
	"runtime"
	"slices"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"ledger/internal/cache"
	"ledger/internal/core"
	"ledger/internal/log"
	"ledger/internal/services"
	"ledger/internal/storage"
)

const (
	DefaultCacheSize = 256
	DefaultCacheTTL  = 10 * time.Minute
)

// Options configures a Projector. Zero values select the defaults.
type Options struct {
	CacheSize   int
	CacheTTL    time.Duration
	Concurrency int
	Now         func() time.Time
	Logger      *log.Logger
}

// BudgetView pairs an active budget with its category and current snapshot.
type BudgetView struct {
	Budget   core.Budget
	Category core.Category
	Snapshot core.BudgetSnapshot
}

// GoalView pairs a goal with its tracked progress.
type GoalView struct {
	Goal     core.FinancialGoal
	Progress core.GoalProgress
}

// Summary is the dashboard view for the month containing Ref.
type Summary struct {
	Ref      core.Date
	Income   decimal.Decimal
	Expenses decimal.Decimal
	Net      decimal.Decimal
	Budgets  []BudgetView
	Goals    []GoalView
	Warnings []core.ComputationWarning
}

// Projector computes views over the store. Recurrence expansions are memoized
// per template and range; call Invalidate after writing to the store.
type Projector struct {
	store       storage.Store
	resolver    services.Resolver
	aggregator  services.Aggregator
	tracker     services.Tracker
	expansions  *cache.LRUCache[[]core.Transaction]
	concurrency int
	now         func() time.Time
	logger      *log.Logger
}

func New(store storage.Store, opts Options) *Projector {
	if opts.CacheSize <= 0 {
		opts.CacheSize = DefaultCacheSize
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = DefaultCacheTTL
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = runtime.GOMAXPROCS(0)
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = log.Discard()
	}
	return &Projector{
		store:       store,
		aggregator:  services.NewAggregatorAt(opts.Now),
		expansions:  cache.NewLRUCacheWithClock[[]core.Transaction](opts.CacheSize, opts.CacheTTL, opts.Now),
		concurrency: opts.Concurrency,
		now:         opts.Now,
		logger:      opts.Logger.WithComponent(log.ComponentProjection),
	}
}

// Cache exposes the expansion cache for registration with a cache.Manager.
func (p *Projector) Cache() *cache.LRUCache[[]core.Transaction] { return p.expansions }

// Invalidate drops every memoized expansion.
func (p *Projector) Invalidate() { p.expansions.Purge() }

// CacheStats reports expansion cache effectiveness.
func (p *Projector) CacheStats() cache.Stats { return p.expansions.Stats() }

// Categories returns all categories ordered by type, then name.
func (p *Projector) Categories(ctx context.Context) ([]core.Category, error) {
	cats, err := storage.Categories(ctx, p.store)
	if err != nil {
		return nil, err
	}
	slices.SortFunc(cats, func(a, b core.Category) int {
		return cmp.Or(cmp.Compare(a.Type, b.Type), strings.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name)))
	})
	return cats, nil
}

// Transactions returns the stored transactions, recurring templates included,
// newest first.
func (p *Projector) Transactions(ctx context.Context) ([]core.Transaction, error) {
	txns, err := storage.Transactions(ctx, p.store)
	if err != nil {
		return nil, err
	}
	slices.SortStableFunc(txns, func(a, b core.Transaction) int { return b.Date.Compare(a.Date.Time) })
	return txns, nil
}

// Occurrences returns every transaction dated within [from, to], recurring
// templates expanded, sorted by date.
func (p *Projector) Occurrences(ctx context.Context, from, to core.Date) ([]core.Transaction, error) {
	txns, err := storage.Transactions(ctx, p.store)
	if err != nil {
		return nil, err
	}
	return p.expand(txns, from, to)
}

func (p *Projector) expand(txns []core.Transaction, from, to core.Date) ([]core.Transaction, error) {
	var out []core.Transaction
	for _, t := range txns {
		if !t.IsRecurring {
			if t.Date.Between(from, to) {
				out = append(out, t)
			}
			continue
		}

		key := expansionKey(t, from, to)
		occs, ok := p.expansions.Get(key)
		if !ok {
			var err error
			if occs, err = p.resolver.Expand([]core.Transaction{t}, from, to); err != nil {
				return nil, err
			}
			p.expansions.Set(key, occs)
		}
		out = append(out, occs...)
	}
	slices.SortStableFunc(out, func(a, b core.Transaction) int { return a.Date.Compare(b.Date.Time) })
	return out, nil
}

// expansionKey identifies a template's expansion. Template fields that shape
// the occurrences are part of the key so edited templates miss the cache.
func expansionKey(t core.Transaction, from, to core.Date) string {
	return fmt.Sprintf("%s|%s|%s|%s|%s|%s|%s|%s", t.ID, from, to, t.Date, t.RecurringFrequency, t.CategoryID, t.Amount, t.Type)
}

// BudgetSnapshots computes the snapshot of every active budget for the period
// containing ref; a zero ref means today. Budgets are ordered by category name.
func (p *Projector) BudgetSnapshots(ctx context.Context, ref core.Date) ([]BudgetView, error) {
	if ref.IsZero() {
		ref = core.DateOf(p.now())
	}
	budgets, err := storage.Budgets(ctx, p.store)
	if err != nil {
		return nil, err
	}
	txns, err := storage.Transactions(ctx, p.store)
	if err != nil {
		return nil, err
	}
	cats, err := storage.Categories(ctx, p.store)
	if err != nil {
		return nil, err
	}
	idx := core.IndexCategories(cats)

	active := slices.DeleteFunc(budgets, func(b core.Budget) bool { return !b.Active() })
	views := make([]BudgetView, len(active))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.concurrency)
	for i, b := range active {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			start, end := services.PeriodBounds(b, ref)
			occs, err := p.expand(txns, start, end)
			if err != nil {
				return fmt.Errorf("budget %s: %w", b.ID, err)
			}
			snap, err := p.aggregator.Snapshot(b, occs, ref)
			if err != nil {
				return err
			}
			cat, _ := idx.Category(b.CategoryID)
			views[i] = BudgetView{Budget: b, Category: cat, Snapshot: snap}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	slices.SortFunc(views, func(a, b BudgetView) int { return strings.Compare(a.Category.Name, b.Category.Name) })
	return views, nil
}

// GoalProgress tracks every goal as of now; a zero now means the projector's
// clock. Goals are ordered by name.
func (p *Projector) GoalProgress(ctx context.Context, now time.Time) ([]GoalView, error) {
	if now.IsZero() {
		now = p.now()
	}
	goals, err := storage.Goals(ctx, p.store)
	if err != nil {
		return nil, err
	}

	views := make([]GoalView, len(goals))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.concurrency)
	for i, goal := range goals {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			views[i] = GoalView{Goal: goal, Progress: p.tracker.Progress(goal, now)}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	slices.SortFunc(views, func(a, b GoalView) int { return strings.Compare(a.Goal.Name, b.Goal.Name) })
	return views, nil
}

// Summary assembles the monthly totals, budget snapshots and goal progress
// for the month containing ref.
func (p *Projector) Summary(ctx context.Context, ref core.Date) (Summary, error) {
	if ref.IsZero() {
		ref = core.DateOf(p.now())
	}
	s := Summary{Ref: ref, Income: decimal.Zero, Expenses: decimal.Zero}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		occs, err := p.Occurrences(gctx, ref.MonthStart(), ref.MonthEnd())
		if err != nil {
			return err
		}
		for _, t := range occs {
			if t.Type == core.IncomeTransaction {
				s.Income = s.Income.Add(t.Amount.Abs())
			} else {
				s.Expenses = s.Expenses.Add(t.Amount.Abs())
			}
		}
		return nil
	})
	g.Go(func() error {
		var err error
		s.Budgets, err = p.BudgetSnapshots(gctx, ref)
		return err
	})
	g.Go(func() error {
		var err error
		s.Goals, err = p.GoalProgress(gctx, time.Time{})
		return err
	})
	if err := g.Wait(); err != nil {
		return Summary{}, err
	}

	s.Net = s.Income.Sub(s.Expenses)
	for _, b := range s.Budgets {
		s.Warnings = append(s.Warnings, b.Snapshot.Warnings...)
	}
	for _, gv := range s.Goals {
		s.Warnings = append(s.Warnings, gv.Progress.Warnings...)
	}

	stats := p.expansions.Stats()
	p.logger.DebugContext(ctx, "Summary projected",
		log.FieldDate, ref.String(), "cache_hits", stats.Hits, "cache_misses", stats.Misses)
	return s, nil
}
