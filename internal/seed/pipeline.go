// Package seed populates the ledger in bulk, either from the synthetic
// generator or from a JSON import.
package seed

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"ledger/internal/core"
	"ledger/internal/log"
	"ledger/internal/storage"
)

// State is a step of the seeding pipeline.
type State int

const (
	Idle State = iota
	Clearing
	GeneratingCategories
	GeneratingTransactions
	GeneratingBudgets
	GeneratingGoals
	Committed
	Failed
)

var stateNames = [...]string{
	Idle:                   "Idle",
	Clearing:               "Clearing",
	GeneratingCategories:   "GeneratingCategories",
	GeneratingTransactions: "GeneratingTransactions",
	GeneratingBudgets:      "GeneratingBudgets",
	GeneratingGoals:        "GeneratingGoals",
	Committed:              "Committed",
	Failed:                 "Failed",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("State(%d)", int(s))
	}
	return stateNames[s]
}

// Terminal reports whether the pipeline stops in s.
func (s State) Terminal() bool { return s == Committed || s == Failed }

// StageError reports the stage a run failed in and the entity that caused it.
// Entity is empty when the failure was not tied to one record.
type StageError struct {
	Stage  State
	Entity string
	Err    error
}

func (e *StageError) Error() string {
	if e.Entity != "" {
		return fmt.Sprintf("seed %s: %s: %v", e.Stage, e.Entity, e.Err)
	}
	return fmt.Sprintf("seed %s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// Transition is reported to the observer whenever the pipeline changes state.
// Count is the number of entities committed by the state being left.
type Transition struct {
	From  State
	To    State
	Kind  core.Kind
	Count int
}

// Observer receives transitions synchronously from the running goroutine.
type Observer func(Transition)

// Report summarizes a run.
type Report struct {
	State    State
	Counts   map[core.Kind]int
	Warnings []core.ComputationWarning
	Duration time.Duration
}

// Outcome is delivered by Start once a run finishes.
type Outcome struct {
	Report Report
	Err    error
}

// Pipeline clears the ledger and regenerates it stage by stage. Each stage
// commits before the next begins; a failure leaves the earlier stages in
// place. Runs on one pipeline are serialized.
type Pipeline struct {
	store    storage.Store
	source   Source
	logger   *log.Logger
	observer Observer

	run   sync.Mutex
	mu    sync.Mutex
	state State
}

// PipelineOption configures a Pipeline.
type PipelineOption func(*Pipeline)

// WithObserver installs a transition hook.
func WithObserver(o Observer) PipelineOption {
	return func(p *Pipeline) { p.observer = o }
}

// WithLogger sets the pipeline logger.
func WithLogger(l *log.Logger) PipelineOption {
	return func(p *Pipeline) { p.logger = l }
}

func NewPipeline(store storage.Store, source Source, opts ...PipelineOption) *Pipeline {
	p := &Pipeline{store: store, source: source, logger: log.Discard()}
	for _, opt := range opts {
		opt(p)
	}
	p.logger = p.logger.WithComponent(log.ComponentPipeline)
	return p
}

// State returns the current state.
func (p *Pipeline) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Start runs the pipeline in a new goroutine. The channel receives exactly one
// outcome and is then closed.
func (p *Pipeline) Start(ctx context.Context) <-chan Outcome {
	ch := make(chan Outcome, 1)
	go func() {
		defer close(ch)
		report, err := p.Run(ctx)
		ch <- Outcome{Report: report, Err: err}
	}()
	return ch
}

type stage struct {
	state State
	kind  core.Kind
	build func(ctx context.Context) ([]core.Entity, error)
}

// Run clears the ledger and generates every entity kind in order. The error is
// a *StageError naming the failed stage; the report carries the counts of the
// stages that did commit.
func (p *Pipeline) Run(ctx context.Context) (Report, error) {
	p.run.Lock()
	defer p.run.Unlock()

	started := time.Now()
	report := Report{Counts: make(map[core.Kind]int)}
	p.set(Idle, "", 0)

	finish := func(err error) (Report, error) {
		report.State = p.State()
		report.Duration = time.Since(started)
		if err != nil {
			p.logger.ErrorContext(ctx, "Seed failed", log.FieldError, err)
			return report, err
		}
		p.logger.InfoContext(ctx, "Seed committed",
			log.FieldDuration, report.Duration.Milliseconds(), "counts", report.Counts)
		return report, nil
	}

	if err := p.enter(ctx, Clearing, "", 0); err != nil {
		return finish(err)
	}
	if err := p.clear(ctx); err != nil {
		return finish(p.fail(Clearing, "", err))
	}

	var categories []core.Category
	stages := []stage{
		{GeneratingCategories, core.KindCategory, func(context.Context) ([]core.Entity, error) {
			cs, err := p.source.Categories()
			return entities(cs), err
		}},
		{GeneratingTransactions, core.KindTransaction, func(ctx context.Context) ([]core.Entity, error) {
			var err error
			if categories, err = storage.Categories(ctx, p.store); err != nil {
				return nil, err
			}
			ts, err := p.source.Transactions(categories)
			return entities(ts), err
		}},
		{GeneratingBudgets, core.KindBudget, func(context.Context) ([]core.Entity, error) {
			bs, err := p.source.Budgets(categories)
			return entities(bs), err
		}},
		{GeneratingGoals, core.KindGoal, func(context.Context) ([]core.Entity, error) {
			gs, err := p.source.Goals()
			for _, g := range gs {
				report.Warnings = append(report.Warnings, g.Warnings()...)
			}
			return entities(gs), err
		}},
	}

	prevKind, prevCount := core.Kind(""), 0
	for _, st := range stages {
		if err := p.enter(ctx, st.state, prevKind, prevCount); err != nil {
			return finish(err)
		}
		n, err := p.runStage(ctx, st)
		if err != nil {
			return finish(err)
		}
		report.Counts[st.kind] = n
		prevKind, prevCount = st.kind, n
	}

	if err := p.enter(ctx, Committed, prevKind, prevCount); err != nil {
		return finish(err)
	}
	return finish(nil)
}

// clear deletes every ledger kind in one unit of work, dependents first.
func (p *Pipeline) clear(ctx context.Context) error {
	for _, kind := range core.ClearOrder {
		if err := p.store.DeleteAll(ctx, kind); err != nil {
			p.rollback(ctx)
			return err
		}
	}
	if err := p.store.Commit(ctx); err != nil {
		p.rollback(ctx)
		return err
	}
	return nil
}

func (p *Pipeline) runStage(ctx context.Context, st stage) (int, error) {
	batch, err := st.build(ctx)
	if err != nil {
		return 0, p.fail(st.state, "", err)
	}

	categories, err := storage.Categories(ctx, p.store)
	if err != nil {
		return 0, p.fail(st.state, "", err)
	}
	if e, err := validateBatch(batch, core.IndexCategories(categories)); err != nil {
		return 0, p.fail(st.state, describe(e), err)
	}

	for _, e := range batch {
		if err := p.store.Insert(ctx, e); err != nil {
			p.rollback(ctx)
			return 0, p.fail(st.state, describe(e), err)
		}
	}
	if err := p.store.Commit(ctx); err != nil {
		p.rollback(ctx)
		return 0, p.fail(st.state, "", err)
	}

	p.logger.InfoContext(ctx, "Stage committed",
		log.NewFields().WithStage(st.state.String(), string(st.kind)).WithCount(len(batch)).ToSlice()...)
	return len(batch), nil
}

// enter moves to next unless ctx is done, in which case the run fails in the
// state it was about to leave.
func (p *Pipeline) enter(ctx context.Context, next State, kind core.Kind, count int) error {
	if err := ctx.Err(); err != nil {
		return p.fail(p.State(), "", err)
	}
	p.set(next, kind, count)
	return nil
}

func (p *Pipeline) fail(at State, entity string, err error) error {
	p.set(Failed, "", 0)
	return &StageError{Stage: at, Entity: entity, Err: err}
}

func (p *Pipeline) set(next State, kind core.Kind, count int) {
	p.mu.Lock()
	prev := p.state
	p.state = next
	p.mu.Unlock()

	if p.observer != nil && prev != next {
		p.observer(Transition{From: prev, To: next, Kind: kind, Count: count})
	}
}

func (p *Pipeline) rollback(ctx context.Context) {
	if err := p.store.Rollback(); err != nil {
		p.logger.ErrorContext(ctx, "Rollback failed", log.FieldError, err)
	}
}

type validator interface {
	Validate() error
}

// validateBatch checks every entity against its own invariants, transaction
// categories against idx, and that at most one budget per category is active.
func validateBatch(batch []core.Entity, idx core.Categories) (core.Entity, error) {
	var budgets []core.Budget
	for _, e := range batch {
		if v, ok := e.(validator); ok {
			if err := v.Validate(); err != nil {
				return e, err
			}
		}
		switch v := e.(type) {
		case core.Transaction:
			if err := core.CheckCategory(v, idx); err != nil {
				return e, err
			}
		case core.Budget:
			if _, ok := idx.Category(v.CategoryID); !ok {
				return e, &core.ReferenceError{Entity: core.KindBudget, Category: v.CategoryID.String()}
			}
			if other, dup := core.ActiveBudgetConflict(v, budgets); dup {
				return e, core.NewValidationError(core.KindBudget, "category",
					fmt.Errorf("%w: conflicts with budget %s", core.ErrDuplicateBudget, other.ID))
			}
			budgets = append(budgets, v)
		}
	}
	return nil, nil
}

func describe(e core.Entity) string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s %s", e.EntityKind(), e.EntityID())
}

func entities[T core.Entity](items []T) []core.Entity {
	out := make([]core.Entity, len(items))
	for i, item := range items {
		out[i] = item
	}
	return out
}

// IsStageError reports whether err came from a failed pipeline stage and
// returns it.
func IsStageError(err error) (*StageError, bool) {
	var se *StageError
	ok := errors.As(err, &se)
	return se, ok
}
