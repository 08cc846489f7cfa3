package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"ledger/internal/core"
	"ledger/internal/log"
	"ledger/internal/storage"
)

// ErrNotFound is returned when an operation names an entity that does not
// exist.
var ErrNotFound = errors.New("not found")

// LedgerService applies direct edits to the ledger. Each operation is its own
// unit of work: it commits on success and rolls back on failure.
type LedgerService struct {
	store  storage.Store
	logger *log.Logger
	now    func() time.Time
}

func NewLedgerService(store storage.Store, logger *log.Logger) *LedgerService {
	if logger == nil {
		logger = log.Discard()
	}
	return &LedgerService{
		store:  store,
		logger: logger.WithComponent(log.ComponentLedger),
		now:    time.Now,
	}
}

// WithClock replaces the clock used for CreatedAt stamps.
func (s *LedgerService) WithClock(now func() time.Time) *LedgerService {
	s.now = now
	return s
}

// CreateCategory adds a category. Names are unique within a type, compared
// case-insensitively.
func (s *LedgerService) CreateCategory(ctx context.Context, name, icon, color string, categoryType core.CategoryType) (core.Category, error) {
	c, err := core.NewCategory(name, icon, color, categoryType)
	if err != nil {
		return core.Category{}, err
	}

	err = s.unitOfWork(ctx, log.OpCreate, func() error {
		existing, err := storage.Categories(ctx, s.store)
		if err != nil {
			return err
		}
		for _, e := range existing {
			if e.Type == c.Type && strings.EqualFold(e.Name, c.Name) {
				return core.NewValidationError(core.KindCategory, "name", fmt.Errorf("%w: %q", core.ErrDuplicateCategory, c.Name))
			}
		}
		return s.store.Insert(ctx, c)
	})
	if err != nil {
		return core.Category{}, err
	}

	s.logger.InfoContext(ctx, "Category created", log.FieldCategory, c.Name, "type", c.Type)
	return c, nil
}

// AddTransaction validates in against the stored categories and records it.
func (s *LedgerService) AddTransaction(ctx context.Context, in core.TransactionInput) (core.Transaction, error) {
	var t core.Transaction
	err := s.unitOfWork(ctx, log.OpCreate, func() error {
		idx, err := s.categoryIndex(ctx)
		if err != nil {
			return err
		}
		t, err = core.NewTransaction(in, idx)
		if err != nil {
			return err
		}
		return s.store.Insert(ctx, t)
	})
	if err != nil {
		return core.Transaction{}, err
	}

	s.logger.DebugContext(ctx, "Transaction added",
		"id", t.ID, log.FieldAmount, core.FormatAmount(t.Amount), log.FieldDate, t.Date.String())
	return t, nil
}

// AddBudget records a budget. A category already holding an active budget is
// rejected; use SupersedeBudget to replace it.
func (s *LedgerService) AddBudget(ctx context.Context, in core.BudgetInput) (core.Budget, error) {
	if in.CreatedAt.IsZero() {
		in.CreatedAt = s.now().UTC()
	}

	var b core.Budget
	err := s.unitOfWork(ctx, log.OpCreate, func() error {
		idx, err := s.categoryIndex(ctx)
		if err != nil {
			return err
		}
		b, err = core.NewBudget(in, idx)
		if err != nil {
			return err
		}
		existing, err := storage.Budgets(ctx, s.store)
		if err != nil {
			return err
		}
		if conflict, ok := core.ActiveBudgetConflict(b, existing); ok {
			return core.NewValidationError(core.KindBudget, "category",
				fmt.Errorf("%w: budget %s", core.ErrDuplicateBudget, conflict.ID))
		}
		return s.store.Insert(ctx, b)
	})
	if err != nil {
		return core.Budget{}, err
	}

	s.logger.InfoContext(ctx, "Budget added", log.FieldBudget, b.ID, log.FieldAmount, core.FormatAmount(b.Amount))
	return b, nil
}

// SupersedeBudget replaces the active budget oldID with a new one for the
// same category. The old record is kept, marked as superseded by the new one.
// A zero in.CategoryID means the old budget's category.
func (s *LedgerService) SupersedeBudget(ctx context.Context, oldID uuid.UUID, in core.BudgetInput) (core.Budget, error) {
	if in.CreatedAt.IsZero() {
		in.CreatedAt = s.now().UTC()
	}

	var next core.Budget
	err := s.unitOfWork(ctx, log.OpSupersede, func() error {
		budgets, err := storage.Budgets(ctx, s.store)
		if err != nil {
			return err
		}
		old, ok := findByID(budgets, oldID)
		if !ok {
			return fmt.Errorf("budget %s: %w", oldID, ErrNotFound)
		}
		if !old.Active() {
			return core.NewValidationError(core.KindBudget, "supersededBy",
				fmt.Errorf("budget %s already superseded by %s", old.ID, old.SupersededBy.UUID))
		}
		if in.CategoryID == uuid.Nil {
			in.CategoryID = old.CategoryID
		}
		if in.CategoryID != old.CategoryID {
			return core.NewValidationError(core.KindBudget, "category",
				errors.New("a superseding budget must cover the same category"))
		}

		idx, err := s.categoryIndex(ctx)
		if err != nil {
			return err
		}
		next, err = core.NewBudget(in, idx)
		if err != nil {
			return err
		}

		// The old row goes first so the new one is the only active budget.
		if err := s.store.Delete(ctx, core.KindBudget, old.ID); err != nil {
			return err
		}
		if err := s.store.Insert(ctx, next); err != nil {
			return err
		}
		old.SupersededBy = uuid.NullUUID{UUID: next.ID, Valid: true}
		return s.store.Insert(ctx, old)
	})
	if err != nil {
		return core.Budget{}, err
	}

	s.logger.InfoContext(ctx, "Budget superseded", log.FieldBudget, oldID, "superseded_by", next.ID)
	return next, nil
}

// AddGoal records a savings goal. The goal's warnings, such as a current
// amount above target, are returned alongside it.
func (s *LedgerService) AddGoal(ctx context.Context, in core.GoalInput) (core.FinancialGoal, []core.ComputationWarning, error) {
	if in.CreatedAt.IsZero() {
		in.CreatedAt = s.now().UTC()
	}
	g, err := core.NewGoal(in)
	if err != nil {
		return core.FinancialGoal{}, nil, err
	}
	if err := s.unitOfWork(ctx, log.OpCreate, func() error { return s.store.Insert(ctx, g) }); err != nil {
		return core.FinancialGoal{}, nil, err
	}

	s.logger.InfoContext(ctx, "Goal added", log.FieldGoal, g.Name)
	return g, g.Warnings(), nil
}

// Contribute adds amount to a goal's current amount.
func (s *LedgerService) Contribute(ctx context.Context, goalID uuid.UUID, amount decimal.Decimal) (core.FinancialGoal, []core.ComputationWarning, error) {
	if !amount.IsPositive() {
		return core.FinancialGoal{}, nil, core.NewValidationError(core.KindGoal, "contribution", core.ErrInvalidAmount)
	}

	var g core.FinancialGoal
	err := s.unitOfWork(ctx, log.OpContribute, func() error {
		goals, err := storage.Goals(ctx, s.store)
		if err != nil {
			return err
		}
		var ok bool
		g, ok = findByID(goals, goalID)
		if !ok {
			return fmt.Errorf("goal %s: %w", goalID, ErrNotFound)
		}
		g.CurrentAmount = g.CurrentAmount.Add(amount)
		if err := s.store.Delete(ctx, core.KindGoal, g.ID); err != nil {
			return err
		}
		return s.store.Insert(ctx, g)
	})
	if err != nil {
		return core.FinancialGoal{}, nil, err
	}

	warnings := g.Warnings()
	for _, w := range warnings {
		s.logger.WarnContext(ctx, "Goal contribution warning", log.FieldGoal, g.Name, "warning", w.String())
	}
	return g, warnings, nil
}

// DeleteCategory removes a category. While transactions or budgets reference
// it the delete is rejected with a ReferenceError, unless reassignTo names a
// category of the same type; then the dependents are moved there first.
func (s *LedgerService) DeleteCategory(ctx context.Context, id uuid.UUID, reassignTo uuid.NullUUID) error {
	var moved int
	err := s.unitOfWork(ctx, log.OpDelete, func() error {
		idx, err := s.categoryIndex(ctx)
		if err != nil {
			return err
		}
		cat, ok := idx.Category(id)
		if !ok {
			return fmt.Errorf("category %s: %w", id, ErrNotFound)
		}

		txns, err := storage.Transactions(ctx, s.store)
		if err != nil {
			return err
		}
		budgets, err := storage.Budgets(ctx, s.store)
		if err != nil {
			return err
		}
		var dependents []core.Entity
		for _, t := range txns {
			if t.CategoryID == id {
				dependents = append(dependents, t)
			}
		}
		for _, b := range budgets {
			if b.CategoryID == id {
				dependents = append(dependents, b)
			}
		}

		if len(dependents) > 0 {
			if !reassignTo.Valid {
				return &core.ReferenceError{
					Entity:   core.KindCategory,
					Category: cat.Name,
					Reason:   fmt.Sprintf("still referenced by %d records", len(dependents)),
				}
			}
			target, ok := idx.Category(reassignTo.UUID)
			if !ok || target.ID == id {
				return &core.ReferenceError{Entity: core.KindCategory, Category: reassignTo.UUID.String(), Reason: "reassignment target not found"}
			}
			if target.Type != cat.Type {
				return core.NewValidationError(core.KindCategory, "reassignTo",
					fmt.Errorf("%w: cannot move %s records to %s category %q", core.ErrTypeMismatch, cat.Type, target.Type, target.Name))
			}
			if err := s.reassign(ctx, dependents, target, budgets); err != nil {
				return err
			}
			moved = len(dependents)
		}

		return s.store.Delete(ctx, core.KindCategory, id)
	})
	if err != nil {
		return err
	}

	s.logger.InfoContext(ctx, "Category deleted", log.FieldCategory, id, "reassigned", moved)
	return nil
}

// reassign moves dependents to target. An active budget that would collide
// with one already held by target is superseded by it.
func (s *LedgerService) reassign(ctx context.Context, dependents []core.Entity, target core.Category, budgets []core.Budget) error {
	var targetActive uuid.NullUUID
	for _, b := range budgets {
		if b.CategoryID == target.ID && b.Active() {
			targetActive = uuid.NullUUID{UUID: b.ID, Valid: true}
		}
	}

	for _, e := range dependents {
		if err := s.store.Delete(ctx, e.EntityKind(), e.EntityID()); err != nil {
			return err
		}
		switch v := e.(type) {
		case core.Transaction:
			v.CategoryID = target.ID
			v.Type = core.TransactionTypeFor(target.Type)
			e = v
		case core.Budget:
			v.CategoryID = target.ID
			if v.Active() && targetActive.Valid {
				v.SupersededBy = targetActive
			}
			e = v
		}
		if err := s.store.Insert(ctx, e); err != nil {
			return err
		}
	}
	return nil
}

func (s *LedgerService) categoryIndex(ctx context.Context) (core.Categories, error) {
	cats, err := storage.Categories(ctx, s.store)
	if err != nil {
		return nil, err
	}
	return core.IndexCategories(cats), nil
}

// unitOfWork runs fn and commits, rolling back if either fails.
func (s *LedgerService) unitOfWork(ctx context.Context, op string, fn func() error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := fn(); err != nil {
		s.rollback(ctx, op)
		return err
	}
	if err := s.store.Commit(ctx); err != nil {
		s.rollback(ctx, op)
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (s *LedgerService) rollback(ctx context.Context, op string) {
	if err := s.store.Rollback(); err != nil {
		s.logger.ErrorContext(ctx, "Rollback failed", log.FieldOperation, op, log.FieldError, err)
	}
}

func findByID[T core.Entity](entities []T, id uuid.UUID) (T, bool) {
	for _, e := range entities {
		if e.EntityID() == id {
			return e, true
		}
	}
	var zero T
	return zero, false
}
