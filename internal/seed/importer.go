package seed

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"slices"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"ledger/internal/core"
	"ledger/internal/log"
	"ledger/internal/storage"
)

// Payload is the JSON import document. Pointer fields distinguish a missing
// field from its zero value.
type Payload struct {
	Transactions []TransactionRecord `json:"transactions"`
	Budgets      []BudgetRecord      `json:"budgets"`
	Goals        []GoalRecord        `json:"goals"`
}

type TransactionRecord struct {
	Amount             *json.Number `json:"amount"`
	Date               *string      `json:"date"`
	Category           *string      `json:"category"`
	Type               *string      `json:"type"`
	Title              *string      `json:"title"`
	Notes              *string      `json:"notes"`
	IsRecurring        *bool        `json:"isRecurring"`
	RecurringFrequency *string      `json:"recurringFrequency"`
}

type BudgetRecord struct {
	Category  *string      `json:"category"`
	Amount    *json.Number `json:"amount"`
	Period    *string      `json:"period"`
	StartDate *string      `json:"startDate"`
}

type GoalRecord struct {
	Name          *string      `json:"name"`
	TargetAmount  *json.Number `json:"targetAmount"`
	CurrentAmount *json.Number `json:"currentAmount"`
	TargetDate    *string      `json:"targetDate"`
}

// ImportOptions controls an import run.
type ImportOptions struct {
	// Replace clears transactions, budgets and goals before importing.
	// Categories are always kept since imported items reference them by name.
	Replace bool
}

// ItemError records one skipped payload item. Index is the item's position in
// its payload array.
type ItemError struct {
	Kind  core.Kind
	Index int
	Err   error
}

func (e ItemError) Error() string {
	return fmt.Sprintf("%s #%d: %v", e.Kind, e.Index, e.Err)
}

func (e ItemError) Unwrap() error { return e.Err }

// ImportReport summarizes an import: committed counts per kind and the items
// that were skipped.
type ImportReport struct {
	Committed map[core.Kind]int
	Failures  []ItemError
	Warnings  []core.ComputationWarning
}

// Importer loads a JSON payload into the store. Items that fail validation or
// reference an unknown category are skipped and reported; the rest commit one
// kind at a time.
type Importer struct {
	store  storage.Store
	logger *log.Logger
	now    func() time.Time
}

func NewImporter(store storage.Store, logger *log.Logger) *Importer {
	if logger == nil {
		logger = log.Discard()
	}
	return &Importer{store: store, logger: logger.WithComponent(log.ComponentImport), now: time.Now}
}

// WithClock replaces the clock used for CreatedAt stamps and default budget
// start dates.
func (im *Importer) WithClock(now func() time.Time) *Importer {
	im.now = now
	return im
}

// Decode parses a payload. Unknown fields are ignored.
func Decode(r io.Reader) (Payload, error) {
	var p Payload
	dec := json.NewDecoder(r)
	dec.UseNumber()
	if err := dec.Decode(&p); err != nil {
		return Payload{}, fmt.Errorf("decode import payload: %w", err)
	}
	return p, nil
}

// Import decodes r and imports it. A malformed document fails with a
// ValidationError before anything is written.
func (im *Importer) Import(ctx context.Context, r io.Reader, opts ImportOptions) (ImportReport, error) {
	p, err := Decode(r)
	if err != nil {
		return ImportReport{}, core.NewValidationError("Payload", "body", err)
	}
	return im.ImportPayload(ctx, p, opts)
}

// ImportPayload imports an already decoded payload. The returned error is
// non-nil only for storage failures; the report then holds what was committed
// before the failure.
func (im *Importer) ImportPayload(ctx context.Context, p Payload, opts ImportOptions) (ImportReport, error) {
	report := ImportReport{Committed: make(map[core.Kind]int)}

	if opts.Replace {
		if err := im.replace(ctx); err != nil {
			return report, err
		}
	}

	cats, err := storage.Categories(ctx, im.store)
	if err != nil {
		return report, err
	}
	idx := core.IndexCategories(cats)

	var txns []core.Entity
	for i, rec := range p.Transactions {
		t, err := im.transaction(rec, idx)
		if err != nil {
			report.fail(core.KindTransaction, i, err)
			continue
		}
		txns = append(txns, t)
	}
	if err := im.commit(ctx, core.KindTransaction, txns, &report); err != nil {
		return report, err
	}

	existing, err := storage.Budgets(ctx, im.store)
	if err != nil {
		return report, err
	}
	var budgets []core.Entity
	for i, rec := range p.Budgets {
		b, err := im.budget(rec, idx)
		if err == nil {
			if other, dup := core.ActiveBudgetConflict(b, existing); dup {
				err = core.NewValidationError(core.KindBudget, "category",
					fmt.Errorf("%w: conflicts with budget %s", core.ErrDuplicateBudget, other.ID))
			}
		}
		if err != nil {
			report.fail(core.KindBudget, i, err)
			continue
		}
		existing = append(existing, b)
		budgets = append(budgets, b)
	}
	if err := im.commit(ctx, core.KindBudget, budgets, &report); err != nil {
		return report, err
	}

	var goals []core.Entity
	for i, rec := range p.Goals {
		g, err := im.goal(rec)
		if err != nil {
			report.fail(core.KindGoal, i, err)
			continue
		}
		report.Warnings = append(report.Warnings, g.Warnings()...)
		goals = append(goals, g)
	}
	if err := im.commit(ctx, core.KindGoal, goals, &report); err != nil {
		return report, err
	}

	im.logger.InfoContext(ctx, "Import finished", "committed", report.Committed, "failures", len(report.Failures))
	return report, nil
}

func (r *ImportReport) fail(kind core.Kind, index int, err error) {
	r.Failures = append(r.Failures, ItemError{Kind: kind, Index: index, Err: err})
}

func (im *Importer) replace(ctx context.Context) error {
	for _, kind := range []core.Kind{core.KindTransaction, core.KindBudget, core.KindGoal} {
		if err := im.store.DeleteAll(ctx, kind); err != nil {
			im.rollback(ctx)
			return err
		}
	}
	if err := im.store.Commit(ctx); err != nil {
		im.rollback(ctx)
		return err
	}
	return nil
}

func (im *Importer) commit(ctx context.Context, kind core.Kind, batch []core.Entity, report *ImportReport) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(batch) == 0 {
		report.Committed[kind] = 0
		return nil
	}
	for _, e := range batch {
		if err := im.store.Insert(ctx, e); err != nil {
			im.rollback(ctx)
			return err
		}
	}
	if err := im.store.Commit(ctx); err != nil {
		im.rollback(ctx)
		return err
	}
	report.Committed[kind] = len(batch)
	im.logger.DebugContext(ctx, "Import batch committed", log.FieldKind, kind, log.FieldCount, len(batch))
	return nil
}

func (im *Importer) rollback(ctx context.Context) {
	if err := im.store.Rollback(); err != nil {
		im.logger.ErrorContext(ctx, "Rollback failed", log.FieldError, err)
	}
}

func (im *Importer) transaction(rec TransactionRecord, idx core.Categories) (core.Transaction, error) {
	const kind = core.KindTransaction
	if err := required(kind, map[string]bool{
		"amount":   rec.Amount == nil,
		"date":     rec.Date == nil,
		"category": rec.Category == nil,
		"type":     rec.Type == nil,
	}); err != nil {
		return core.Transaction{}, err
	}

	amount, err := amountOf(kind, "amount", *rec.Amount)
	if err != nil {
		return core.Transaction{}, err
	}
	date, err := core.ParseDate(*rec.Date)
	if err != nil {
		return core.Transaction{}, core.NewValidationError(kind, "date", err)
	}
	typ, err := core.ParseTransactionType(*rec.Type)
	if err != nil {
		return core.Transaction{}, core.NewValidationError(kind, "type", err)
	}

	in := core.TransactionInput{
		Amount: amount,
		Title:  deref(rec.Title),
		Notes:  deref(rec.Notes),
		Date:   date,
		Type:   typ,
	}
	if rec.IsRecurring != nil {
		in.IsRecurring = *rec.IsRecurring
	}
	if rec.RecurringFrequency != nil {
		in.RecurringFrequency = core.RecurringFrequency(strings.ToLower(strings.TrimSpace(*rec.RecurringFrequency)))
	}

	cat, err := resolve(kind, *rec.Category, idx, categoryTypeOf(typ))
	if err != nil {
		return core.Transaction{}, err
	}
	in.CategoryID = cat.ID
	return core.NewTransaction(in, idx)
}

func (im *Importer) budget(rec BudgetRecord, idx core.Categories) (core.Budget, error) {
	const kind = core.KindBudget
	if err := required(kind, map[string]bool{
		"category": rec.Category == nil,
		"amount":   rec.Amount == nil,
		"period":   rec.Period == nil,
	}); err != nil {
		return core.Budget{}, err
	}

	amount, err := amountOf(kind, "amount", *rec.Amount)
	if err != nil {
		return core.Budget{}, err
	}
	period, err := core.ParseBudgetPeriod(*rec.Period)
	if err != nil {
		return core.Budget{}, core.NewValidationError(kind, "period", err)
	}
	start := core.DateOf(im.now()).MonthStart()
	if rec.StartDate != nil {
		if start, err = core.ParseDate(*rec.StartDate); err != nil {
			return core.Budget{}, core.NewValidationError(kind, "startDate", err)
		}
	}
	cat, err := resolve(kind, *rec.Category, idx, core.Expense)
	if err != nil {
		return core.Budget{}, err
	}

	return core.NewBudget(core.BudgetInput{
		CategoryID: cat.ID,
		Amount:     amount,
		Period:     period,
		StartDate:  start,
		CreatedAt:  im.now().UTC(),
	}, idx)
}

func (im *Importer) goal(rec GoalRecord) (core.FinancialGoal, error) {
	const kind = core.KindGoal
	if err := required(kind, map[string]bool{
		"name":          rec.Name == nil,
		"targetAmount":  rec.TargetAmount == nil,
		"currentAmount": rec.CurrentAmount == nil,
	}); err != nil {
		return core.FinancialGoal{}, err
	}

	target, err := amountOf(kind, "targetAmount", *rec.TargetAmount)
	if err != nil {
		return core.FinancialGoal{}, err
	}
	current, err := amountOf(kind, "currentAmount", *rec.CurrentAmount)
	if err != nil {
		return core.FinancialGoal{}, err
	}
	var targetDate core.Date
	if rec.TargetDate != nil {
		if targetDate, err = core.ParseDate(*rec.TargetDate); err != nil {
			return core.FinancialGoal{}, core.NewValidationError(kind, "targetDate", err)
		}
	}

	return core.NewGoal(core.GoalInput{
		Name:          *rec.Name,
		TargetAmount:  target,
		CurrentAmount: current,
		TargetDate:    targetDate,
		CreatedAt:     im.now().UTC(),
	})
}

// required reports every missing field, sorted by name.
func required(kind core.Kind, missing map[string]bool) error {
	var names []string
	for name, isMissing := range missing {
		if isMissing {
			names = append(names, name)
		}
	}
	if len(names) == 0 {
		return nil
	}
	slices.Sort(names)
	return core.NewValidationError(kind, strings.Join(names, ","), core.ErrMissingField)
}

func amountOf(kind core.Kind, field string, n json.Number) (decimal.Decimal, error) {
	amount, err := core.ParseAmount(n.String())
	if err != nil {
		return decimal.Decimal{}, core.NewValidationError(kind, field, err)
	}
	return amount, nil
}

// resolve finds a category by name, preferring one of the wanted type when the
// name exists under both.
func resolve(kind core.Kind, name string, idx core.Categories, want core.CategoryType) (core.Category, error) {
	matches := idx.ByName(name)
	if len(matches) == 0 {
		return core.Category{}, &core.ReferenceError{Entity: kind, Category: name}
	}
	for _, c := range matches {
		if c.Type == want {
			return c, nil
		}
	}
	return matches[0], nil
}

func categoryTypeOf(t core.TransactionType) core.CategoryType {
	if t == core.IncomeTransaction {
		return core.Income
	}
	return core.Expense
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
