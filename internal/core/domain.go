package core

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	Income  CategoryType = "Income"
	Expense CategoryType = "Expense"

	IncomeTransaction  TransactionType = "income"
	ExpenseTransaction TransactionType = "expense"

	Daily   RecurringFrequency = "daily"
	Weekly  RecurringFrequency = "weekly"
	Monthly RecurringFrequency = "monthly"
	Yearly  RecurringFrequency = "yearly"

	MonthlyPeriod   BudgetPeriod = "Monthly"
	QuarterlyPeriod BudgetPeriod = "Quarterly"

	KindCategory    Kind = "Category"
	KindTransaction Kind = "Transaction"
	KindBudget      Kind = "Budget"
	KindGoal        Kind = "FinancialGoal"
	KindUser        Kind = "User"
)

const maxTitleLength = 200

type (
	CategoryType       string
	TransactionType    string
	RecurringFrequency string
	BudgetPeriod       string

	// Kind names a persisted entity type.
	Kind string

	// Entity is anything the ledger store can hold.
	Entity interface {
		EntityKind() Kind
		EntityID() uuid.UUID
	}

	User struct {
		ID           uuid.UUID
		Name         string
		Email        string
		ProfileImage []byte
		CreatedAt    time.Time
	}

	Category struct {
		ID    uuid.UUID
		Name  string // unique within Type
		Icon  string
		Color string
		Type  CategoryType
	}

	Transaction struct {
		ID                 uuid.UUID
		Amount             decimal.Decimal // magnitude, sign lives in Type
		Title              string
		Date               Date
		CategoryID         uuid.UUID
		Type               TransactionType
		Notes              string
		IsRecurring        bool
		RecurringFrequency RecurringFrequency // set iff IsRecurring
		TemplateID         uuid.UUID          // set on materialized occurrences
	}

	Budget struct {
		ID           uuid.UUID
		CategoryID   uuid.UUID
		Amount       decimal.Decimal
		Period       BudgetPeriod
		StartDate    Date
		CreatedAt    time.Time
		SupersededBy uuid.NullUUID
	}

	FinancialGoal struct {
		ID            uuid.UUID
		Name          string
		TargetAmount  decimal.Decimal
		CurrentAmount decimal.Decimal
		TargetDate    Date // optional, zero when unset
		CreatedAt     time.Time
	}
)

// ClearOrder lists the persisted kinds with dependents before categories.
var ClearOrder = []Kind{KindTransaction, KindBudget, KindGoal, KindCategory}

func (User) EntityKind() Kind { return KindUser }
func (u User) EntityID() uuid.UUID { return u.ID }
func (Category) EntityKind() Kind { return KindCategory }
func (c Category) EntityID() uuid.UUID { return c.ID }
func (Transaction) EntityKind() Kind { return KindTransaction }
func (t Transaction) EntityID() uuid.UUID { return t.ID }
func (Budget) EntityKind() Kind { return KindBudget }
func (b Budget) EntityID() uuid.UUID { return b.ID }
func (FinancialGoal) EntityKind() Kind { return KindGoal }
func (g FinancialGoal) EntityID() uuid.UUID { return g.ID }

func (t CategoryType) Valid() bool { return t == Income || t == Expense }

func (t TransactionType) Valid() bool {
	return t == IncomeTransaction || t == ExpenseTransaction
}

func (p BudgetPeriod) Valid() bool { return p == MonthlyPeriod || p == QuarterlyPeriod }

// Active reports whether the budget has not been superseded.
func (b Budget) Active() bool { return !b.SupersededBy.Valid }

// IsOccurrence reports whether t was materialized from a recurring template.
func (t Transaction) IsOccurrence() bool { return t.TemplateID != uuid.Nil }

func (f RecurringFrequency) Valid() bool {
	switch f {
	case Daily, Weekly, Monthly, Yearly:
		return true
	default:
		return false
	}
}

// Matches reports whether a transaction type agrees with a category tag.
func (t TransactionType) Matches(c CategoryType) bool {
	return (t == IncomeTransaction && c == Income) || (t == ExpenseTransaction && c == Expense)
}

// TransactionTypeFor returns the transaction type carried by a category tag.
func TransactionTypeFor(c CategoryType) TransactionType {
	if c == Income {
		return IncomeTransaction
	}
	return ExpenseTransaction
}

// ParseCategoryType accepts the tag case-insensitively.
func ParseCategoryType(s string) (CategoryType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "income":
		return Income, nil
	case "expense":
		return Expense, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidType, s)
}

func ParseTransactionType(s string) (TransactionType, error) {
	t := TransactionType(strings.ToLower(strings.TrimSpace(s)))
	if !t.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidType, s)
	}
	return t, nil
}

func ParseBudgetPeriod(s string) (BudgetPeriod, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "monthly":
		return MonthlyPeriod, nil
	case "quarterly":
		return QuarterlyPeriod, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidPeriod, s)
}

func (c Category) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return invalid(KindCategory, "name", ErrEmptyName)
	}
	if !c.Type.Valid() {
		return invalid(KindCategory, "type", fmt.Errorf("%w: %q", ErrInvalidType, c.Type))
	}
	return nil
}

// Validate checks the invariants that do not need the category set.
func (t Transaction) Validate() error {
	if t.Amount.IsNegative() {
		return invalid(KindTransaction, "amount", ErrInvalidAmount)
	}
	if len(t.Title) > maxTitleLength {
		return invalid(KindTransaction, "title", fmt.Errorf("title too long (max %d characters)", maxTitleLength))
	}
	if err := t.Date.Validate(); err != nil {
		return invalid(KindTransaction, "date", err)
	}
	if !t.Type.Valid() {
		return invalid(KindTransaction, "type", fmt.Errorf("%w: %q", ErrInvalidType, t.Type))
	}
	if t.IsRecurring != (t.RecurringFrequency != "") {
		return invalid(KindTransaction, "recurringFrequency", ErrFrequencyMismatch)
	}
	if t.IsRecurring && !t.RecurringFrequency.Valid() {
		return invalid(KindTransaction, "recurringFrequency", fmt.Errorf("unknown frequency %q", t.RecurringFrequency))
	}
	return nil
}

func (b Budget) Validate() error {
	if b.Amount.IsNegative() {
		return invalid(KindBudget, "amount", ErrInvalidAmount)
	}
	if !b.Period.Valid() {
		return invalid(KindBudget, "period", fmt.Errorf("%w: %q", ErrInvalidPeriod, b.Period))
	}
	if err := b.StartDate.Validate(); err != nil {
		return invalid(KindBudget, "startDate", err)
	}
	if b.CategoryID == uuid.Nil {
		return invalid(KindBudget, "category", ErrMissingCategory)
	}
	return nil
}

// Validate rejects goals that cannot be tracked. Current above target is
// allowed and reported by Warnings.
func (g FinancialGoal) Validate() error {
	if strings.TrimSpace(g.Name) == "" {
		return invalid(KindGoal, "name", ErrEmptyName)
	}
	if !g.TargetAmount.IsPositive() {
		return invalid(KindGoal, "targetAmount", ErrInvalidAmount)
	}
	if g.CurrentAmount.IsNegative() {
		return invalid(KindGoal, "currentAmount", ErrInvalidAmount)
	}
	return nil
}

func (g FinancialGoal) Warnings() []ComputationWarning {
	if g.CurrentAmount.GreaterThan(g.TargetAmount) {
		return []ComputationWarning{{
			Code:    WarnOverTarget,
			Message: fmt.Sprintf("goal %q current amount %s exceeds target %s", g.Name, g.CurrentAmount, g.TargetAmount),
		}}
	}
	return nil
}

func (u User) Validate() error {
	if strings.TrimSpace(u.Name) == "" {
		return invalid(KindUser, "name", ErrEmptyName)
	}
	if !strings.Contains(u.Email, "@") {
		return invalid(KindUser, "email", fmt.Errorf("malformed email %q", u.Email))
	}
	return nil
}

// CategoryIndex resolves category references during construction.
type CategoryIndex interface {
	Category(id uuid.UUID) (Category, bool)
}

// Categories indexes a category set by ID.
type Categories map[uuid.UUID]Category

func IndexCategories(cs []Category) Categories {
	idx := make(Categories, len(cs))
	for _, c := range cs {
		idx[c.ID] = c
	}
	return idx
}

func (c Categories) Category(id uuid.UUID) (Category, bool) {
	cat, ok := c[id]
	return cat, ok
}

// ByName returns the categories carrying name, matched case-insensitively.
func (c Categories) ByName(name string) []Category {
	var out []Category
	for _, cat := range c {
		if strings.EqualFold(cat.Name, strings.TrimSpace(name)) {
			out = append(out, cat)
		}
	}
	return out
}

func NewCategory(name, icon, color string, categoryType CategoryType) (Category, error) {
	c := Category{
		ID:    uuid.New(),
		Name:  strings.TrimSpace(name),
		Icon:  icon,
		Color: color,
		Type:  categoryType,
	}
	if err := c.Validate(); err != nil {
		return Category{}, err
	}
	return c, nil
}

// TransactionInput carries the fields of a transaction to be created.
type TransactionInput struct {
	Amount             decimal.Decimal
	Title              string
	Date               Date
	CategoryID         uuid.UUID
	Type               TransactionType
	Notes              string
	IsRecurring        bool
	RecurringFrequency RecurringFrequency
}

// NewTransaction validates in against the domain invariants and the category
// set. A missing category yields a ReferenceError.
func NewTransaction(in TransactionInput, categories CategoryIndex) (Transaction, error) {
	t := Transaction{
		ID:                 uuid.New(),
		Amount:             in.Amount,
		Title:              strings.TrimSpace(in.Title),
		Date:               in.Date,
		CategoryID:         in.CategoryID,
		Type:               in.Type,
		Notes:              in.Notes,
		IsRecurring:        in.IsRecurring,
		RecurringFrequency: in.RecurringFrequency,
	}
	if err := t.Validate(); err != nil {
		return Transaction{}, err
	}
	if err := CheckCategory(t, categories); err != nil {
		return Transaction{}, err
	}
	return t, nil
}

// CheckCategory verifies that t references an existing category of the
// matching type.
func CheckCategory(t Transaction, categories CategoryIndex) error {
	cat, ok := categories.Category(t.CategoryID)
	if !ok {
		return &ReferenceError{Entity: KindTransaction, Category: t.CategoryID.String()}
	}
	if !t.Type.Matches(cat.Type) {
		return invalid(KindTransaction, "type", fmt.Errorf("%w: %s transaction in %s category %q", ErrTypeMismatch, t.Type, cat.Type, cat.Name))
	}
	return nil
}

// BudgetInput carries the fields of a budget to be created.
type BudgetInput struct {
	CategoryID uuid.UUID
	Amount     decimal.Decimal
	Period     BudgetPeriod
	StartDate  Date
	CreatedAt  time.Time
}

func NewBudget(in BudgetInput, categories CategoryIndex) (Budget, error) {
	created := in.CreatedAt
	if created.IsZero() {
		created = time.Now().UTC()
	}
	b := Budget{
		ID:         uuid.New(),
		CategoryID: in.CategoryID,
		Amount:     in.Amount,
		Period:     in.Period,
		StartDate:  in.StartDate,
		CreatedAt:  created,
	}
	if err := b.Validate(); err != nil {
		return Budget{}, err
	}
	if _, ok := categories.Category(b.CategoryID); !ok {
		return Budget{}, &ReferenceError{Entity: KindBudget, Category: b.CategoryID.String()}
	}
	return b, nil
}

// GoalInput carries the fields of a goal to be created.
type GoalInput struct {
	Name          string
	TargetAmount  decimal.Decimal
	CurrentAmount decimal.Decimal
	TargetDate    Date
	CreatedAt     time.Time
}

func NewGoal(in GoalInput) (FinancialGoal, error) {
	created := in.CreatedAt
	if created.IsZero() {
		created = time.Now().UTC()
	}
	g := FinancialGoal{
		ID:            uuid.New(),
		Name:          strings.TrimSpace(in.Name),
		TargetAmount:  in.TargetAmount,
		CurrentAmount: in.CurrentAmount,
		TargetDate:    in.TargetDate,
		CreatedAt:     created,
	}
	if err := g.Validate(); err != nil {
		return FinancialGoal{}, err
	}
	return g, nil
}

func NewUser(name, email string, now time.Time) (User, error) {
	u := User{
		ID:        uuid.New(),
		Name:      strings.TrimSpace(name),
		Email:     strings.TrimSpace(email),
		CreatedAt: now,
	}
	if err := u.Validate(); err != nil {
		return User{}, err
	}
	return u, nil
}

// ActiveBudgetConflict returns the active budget in existing that already
// covers b's category, if any.
func ActiveBudgetConflict(b Budget, existing []Budget) (Budget, bool) {
	if !b.Active() {
		return Budget{}, false
	}
	for _, e := range existing {
		if e.ID != b.ID && e.Active() && e.CategoryID == b.CategoryID {
			return e, true
		}
	}
	return Budget{}, false
}
