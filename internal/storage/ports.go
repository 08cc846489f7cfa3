package storage

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"ledger/internal/core"
)

// Store is the persistence collaborator of the ledger. Writes are staged
// until Commit; Rollback discards them. Implementations assume a single
// writer at a time.
type Store interface {
	Insert(ctx context.Context, e core.Entity) error
	Delete(ctx context.Context, kind core.Kind, id uuid.UUID) error
	DeleteAll(ctx context.Context, kind core.Kind) error
	// FetchAll returns the entities of kind, staged writes included.
	FetchAll(ctx context.Context, kind core.Kind) ([]core.Entity, error)
	Commit(ctx context.Context) error
	Rollback() error
}

// UserRecorder records users created at login.
type UserRecorder interface {
	SaveUser(ctx context.Context, u core.User) error
}

// Fetch returns the entities of kind as T.
func Fetch[T core.Entity](ctx context.Context, s Store, kind core.Kind) ([]T, error) {
	entities, err := s.FetchAll(ctx, kind)
	if err != nil {
		return nil, err
	}
	out := make([]T, 0, len(entities))
	for _, e := range entities {
		v, ok := e.(T)
		if !ok {
			return nil, fmt.Errorf("fetch %s: unexpected entity type %T", kind, e)
		}
		out = append(out, v)
	}
	return out, nil
}

func Categories(ctx context.Context, s Store) ([]core.Category, error) {
	return Fetch[core.Category](ctx, s, core.KindCategory)
}

func Transactions(ctx context.Context, s Store) ([]core.Transaction, error) {
	return Fetch[core.Transaction](ctx, s, core.KindTransaction)
}

func Budgets(ctx context.Context, s Store) ([]core.Budget, error) {
	return Fetch[core.Budget](ctx, s, core.KindBudget)
}

func Goals(ctx context.Context, s Store) ([]core.FinancialGoal, error) {
	return Fetch[core.FinancialGoal](ctx, s, core.KindGoal)
}

// InsertAll stages every entity, stopping at the first failure.
func InsertAll[T core.Entity](ctx context.Context, s Store, entities []T) error {
	for _, e := range entities {
		if err := s.Insert(ctx, e); err != nil {
			return err
		}
	}
	return nil
}
