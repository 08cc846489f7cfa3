// Package memory provides an in-process ledger store.
package memory

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/google/uuid"

	"ledger/internal/core"
)

var kinds = []core.Kind{core.KindCategory, core.KindTransaction, core.KindBudget, core.KindGoal, core.KindUser}

type tables map[core.Kind][]core.Entity

func (t tables) clone() tables {
	out := make(tables, len(t))
	for k, v := range t {
		out[k] = slices.Clone(v)
	}
	return out
}

// Store keeps committed entities in memory. Writes go to a working copy that
// replaces the committed state on Commit, after the same integrity checks
// the SQLite schema enforces.
type Store struct {
	mu        sync.Mutex
	committed tables
	working   tables // nil when nothing is staged
}

func New() *Store {
	return &Store{committed: make(tables)}
}

// NewWith returns a store whose committed state holds entities.
func NewWith(entities ...core.Entity) *Store {
	s := New()
	for _, e := range entities {
		s.committed[e.EntityKind()] = append(s.committed[e.EntityKind()], e)
	}
	return s
}

// stage returns the working copy. Callers hold s.mu.
func (s *Store) stage() tables {
	if s.working == nil {
		s.working = s.committed.clone()
	}
	return s.working
}

// Insert implements storage.Store.
func (s *Store) Insert(_ context.Context, e core.Entity) error {
	if t, ok := e.(core.Transaction); ok && t.IsOccurrence() {
		return &core.PersistenceError{Op: "insert", Kind: core.KindTransaction, Err: errors.New("occurrences are derived and never stored")}
	}
	if !slices.Contains(kinds, e.EntityKind()) {
		return &core.PersistenceError{Op: "insert", Err: fmt.Errorf("unsupported entity %T", e)}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	w := s.stage()
	for _, existing := range w[e.EntityKind()] {
		if existing.EntityID() == e.EntityID() {
			return &core.PersistenceError{Op: "insert", Kind: e.EntityKind(), Err: fmt.Errorf("duplicate id %s", e.EntityID())}
		}
	}
	w[e.EntityKind()] = append(w[e.EntityKind()], e)
	return nil
}

// Delete implements storage.Store.
func (s *Store) Delete(_ context.Context, kind core.Kind, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	w := s.stage()
	w[kind] = slices.DeleteFunc(w[kind], func(e core.Entity) bool { return e.EntityID() == id })
	return nil
}

// DeleteAll implements storage.Store.
func (s *Store) DeleteAll(_ context.Context, kind core.Kind) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stage()[kind] = nil
	return nil
}

// FetchAll implements storage.Store.
func (s *Store) FetchAll(_ context.Context, kind core.Kind) ([]core.Entity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	src := s.committed
	if s.working != nil {
		src = s.working
	}
	return slices.Clone(src[kind]), nil
}

// Commit implements storage.Store. A failed commit leaves the staged writes
// in place for the caller to roll back.
func (s *Store) Commit(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.working == nil {
		return nil
	}
	if err := checkIntegrity(s.working); err != nil {
		return &core.PersistenceError{Op: "commit", Err: err}
	}
	s.committed = s.working
	s.working = nil
	return nil
}

// Rollback implements storage.Store.
func (s *Store) Rollback() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.working = nil
	return nil
}

// SaveUser implements storage.UserRecorder.
func (s *Store) SaveUser(ctx context.Context, u core.User) error {
	s.mu.Lock()
	pending := s.working != nil
	s.stage()[core.KindUser] = slices.DeleteFunc(s.stage()[core.KindUser], func(e core.Entity) bool {
		return e.EntityID() == u.ID
	})
	s.mu.Unlock()

	if err := s.Insert(ctx, u); err != nil {
		return err
	}
	if pending {
		return nil
	}
	return s.Commit(ctx)
}

// Counts returns the number of committed entities per kind.
func (s *Store) Counts() map[core.Kind]int {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[core.Kind]int, len(s.committed))
	for k, v := range s.committed {
		out[k] = len(v)
	}
	return out
}

func checkIntegrity(t tables) error {
	categories := make(map[uuid.UUID]core.Category)
	names := make(map[string]struct{})
	for _, e := range t[core.KindCategory] {
		c := e.(core.Category)
		key := string(c.Type) + "/" + strings.ToLower(c.Name)
		if _, dup := names[key]; dup {
			return fmt.Errorf("%w: %s %q", core.ErrDuplicateCategory, c.Type, c.Name)
		}
		names[key] = struct{}{}
		categories[c.ID] = c
	}

	for _, e := range t[core.KindTransaction] {
		tx := e.(core.Transaction)
		if _, ok := categories[tx.CategoryID]; !ok {
			return &core.ReferenceError{Entity: core.KindTransaction, Category: tx.CategoryID.String()}
		}
	}

	active := make(map[uuid.UUID]struct{})
	for _, e := range t[core.KindBudget] {
		b := e.(core.Budget)
		if _, ok := categories[b.CategoryID]; !ok {
			return &core.ReferenceError{Entity: core.KindBudget, Category: b.CategoryID.String()}
		}
		if !b.Active() {
			continue
		}
		if _, dup := active[b.CategoryID]; dup {
			return fmt.Errorf("%w: %s", core.ErrDuplicateBudget, categories[b.CategoryID].Name)
		}
		active[b.CategoryID] = struct{}{}
	}
	return nil
}
