// Package session holds the identity of the user working with the ledger.
package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"ledger/internal/core"
	"ledger/internal/log"
	"ledger/internal/storage"
)

// Listener is called with the current user after every login and logout.
// A nil user means nobody is logged in.
type Listener func(*core.User)

type Option func(*Manager)

// WithRecorder persists users created at login.
func WithRecorder(r storage.UserRecorder) Option {
	return func(m *Manager) { m.recorder = r }
}

func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

func WithLogger(l *log.Logger) Option {
	return func(m *Manager) { m.logger = l.WithComponent(log.ComponentSession) }
}

// Manager is the observable identity holder. It is safe for concurrent use;
// listeners run synchronously on the goroutine that changed the identity.
type Manager struct {
	mu        sync.RWMutex
	current   *core.User
	listeners map[int]Listener
	nextID    int

	recorder storage.UserRecorder
	now      func() time.Time
	logger   *log.Logger
}

func NewManager(opts ...Option) *Manager {
	m := &Manager{
		listeners: make(map[int]Listener),
		now:       time.Now,
		logger:    log.Discard(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Login creates a user from name and email, records it when a recorder is
// configured and makes it current. A previous user is replaced.
func (m *Manager) Login(ctx context.Context, name, email string) (core.User, error) {
	u, err := core.NewUser(name, email, m.now())
	if err != nil {
		return core.User{}, err
	}
	if m.recorder != nil {
		if err := m.recorder.SaveUser(ctx, u); err != nil {
			return core.User{}, fmt.Errorf("record user: %w", err)
		}
	}

	m.set(&u)
	m.logger.InfoContext(ctx, "User logged in",
		log.FieldOperation, log.OpLogin, log.FieldUser, u.Email)
	return u, nil
}

// Logout clears the current user. Recorded users are kept.
func (m *Manager) Logout() {
	m.mu.RLock()
	prev := m.current
	m.mu.RUnlock()
	if prev == nil {
		return
	}

	m.set(nil)
	m.logger.Info("User logged out",
		log.FieldOperation, log.OpLogout, log.FieldUser, prev.Email)
}

// CurrentUser returns a copy of the logged in user, or nil.
func (m *Manager) CurrentUser() *core.User {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.current == nil {
		return nil
	}
	u := *m.current
	return &u
}

// Subscribe registers l and returns a function that removes it.
func (m *Manager) Subscribe(l Listener) (cancel func()) {
	m.mu.Lock()
	id := m.nextID
	m.nextID++
	m.listeners[id] = l
	m.mu.Unlock()

	return func() {
		m.mu.Lock()
		delete(m.listeners, id)
		m.mu.Unlock()
	}
}

func (m *Manager) set(u *core.User) {
	m.mu.Lock()
	m.current = u
	listeners := make([]Listener, 0, len(m.listeners))
	for _, l := range m.listeners {
		listeners = append(listeners, l)
	}
	m.mu.Unlock()

	for _, l := range listeners {
		l(m.CurrentUser())
	}
}
