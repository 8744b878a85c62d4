// Package session ties carts and checkout flows to storefront sessions.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/bookverse/storefront/internal/analytics"
	"github.com/bookverse/storefront/internal/domain/cart"
	"github.com/bookverse/storefront/internal/domain/checkout"
	"github.com/bookverse/storefront/internal/storage"
)

// State is everything owned by one storefront session: its cart store, at
// most one live checkout session, and the pending user notifications.
type State struct {
	ID   string
	Cart *cart.Store

	mu       sync.Mutex
	checkout *checkout.Session
	notes    []checkout.Notification
	lastSeen time.Time
}

// maxPendingNotes bounds the per-session notification buffer; older entries
// are dropped first since the sink is fire-and-forget.
const maxPendingNotes = 16

// Notify implements checkout.Notifier.
func (s *State) Notify(n checkout.Notification) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.notes = append(s.notes, n)
	if len(s.notes) > maxPendingNotes {
		s.notes = s.notes[len(s.notes)-maxPendingNotes:]
	}
}

// DrainNotifications returns and clears the pending notifications.
func (s *State) DrainNotifications() []checkout.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := s.notes
	s.notes = nil
	return out
}

// Checkout returns the live checkout session, or nil.
func (s *State) Checkout() *checkout.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.checkout
}

// SetCheckout installs a checkout session, replacing any previous one. A
// replaced session is simply discarded: checkout sessions are never persisted.
func (s *State) SetCheckout(c *checkout.Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.checkout = c
}

// CloseCheckout discards the live checkout session.
func (s *State) CloseCheckout() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.checkout = nil
}

func (s *State) touch(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastSeen = now
}

func (s *State) idleSince(now time.Time, ttl time.Duration) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return now.Sub(s.lastSeen) > ttl
}

// Manager creates session state lazily and evicts idle sessions. Evicting a
// session loses only in-memory state: the cart was persisted on every
// mutation and is reloaded from its slot on the next touch.
type Manager struct {
	slot       storage.Slot
	dispatcher *analytics.Dispatcher
	lg         *zap.Logger
	ttl        time.Duration

	mu       sync.Mutex
	sessions map[string]*State
}

// NewManager creates a Manager. dispatcher may be nil to disable tracking.
func NewManager(slot storage.Slot, dispatcher *analytics.Dispatcher, ttl time.Duration, lg *zap.Logger) *Manager {
	if lg == nil {
		lg = zap.NewNop()
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Manager{
		slot:       slot,
		dispatcher: dispatcher,
		lg:         lg,
		ttl:        ttl,
		sessions:   make(map[string]*State),
	}
}

// Mint returns a fresh session id.
func (m *Manager) Mint() string {
	return uuid.New().String()
}

// Get returns the state for id, creating it on first touch. Creation loads
// the persisted cart once; afterwards the in-memory store is authoritative.
func (m *Manager) Get(ctx context.Context, id string) *State {
	now := time.Now()

	m.mu.Lock()
	if st, ok := m.sessions[id]; ok {
		m.mu.Unlock()
		st.touch(now)
		return st
	}
	m.mu.Unlock()

	// Build outside the lock: loading the slot can block on I/O.
	persister := storage.NewCartStore(m.slot, cartKey(id), m.lg)
	var events cart.EventSink
	if m.dispatcher != nil {
		events = m.dispatcher.ForSession(id)
	}
	store := cart.NewStore(persister.Load(ctx), persister, events, m.lg)

	m.mu.Lock()
	defer m.mu.Unlock()
	if st, ok := m.sessions[id]; ok {
		// Lost the race; keep the first store so there is one owner.
		st.touch(now)
		return st
	}
	st := &State{ID: id, Cart: store, lastSeen: now}
	m.sessions[id] = st
	return st
}

// StartEviction launches a background loop removing idle sessions until ctx
// is cancelled.
func (m *Manager) StartEviction(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				m.evict(now)
			}
		}
	}()
}

func (m *Manager) evict(now time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for id, st := range m.sessions {
		if st.idleSince(now, m.ttl) {
			delete(m.sessions, id)
		}
	}
}

func cartKey(sessionID string) string {
	return "cart:" + sessionID
}
