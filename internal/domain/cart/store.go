package cart

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/bookverse/storefront/internal/domain/catalog"
	"github.com/bookverse/storefront/pkg/money"
)

// EventType enumerates the facts a Store emits on mutation.
type EventType string

const (
	EventItemAdded      EventType = "item_added"
	EventItemRemoved    EventType = "item_removed"
	EventQuantityChange EventType = "quantity_changed"
	EventCartCleared    EventType = "cart_cleared"
)

// Event is a one-way fact about a cart mutation. Consumers must treat it as
// fire-and-forget: the Store never blocks on, or branches on, delivery.
type Event struct {
	Type     EventType
	BookID   string
	Quantity int
}

// Persister mirrors cart state to a durable slot. Save is called after every
// mutation with the full post-mutation snapshot.
type Persister interface {
	Save(ctx context.Context, items Snapshot) error
}

// EventSink receives mutation facts. Implementations must not block.
type EventSink interface {
	CartEvent(ev Event)
}

// Store is the single source of truth for what the user intends to buy.
// All mutations persist the new snapshot through the injected Persister;
// persistence failures are logged and swallowed because the in-memory state
// stays authoritative for the session.
//
// The store is safe for concurrent use; a mutex serializes mutations so no
// two can interleave.
type Store struct {
	mu     sync.Mutex
	items  []LineItem
	saver  Persister
	events EventSink
	lg     *zap.Logger
}

// NewStore creates a Store seeded with previously persisted line items.
// The seed is sanitized: persisted data the process did not write itself may
// violate the cart invariants, so duplicate book ids are merged and records
// with a quantity below 1 are dropped.
// Both saver and events may be nil, which disables the respective side effect.
func NewStore(seed Snapshot, saver Persister, events EventSink, lg *zap.Logger) *Store {
	if lg == nil {
		lg = zap.NewNop()
	}
	return &Store{
		items:  sanitize(seed),
		saver:  saver,
		events: events,
		lg:     lg,
	}
}

// sanitize re-establishes the cart invariants on a seed snapshot: every book
// id appears at most once and every quantity is at least 1. Duplicates merge
// into the first occurrence, keeping insertion order.
func sanitize(seed Snapshot) []LineItem {
	items := make([]LineItem, 0, len(seed))
	index := make(map[string]int, len(seed))
	for _, item := range seed {
		if item.Quantity < 1 {
			continue
		}
		if i, ok := index[item.BookID]; ok {
			items[i].Quantity += item.Quantity
			continue
		}
		index[item.BookID] = len(items)
		items = append(items, item)
	}
	return items
}

// Add appends the book to the cart with the given quantity, or increments the
// existing line item when the book is already present. Quantities below 1 are
// clamped to 1. Add always succeeds.
func (s *Store) Add(ctx context.Context, book catalog.Book, quantity int) {
	if quantity < 1 {
		quantity = 1
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if i := s.index(book.ID); i >= 0 {
		s.items[i].Quantity += quantity
	} else {
		s.items = append(s.items, LineItem{
			BookID:    book.ID,
			Title:     book.Title,
			UnitPrice: book.Price,
			Quantity:  quantity,
			ImageURL:  book.ImageURL,
		})
	}

	s.persist(ctx)
	s.emit(Event{Type: EventItemAdded, BookID: book.ID, Quantity: quantity})
}

// Remove deletes the line item for bookID. Removing an absent item is a
// no-op, not an error.
func (s *Store) Remove(ctx context.Context, bookID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.index(bookID)
	if i < 0 {
		return
	}
	s.items = append(s.items[:i], s.items[i+1:]...)

	s.persist(ctx)
	s.emit(Event{Type: EventItemRemoved, BookID: bookID})
}

// SetQuantity sets the quantity for bookID. A quantity of zero or below
// removes the line item. Setting quantity on an absent item is a no-op.
func (s *Store) SetQuantity(ctx context.Context, bookID string, quantity int) {
	if quantity <= 0 {
		s.Remove(ctx, bookID)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.index(bookID)
	if i < 0 {
		return
	}
	s.items[i].Quantity = quantity

	s.persist(ctx)
	s.emit(Event{Type: EventQuantityChange, BookID: bookID, Quantity: quantity})
}

// Clear empties the cart. The empty collection is persisted, the slot itself
// is not deleted.
func (s *Store) Clear(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.items = s.items[:0]

	s.persist(ctx)
	s.emit(Event{Type: EventCartCleared})
}

// ItemCount returns the total quantity across all line items.
func (s *Store) ItemCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot(s.items).ItemCount()
}

// Subtotal returns the recomputed sum of unit price times quantity.
func (s *Store) Subtotal() money.Amount {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot(s.items).Subtotal()
}

// Snapshot returns a deep copy of the current line items in insertion order.
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(Snapshot, len(s.items))
	copy(out, s.items)
	return out
}

// index returns the position of bookID in the cart, or -1. Callers must hold
// s.mu.
func (s *Store) index(bookID string) int {
	for i, item := range s.items {
		if item.BookID == bookID {
			return i
		}
	}
	return -1
}

// persist writes the current snapshot through the Persister. This is the one
// persist call site: every mutation funnels through it so the durable copy
// can never silently diverge. Callers must hold s.mu.
func (s *Store) persist(ctx context.Context) {
	if s.saver == nil {
		return
	}
	snap := make(Snapshot, len(s.items))
	copy(snap, s.items)
	if err := s.saver.Save(ctx, snap); err != nil {
		s.lg.Warn("cart persistence failed, in-memory state remains authoritative",
			zap.Error(err))
	}
}

// emit sends a mutation fact to the event sink, if any. Callers must hold
// s.mu; sinks are required to be non-blocking.
func (s *Store) emit(ev Event) {
	if s.events == nil {
		return
	}
	s.events.CartEvent(ev)
}
