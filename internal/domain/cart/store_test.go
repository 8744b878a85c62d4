package cart

import (
	"context"
	"testing"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bookverse/storefront/internal/domain/catalog"
	"github.com/bookverse/storefront/pkg/money"
)

// --- Mock implementations ---

type mockPersister struct {
	saves []Snapshot
	err   error
}

func (m *mockPersister) Save(_ context.Context, items Snapshot) error {
	m.saves = append(m.saves, items)
	return m.err
}

type mockSink struct {
	events []Event
}

func (m *mockSink) CartEvent(ev Event) {
	m.events = append(m.events, ev)
}

// --- Helpers ---

func newTestBook(id, title string, price money.Amount) catalog.Book {
	return catalog.Book{
		ID:       id,
		Title:    title,
		Author:   "Test Author",
		Price:    price,
		Category: "test",
		ImageURL: "cover.jpg",
	}
}

// --- Tests ---

func TestAdd_MergesSameBook(t *testing.T) {
	s := NewStore(nil, nil, nil, nil)
	ctx := context.Background()

	b := newTestBook("B1", "Dune", 100000)
	s.Add(ctx, b, 2)
	s.Add(ctx, b, 3)

	snap := s.Snapshot()
	require.Len(t, snap, 1)
	assert.Equal(t, 5, snap[0].Quantity)
	assert.Equal(t, money.Amount(500000), s.Subtotal())
	assert.Equal(t, 5, s.ItemCount())
}

func TestAdd_ClampsQuantity(t *testing.T) {
	s := NewStore(nil, nil, nil, nil)

	s.Add(context.Background(), newTestBook("B1", "Dune", 100), 0)

	snap := s.Snapshot()
	require.Len(t, snap, 1)
	assert.Equal(t, 1, snap[0].Quantity)
}

func TestAdd_PreservesInsertionOrder(t *testing.T) {
	s := NewStore(nil, nil, nil, nil)
	ctx := context.Background()

	s.Add(ctx, newTestBook("B1", "Dune", 100), 1)
	s.Add(ctx, newTestBook("B2", "Hyperion", 200), 1)
	s.Add(ctx, newTestBook("B1", "Dune", 100), 1)

	snap := s.Snapshot()
	require.Len(t, snap, 2)
	assert.Equal(t, "B1", snap[0].BookID)
	assert.Equal(t, "B2", snap[1].BookID)
}

func TestRemove_AbsentIsNoop(t *testing.T) {
	s := NewStore(nil, nil, nil, nil)
	ctx := context.Background()
	s.Add(ctx, newTestBook("B1", "Dune", 100), 2)

	s.Remove(ctx, "B99")

	snap := s.Snapshot()
	require.Len(t, snap, 1)
	assert.Equal(t, 2, s.ItemCount())
}

func TestSetQuantity(t *testing.T) {
	tests := []struct {
		name      string
		quantity  int
		wantItems int
		wantCount int
	}{
		{name: "positive sets quantity", quantity: 7, wantItems: 1, wantCount: 7},
		{name: "zero removes item", quantity: 0, wantItems: 0, wantCount: 0},
		{name: "negative removes item", quantity: -3, wantItems: 0, wantCount: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewStore(nil, nil, nil, nil)
			ctx := context.Background()
			s.Add(ctx, newTestBook("B1", "Dune", 100), 2)

			s.SetQuantity(ctx, "B1", tt.quantity)

			assert.Len(t, s.Snapshot(), tt.wantItems)
			assert.Equal(t, tt.wantCount, s.ItemCount())
		})
	}
}

func TestSetQuantity_AbsentIsNoop(t *testing.T) {
	s := NewStore(nil, nil, nil, nil)
	ctx := context.Background()
	s.Add(ctx, newTestBook("B1", "Dune", 100), 2)

	s.SetQuantity(ctx, "B99", 5)

	assert.Equal(t, 2, s.ItemCount())
}

func TestClear_PersistsEmptyCollection(t *testing.T) {
	p := &mockPersister{}
	s := NewStore(nil, p, nil, nil)
	ctx := context.Background()
	s.Add(ctx, newTestBook("B1", "Dune", 100), 1)

	s.Clear(ctx)

	assert.True(t, s.Snapshot().Empty())
	require.NotEmpty(t, p.saves)
	assert.Empty(t, p.saves[len(p.saves)-1])
}

func TestEveryMutationPersists(t *testing.T) {
	p := &mockPersister{}
	s := NewStore(nil, p, nil, nil)
	ctx := context.Background()

	s.Add(ctx, newTestBook("B1", "Dune", 100), 1)
	s.SetQuantity(ctx, "B1", 4)
	s.Remove(ctx, "B1")
	s.Clear(ctx)

	assert.Len(t, p.saves, 4)
}

func TestPersistenceFailureIsSwallowed(t *testing.T) {
	p := &mockPersister{err: errors.New("quota exceeded")}
	s := NewStore(nil, p, nil, nil)

	s.Add(context.Background(), newTestBook("B1", "Dune", 100), 2)

	// In-memory state stays authoritative.
	assert.Equal(t, 2, s.ItemCount())
	assert.Equal(t, money.Amount(200), s.Subtotal())
}

func TestMutationsEmitEvents(t *testing.T) {
	sink := &mockSink{}
	s := NewStore(nil, nil, sink, nil)
	ctx := context.Background()

	s.Add(ctx, newTestBook("B1", "Dune", 100), 2)
	s.SetQuantity(ctx, "B1", 3)
	s.Remove(ctx, "B1")
	s.Clear(ctx)

	require.Len(t, sink.events, 4)
	assert.Equal(t, EventItemAdded, sink.events[0].Type)
	assert.Equal(t, EventQuantityChange, sink.events[1].Type)
	assert.Equal(t, EventItemRemoved, sink.events[2].Type)
	assert.Equal(t, EventCartCleared, sink.events[3].Type)
}

func TestNoopMutationsDoNotPersistOrEmit(t *testing.T) {
	p := &mockPersister{}
	sink := &mockSink{}
	s := NewStore(nil, p, sink, nil)
	ctx := context.Background()

	s.Remove(ctx, "B99")
	s.SetQuantity(ctx, "B99", 5)

	assert.Empty(t, p.saves)
	assert.Empty(t, sink.events)
}

func TestSnapshot_IsDeepCopy(t *testing.T) {
	s := NewStore(nil, nil, nil, nil)
	ctx := context.Background()
	s.Add(ctx, newTestBook("B1", "Dune", 100000), 3)

	snap := s.Snapshot()
	s.SetQuantity(ctx, "B1", 1)

	// The snapshot keeps the totals from the moment it was taken.
	assert.Equal(t, 3, snap.ItemCount())
	assert.Equal(t, money.Amount(300000), snap.Subtotal())
	assert.Equal(t, 1, s.ItemCount())
}

func TestNewStore_SanitizesSeed(t *testing.T) {
	// Persisted slots are not trusted: a tampered or stale slot may carry
	// duplicate ids or non-positive quantities.
	seed := Snapshot{
		{BookID: "B1", Title: "Dune", UnitPrice: 100, Quantity: 0},
		{BookID: "B2", Title: "Hyperion", UnitPrice: 200, Quantity: 3},
		{BookID: "B1", Title: "Dune", UnitPrice: 100, Quantity: 2},
		{BookID: "B2", Title: "Hyperion", UnitPrice: 200, Quantity: 1},
		{BookID: "B3", Title: "Solaris", UnitPrice: 300, Quantity: -5},
	}
	s := NewStore(seed, nil, nil, nil)

	snap := s.Snapshot()
	require.Len(t, snap, 2)
	assert.Equal(t, "B2", snap[0].BookID)
	assert.Equal(t, 4, snap[0].Quantity)
	assert.Equal(t, "B1", snap[1].BookID)
	assert.Equal(t, 2, snap[1].Quantity)
	assert.Equal(t, 6, s.ItemCount())
	assert.Equal(t, money.Amount(1000), s.Subtotal())
}

func TestNewStore_SeedsFromSnapshot(t *testing.T) {
	seed := Snapshot{
		{BookID: "B1", Title: "Dune", UnitPrice: 100, Quantity: 2},
	}
	s := NewStore(seed, nil, nil, nil)

	assert.Equal(t, 2, s.ItemCount())

	// Mutating the seed must not affect the store.
	seed[0].Quantity = 99
	assert.Equal(t, 2, s.ItemCount())
}
