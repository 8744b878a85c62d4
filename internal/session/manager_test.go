package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bookverse/storefront/internal/domain/catalog"
	"github.com/bookverse/storefront/internal/domain/checkout"
	"github.com/bookverse/storefront/internal/storage"
)

func newTestManager(t *testing.T) (*Manager, storage.Slot) {
	t.Helper()
	slot, err := storage.NewFileSlot(t.TempDir())
	require.NoError(t, err)
	return NewManager(slot, nil, time.Hour, nil), slot
}

func TestGet_CreatesOncePerID(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	a := m.Get(ctx, "s1")
	b := m.Get(ctx, "s1")
	c := m.Get(ctx, "s2")

	assert.Same(t, a, b)
	assert.NotSame(t, a, c)
}

func TestGet_ReloadsPersistedCartAfterEviction(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	st := m.Get(ctx, "s1")
	st.Cart.Add(ctx, catalog.Book{ID: "B1", Title: "Dune", Price: 100000}, 2)

	// Simulate idle eviction, then touch the session again.
	m.evict(time.Now().Add(2 * time.Hour))
	st2 := m.Get(ctx, "s1")

	require.NotSame(t, st, st2)
	assert.Equal(t, 2, st2.Cart.ItemCount())
}

func TestEviction_DropsCheckoutSession(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	st := m.Get(ctx, "s1")
	st.Cart.Add(ctx, catalog.Book{ID: "B1", Price: 100}, 1)
	cs, err := checkout.New("s1", st.Cart.Snapshot(), checkout.Deps{})
	require.NoError(t, err)
	st.SetCheckout(cs)

	m.evict(time.Now().Add(2 * time.Hour))
	st2 := m.Get(ctx, "s1")

	// Checkout sessions are never persisted; the cart survives.
	assert.Nil(t, st2.Checkout())
	assert.Equal(t, 1, st2.Cart.ItemCount())
}

func TestNotifications_DrainOnce(t *testing.T) {
	m, _ := newTestManager(t)
	st := m.Get(context.Background(), "s1")

	st.Notify(checkout.Notification{Level: checkout.LevelInfo, Code: "a"})
	st.Notify(checkout.Notification{Level: checkout.LevelError, Code: "b"})

	notes := st.DrainNotifications()
	require.Len(t, notes, 2)
	assert.Empty(t, st.DrainNotifications())
}

func TestMint_Unique(t *testing.T) {
	m, _ := newTestManager(t)
	assert.NotEqual(t, m.Mint(), m.Mint())
}
