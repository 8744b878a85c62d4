package storage

import (
	"context"
	"testing"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bookverse/storefront/internal/domain/cart"
)

type fakeSlot struct {
	values map[string][]byte
	getErr error
	setErr error
}

func newFakeSlot() *fakeSlot {
	return &fakeSlot{values: make(map[string][]byte)}
}

func (s *fakeSlot) Get(_ context.Context, key string) ([]byte, bool, error) {
	if s.getErr != nil {
		return nil, false, s.getErr
	}
	v, ok := s.values[key]
	return v, ok, nil
}

func (s *fakeSlot) Set(_ context.Context, key string, value []byte) error {
	if s.setErr != nil {
		return s.setErr
	}
	s.values[key] = value
	return nil
}

func TestCartStore_SaveLoadRoundTrip(t *testing.T) {
	slot := newFakeSlot()
	cs := NewCartStore(slot, "cart:sess-1", nil)
	ctx := context.Background()

	items := cart.Snapshot{
		{BookID: "B1", Title: "Dune", UnitPrice: 100000, Quantity: 2, ImageURL: "dune.jpg"},
	}
	require.NoError(t, cs.Save(ctx, items))

	loaded := cs.Load(ctx)
	assert.Equal(t, items, loaded)

	// save(load()) produces byte-identical persisted output.
	before := append([]byte(nil), slot.values["cart:sess-1"]...)
	require.NoError(t, cs.Save(ctx, loaded))
	assert.Equal(t, before, slot.values["cart:sess-1"])
}

func TestCartStore_LoadDegradesToEmpty(t *testing.T) {
	tests := []struct {
		name string
		slot *fakeSlot
	}{
		{name: "missing key", slot: newFakeSlot()},
		{name: "read failure", slot: &fakeSlot{getErr: errors.New("disk gone")}},
		{name: "malformed content", slot: &fakeSlot{
			values: map[string][]byte{"cart:sess-1": []byte("{corrupt")},
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cs := NewCartStore(tt.slot, "cart:sess-1", nil)
			assert.Empty(t, cs.Load(context.Background()))
		})
	}
}

func TestCartStore_SaveEmptyWritesEmptyCollection(t *testing.T) {
	slot := newFakeSlot()
	cs := NewCartStore(slot, "cart:sess-1", nil)
	ctx := context.Background()

	require.NoError(t, cs.Save(ctx, nil))

	data, ok := slot.values["cart:sess-1"]
	require.True(t, ok, "clearing writes an empty collection, not a slot deletion")
	assert.Equal(t, "[]", string(data))
}

func TestFileSlot(t *testing.T) {
	slot, err := NewFileSlot(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	_, ok, err := slot.Get(ctx, "cart:sess-1")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, slot.Set(ctx, "cart:sess-1", []byte(`[{"id":"B1"}]`)))
	data, ok, err := slot.Get(ctx, "cart:sess-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, `[{"id":"B1"}]`, string(data))

	// Last write wins.
	require.NoError(t, slot.Set(ctx, "cart:sess-1", []byte(`[]`)))
	data, _, err = slot.Get(ctx, "cart:sess-1")
	require.NoError(t, err)
	assert.Equal(t, `[]`, string(data))
}
