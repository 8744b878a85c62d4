// Package storage provides the durable key-value slot primitive and the cart
// persistence adapter built on top of it.
package storage

import (
	"context"

	"go.uber.org/zap"

	"github.com/bookverse/storefront/internal/domain/cart"
)

// Slot is a string-keyed durable key-value primitive. Last write wins; there
// are no transactional guarantees beyond that.
type Slot interface {
	// Get returns the value for key and whether the key exists.
	Get(ctx context.Context, key string) ([]byte, bool, error)
	// Set writes the value for key, replacing any previous value.
	Set(ctx context.Context, key string, value []byte) error
}

// CartStore mirrors a cart to one slot key. Corruption or storage failure
// must never block the storefront: Load degrades to an empty cart and Save
// reports the error to the caller, who logs and swallows it.
type CartStore struct {
	slot Slot
	key  string
	lg   *zap.Logger
}

// NewCartStore returns a cart persistence adapter bound to the given slot key.
func NewCartStore(slot Slot, key string, lg *zap.Logger) *CartStore {
	if lg == nil {
		lg = zap.NewNop()
	}
	return &CartStore{slot: slot, key: key, lg: lg}
}

// Load reads the persisted cart. A missing key, malformed content, or a slot
// read failure all yield an empty cart: corruption must not block startup.
func (c *CartStore) Load(ctx context.Context) cart.Snapshot {
	data, ok, err := c.slot.Get(ctx, c.key)
	if err != nil {
		c.lg.Warn("cart slot read failed, starting with empty cart",
			zap.String("key", c.key), zap.Error(err))
		return nil
	}
	if !ok {
		return nil
	}

	items, err := cart.Decode(data)
	if err != nil {
		c.lg.Warn("persisted cart is malformed, starting with empty cart",
			zap.String("key", c.key), zap.Error(err))
		return nil
	}
	return items
}

// Save serializes and writes the snapshot. It satisfies cart.Persister.
func (c *CartStore) Save(ctx context.Context, items cart.Snapshot) error {
	return c.slot.Set(ctx, c.key, cart.Encode(items))
}
