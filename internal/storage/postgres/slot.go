package postgres

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bookverse/storefront/internal/storage"
)

const (
	getSlotSQL = `SELECT value FROM kv_slots WHERE key = $1`

	setSlotSQL = `INSERT INTO kv_slots (key, value, updated_at) VALUES ($1, $2, now())
	ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = now()`
)

var _ storage.Slot = (*SlotRepository)(nil)

// SlotRepository implements storage.Slot backed by a PostgreSQL table.
// Upserts give last-write-wins semantics per key.
type SlotRepository struct {
	pool *pgxpool.Pool
}

// NewSlotRepository returns a SlotRepository that uses the given pool.
func NewSlotRepository(pool *pgxpool.Pool) *SlotRepository {
	return &SlotRepository{pool: pool}
}

// Get implements storage.Slot.
func (r *SlotRepository) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var value []byte
	err := r.pool.QueryRow(ctx, getSlotSQL, key).Scan(&value)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, errors.Wrapf(err, "read slot %s", key)
	}
	return value, true, nil
}

// Set implements storage.Slot.
func (r *SlotRepository) Set(ctx context.Context, key string, value []byte) error {
	if _, err := r.pool.Exec(ctx, setSlotSQL, key, value); err != nil {
		return errors.Wrapf(err, "write slot %s", key)
	}
	return nil
}
