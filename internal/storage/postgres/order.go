package postgres

import (
	"context"
	"encoding/json"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bookverse/storefront/internal/domain/checkout"
)

const createOrderSQL = `INSERT INTO orders (id, session_id, items, total, payment_method, transaction_id, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7)`

var _ checkout.Archiver = (*OrderRepository)(nil)

// OrderRepository archives completed checkouts in PostgreSQL.
type OrderRepository struct {
	pool     *pgxpool.Pool
	exponent int32
}

// NewOrderRepository returns an OrderRepository that uses the given pool.
// The exponent converts minor-unit totals into the NUMERIC column's major
// units.
func NewOrderRepository(pool *pgxpool.Pool, exponent int32) *OrderRepository {
	return &OrderRepository{pool: pool, exponent: exponent}
}

// Archive persists a completed checkout record. Line items are serialized to
// JSON for the JSONB column.
func (r *OrderRepository) Archive(ctx context.Context, rec *checkout.Record) error {
	type itemRow struct {
		BookID    string `json:"id"`
		Title     string `json:"title"`
		UnitPrice int64  `json:"unitPrice"`
		Quantity  int    `json:"quantity"`
	}
	rows := make([]itemRow, len(rec.Items))
	for i, item := range rec.Items {
		rows[i] = itemRow{
			BookID:    item.BookID,
			Title:     item.Title,
			UnitPrice: int64(item.UnitPrice),
			Quantity:  item.Quantity,
		}
	}
	itemsJSON, err := json.Marshal(rows)
	if err != nil {
		return errors.Wrap(err, "marshal order items")
	}

	_, err = r.pool.Exec(ctx, createOrderSQL,
		rec.ID,
		rec.SessionID,
		itemsJSON,
		rec.Total.Decimal(r.exponent),
		string(rec.Method),
		rec.TransactionID,
		rec.CreatedAt,
	)
	if err != nil {
		return errors.Wrapf(err, "archive order %s", rec.ID)
	}

	return nil
}
