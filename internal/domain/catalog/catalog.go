package catalog

import (
	"context"

	"github.com/go-faster/errors"

	"github.com/bookverse/storefront/pkg/money"
)

// ErrNotFound is returned when a requested book does not exist.
var ErrNotFound = errors.New("book not found")

// Book represents a catalog item available for purchase. This is the one
// canonical shape: every external representation is normalized into it at the
// catalog boundary before it reaches the cart.
type Book struct {
	ID       string
	Title    string
	Author   string
	Price    money.Amount
	Category string
	ImageURL string
}

// Source defines read operations against the remote catalog backend.
type Source interface {
	GetByID(ctx context.Context, id string) (*Book, error)
	List(ctx context.Context, category string) ([]Book, error)
	Search(ctx context.Context, query string) ([]Book, error)
}
