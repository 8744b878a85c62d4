package httpapi

import (
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/bookverse/storefront/internal/domain/cart"
	"github.com/bookverse/storefront/internal/domain/catalog"
	"github.com/bookverse/storefront/internal/session"
)

// cartItemRequest is the body for adding or re-quantifying a cart item.
type cartItemRequest struct {
	BookID   string
	Quantity int
}

func decodeCartItemRequest(data []byte) (cartItemRequest, error) {
	var req cartItemRequest
	err := jx.DecodeBytes(data).Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "book_id":
			v, err := d.Str()
			if err != nil {
				return err
			}
			req.BookID = v
		case "qty", "quantity":
			v, err := d.Int()
			if err != nil {
				return err
			}
			req.Quantity = v
		default:
			return d.Skip()
		}
		return nil
	})
	return req, err
}

func (h *Handler) getCart(w http.ResponseWriter, r *http.Request) {
	st := h.state(w, r)
	writeCart(w, http.StatusOK, st)
}

func (h *Handler) addCartItem(w http.ResponseWriter, r *http.Request) {
	st := h.state(w, r)

	data, err := readBody(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	req, err := decodeCartItemRequest(data)
	if err != nil || req.BookID == "" {
		writeError(w, http.StatusBadRequest, "book_id required")
		return
	}
	if req.Quantity <= 0 {
		req.Quantity = 1
	}

	// Normalize at the catalog boundary: the cart only ever sees the
	// canonical book shape with a server-side price.
	book, err := h.books.GetByID(r.Context(), req.BookID)
	if err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			writeError(w, http.StatusUnprocessableEntity, "book "+req.BookID+" not found")
			return
		}
		zctx.From(r.Context()).Error("catalog fetch failed", zap.Error(err))
		writeError(w, http.StatusBadGateway, "catalog unavailable")
		return
	}

	st.Cart.Add(r.Context(), *book, req.Quantity)
	writeCart(w, http.StatusOK, st)
}

func (h *Handler) setCartItemQuantity(w http.ResponseWriter, r *http.Request) {
	st := h.state(w, r)

	data, err := readBody(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	req, err := decodeCartItemRequest(data)
	if err != nil || req.BookID == "" {
		writeError(w, http.StatusBadRequest, "book_id required")
		return
	}

	st.Cart.SetQuantity(r.Context(), req.BookID, req.Quantity)
	writeCart(w, http.StatusOK, st)
}

func (h *Handler) removeCartItem(w http.ResponseWriter, r *http.Request) {
	st := h.state(w, r)
	st.Cart.Remove(r.Context(), r.PathValue("bookId"))
	writeCart(w, http.StatusOK, st)
}

func (h *Handler) clearCart(w http.ResponseWriter, r *http.Request) {
	st := h.state(w, r)
	st.Cart.Clear(r.Context())
	writeCart(w, http.StatusOK, st)
}

// writeCart sends the cart with its derived totals. Totals are recomputed on
// every read, never stored.
func writeCart(w http.ResponseWriter, status int, st *session.State) {
	snap := st.Cart.Snapshot()

	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("items")
	encodeItems(&e, snap)
	e.FieldStart("item_count")
	e.Int(snap.ItemCount())
	e.FieldStart("subtotal")
	e.Int64(int64(snap.Subtotal()))
	e.ObjEnd()
	writeJSON(w, status, &e)
}

func encodeItems(e *jx.Encoder, snap cart.Snapshot) {
	e.ArrStart()
	for _, item := range snap {
		e.ObjStart()
		e.FieldStart("book_id")
		e.Str(item.BookID)
		e.FieldStart("title")
		e.Str(item.Title)
		e.FieldStart("unit_price")
		e.Int64(int64(item.UnitPrice))
		e.FieldStart("quantity")
		e.Int(item.Quantity)
		e.FieldStart("image")
		e.Str(item.ImageURL)
		e.ObjEnd()
	}
	e.ArrEnd()
}
