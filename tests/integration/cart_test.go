//go:build integration

package integration

import (
	"net/http"
	"testing"
)

func TestCartLifecycle(t *testing.T) {
	s := &storeSession{}

	resp := s.do(t, http.MethodGet, "/api/cart", nil)
	cart := decodeJSON[cartResponse](t, resp)
	resp.Body.Close()
	if cart.ItemCount != 0 {
		t.Fatalf("fresh cart not empty: %d items", cart.ItemCount)
	}
	if s.id == "" {
		t.Fatal("no session id minted")
	}

	// Add two copies, then one more of the same book: quantities merge.
	resp = s.do(t, http.MethodPost, "/api/cart/items", map[string]any{"book_id": "b-001", "qty": 2})
	cart = decodeJSON[cartResponse](t, resp)
	resp.Body.Close()
	if cart.ItemCount != 2 {
		t.Fatalf("after add: got %d items, want 2", cart.ItemCount)
	}
	if cart.Subtotal != 2700 {
		t.Fatalf("after add: got subtotal %d, want 2700", cart.Subtotal)
	}

	resp = s.do(t, http.MethodPost, "/api/cart/items", map[string]any{"book_id": "b-001", "qty": 1})
	cart = decodeJSON[cartResponse](t, resp)
	resp.Body.Close()
	if len(cart.Items) != 1 || cart.ItemCount != 3 {
		t.Fatalf("after merge: got %d lines / %d items, want 1 / 3", len(cart.Items), cart.ItemCount)
	}

	// Setting the quantity to zero removes the line.
	resp = s.do(t, http.MethodPatch, "/api/cart/items/qty", map[string]any{"book_id": "b-001", "qty": 0})
	cart = decodeJSON[cartResponse](t, resp)
	resp.Body.Close()
	if cart.ItemCount != 0 || cart.Subtotal != 0 {
		t.Fatalf("after zero qty: got %d items / subtotal %d, want empty", cart.ItemCount, cart.Subtotal)
	}
}

func TestAddUnknownBook(t *testing.T) {
	s := &storeSession{}

	resp := s.do(t, http.MethodPost, "/api/cart/items", map[string]any{"book_id": "nope", "qty": 1})
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", resp.StatusCode)
	}
}

func TestCartIsolatedPerSession(t *testing.T) {
	a := &storeSession{}
	b := &storeSession{}

	resp := a.do(t, http.MethodPost, "/api/cart/items", map[string]any{"book_id": "b-002", "qty": 1})
	resp.Body.Close()

	resp = b.do(t, http.MethodGet, "/api/cart", nil)
	cart := decodeJSON[cartResponse](t, resp)
	resp.Body.Close()

	if cart.ItemCount != 0 {
		t.Fatalf("session b sees session a's cart: %d items", cart.ItemCount)
	}
}
