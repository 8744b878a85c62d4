// Package httpapi exposes the storefront REST surface: catalog browsing,
// cart mutation, and the checkout flow, all scoped to a storefront session.
package httpapi

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/bookverse/storefront/internal/analytics"
	"github.com/bookverse/storefront/internal/domain/catalog"
	"github.com/bookverse/storefront/internal/domain/checkout"
	"github.com/bookverse/storefront/internal/session"
)

// sessionHeader carries the storefront session id. A request without one gets
// a freshly minted id echoed back; clients persist and resend it.
const sessionHeader = "X-Session-ID"

// Handler implements the storefront endpoints, delegating business logic to
// the session manager, catalog source, and checkout collaborators.
type Handler struct {
	sessions *session.Manager
	books    catalog.Source
	gateway  checkout.PaymentGateway
	orders   checkout.Archiver
	tracker  *analytics.Dispatcher
	lg       *zap.Logger
}

// NewHandler constructs a Handler. orders and tracker may be nil.
func NewHandler(
	sessions *session.Manager,
	books catalog.Source,
	gateway checkout.PaymentGateway,
	orders checkout.Archiver,
	tracker *analytics.Dispatcher,
	lg *zap.Logger,
) *Handler {
	if lg == nil {
		lg = zap.NewNop()
	}
	return &Handler{
		sessions: sessions,
		books:    books,
		gateway:  gateway,
		orders:   orders,
		tracker:  tracker,
		lg:       lg,
	}
}

// Routes returns the API mux. Paths mirror the storefront backend the web
// client already speaks.
func (h *Handler) Routes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/catalog/books", h.listBooks)
	mux.HandleFunc("GET /api/catalog/books/{id}", h.getBook)

	mux.HandleFunc("GET /api/cart", h.getCart)
	mux.HandleFunc("POST /api/cart/items", h.addCartItem)
	mux.HandleFunc("PATCH /api/cart/items/qty", h.setCartItemQuantity)
	mux.HandleFunc("DELETE /api/cart/items/{bookId}", h.removeCartItem)
	mux.HandleFunc("DELETE /api/cart", h.clearCart)

	mux.HandleFunc("POST /api/checkout", h.openCheckout)
	mux.HandleFunc("GET /api/checkout", h.checkoutStatus)
	mux.HandleFunc("POST /api/checkout/submit", h.submitCheckout)
	mux.HandleFunc("POST /api/checkout/paypal/capture", h.capturePayment)
	mux.HandleFunc("POST /api/checkout/cancel", h.cancelCheckout)

	mux.HandleFunc("GET /api/notifications", h.drainNotifications)

	return mux
}

// state resolves the storefront session for the request, minting an id when
// none is supplied, and always echoes the id on the response.
func (h *Handler) state(w http.ResponseWriter, r *http.Request) *session.State {
	id := r.Header.Get(sessionHeader)
	if id == "" {
		id = h.sessions.Mint()
	}
	w.Header().Set(sessionHeader, id)
	return h.sessions.Get(r.Context(), id)
}
