package httpapi

import (
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/bookverse/storefront/internal/domain/checkout"
	"github.com/bookverse/storefront/internal/session"
)

// openCheckout starts a checkout session from the current cart snapshot.
// An empty cart is refused; the client redirects back to the cart view.
func (h *Handler) openCheckout(w http.ResponseWriter, r *http.Request) {
	st := h.state(w, r)

	// An approved-but-uncaptured external order must be resolved first;
	// replacing the session here would orphan it.
	if cur := st.Checkout(); cur != nil && cur.PaymentPending() {
		writeError(w, http.StatusConflict, "a payment is pending; capture or cancel it first")
		return
	}

	cs, err := checkout.New(st.ID, st.Cart.Snapshot(), checkout.Deps{
		Gateway: h.gateway,
		Cart:    st.Cart,
		Orders:  h.orders,
		Notify:  st,
		Logger:  h.lg,
	})
	if err != nil {
		if errors.Is(err, checkout.ErrEmptyCart) {
			writeError(w, http.StatusBadRequest, "cart is empty")
			return
		}
		zctx.From(r.Context()).Error("checkout open failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "could not open checkout")
		return
	}

	st.SetCheckout(cs)
	writeCheckout(w, http.StatusCreated, cs, "")
}

func (h *Handler) checkoutStatus(w http.ResponseWriter, r *http.Request) {
	st := h.state(w, r)
	cs := st.Checkout()
	if cs == nil {
		writeError(w, http.StatusNotFound, "no checkout session")
		return
	}
	writeCheckout(w, http.StatusOK, cs, "")
}

// submitRequest is the checkout form payload.
type submitRequest struct {
	ShippingName    string
	ShippingAddress string
	PaymentMethod   string
}

func decodeSubmitRequest(data []byte) (submitRequest, error) {
	var req submitRequest
	err := jx.DecodeBytes(data).Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "shipping_name":
			v, err := d.Str()
			if err != nil {
				return err
			}
			req.ShippingName = v
		case "shipping_address":
			v, err := d.Str()
			if err != nil {
				return err
			}
			req.ShippingAddress = v
		case "payment_method":
			v, err := d.Str()
			if err != nil {
				return err
			}
			req.PaymentMethod = v
		default:
			return d.Skip()
		}
		return nil
	})
	return req, err
}

func (h *Handler) submitCheckout(w http.ResponseWriter, r *http.Request) {
	st := h.state(w, r)
	cs := st.Checkout()
	if cs == nil {
		writeError(w, http.StatusNotFound, "no checkout session")
		return
	}

	data, err := readBody(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	req, err := decodeSubmitRequest(data)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}

	// Form fields are optional on retry: blank values keep the preserved state.
	if req.ShippingName != "" || req.ShippingAddress != "" {
		if err := cs.SetShipping(req.ShippingName, req.ShippingAddress); err != nil {
			h.writeCheckoutError(w, r, err)
			return
		}
	}
	if req.PaymentMethod != "" {
		if err := cs.SelectMethod(checkout.Method(req.PaymentMethod)); err != nil {
			h.writeCheckoutError(w, r, err)
			return
		}
	}

	res, err := cs.Submit(r.Context())
	if err != nil {
		h.writeCheckoutError(w, r, err)
		return
	}

	h.finishIfTerminal(st, cs)
	writeCheckout(w, http.StatusOK, cs, res.ApprovalOrderID)
}

func (h *Handler) capturePayment(w http.ResponseWriter, r *http.Request) {
	st := h.state(w, r)
	cs := st.Checkout()
	if cs == nil {
		writeError(w, http.StatusNotFound, "no checkout session")
		return
	}

	if _, err := cs.Capture(r.Context()); err != nil {
		h.writeCheckoutError(w, r, err)
		return
	}

	h.finishIfTerminal(st, cs)
	writeCheckout(w, http.StatusOK, cs, "")
}

func (h *Handler) cancelCheckout(w http.ResponseWriter, r *http.Request) {
	st := h.state(w, r)
	cs := st.Checkout()
	if cs == nil {
		writeError(w, http.StatusNotFound, "no checkout session")
		return
	}

	if err := cs.Cancel(); err != nil {
		h.writeCheckoutError(w, r, err)
		return
	}
	writeCheckout(w, http.StatusOK, cs, "")
}

func (h *Handler) drainNotifications(w http.ResponseWriter, r *http.Request) {
	st := h.state(w, r)

	var e jx.Encoder
	e.ArrStart()
	for _, n := range st.DrainNotifications() {
		e.ObjStart()
		e.FieldStart("level")
		e.Str(string(n.Level))
		e.FieldStart("code")
		e.Str(n.Code)
		e.FieldStart("message")
		e.Str(n.Message)
		e.ObjEnd()
	}
	e.ArrEnd()
	writeJSON(w, http.StatusOK, &e)
}

// finishIfTerminal discards the session object once it completes; the
// terminal state has already cleared the cart and archived the order.
func (h *Handler) finishIfTerminal(st *session.State, cs *checkout.Session) {
	if cs.Status() == checkout.StatusCompleted {
		st.CloseCheckout()
	}
}

// writeCheckoutError maps checkout flow errors onto the error envelope.
func (h *Handler) writeCheckoutError(w http.ResponseWriter, r *http.Request, err error) {
	var vErr *checkout.ValidationError
	switch {
	case errors.As(err, &vErr):
		writeError(w, http.StatusUnprocessableEntity, vErr.Error())
	case errors.Is(err, checkout.ErrPaymentInFlight):
		// Duplicate submission while a payment call is outstanding: report
		// conflict, the client treats it as a no-op.
		writeError(w, http.StatusConflict, "payment already in flight")
	case errors.Is(err, checkout.ErrNoPendingPayment):
		writeError(w, http.StatusConflict, "no pending payment")
	case errors.Is(err, checkout.ErrSessionClosed):
		writeError(w, http.StatusGone, "checkout session is closed")
	default:
		zctx.From(r.Context()).Error("checkout operation failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "checkout failed")
	}
}

// writeCheckout sends the session state. The total is the snapshot total
// fixed at checkout entry, never a live cart recompute.
func writeCheckout(w http.ResponseWriter, status int, cs *checkout.Session, approvalOrderID string) {
	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("status")
	e.Str(string(cs.Status()))
	e.FieldStart("total")
	e.Int64(int64(cs.Total()))
	e.FieldStart("item_count")
	e.Int(cs.Snapshot().ItemCount())
	if m := cs.Method(); m != "" {
		e.FieldStart("payment_method")
		e.Str(string(m))
	}
	if approvalOrderID != "" {
		e.FieldStart("approval_order_id")
		e.Str(approvalOrderID)
	}
	if tx := cs.TransactionID(); tx != "" {
		e.FieldStart("transaction_id")
		e.Str(tx)
	}
	e.ObjEnd()
	writeJSON(w, status, &e)
}
