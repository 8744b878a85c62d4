package checkout

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/bookverse/storefront/internal/domain/cart"
	"github.com/bookverse/storefront/pkg/money"
)

// Deps are the collaborators a checkout session talks to. Gateway and Cart
// are required; Orders and Notify may be nil.
type Deps struct {
	Gateway PaymentGateway
	Cart    CartClearer
	Orders  Archiver
	Notify  Notifier
	Logger  *zap.Logger
}

// Session is a short-lived checkout state machine driven by the cart snapshot
// taken at entry. It never mutates the live cart except for the Clear request
// on success, and it is never persisted: a process restart loses it and the
// user starts over from the cart.
type Session struct {
	mu sync.Mutex

	id       string
	snapshot cart.Snapshot
	total    money.Amount

	shippingName    string
	shippingAddress string
	method          Method
	status          Status

	// externalOrderID is set while a PayPal order awaits approval or capture.
	externalOrderID string
	transactionID   string

	// inFlight guards against double submission while a gateway call is
	// outstanding. One flag per session, not per request.
	inFlight bool

	deps Deps
}

// New opens a checkout session for the given cart snapshot. It refuses entry
// with an empty cart so the flow can never reach payment with nothing to pay
// for. The displayed and charged total is fixed at this moment.
func New(sessionID string, snapshot cart.Snapshot, deps Deps) (*Session, error) {
	if snapshot.Empty() {
		return nil, ErrEmptyCart
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}

	snap := make(cart.Snapshot, len(snapshot))
	copy(snap, snapshot)

	return &Session{
		id:       sessionID,
		snapshot: snap,
		total:    snap.Subtotal(),
		status:   StatusCollectingInfo,
		deps:     deps,
	}, nil
}

// ID returns the storefront session id this checkout belongs to.
func (s *Session) ID() string {
	return s.id
}

// Status returns the current state.
func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Total returns the subtotal fixed at checkout entry. It is intentionally not
// recomputed from the live cart: the amount shown to the user must match the
// amount sent to the payment gateway even if the cart changes in another view.
func (s *Session) Total() money.Amount {
	return s.total
}

// Snapshot returns the line items fixed at checkout entry.
func (s *Session) Snapshot() cart.Snapshot {
	return s.snapshot
}

// Method returns the selected payment method, empty until selected.
func (s *Session) Method() Method {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.method
}

// PaymentPending reports whether an external order is awaiting approval or
// capture. A session in this state must be captured or cancelled before it
// can be replaced, otherwise the external order is orphaned.
func (s *Session) PaymentPending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status == StatusAwaitingPayment && s.externalOrderID != ""
}

// TransactionID returns the capture transaction id after completion.
func (s *Session) TransactionID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.transactionID
}

// SetShipping records the shipping details. Allowed in any non-terminal state
// so a cancelled or failed session keeps editable form state.
func (s *Session) SetShipping(name, address string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status == StatusCompleted {
		return ErrSessionClosed
	}
	s.shippingName = name
	s.shippingAddress = address
	return nil
}

// SelectMethod records the payment method choice.
func (s *Session) SelectMethod(m Method) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status == StatusCompleted {
		return ErrSessionClosed
	}
	if !m.valid() {
		return &ValidationError{Reason: "unknown payment method " + string(m)}
	}
	s.method = m
	return nil
}

// SubmitResult tells the caller what happened on submit.
type SubmitResult struct {
	Status Status
	// ApprovalOrderID is set when an external PayPal order awaits user
	// approval; the caller forwards it to the approval UI.
	ApprovalOrderID string
}

// Submit drives the session out of collecting_info. Validation failures keep
// the session where it is and surface a ValidationError. For cod and card the
// session completes immediately; for paypal an external order is created and
// the session stays in awaiting_payment until Capture or Cancel.
//
// Submit from failed or cancelled is the retry path: it re-runs the same
// branch with the preserved form state, creating a new external order.
func (s *Session) Submit(ctx context.Context) (*SubmitResult, error) {
	s.mu.Lock()

	switch s.status {
	case StatusCompleted:
		s.mu.Unlock()
		return nil, ErrSessionClosed
	case StatusAwaitingPayment:
		if s.inFlight || s.externalOrderID != "" {
			s.mu.Unlock()
			return nil, ErrPaymentInFlight
		}
	case StatusCollectingInfo, StatusCancelled, StatusFailed:
		// Valid entry points.
	}

	if err := s.validateLocked(); err != nil {
		s.mu.Unlock()
		s.notify(Notification{
			Level:   LevelError,
			Code:    "checkout_validation_failed",
			Message: err.Error(),
		})
		return nil, err
	}

	s.status = StatusAwaitingPayment
	method := s.method

	switch method {
	case MethodCOD, MethodCard:
		// Confirmation-only paths: no external payment call. The card branch
		// completing without capture mirrors the legacy storefront behaviour.
		s.mu.Unlock()
		s.complete(ctx, "")
		return &SubmitResult{Status: StatusCompleted}, nil

	case MethodPayPal:
		s.inFlight = true
		total := s.total
		s.mu.Unlock()

		orderID, err := s.deps.Gateway.CreateOrder(ctx, total)

		s.mu.Lock()
		s.inFlight = false
		if err != nil {
			s.status = StatusFailed
			s.externalOrderID = ""
			s.mu.Unlock()
			s.deps.Logger.Warn("paypal order creation failed", zap.Error(err))
			s.notify(Notification{
				Level:   LevelError,
				Code:    "payment_create_failed",
				Message: "failed to create PayPal order",
			})
			return &SubmitResult{Status: StatusFailed}, nil
		}
		s.externalOrderID = orderID
		s.mu.Unlock()

		return &SubmitResult{Status: StatusAwaitingPayment, ApprovalOrderID: orderID}, nil
	}

	// validateLocked guarantees a known method; this is unreachable.
	s.mu.Unlock()
	return nil, &ValidationError{Reason: "unknown payment method"}
}

// Capture finalizes the approved PayPal order. On gateway failure the session
// moves to failed with the method preserved; a later Submit retries with a
// brand new external order.
func (s *Session) Capture(ctx context.Context) (*SubmitResult, error) {
	s.mu.Lock()

	if s.status == StatusCompleted {
		s.mu.Unlock()
		return nil, ErrSessionClosed
	}
	if s.inFlight {
		s.mu.Unlock()
		return nil, ErrPaymentInFlight
	}
	if s.status != StatusAwaitingPayment || s.externalOrderID == "" {
		s.mu.Unlock()
		return nil, ErrNoPendingPayment
	}

	s.inFlight = true
	orderID := s.externalOrderID
	s.mu.Unlock()

	res, err := s.deps.Gateway.Capture(ctx, orderID)

	s.mu.Lock()
	s.inFlight = false
	if err != nil {
		s.status = StatusFailed
		s.externalOrderID = ""
		s.mu.Unlock()
		s.deps.Logger.Warn("paypal capture failed",
			zap.String("external_order_id", orderID),
			zap.Error(err))
		s.notify(Notification{
			Level:   LevelError,
			Code:    "payment_capture_failed",
			Message: "payment failed, please try again",
		})
		return &SubmitResult{Status: StatusFailed}, nil
	}
	s.mu.Unlock()

	s.complete(ctx, res.TransactionID)
	return &SubmitResult{Status: StatusCompleted}, nil
}

// Cancel records an explicit user cancellation during payment. It is distinct
// from failure: shipping details survive and the user is returned to the form.
func (s *Session) Cancel() error {
	s.mu.Lock()

	if s.status == StatusCompleted {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	if s.inFlight {
		s.mu.Unlock()
		return ErrPaymentInFlight
	}
	s.status = StatusCancelled
	s.externalOrderID = ""
	s.mu.Unlock()

	s.notify(Notification{
		Level:   LevelInfo,
		Code:    "payment_cancelled",
		Message: "payment cancelled",
	})
	return nil
}

// validateLocked gates the transition to awaiting_payment. Callers hold s.mu.
func (s *Session) validateLocked() error {
	if s.snapshot.Empty() {
		return &ValidationError{Reason: "cart is empty"}
	}
	if s.shippingName == "" || s.shippingAddress == "" {
		return &ValidationError{Reason: "shipping name and address required"}
	}
	if s.method == "" {
		return &ValidationError{Reason: "payment method required"}
	}
	if !s.method.valid() {
		return &ValidationError{Reason: "unknown payment method " + string(s.method)}
	}
	return nil
}

// complete runs the terminal transition: clear the live cart, archive the
// order, notify. Archive and notification failures are logged, never
// surfaced; the checkout already succeeded.
func (s *Session) complete(ctx context.Context, transactionID string) {
	s.mu.Lock()
	s.status = StatusCompleted
	s.transactionID = transactionID
	method := s.method
	s.mu.Unlock()

	if s.deps.Cart != nil {
		s.deps.Cart.Clear(ctx)
	}

	if s.deps.Orders != nil {
		rec := &Record{
			ID:            uuid.New().String(),
			SessionID:     s.id,
			Items:         s.snapshot,
			Total:         s.total,
			Method:        method,
			TransactionID: transactionID,
			CreatedAt:     time.Now().UTC(),
		}
		if err := s.deps.Orders.Archive(ctx, rec); err != nil {
			s.deps.Logger.Warn("order archive failed",
				zap.String("order_id", rec.ID),
				zap.Error(err))
		}
	}

	s.notify(Notification{
		Level:   LevelSuccess,
		Code:    "checkout_completed",
		Message: "order confirmed",
	})
}

func (s *Session) notify(n Notification) {
	if s.deps.Notify == nil {
		return
	}
	s.deps.Notify.Notify(n)
}
