package checkout

import (
	"context"
	"time"

	"github.com/go-faster/errors"

	"github.com/bookverse/storefront/internal/domain/cart"
	"github.com/bookverse/storefront/pkg/money"
)

// Method enumerates the supported payment methods.
type Method string

const (
	MethodCard   Method = "card"
	MethodCOD    Method = "cod"
	MethodPayPal Method = "paypal"
)

// valid reports whether m is a known payment method.
func (m Method) valid() bool {
	switch m {
	case MethodCard, MethodCOD, MethodPayPal:
		return true
	}
	return false
}

// Status enumerates the checkout session states.
type Status string

const (
	// StatusCollectingInfo is the initial state: the user is supplying
	// shipping details and selecting a payment method.
	StatusCollectingInfo Status = "collecting_info"
	// StatusAwaitingPayment means an external payment is outstanding.
	StatusAwaitingPayment Status = "awaiting_payment"
	// StatusCompleted is the only terminal state.
	StatusCompleted Status = "completed"
	// StatusCancelled means the user backed out of payment. The session
	// continues: shipping details are preserved and the user may submit again.
	StatusCancelled Status = "cancelled"
	// StatusFailed means payment creation or capture failed. The chosen
	// method is preserved so the user can retry with one click.
	StatusFailed Status = "failed"
)

// Sentinel errors for checkout flow control.
var (
	// ErrEmptyCart refuses checkout entry with an empty cart snapshot.
	ErrEmptyCart = errors.New("cart is empty")
	// ErrPaymentInFlight means a payment call is already outstanding for this
	// session. Callers treat it as a no-op, not a failure.
	ErrPaymentInFlight = errors.New("payment already in flight")
	// ErrNoPendingPayment means capture or cancel was requested without an
	// outstanding external payment order.
	ErrNoPendingPayment = errors.New("no pending payment")
	// ErrSessionClosed means the session already reached its terminal state.
	ErrSessionClosed = errors.New("checkout session is closed")
)

// ValidationError blocks a state transition until the user corrects input.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "checkout validation failed: " + e.Reason
}

// CaptureResult holds the outcome of a successful payment capture.
type CaptureResult struct {
	TransactionID string
}

// ErrPaymentDeclined indicates the gateway rejected the payment. It is
// retryable like any other payment failure.
var ErrPaymentDeclined = errors.New("payment declined")

// PaymentGateway is the external payment submission interface. Its timeout
// and retry policy are its own concern.
type PaymentGateway interface {
	// CreateOrder registers a payment order for the given amount and returns
	// the external order id the user must approve.
	CreateOrder(ctx context.Context, amount money.Amount) (string, error)
	// Capture finalizes an approved payment order into an actual charge.
	Capture(ctx context.Context, externalOrderID string) (*CaptureResult, error)
}

// CartClearer is the one write the checkout flow performs against the live
// cart, and only on success.
type CartClearer interface {
	Clear(ctx context.Context)
}

// Record is the archived form of a completed checkout.
type Record struct {
	ID            string
	SessionID     string
	Items         cart.Snapshot
	Total         money.Amount
	Method        Method
	TransactionID string
	CreatedAt     time.Time
}

// Archiver persists completed checkout records for order history. Archive
// failures never fail the checkout.
type Archiver interface {
	Archive(ctx context.Context, rec *Record) error
}

// Level classifies user-facing notifications.
type Level string

const (
	LevelSuccess Level = "success"
	LevelError   Level = "error"
	LevelInfo    Level = "info"
)

// Notification is a semantic fire-and-forget message for the user. Rendering
// is the consumer's concern.
type Notification struct {
	Level   Level
	Code    string
	Message string
}

// Notifier receives notifications. Implementations must not block.
type Notifier interface {
	Notify(n Notification)
}
