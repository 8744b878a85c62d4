// Package analytics emits one-way tracking facts about storefront activity.
//
// The core emits and forgets: delivery is asynchronous, a full queue drops
// events, and no caller ever blocks or branches on whether tracking worked.
package analytics

import (
	"context"
	"time"

	"github.com/bits-and-blooms/bloom/v3"
	"go.uber.org/zap"

	"github.com/bookverse/storefront/internal/domain/cart"
)

// Event is a single tracking fact.
type Event struct {
	Type      string    `json:"action"`
	SessionID string    `json:"session_id"`
	BookID    string    `json:"book_id,omitempty"`
	Quantity  int       `json:"quantity,omitempty"`
	At        time.Time `json:"activity_time"`
}

// Sink delivers events to the analytics backend.
type Sink interface {
	Publish(ctx context.Context, ev Event) error
	Close() error
}

// Dispatcher queues events on a bounded channel and delivers them in the
// background. Events that fail to publish are spooled to disk for replay.
type Dispatcher struct {
	ch    chan Event
	sink  Sink
	spool *Spool
	lg    *zap.Logger

	// seen suppresses duplicate product_view facts. False positives only
	// drop a duplicate-looking view, which is acceptable for tracking.
	seen *bloom.BloomFilter

	done chan struct{}
}

// expected distinct session-book view pairs per process lifetime.
const viewFilterCapacity = 1_000_000

// NewDispatcher starts the delivery goroutine. spool may be nil to disable
// the on-disk fallback; buffer bounds the in-memory queue.
func NewDispatcher(sink Sink, spool *Spool, buffer int, lg *zap.Logger) *Dispatcher {
	if lg == nil {
		lg = zap.NewNop()
	}
	if buffer <= 0 {
		buffer = 1024
	}
	d := &Dispatcher{
		ch:    make(chan Event, buffer),
		sink:  sink,
		spool: spool,
		lg:    lg,
		seen:  bloom.NewWithEstimates(viewFilterCapacity, 0.01),
		done:  make(chan struct{}),
	}
	go d.run()
	return d
}

// Track enqueues an event. It never blocks: when the queue is full the event
// is dropped and counted in the logs.
func (d *Dispatcher) Track(ev Event) {
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}
	select {
	case d.ch <- ev:
	default:
		d.lg.Debug("analytics queue full, dropping event", zap.String("type", ev.Type))
	}
}

// TrackView records a product view, suppressing repeat views of the same book
// within the same session.
func (d *Dispatcher) TrackView(sessionID, bookID string) {
	if d.seen.TestAndAddString(sessionID + "\x00" + bookID) {
		return
	}
	d.Track(Event{Type: "view", SessionID: sessionID, BookID: bookID})
}

// ForSession adapts the dispatcher to the cart's event sink for one session.
func (d *Dispatcher) ForSession(sessionID string) cart.EventSink {
	return &sessionSink{d: d, sessionID: sessionID}
}

type sessionSink struct {
	d         *Dispatcher
	sessionID string
}

func (s *sessionSink) CartEvent(ev cart.Event) {
	s.d.Track(Event{
		Type:      string(ev.Type),
		SessionID: s.sessionID,
		BookID:    ev.BookID,
		Quantity:  ev.Quantity,
	})
}

// Close drains the queue, closes the sink, and flushes the spool.
func (d *Dispatcher) Close() error {
	close(d.ch)
	<-d.done

	var err error
	if d.sink != nil {
		err = d.sink.Close()
	}
	if d.spool != nil {
		if serr := d.spool.Close(); err == nil {
			err = serr
		}
	}
	return err
}

func (d *Dispatcher) run() {
	defer close(d.done)

	for ev := range d.ch {
		d.deliver(ev)
	}
}

func (d *Dispatcher) deliver(ev Event) {
	if d.sink == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	err := d.sink.Publish(ctx, ev)
	cancel()
	if err == nil {
		return
	}

	d.lg.Debug("analytics publish failed", zap.String("type", ev.Type), zap.Error(err))
	if d.spool != nil {
		if serr := d.spool.Append(ev); serr != nil {
			d.lg.Warn("analytics spool write failed", zap.Error(serr))
		}
	}
}

// Replay republishes previously spooled events through Track. Call once at
// startup after the dispatcher is running.
func (d *Dispatcher) Replay(ctx context.Context) {
	if d.spool == nil {
		return
	}
	n, err := d.spool.Replay(ctx, d.Track)
	if err != nil {
		d.lg.Warn("analytics spool replay failed", zap.Error(err))
		return
	}
	if n > 0 {
		d.lg.Info("replayed spooled analytics events", zap.Int("count", n))
	}
}
