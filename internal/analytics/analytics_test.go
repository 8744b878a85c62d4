package analytics

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bookverse/storefront/internal/domain/cart"
)

type memorySink struct {
	mu     sync.Mutex
	events []Event
	err    error
}

func (m *memorySink) Publish(_ context.Context, ev Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.events = append(m.events, ev)
	return nil
}

func (m *memorySink) Close() error { return nil }

func (m *memorySink) snapshot() []Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Event, len(m.events))
	copy(out, m.events)
	return out
}

func TestDispatcher_DeliversInBackground(t *testing.T) {
	sink := &memorySink{}
	d := NewDispatcher(sink, nil, 16, nil)

	d.Track(Event{Type: "view", SessionID: "s1", BookID: "B1"})
	d.Track(Event{Type: "item_added", SessionID: "s1", BookID: "B1"})

	require.NoError(t, d.Close())
	events := sink.snapshot()
	require.Len(t, events, 2)
	assert.Equal(t, "view", events[0].Type)
	assert.False(t, events[0].At.IsZero())
}

func TestDispatcher_TrackNeverBlocksWhenFull(t *testing.T) {
	block := make(chan struct{})
	sink := &blockingSink{release: block}
	d := NewDispatcher(sink, nil, 1, nil)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for range 50 {
			d.Track(Event{Type: "view", SessionID: "s1"})
		}
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Track blocked on a full queue")
	}
	close(block)
	require.NoError(t, d.Close())
}

type blockingSink struct {
	release chan struct{}
	once    sync.Once
}

func (b *blockingSink) Publish(_ context.Context, _ Event) error {
	<-b.release
	return nil
}

func (b *blockingSink) Close() error {
	b.once.Do(func() {
		select {
		case <-b.release:
		default:
			close(b.release)
		}
	})
	return nil
}

func TestTrackView_SuppressesDuplicates(t *testing.T) {
	sink := &memorySink{}
	d := NewDispatcher(sink, nil, 16, nil)

	d.TrackView("s1", "B1")
	d.TrackView("s1", "B1")
	d.TrackView("s1", "B2")
	d.TrackView("s2", "B1")

	require.NoError(t, d.Close())
	assert.Len(t, sink.snapshot(), 3)
}

func TestForSession_AdaptsCartEvents(t *testing.T) {
	sink := &memorySink{}
	d := NewDispatcher(sink, nil, 16, nil)

	es := d.ForSession("s1")
	es.CartEvent(cart.Event{Type: cart.EventItemAdded, BookID: "B1", Quantity: 2})

	require.NoError(t, d.Close())
	events := sink.snapshot()
	require.Len(t, events, 1)
	assert.Equal(t, "item_added", events[0].Type)
	assert.Equal(t, "s1", events[0].SessionID)
	assert.Equal(t, 2, events[0].Quantity)
}

func TestSpool_AppendAndReplay(t *testing.T) {
	dir := t.TempDir()

	s, err := NewSpool(dir)
	require.NoError(t, err)
	require.NoError(t, s.Append(Event{Type: "view", SessionID: "s1", BookID: "B1", At: time.Now().UTC()}))
	require.NoError(t, s.Append(Event{Type: "item_added", SessionID: "s1", BookID: "B2", At: time.Now().UTC()}))
	require.NoError(t, s.Close())

	// A fresh spool (next process run) replays the previous segments.
	s2, err := NewSpool(dir)
	require.NoError(t, err)
	var replayed []Event
	n, err := s2.Replay(context.Background(), func(ev Event) {
		replayed = append(replayed, ev)
	})
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Len(t, replayed, 2)

	// Segments are removed after a clean replay.
	n, err = s2.Replay(context.Background(), func(Event) {})
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestSpool_RespoolDuringReplaySurvives(t *testing.T) {
	dir := t.TempDir()

	s, err := NewSpool(dir)
	require.NoError(t, err)
	require.NoError(t, s.Append(Event{Type: "view", SessionID: "s1", BookID: "B1"}))
	require.NoError(t, s.Append(Event{Type: "item_added", SessionID: "s1", BookID: "B2"}))
	require.NoError(t, s.Close())

	// A delivery that fails mid-replay puts the event back via Append. The
	// respooled copy must land outside the segments Replay removes.
	s2, err := NewSpool(dir)
	require.NoError(t, err)
	var delivered []Event
	n, err := s2.Replay(context.Background(), func(ev Event) {
		if ev.Type == "item_added" {
			require.NoError(t, s2.Append(ev))
			return
		}
		delivered = append(delivered, ev)
	})
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	require.Len(t, delivered, 1)
	require.NoError(t, s2.Close())

	// The next run retries exactly the respooled event.
	s3, err := NewSpool(dir)
	require.NoError(t, err)
	var retried []Event
	n, err = s3.Replay(context.Background(), func(ev Event) {
		retried = append(retried, ev)
	})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	require.Len(t, retried, 1)
	assert.Equal(t, "item_added", retried[0].Type)
	assert.Equal(t, "B2", retried[0].BookID)
}

func TestDispatcher_SpoolsOnPublishFailure(t *testing.T) {
	dir := t.TempDir()
	spool, err := NewSpool(dir)
	require.NoError(t, err)

	sink := &memorySink{err: errors.New("broker down")}
	d := NewDispatcher(sink, spool, 16, nil)
	d.Track(Event{Type: "view", SessionID: "s1", BookID: "B1"})
	require.NoError(t, d.Close())

	spool2, err := NewSpool(dir)
	require.NoError(t, err)
	n, err := spool2.Replay(context.Background(), func(Event) {})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
