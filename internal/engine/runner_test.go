package engine

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"ticktaker/internal/broker"
	"ticktaker/internal/journal"
	"ticktaker/internal/md"
	"ticktaker/internal/state"
)

type fakeBroker struct {
	clock    broker.Clock
	clockErr error
}

func (f *fakeBroker) Clock(ctx context.Context) (broker.Clock, error) {
	return f.clock, f.clockErr
}

func (f *fakeBroker) StreamTradeUpdates(ctx context.Context, handler func(md.OrderUpdate)) error {
	<-ctx.Done()
	return ctx.Err()
}

type orderEvent struct {
	event string
	order *state.Order
}

type recorderStrategy struct {
	symbol   string
	startErr error
	started  bool
	stopped  bool
	quotes   []*md.Quote
	trades   []md.Trade
	updates  []orderEvent
}

func (r *recorderStrategy) Symbol() string { return r.symbol }

func (r *recorderStrategy) Start(ctx context.Context) error {
	if r.startErr != nil {
		return r.startErr
	}
	r.started = true
	return nil
}

func (r *recorderStrategy) Stop(ctx context.Context) { r.stopped = true }

func (r *recorderStrategy) OnQuote(ctx context.Context, q *md.Quote) {
	r.quotes = append(r.quotes, q)
}

func (r *recorderStrategy) OnTrade(ctx context.Context, t md.Trade) {
	r.trades = append(r.trades, t)
}

func (r *recorderStrategy) OnOrderUpdate(ctx context.Context, event string, o *state.Order) {
	r.updates = append(r.updates, orderEvent{event: event, order: o})
}

func newTestJournal(t *testing.T) *journal.Writer {
	t.Helper()
	w, err := journal.NewWriter(filepath.Join(t.TempDir(), "journal.ndjson"), "test")
	require.NoError(t, err)
	t.Cleanup(func() { _ = w.Close() })
	return w
}

func idleStream(called *bool) StreamFunc {
	return func(ctx context.Context, cfg md.StreamConfig, symbols []string, publish md.Publish) error {
		if called != nil {
			*called = true
		}
		<-ctx.Done()
		return ctx.Err()
	}
}

func newTestRunner(t *testing.T, brk Broker, stream StreamFunc, opts Options) *Runner {
	t.Helper()
	r := New(brk, stream, md.StreamConfig{}, newTestJournal(t), opts)
	r.liquidateAt = time.Now().Add(time.Hour)
	return r
}

func TestRunAbortsCleanlyWhenMarketClosed(t *testing.T) {
	brk := &fakeBroker{clock: broker.Clock{IsOpen: false, NextOpen: time.Now().Add(12 * time.Hour)}}
	streamCalled := false
	r := newTestRunner(t, brk, idleStream(&streamCalled), Options{AbortIfClosed: true})
	rec := &recorderStrategy{symbol: "SNAP"}
	r.AddStrategy(rec)

	require.NoError(t, r.Run(context.Background()))
	require.False(t, rec.started)
	require.False(t, streamCalled)
}

func TestRunProceedsWhenClosedMarketsAllowed(t *testing.T) {
	nextClose := time.Now().Add(time.Hour)
	brk := &fakeBroker{clock: broker.Clock{IsOpen: false, NextClose: nextClose}}
	stream := func(ctx context.Context, cfg md.StreamConfig, symbols []string, publish md.Publish) error {
		publish(md.Event{Quote: &md.Quote{Symbol: "SNAP", Bid: 10.00, Ask: 10.01, Timestamp: time.Now()}})
		<-ctx.Done()
		return ctx.Err()
	}
	r := newTestRunner(t, brk, stream, Options{})
	rec := &recorderStrategy{symbol: "SNAP"}
	r.AddStrategy(rec)
	r.now = func() time.Time { return nextClose } // already past the deadline

	require.NoError(t, r.Run(context.Background()))
	require.True(t, rec.started)
	require.Len(t, rec.quotes, 1)
}

func TestRunReturnsClockError(t *testing.T) {
	brk := &fakeBroker{clockErr: errors.New("api down")}
	r := newTestRunner(t, brk, idleStream(nil), Options{})
	r.AddStrategy(&recorderStrategy{symbol: "SNAP"})
	require.Error(t, r.Run(context.Background()))
}

func TestRunFailsWhenNoStrategyStarts(t *testing.T) {
	brk := &fakeBroker{clock: broker.Clock{IsOpen: true, NextClose: time.Now().Add(time.Hour)}}
	r := newTestRunner(t, brk, idleStream(nil), Options{})
	r.AddStrategy(&recorderStrategy{symbol: "SNAP", startErr: errors.New("account suspended")})
	require.Error(t, r.Run(context.Background()))
}

func TestRunLiquidatesAtDeadline(t *testing.T) {
	nextClose := time.Now().Add(time.Hour)
	brk := &fakeBroker{clock: broker.Clock{IsOpen: true, NextClose: nextClose}}
	stream := func(ctx context.Context, cfg md.StreamConfig, symbols []string, publish md.Publish) error {
		publish(md.Event{Quote: &md.Quote{Symbol: "SNAP", Bid: 10.00, Ask: 10.01, Timestamp: time.Now()}})
		<-ctx.Done()
		return ctx.Err()
	}
	r := newTestRunner(t, brk, stream, Options{LiquidateLead: 5 * time.Minute})
	first := &recorderStrategy{symbol: "SNAP"}
	second := &recorderStrategy{symbol: "UVXY"}
	r.AddStrategy(first)
	r.AddStrategy(second)
	r.now = func() time.Time { return nextClose.Add(-4 * time.Minute) }

	require.NoError(t, r.Run(context.Background()))
	require.True(t, first.stopped)
	require.True(t, second.stopped)
	// The quote is still delivered before the deadline check runs.
	require.Len(t, first.quotes, 1)
	require.Len(t, second.quotes, 1)
}

func TestDispatchFansOutToAllStrategies(t *testing.T) {
	brk := &fakeBroker{}
	r := newTestRunner(t, brk, idleStream(nil), Options{})
	first := &recorderStrategy{symbol: "SNAP"}
	second := &recorderStrategy{symbol: "UVXY"}
	r.AddStrategy(first)
	r.AddStrategy(second)

	quote := &md.Quote{Symbol: "SNAP", Bid: 10.00, Ask: 10.01, Timestamp: time.Now()}
	trade := md.Trade{Symbol: "SNAP", Price: 10.01, Size: 200, Timestamp: time.Now()}
	r.dispatch(md.Event{Quote: quote})
	r.dispatch(md.Event{Trade: &trade})

	require.Equal(t, []*md.Quote{quote}, first.quotes)
	require.Equal(t, []*md.Quote{quote}, second.quotes)
	require.Equal(t, []md.Trade{trade}, first.trades)
	require.Equal(t, []md.Trade{trade}, second.trades)
}

func TestOrderUpdateLazyInsert(t *testing.T) {
	r := newTestRunner(t, &fakeBroker{}, idleStream(nil), Options{})
	rec := &recorderStrategy{symbol: "SNAP"}
	r.AddStrategy(rec)

	r.handleOrderUpdate(md.OrderUpdate{
		Event: md.EventPartialFill,
		Order: md.OrderSnapshot{ID: "x1", Symbol: "SNAP", Side: "buy", Qty: 100, FilledQty: 40},
	})

	ord, ok := r.registry.Get("x1")
	require.True(t, ok)
	require.Equal(t, 40.0, ord.FilledQty)
	require.Len(t, rec.updates, 1)
	require.Equal(t, md.EventPartialFill, rec.updates[0].event)
	require.Same(t, ord, rec.updates[0].order)
}

func TestOrderUpdateRemovesFilledOrderOnce(t *testing.T) {
	r := newTestRunner(t, &fakeBroker{}, idleStream(nil), Options{})
	rec := &recorderStrategy{symbol: "SNAP"}
	r.AddStrategy(rec)

	snap := md.OrderSnapshot{ID: "x1", Symbol: "SNAP", Side: "buy", Qty: 100}

	partial := snap
	partial.FilledQty = 40
	r.handleOrderUpdate(md.OrderUpdate{Event: md.EventPartialFill, Order: partial})
	require.Equal(t, 1, r.registry.Len())

	full := snap
	full.FilledQty = 100
	r.handleOrderUpdate(md.OrderUpdate{Event: md.EventFill, Order: full})
	require.Zero(t, r.registry.Len())
	require.Len(t, rec.updates, 2)

	// A duplicate terminal update must not resurrect the order or re-dispatch.
	r.handleOrderUpdate(md.OrderUpdate{Event: md.EventFill, Order: full})
	require.Zero(t, r.registry.Len())
	require.Len(t, rec.updates, 2)
}

func TestOrderUpdateCancelRemovesWithoutFill(t *testing.T) {
	r := newTestRunner(t, &fakeBroker{}, idleStream(nil), Options{})
	rec := &recorderStrategy{symbol: "SNAP"}
	r.AddStrategy(rec)

	snap := md.OrderSnapshot{ID: "c1", Symbol: "SNAP", Side: "sell", Qty: 50}
	r.handleOrderUpdate(md.OrderUpdate{Event: md.EventCanceled, Order: snap})

	require.Zero(t, r.registry.Len())
	require.Len(t, rec.updates, 1)
	require.Zero(t, rec.updates[0].order.FilledQty)
}

func TestPartialFillKeepsOrderLive(t *testing.T) {
	r := newTestRunner(t, &fakeBroker{}, idleStream(nil), Options{})
	r.AddStrategy(&recorderStrategy{symbol: "SNAP"})

	r.handleOrderUpdate(md.OrderUpdate{
		Event: md.EventPartialFill,
		Order: md.OrderSnapshot{ID: "p1", Symbol: "SNAP", Side: "buy", Qty: 100, FilledQty: 60},
	})

	// Still live: its pending quantity keeps counting toward exposure.
	orders := r.registry.OrdersFor("SNAP")
	require.Len(t, orders, 1)
	require.Equal(t, 40.0, orders[0].Pending())
}
