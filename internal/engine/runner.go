package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"ticktaker/internal/broker"
	"ticktaker/internal/bus"
	"ticktaker/internal/journal"
	"ticktaker/internal/md"
	"ticktaker/internal/state"
	"ticktaker/internal/strategy"
)

// Broker is the runner's inbound broker surface: session clock and the
// order-update stream. Implemented by broker.Client.
type Broker interface {
	Clock(ctx context.Context) (broker.Clock, error)
	StreamTradeUpdates(ctx context.Context, handler func(md.OrderUpdate)) error
}

// StreamFunc opens the quotes/trades subscription. md.StartStream in
// production; tests script it.
type StreamFunc func(ctx context.Context, cfg md.StreamConfig, symbols []string, publish md.Publish) error

type Options struct {
	AbortIfClosed bool
	LiquidateLead time.Duration
	QueueSize     int
}

// Runner owns the strategy set and the canonical order registry. It funnels
// the broker's three callback streams through one queue so every handler runs
// single-threaded, and enforces the liquidation deadline on quote arrival.
type Runner struct {
	brk        Broker
	stream     StreamFunc
	streamCfg  md.StreamConfig
	journal    *journal.Writer
	opts       Options
	strategies []strategy.Strategy
	registry   *state.Registry

	// retired holds ids of orders that reached a terminal state. Updates for a
	// retired id are dropped instead of lazily re-inserting a fresh Order, so a
	// duplicate terminal notification cannot settle twice.
	retired map[string]struct{}

	now         func() time.Time
	runCtx      context.Context
	stopStream  context.CancelFunc
	liquidateAt time.Time
	liquidated  bool
}

func New(brk Broker, stream StreamFunc, streamCfg md.StreamConfig, jw *journal.Writer, opts Options) *Runner {
	if opts.LiquidateLead <= 0 {
		opts.LiquidateLead = 5 * time.Minute
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = 1024
	}
	return &Runner{
		brk:       brk,
		stream:    stream,
		streamCfg: streamCfg,
		journal:   jw,
		opts:      opts,
		registry:  state.NewRegistry(),
		retired:    make(map[string]struct{}),
		now:        time.Now,
		runCtx:     context.Background(),
		stopStream: func() {},
	}
}

// Registry exposes the order registry as a read-only view for strategies.
func (r *Runner) Registry() *state.Registry { return r.registry }

// AddStrategy attaches a strategy. Must be called before Run.
func (r *Runner) AddStrategy(s strategy.Strategy) {
	r.strategies = append(r.strategies, s)
}

// Run queries the session clock, starts every strategy, opens the event
// subscription and blocks dispatching events until the context is canceled or
// the liquidation deadline passes. A closed market with AbortIfClosed set is a
// clean no-op, not an error.
func (r *Runner) Run(ctx context.Context) error {
	clock, err := r.brk.Clock(ctx)
	if err != nil {
		return fmt.Errorf("query market clock: %w", err)
	}
	if r.opts.AbortIfClosed && !clock.IsOpen {
		slog.Info("markets are closed, not starting",
			"now", clock.Timestamp, "next_open", clock.NextOpen)
		return nil
	}
	r.liquidateAt = clock.NextClose.Add(-r.opts.LiquidateLead)
	slog.Info("will liquidate positions", "at", r.liquidateAt)

	started := r.strategies[:0]
	for _, s := range r.strategies {
		if err := s.Start(ctx); err != nil {
			slog.Error("strategy start failed", "symbol", s.Symbol(), "error", err)
			continue
		}
		started = append(started, s)
	}
	if len(started) == 0 {
		return errors.New("no strategy started")
	}
	r.strategies = started

	symbols := make([]string, 0, len(r.strategies))
	for _, s := range r.strategies {
		symbols = append(symbols, s.Symbol())
	}

	r.runCtx = ctx
	streamCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	r.stopStream = cancel

	queue := bus.NewQueue[md.Event](r.opts.QueueSize)
	publish := func(e md.Event) {
		if err := queue.Publish(streamCtx, e); err != nil && !errors.Is(err, context.Canceled) {
			slog.Error("event publish failed", "error", err)
		}
	}

	go func() {
		if err := r.stream(streamCtx, r.streamCfg, symbols, publish); err != nil && !errors.Is(err, context.Canceled) {
			slog.Error("market data stream stopped", "error", err)
		}
	}()
	go func() {
		err := r.brk.StreamTradeUpdates(streamCtx, func(u md.OrderUpdate) {
			publish(md.Event{OrderUpdate: &u})
		})
		if err != nil && !errors.Is(err, context.Canceled) {
			slog.Error("trade update stream stopped", "error", err)
		}
	}()

	slog.Info("dispatch loop started", "symbols", symbols)
	queue.Run(streamCtx, r.dispatch)
	return nil
}

func (r *Runner) dispatch(e md.Event) {
	switch {
	case e.Quote != nil:
		r.handleQuote(e.Quote)
	case e.Trade != nil:
		r.handleTrade(*e.Trade)
	case e.OrderUpdate != nil:
		r.handleOrderUpdate(*e.OrderUpdate)
	}
}

// handleQuote fans the quote out, then checks the liquidation deadline. Quote
// arrival is the only liquidation trigger; there is no independent timer.
func (r *Runner) handleQuote(q *md.Quote) {
	for _, s := range r.strategies {
		s.OnQuote(r.runCtx, q)
	}
	if r.liquidated || r.now().Before(r.liquidateAt) {
		return
	}
	r.liquidate()
}

func (r *Runner) liquidate() {
	r.liquidated = true
	slog.Info("liquidation deadline reached, stopping strategies", "deadline", r.liquidateAt)
	r.journal.Append(journal.Entry{Kind: journal.KindLiquidate})
	r.stopStream()
	for _, s := range r.strategies {
		s.Stop(r.runCtx)
	}
}

func (r *Runner) handleTrade(t md.Trade) {
	for _, s := range r.strategies {
		s.OnTrade(r.runCtx, t)
	}
}

// handleOrderUpdate maintains the registry around strategy dispatch: orders
// are created lazily from the first update seen for an id (the submission call
// does not register them), fill quantities are applied before dispatch, and
// terminal orders are removed exactly once after it.
func (r *Runner) handleOrderUpdate(u md.OrderUpdate) {
	if _, ok := r.retired[u.Order.ID]; ok {
		slog.Debug("ignoring update for retired order", "order_id", u.Order.ID, "event", u.Event)
		return
	}

	ord, ok := r.registry.Get(u.Order.ID)
	if !ok {
		ord = state.NewOrder(u.Order)
		r.registry.Put(ord)
	}
	if u.Event == md.EventFill || u.Event == md.EventPartialFill {
		ord.ApplyFill(u.Order.FilledQty)
	}

	for _, s := range r.strategies {
		s.OnOrderUpdate(r.runCtx, u.Event, ord)
	}

	if isTerminal(u.Event, ord) {
		r.registry.Remove(ord.ID)
		r.retired[ord.ID] = struct{}{}
	}
}

func isTerminal(event string, o *state.Order) bool {
	switch event {
	case md.EventCanceled, md.EventRejected:
		return true
	case md.EventFill, md.EventPartialFill:
		return o.IsFilled()
	}
	return false
}
