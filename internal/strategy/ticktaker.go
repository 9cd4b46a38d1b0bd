package strategy

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"ticktaker/internal/broker"
	"ticktaker/internal/journal"
	"ticktaker/internal/md"
	"ticktaker/internal/risk"
	"ticktaker/internal/state"
)

const (
	// minTick is the smallest spread a level must quote at to be tradable.
	minTick = 0.01
	// minTradeSize filters out odd-lot noise prints.
	minTradeSize = 100
	// staleTradeWindow guards against a print that really belongs to the
	// prior level, arriving just after a level change.
	staleTradeWindow = 50 * time.Millisecond
)

type TickTakerConfig struct {
	Symbol             string
	MaxQuantity        float64
	QuantityPerTrade   float64
	ImbalanceThreshold float64
}

// TickTaker trades short-lived order-book imbalances at a stable quote level.
// It accepts a level only on a clean two-sided move to a minimum-tick spread,
// fires at most one immediate-or-cancel order per level, and folds fills into
// its running position as order updates arrive.
type TickTaker struct {
	symbol    string
	limits    risk.Limits
	threshold float64
	trader    Trader
	view      OrderView
	journal   *journal.Writer

	position     float64
	current      *md.Quote
	previous     *md.Quote
	levelChanges int
}

func NewTickTaker(cfg TickTakerConfig, trader Trader, view OrderView, jw *journal.Writer) *TickTaker {
	symbol := strings.ToUpper(cfg.Symbol)
	now := time.Now()
	return &TickTaker{
		symbol: symbol,
		limits: risk.Limits{
			MaxQuantity:      cfg.MaxQuantity,
			QuantityPerTrade: cfg.QuantityPerTrade,
		},
		threshold: cfg.ImbalanceThreshold,
		trader:    trader,
		view:      view,
		journal:   jw,
		current:   &md.Quote{Symbol: symbol, Timestamp: now},
		previous:  &md.Quote{Symbol: symbol, Timestamp: now},
	}
}

func (t *TickTaker) Symbol() string { return t.symbol }

// Position is the settled position, exclusive of live orders.
func (t *TickTaker) Position() float64 { return t.position }

func (t *TickTaker) LevelChanges() int { return t.levelChanges }

// Start fetches the broker-confirmed position. A missing position means flat;
// any other broker error is fatal for this strategy.
func (t *TickTaker) Start(ctx context.Context) error {
	pos, err := t.trader.Position(ctx, t.symbol)
	switch {
	case errors.Is(err, broker.ErrNoPosition):
		t.position = 0
	case err != nil:
		return fmt.Errorf("startup position for %s: %w", t.symbol, err)
	default:
		t.position = pos
	}
	slog.Info("tick taker started", "symbol", t.symbol, "position", t.position,
		"max_qty", t.limits.MaxQuantity, "qty_per_trade", t.limits.QuantityPerTrade, "threshold", t.threshold)
	t.journal.Append(journal.Entry{Kind: journal.KindStartup, Symbol: t.symbol, Position: t.position})
	return nil
}

// Stop liquidates the whole position. Fire-and-forget: a failure is logged and
// the shutdown continues.
func (t *TickTaker) Stop(ctx context.Context) {
	if err := t.trader.ClosePosition(ctx, t.symbol); err != nil {
		slog.Error("liquidation failed", "symbol", t.symbol, "error", err)
		return
	}
	t.journal.Append(journal.Entry{Kind: journal.KindLiquidate, Symbol: t.symbol, Position: t.position})
}

// totalExposure is the settled position plus the signed requested quantity of
// every live order for this symbol.
func (t *TickTaker) totalExposure() float64 {
	exposure := t.position
	for _, o := range t.view.OrdersFor(t.symbol) {
		exposure += o.DirectionalQty()
	}
	return exposure
}

// OnQuote tracks level changes. A quote becomes the current level only on a
// clean two-sided move (both bid and ask differ) to a minimum-tick spread;
// anything else is dropped.
func (t *TickTaker) OnQuote(ctx context.Context, q *md.Quote) {
	if q.Symbol != t.symbol {
		return
	}
	if q.Bid == t.current.Bid || q.Ask == t.current.Ask || q.Spread() != minTick {
		return
	}
	t.previous = t.current
	t.current = q
	t.levelChanges++
	slog.Info("level change", "symbol", t.symbol,
		"bid", q.Bid, "ask", q.Ask, "bid_size", q.BidSize, "ask_size", q.AskSize,
		"prev_bid", t.previous.Bid, "prev_ask", t.previous.Ask, "changes", t.levelChanges)
	t.journal.Append(journal.Entry{
		Kind: journal.KindLevelChange, Symbol: t.symbol,
		Bid: q.Bid, Ask: q.Ask, BidSize: q.BidSize, AskSize: q.AskSize,
	})
}

// OnTrade evaluates a trade print against the current level and submits at
// most one immediate-or-cancel order.
func (t *TickTaker) OnTrade(ctx context.Context, tr md.Trade) {
	if tr.Symbol != t.symbol {
		return
	}
	if t.current.HasTraded {
		slog.Debug("ignoring trade", "symbol", t.symbol, "reason", "level already traded")
		return
	}
	if !tr.Timestamp.After(t.current.Timestamp.Add(staleTradeWindow)) {
		slog.Debug("ignoring trade", "symbol", t.symbol, "reason", "too recent after level change")
		return
	}
	if tr.Size < minTradeSize {
		slog.Debug("ignoring trade", "symbol", t.symbol, "reason", "too small", "size", tr.Size)
		return
	}

	quote := t.current
	exposure := t.totalExposure()

	if tr.Price == quote.Ask && quote.BidSize > quote.AskSize*t.threshold && t.limits.CanBuy(exposure) {
		// Mark the level before the submission completes so a near-simultaneous
		// duplicate print cannot double-submit.
		quote.HasTraded = true
		t.submit(ctx, state.Buy, t.limits.BuyQuantity(exposure), quote.Ask)
	} else {
		slog.Debug("no buy signal", "symbol", t.symbol,
			"at_ask", tr.Price == quote.Ask,
			"imbalance", quote.BidSize > quote.AskSize*t.threshold,
			"can_buy", t.limits.CanBuy(exposure))
	}

	if tr.Price == quote.Bid && quote.AskSize > quote.BidSize*t.threshold && t.limits.CanSell(exposure) {
		quote.HasTraded = true
		t.submit(ctx, state.Sell, t.limits.SellQuantity(exposure), quote.Bid)
	} else {
		slog.Debug("no sell signal", "symbol", t.symbol,
			"at_bid", tr.Price == quote.Bid,
			"imbalance", quote.AskSize > quote.BidSize*t.threshold,
			"can_sell", t.limits.CanSell(exposure))
	}
}

// submit places an IOC limit order. Failures are logged, never propagated: a
// missed signal is acceptable, a crashed dispatch loop is not.
func (t *TickTaker) submit(ctx context.Context, side state.Side, qty, limitPrice float64) {
	t.journal.Append(journal.Entry{
		Kind: journal.KindSignal, Symbol: t.symbol,
		Side: string(side), Qty: qty, Price: limitPrice,
	})
	if err := t.trader.SubmitIOCLimit(ctx, t.symbol, side, qty, limitPrice); err != nil {
		slog.Error("order submission failed", "symbol", t.symbol, "side", side, "qty", qty, "error", err)
		t.journal.Append(journal.Entry{
			Kind: journal.KindSubmitError, Symbol: t.symbol,
			Side: string(side), Qty: qty, Price: limitPrice, Reason: err.Error(),
		})
		return
	}
	slog.Info("order submitted", "symbol", t.symbol, "side", side, "qty", qty, "limit", limitPrice)
}

// OnOrderUpdate settles a fully filled order into the position. The runner has
// already applied the notification's filled quantity and handles registry
// removal for terminal orders.
func (t *TickTaker) OnOrderUpdate(ctx context.Context, event string, o *state.Order) {
	if o.Symbol != t.symbol {
		return
	}
	switch event {
	case md.EventFill, md.EventPartialFill:
		if !o.IsFilled() {
			return
		}
		t.position += o.DirectionalQty()
		slog.Info("order settled", "symbol", t.symbol, "order_id", o.ID,
			"side", o.Side, "qty", o.Quantity, "position", t.position)
		t.journal.Append(journal.Entry{
			Kind: journal.KindSettled, Symbol: t.symbol,
			OrderID: o.ID, Side: string(o.Side), Qty: o.Quantity, Position: t.position,
		})
	case md.EventCanceled, md.EventRejected:
		slog.Info("order not filled", "symbol", t.symbol, "order_id", o.ID, "event", event)
		t.journal.Append(journal.Entry{
			Kind: journal.KindCanceled, Symbol: t.symbol,
			OrderID: o.ID, Reason: event,
		})
	}
}
