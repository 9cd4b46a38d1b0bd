package state

import (
	"strings"

	"ticktaker/internal/md"
)

type Side string

const (
	Buy  Side = "buy"
	Sell Side = "sell"
)

// Order tracks one broker order from its first trade-update notification until
// it reaches a terminal state. Identity fields are fixed at creation; only the
// filled quantity moves, and only upward.
type Order struct {
	ID        string
	Symbol    string
	Side      Side
	Quantity  float64
	FilledQty float64
}

// NewOrder builds an Order from a notification's embedded order snapshot.
func NewOrder(snap md.OrderSnapshot) *Order {
	return &Order{
		ID:       snap.ID,
		Symbol:   strings.ToUpper(snap.Symbol),
		Side:     Side(strings.ToLower(snap.Side)),
		Quantity: snap.Qty,
	}
}

func (o *Order) IsBuy() bool { return o.Side == Buy }

// DirectionalQty is the requested quantity signed by side.
func (o *Order) DirectionalQty() float64 {
	if o.IsBuy() {
		return o.Quantity
	}
	return -o.Quantity
}

func (o *Order) Pending() float64 { return o.Quantity - o.FilledQty }

func (o *Order) IsFilled() bool { return o.FilledQty == o.Quantity }

// ApplyFill records the cumulative filled quantity from a notification.
// Fills never regress, so a stale out-of-order update is a no-op.
func (o *Order) ApplyFill(filledQty float64) {
	if filledQty > o.FilledQty {
		o.FilledQty = filledQty
	}
}
