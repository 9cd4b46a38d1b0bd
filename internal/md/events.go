package md

import (
	"math"
	"time"
)

// Quote is a best bid/offer snapshot for one symbol. HasTraded flips once the
// strategy has acted on this level; a fresh level always starts untraded.
type Quote struct {
	Symbol    string
	Bid       float64
	Ask       float64
	BidSize   float64
	AskSize   float64
	Timestamp time.Time
	HasTraded bool
}

// Spread is derived, never stored, rounded to the minimum price increment.
func (q *Quote) Spread() float64 {
	return math.Round((q.Ask-q.Bid)*100) / 100
}

type Trade struct {
	Symbol    string
	Price     float64
	Size      float64
	Timestamp time.Time
}

// OrderSnapshot is the order state embedded in a trade-update notification.
type OrderSnapshot struct {
	ID        string
	Symbol    string
	Side      string
	Qty       float64
	FilledQty float64
}

// Trade-update event names as the broker reports them.
const (
	EventFill        = "fill"
	EventPartialFill = "partial_fill"
	EventCanceled    = "canceled"
	EventRejected    = "rejected"
)

type OrderUpdate struct {
	Event string
	At    time.Time
	Order OrderSnapshot
}

// Event is the union passed through the dispatch queue. Exactly one field is set.
type Event struct {
	Quote       *Quote
	Trade       *Trade
	OrderUpdate *OrderUpdate
}
