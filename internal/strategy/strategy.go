package strategy

import (
	"context"

	"ticktaker/internal/md"
	"ticktaker/internal/state"
)

// Trader is the outbound broker surface a strategy needs. Implemented by
// broker.Client; tests substitute a fake.
type Trader interface {
	Position(ctx context.Context, symbol string) (float64, error)
	SubmitIOCLimit(ctx context.Context, symbol string, side state.Side, qty, limitPrice float64) error
	ClosePosition(ctx context.Context, symbol string) error
}

// OrderView is a read-only window onto the runner's order registry. Strategies
// use it to count live orders toward exposure; only the runner mutates it.
type OrderView interface {
	OrdersFor(symbol string) []*state.Order
}

// Strategy receives every market event from the runner's dispatch loop. Hooks
// are never invoked concurrently.
type Strategy interface {
	Symbol() string
	Start(ctx context.Context) error
	Stop(ctx context.Context)
	OnQuote(ctx context.Context, q *md.Quote)
	OnTrade(ctx context.Context, t md.Trade)
	OnOrderUpdate(ctx context.Context, event string, o *state.Order)
}
