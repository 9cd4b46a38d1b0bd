package broker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/alpacahq/alpaca-trade-api-go/v3/alpaca"
	"github.com/shopspring/decimal"

	"ticktaker/internal/md"
	"ticktaker/internal/state"
)

// ErrNoPosition marks the "position does not exist" broker response so callers
// can treat it as a flat position instead of a failure.
var ErrNoPosition = errors.New("no position")

// Alpaca's error code for a missing position.
const codePositionNotFound = 40410000

type Clock struct {
	Timestamp time.Time
	IsOpen    bool
	NextOpen  time.Time
	NextClose time.Time
}

type Client struct {
	client *alpaca.Client
}

func New(apiKey, apiSecret, baseURL string) *Client {
	opts := alpaca.ClientOpts{
		APIKey:    apiKey,
		APISecret: apiSecret,
		BaseURL:   baseURL,
	}
	return &Client{client: alpaca.NewClient(opts)}
}

func (c *Client) Clock(ctx context.Context) (Clock, error) {
	clock, err := c.client.GetClock()
	if err != nil {
		slog.Error("fetch clock failed", "error", err)
		return Clock{}, fmt.Errorf("get clock: %w", err)
	}
	slog.Info("clock fetched", "is_open", clock.IsOpen, "next_close", clock.NextClose)
	return Clock{
		Timestamp: clock.Timestamp,
		IsOpen:    clock.IsOpen,
		NextOpen:  clock.NextOpen,
		NextClose: clock.NextClose,
	}, nil
}

// Position returns the signed share quantity held for symbol, or ErrNoPosition
// when the broker reports none.
func (c *Client) Position(ctx context.Context, symbol string) (float64, error) {
	pos, err := c.client.GetPosition(symbol)
	if err != nil {
		var apiErr *alpaca.APIError
		if errors.As(err, &apiErr) && (apiErr.Code == codePositionNotFound || apiErr.StatusCode == 404) {
			return 0, ErrNoPosition
		}
		slog.Error("fetch position failed", "symbol", symbol, "error", err)
		return 0, fmt.Errorf("get position %s: %w", symbol, err)
	}
	qty, _ := pos.Qty.Float64()
	slog.Info("position fetched", "symbol", symbol, "qty", qty)
	return qty, nil
}

// SubmitIOCLimit places an immediate-or-cancel limit order. The unfilled
// remainder cancels instead of resting on the book.
func (c *Client) SubmitIOCLimit(ctx context.Context, symbol string, side state.Side, qty, limitPrice float64) error {
	qtyDec := decimal.NewFromFloat(qty)
	limitDec := decimal.NewFromFloat(limitPrice)
	order, err := c.client.PlaceOrder(alpaca.PlaceOrderRequest{
		Symbol:      symbol,
		Qty:         &qtyDec,
		Side:        alpaca.Side(side),
		Type:        alpaca.Limit,
		TimeInForce: alpaca.IOC,
		LimitPrice:  &limitDec,
	})
	if err != nil {
		slog.Error("place order failed", "symbol", symbol, "side", side, "qty", qty, "limit", limitPrice, "error", err)
		return fmt.Errorf("place order %s %s: %w", side, symbol, err)
	}
	slog.Info("place order success", "order_id", order.ID, "symbol", symbol, "side", side, "qty", qty, "limit", limitPrice, "status", order.Status)
	return nil
}

// ClosePosition liquidates the whole position for symbol. Fire-and-forget: the
// resulting order is not tracked.
func (c *Client) ClosePosition(ctx context.Context, symbol string) error {
	order, err := c.client.ClosePosition(symbol, alpaca.ClosePositionRequest{})
	if err != nil {
		slog.Error("close position failed", "symbol", symbol, "error", err)
		return fmt.Errorf("close position %s: %w", symbol, err)
	}
	slog.Info("close position submitted", "symbol", symbol, "order_id", order.ID)
	return nil
}

// StreamTradeUpdates forwards order-update notifications until the context is
// canceled.
func (c *Client) StreamTradeUpdates(ctx context.Context, handler func(md.OrderUpdate)) error {
	return c.client.StreamTradeUpdates(ctx, func(tu alpaca.TradeUpdate) {
		qty := 0.0
		if tu.Order.Qty != nil {
			qty, _ = tu.Order.Qty.Float64()
		}
		filled, _ := tu.Order.FilledQty.Float64()
		handler(md.OrderUpdate{
			Event: tu.Event,
			At:    tu.At,
			Order: md.OrderSnapshot{
				ID:        tu.Order.ID,
				Symbol:    tu.Order.Symbol,
				Side:      string(tu.Order.Side),
				Qty:       qty,
				FilledQty: filled,
			},
		})
	}, alpaca.StreamTradeUpdatesRequest{})
}
