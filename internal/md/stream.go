package md

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"
	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata/stream"
)

type StreamConfig struct {
	APIKey    string
	APISecret string
	Feed      string
}

// Publish delivers one event to the dispatch queue. It may block; the stream
// callbacks tolerate that because ordering matters more than latency here.
type Publish func(Event)

// StartStream connects the stocks stream and forwards quotes and trades for
// the given symbols until the context is canceled.
func StartStream(ctx context.Context, cfg StreamConfig, symbols []string, publish Publish) error {
	client := stream.NewStocksClient(
		parseFeed(cfg.Feed),
		stream.WithCredentials(cfg.APIKey, cfg.APISecret),
	)

	// Connect must be called before subscribing in this SDK version.
	if err := client.Connect(ctx); err != nil {
		return fmt.Errorf("connect market data stream: %w", err)
	}

	if err := client.SubscribeToQuotes(func(q stream.Quote) {
		publish(Event{Quote: &Quote{
			Symbol:    q.Symbol,
			Bid:       q.BidPrice,
			Ask:       q.AskPrice,
			BidSize:   float64(q.BidSize),
			AskSize:   float64(q.AskSize),
			Timestamp: q.Timestamp,
		}})
	}, symbols...); err != nil {
		return fmt.Errorf("subscribe to quotes: %w", err)
	}

	if err := client.SubscribeToTrades(func(t stream.Trade) {
		publish(Event{Trade: &Trade{
			Symbol:    t.Symbol,
			Price:     t.Price,
			Size:      float64(t.Size),
			Timestamp: t.Timestamp,
		}})
	}, symbols...); err != nil {
		return fmt.Errorf("subscribe to trades: %w", err)
	}

	slog.Info("market data stream started", "symbols", symbols, "feed", cfg.Feed)

	<-ctx.Done()
	return ctx.Err()
}

func parseFeed(feed string) marketdata.Feed {
	switch feed {
	case "sip":
		return marketdata.SIP
	default:
		return marketdata.IEX
	}
}
