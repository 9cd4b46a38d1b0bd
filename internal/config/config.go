package config

import (
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Symbols            []string
	MaxQty             int
	QtyPerTrade        int
	ImbalanceThreshold float64
	AbortIfClosed      bool
	LiquidateLead      time.Duration
	Feed               string
	JournalPath        string
	MonitorAddr        string
	BaseURL            string
	APIKey             string
	APISecret          string
}

func Load() (Config, error) {
	var cfg Config
	var symbols string

	// Missing .env is fine; real env vars win over file values.
	_ = godotenv.Load()

	flag.StringVar(&symbols, "symbols", "SNAP", "comma-separated symbols to trade")
	flag.IntVar(&cfg.MaxQty, "max-qty", 500, "maximum shares to hold per symbol")
	flag.IntVar(&cfg.QtyPerTrade, "qty-per-trade", 100, "shares per order")
	flag.Float64Var(&cfg.ImbalanceThreshold, "imbalance-threshold", 1.8, "bid/ask size ratio that counts as an imbalance")
	flag.BoolVar(&cfg.AbortIfClosed, "abort-if-closed", false, "exit instead of starting while markets are closed")
	flag.DurationVar(&cfg.LiquidateLead, "liquidate-lead", 5*time.Minute, "liquidate positions this long before market close")
	flag.StringVar(&cfg.Feed, "feed", "iex", "market data feed: iex or sip")
	flag.StringVar(&cfg.JournalPath, "journal-path", "journal.ndjson", "path to the decision journal")
	flag.StringVar(&cfg.MonitorAddr, "monitor-addr", "", "listen address for the monitor endpoint (disabled when empty)")
	flag.StringVar(&cfg.BaseURL, "base-url", "https://paper-api.alpaca.markets", "trading API base URL")
	flag.Parse()

	cfg.Symbols = splitSymbols(symbols)
	cfg.APIKey = os.Getenv("APCA_API_KEY_ID")
	cfg.APISecret = os.Getenv("APCA_API_SECRET_KEY")

	if err := validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func splitSymbols(raw string) []string {
	var out []string
	for _, s := range strings.Split(raw, ",") {
		s = strings.ToUpper(strings.TrimSpace(s))
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

func validate(cfg Config) error {
	if len(cfg.Symbols) == 0 {
		return fmt.Errorf("at least one symbol is required")
	}
	if cfg.QtyPerTrade <= 0 {
		return fmt.Errorf("qty-per-trade must be > 0")
	}
	if cfg.MaxQty < cfg.QtyPerTrade {
		return fmt.Errorf("max-qty must be >= qty-per-trade")
	}
	if cfg.ImbalanceThreshold <= 1 {
		return fmt.Errorf("imbalance-threshold must be > 1")
	}
	if cfg.LiquidateLead <= 0 {
		return fmt.Errorf("liquidate-lead must be > 0")
	}
	if cfg.Feed != "iex" && cfg.Feed != "sip" {
		return fmt.Errorf("invalid feed: %s", cfg.Feed)
	}
	if cfg.APIKey == "" || cfg.APISecret == "" {
		return fmt.Errorf("APCA_API_KEY_ID and APCA_API_SECRET_KEY are required")
	}
	return nil
}
