package config

import (
	"testing"
	"time"
)

func validConfig() Config {
	return Config{
		Symbols:            []string{"SNAP"},
		MaxQty:             500,
		QtyPerTrade:        100,
		ImbalanceThreshold: 1.8,
		LiquidateLead:      5 * time.Minute,
		Feed:               "iex",
		APIKey:             "key",
		APISecret:          "secret",
	}
}

func TestValidateAcceptsValidConfig(t *testing.T) {
	if err := validate(validConfig()); err != nil {
		t.Fatalf("expected config to be valid, got %v", err)
	}
}

func TestValidateRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"no symbols", func(c *Config) { c.Symbols = nil }},
		{"zero qty per trade", func(c *Config) { c.QtyPerTrade = 0 }},
		{"cap below clip size", func(c *Config) { c.MaxQty = 50 }},
		{"threshold not above one", func(c *Config) { c.ImbalanceThreshold = 1.0 }},
		{"zero liquidate lead", func(c *Config) { c.LiquidateLead = 0 }},
		{"unknown feed", func(c *Config) { c.Feed = "otc" }},
		{"missing credentials", func(c *Config) { c.APIKey = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			if err := validate(cfg); err == nil {
				t.Fatalf("expected validation error")
			}
		})
	}
}

func TestSplitSymbolsNormalizes(t *testing.T) {
	got := splitSymbols(" snap, uvxy ,,AAPL")
	want := []string{"SNAP", "UVXY", "AAPL"}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, got)
		}
	}
}
