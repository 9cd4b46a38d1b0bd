package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ticktaker/internal/broker"
	"ticktaker/internal/config"
	"ticktaker/internal/engine"
	"ticktaker/internal/journal"
	"ticktaker/internal/md"
	"ticktaker/internal/monitor"
	"ticktaker/internal/strategy"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	jw, err := journal.NewWriter(cfg.JournalPath, generateRunID())
	if err != nil {
		log.Fatalf("journal error: %v", err)
	}
	defer func() {
		if err := jw.Close(); err != nil {
			log.Printf("failed to close journal: %v", err)
		}
	}()

	if cfg.MonitorAddr != "" {
		hub := monitor.NewHub()
		jw.Observe(hub.Broadcast)
		go func() {
			if err := monitor.ListenAndServe(cfg.MonitorAddr, hub); err != nil && err != http.ErrServerClosed {
				log.Printf("monitor stopped: %v", err)
			}
		}()
	}

	brokerClient := broker.New(cfg.APIKey, cfg.APISecret, cfg.BaseURL)
	streamCfg := md.StreamConfig{APIKey: cfg.APIKey, APISecret: cfg.APISecret, Feed: cfg.Feed}

	runner := engine.New(brokerClient, md.StartStream, streamCfg, jw, engine.Options{
		AbortIfClosed: cfg.AbortIfClosed,
		LiquidateLead: cfg.LiquidateLead,
	})
	for _, symbol := range cfg.Symbols {
		runner.AddStrategy(strategy.NewTickTaker(strategy.TickTakerConfig{
			Symbol:             symbol,
			MaxQuantity:        float64(cfg.MaxQty),
			QuantityPerTrade:   float64(cfg.QtyPerTrade),
			ImbalanceThreshold: cfg.ImbalanceThreshold,
		}, brokerClient, runner.Registry(), jw))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	signalChan := make(chan os.Signal, 1)
	signal.Notify(signalChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-signalChan
		log.Printf("shutdown signal received")
		cancel()
	}()

	log.Printf("starting tick taker run_id=%s symbols=%v feed=%s", jw.RunID(), cfg.Symbols, cfg.Feed)
	if err := runner.Run(ctx); err != nil {
		log.Fatalf("runner stopped: %v", err)
	}

	log.Printf("shutdown complete")
}

func generateRunID() string {
	timestamp := time.Now().UTC().Format("20060102T150405")
	randomBytes := make([]byte, 4)
	if _, err := rand.Read(randomBytes); err != nil {
		return timestamp
	}
	return timestamp + "-" + hex.EncodeToString(randomBytes)
}
