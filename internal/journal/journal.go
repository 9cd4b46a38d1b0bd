// Package journal records every strategy decision as one NDJSON line so a run
// can be replayed or audited after the fact.
package journal

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"
)

type Entry struct {
	RunID     string    `json:"run_id"`
	Timestamp time.Time `json:"timestamp"`
	Kind      string    `json:"kind"`
	Symbol    string    `json:"symbol,omitempty"`
	Bid       float64   `json:"bid,omitempty"`
	Ask       float64   `json:"ask,omitempty"`
	BidSize   float64   `json:"bid_size,omitempty"`
	AskSize   float64   `json:"ask_size,omitempty"`
	Side      string    `json:"side,omitempty"`
	Qty       float64   `json:"qty,omitempty"`
	Price     float64   `json:"price,omitempty"`
	OrderID   string    `json:"order_id,omitempty"`
	Position  float64   `json:"position,omitempty"`
	Reason    string    `json:"reason,omitempty"`
}

// Entry kinds written by the runner and the strategies.
const (
	KindLevelChange = "level_change"
	KindSignal      = "signal"
	KindSubmitError = "submit_error"
	KindSettled     = "settled"
	KindCanceled    = "canceled"
	KindLiquidate   = "liquidate"
	KindStartup     = "startup"
)

type Writer struct {
	runID    string
	file     *os.File
	writer   *bufio.Writer
	mu       sync.Mutex
	observer func(Entry)
}

func NewWriter(path, runID string) (*Writer, error) {
	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, err
	}
	return &Writer{
		runID:  runID,
		file:   file,
		writer: bufio.NewWriter(file),
	}, nil
}

func (w *Writer) RunID() string { return w.runID }

// Observe registers a callback invoked with every appended entry. Set once
// during wiring, before any Append.
func (w *Writer) Observe(fn func(Entry)) { w.observer = fn }

func (w *Writer) Append(e Entry) {
	e.RunID = w.runID
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	payload, err := json.Marshal(e)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to marshal journal entry: %v\n", err)
		return
	}
	if _, err := w.writer.Write(append(payload, '\n')); err != nil {
		fmt.Fprintf(os.Stderr, "failed to write journal entry: %v\n", err)
		return
	}
	if err := w.writer.Flush(); err != nil {
		fmt.Fprintf(os.Stderr, "failed to flush journal: %v\n", err)
	}
	if w.observer != nil {
		w.observer(e)
	}
}

func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.writer.Flush(); err != nil {
		_ = w.file.Close()
		return err
	}
	return w.file.Close()
}
