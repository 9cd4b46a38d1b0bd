package journal

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWriterAppendsOneLinePerEntry(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.ndjson")
	w, err := NewWriter(path, "run-1")
	require.NoError(t, err)

	w.Append(Entry{Kind: KindLevelChange, Symbol: "SNAP", Bid: 10.00, Ask: 10.01})
	w.Append(Entry{Kind: KindSignal, Symbol: "SNAP", Side: "buy", Qty: 100, Price: 10.01})
	require.NoError(t, w.Close())

	file, err := os.Open(path)
	require.NoError(t, err)
	defer file.Close()

	var entries []Entry
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		var e Entry
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &e))
		entries = append(entries, e)
	}
	require.NoError(t, scanner.Err())

	require.Len(t, entries, 2)
	require.Equal(t, "run-1", entries[0].RunID)
	require.Equal(t, KindLevelChange, entries[0].Kind)
	require.False(t, entries[0].Timestamp.IsZero())
	require.Equal(t, KindSignal, entries[1].Kind)
	require.Equal(t, 100.0, entries[1].Qty)
}

func TestWriterNotifiesObserver(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.ndjson")
	w, err := NewWriter(path, "run-2")
	require.NoError(t, err)
	defer w.Close()

	var seen []Entry
	w.Observe(func(e Entry) { seen = append(seen, e) })

	w.Append(Entry{Kind: KindSettled, Symbol: "SNAP", OrderID: "x1"})
	require.Len(t, seen, 1)
	require.Equal(t, "run-2", seen[0].RunID)
	require.Equal(t, "x1", seen[0].OrderID)
}
