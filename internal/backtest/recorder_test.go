package backtest

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"quantsignals/internal/signal"
)

func TestJSONLRecorderRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trades", "out.jsonl")
	rec, err := NewJSONLRecorder(path)
	if err != nil {
		t.Fatalf("create recorder: %v", err)
	}

	want := signal.Trade{
		Ts:       time.Date(2024, 3, 1, 15, 30, 0, 0, time.UTC),
		Symbol:   "AAPL",
		Action:   signal.Buy,
		Quantity: 100,
		Price:    150.25,
		Value:    15025,
		Fee:      15.025,
	}
	rec.Record(want)
	if err := rec.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := rec.Close(); err != nil {
		t.Fatalf("double close should be safe: %v", err)
	}

	file, err := os.Open(path)
	if err != nil {
		t.Fatalf("open recorded file: %v", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	if !scanner.Scan() {
		t.Fatalf("expected one recorded line")
	}
	var got signal.Trade
	if err := json.Unmarshal(scanner.Bytes(), &got); err != nil {
		t.Fatalf("decode line: %v", err)
	}
	if got.Symbol != want.Symbol || got.Action != want.Action || got.Quantity != want.Quantity {
		t.Fatalf("recorded trade mismatch: got %+v", got)
	}
}
