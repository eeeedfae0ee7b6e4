package ingest

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"

	"quantsignals/internal/signal"
)

func TestParseKlineMessageClosedCandle(t *testing.T) {
	message := []byte(`{"stream":"aapl@kline_1m","data":{"k":{"T":1709290859999,"o":"189.50","h":"190.10","l":"189.20","c":"189.95","v":"15230.5","x":true}}}`)
	bar, ok, err := parseKlineMessage(message)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if !ok {
		t.Fatal("closed candle should produce a bar")
	}
	if bar.Symbol != "AAPL" {
		t.Fatalf("symbol = %q, want AAPL", bar.Symbol)
	}
	if bar.Close != 189.95 {
		t.Fatalf("close = %v, want 189.95", bar.Close)
	}
	if bar.Volume != 15230 {
		t.Fatalf("volume = %d, want 15230", bar.Volume)
	}
	if err := bar.Validate(); err != nil {
		t.Fatalf("bar invalid: %v", err)
	}
}

func TestParseKlineMessageSkipsFormingCandle(t *testing.T) {
	message := []byte(`{"stream":"aapl@kline_1m","data":{"k":{"T":1709290859999,"o":"189.50","h":"190.10","l":"189.20","c":"189.95","v":"15230.5","x":false}}}`)
	_, ok, err := parseKlineMessage(message)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if ok {
		t.Fatal("forming candle must not produce a bar")
	}
}

func TestFeedRunReturnsOnCancelledContext(t *testing.T) {
	feed := NewFeed([]string{"AAPL"}, zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	out := make(chan signal.PriceBar, 1)
	err := feed.Run(ctx, out)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestFeedRunRequiresSymbols(t *testing.T) {
	feed := NewFeed(nil, zerolog.Nop())
	if err := feed.Run(context.Background(), make(chan signal.PriceBar)); err == nil {
		t.Fatal("expected error for empty symbol list")
	}
}

func TestParseKlineMessageRejectsGarbage(t *testing.T) {
	if _, _, err := parseKlineMessage([]byte("not json")); err == nil {
		t.Fatal("expected decode error")
	}
}
