package price

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"longentry-telegram-bot/internal/monitor"
)

func TestBinanceLookup(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v3/ticker/price" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		switch r.URL.Query().Get("symbol") {
		case "BTCUSDT":
			w.Write([]byte(`{"symbol":"BTCUSDT","price":"115000.42000000"}`))
		case "BROKEN":
			w.Write([]byte(`{"symbol":"BROKEN","price":"not-a-number"}`))
		case "GARBAGE":
			w.Write([]byte(`{{{`))
		default:
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"code":-1121,"msg":"Invalid symbol."}`))
		}
	}))
	defer server.Close()

	source := NewBinanceSource(server.URL)

	t.Run("known symbol", func(t *testing.T) {
		got, err := source.Lookup(context.Background(), "BTCUSDT")
		if err != nil {
			t.Fatalf("lookup returned error: %v", err)
		}
		if got != 115000.42 {
			t.Fatalf("price got %f, want 115000.42", got)
		}
	})

	for _, symbol := range []string{"NOSUCH", "BROKEN", "GARBAGE"} {
		t.Run("unavailable "+symbol, func(t *testing.T) {
			_, err := source.Lookup(context.Background(), symbol)
			if !errors.Is(err, monitor.ErrUnavailable) {
				t.Fatalf("got %v, want ErrUnavailable", err)
			}
		})
	}
}

func TestBinanceLookupConnectionRefused(t *testing.T) {
	source := NewBinanceSource("http://127.0.0.1:1")
	_, err := source.Lookup(context.Background(), "BTCUSDT")
	if !errors.Is(err, monitor.ErrUnavailable) {
		t.Fatalf("got %v, want ErrUnavailable", err)
	}
}

func TestKlines(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v3/klines" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("interval"); got != "1h" {
			t.Errorf("interval got %s, want 1h", got)
		}
		w.Write([]byte(`[
			[1727000000000,"100.0","110.0","95.0","105.5","12.3",1727003599999,"0",10,"0","0","0"],
			[1727003600000,"105.5","108.0","101.0","102.25","8.1",1727007199999,"0",7,"0","0","0"]
		]`))
	}))
	defer server.Close()

	source := NewBinanceSource(server.URL)
	candles, err := source.Klines(context.Background(), "SOLUSDT", "1h", 2)
	if err != nil {
		t.Fatalf("klines returned error: %v", err)
	}
	if len(candles) != 2 {
		t.Fatalf("got %d candles, want 2", len(candles))
	}
	if candles[0].Close != 105.5 || candles[1].Close != 102.25 {
		t.Fatalf("closes got %f, %f", candles[0].Close, candles[1].Close)
	}
	if candles[0].OpenTime.UnixMilli() != 1727000000000 {
		t.Fatalf("open time got %v", candles[0].OpenTime)
	}
}

func TestKlinesRejectsUnknownInterval(t *testing.T) {
	source := NewBinanceSource("http://127.0.0.1:1")
	if _, err := source.Klines(context.Background(), "BTCUSDT", "3h", 10); err == nil {
		t.Fatal("expected error for unsupported interval")
	}
}
