package chart

import (
	"bytes"
	"testing"
	"time"

	"longentry-telegram-bot/internal/price"
)

func candleSeries(n int, base float64) []price.Candle {
	start := time.Date(2025, 8, 1, 0, 0, 0, 0, time.UTC)
	candles := make([]price.Candle, n)
	for i := range candles {
		candles[i] = price.Candle{
			OpenTime: start.Add(time.Duration(i) * time.Hour),
			Close:    base + float64(i%7),
		}
	}
	return candles
}

func TestRenderProducesPNG(t *testing.T) {
	data, err := Render("SOLUSDT", candleSeries(48, 140), 138)
	if err != nil {
		t.Fatalf("render returned error: %v", err)
	}
	if !bytes.HasPrefix(data, []byte("\x89PNG")) {
		t.Fatal("output is not a PNG")
	}
}

func TestRenderWithoutTargetLine(t *testing.T) {
	if _, err := Render("BTCUSDT", candleSeries(10, 115000), 0); err != nil {
		t.Fatalf("render returned error: %v", err)
	}
}

func TestRenderRejectsShortSeries(t *testing.T) {
	if _, err := Render("BTCUSDT", candleSeries(1, 100), 0); err == nil {
		t.Fatal("expected error for single data point")
	}
}
