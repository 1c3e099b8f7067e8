package candle

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func d(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f)
}

func TestInProgressBucketMutation(t *testing.T) {
	w := NewWindow(time.Minute, 10)
	t0 := time.Date(2026, 1, 1, 12, 0, 5, 0, time.UTC)

	w.Update(d(100), t0)
	w.Update(d(105), t0.Add(10*time.Second))
	w.Update(d(98), t0.Add(20*time.Second))
	w.Update(d(101), t0.Add(30*time.Second))

	candles := w.Candles()
	if len(candles) != 1 {
		t.Fatalf("ticks within one interval produce one bucket, got %d", len(candles))
	}
	c := candles[0]
	if !c.Open.Equal(d(100)) || !c.High.Equal(d(105)) || !c.Low.Equal(d(98)) || !c.Close.Equal(d(101)) {
		t.Errorf("OHLC = %s/%s/%s/%s, want 100/105/98/101", c.Open, c.High, c.Low, c.Close)
	}
	if !c.StartTime.Equal(t0.Truncate(time.Minute)) {
		t.Errorf("bucket keyed at %s, want truncated %s", c.StartTime, t0.Truncate(time.Minute))
	}
}

func TestRolloverAndEviction(t *testing.T) {
	w := NewWindow(time.Minute, 3)
	t0 := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 6; i++ {
		w.Update(d(float64(100+i)), t0.Add(time.Duration(i)*time.Minute))
	}

	// 5 closed candles, capped at 3, plus the in-progress bucket.
	candles := w.Candles()
	if len(candles) != 4 {
		t.Fatalf("expected 3 closed + 1 open, got %d", len(candles))
	}
	// Oldest evicted first: the surviving closed candles open at 102.
	if !candles[0].Open.Equal(d(102)) {
		t.Errorf("oldest surviving candle opens at %s, want 102", candles[0].Open)
	}
}

func TestRange(t *testing.T) {
	w := NewWindow(time.Minute, 10)

	high, low := w.Range()
	if !high.IsZero() || !low.IsZero() {
		t.Error("empty window has zero range")
	}

	t0 := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	w.Update(d(100), t0)
	w.Update(d(120), t0.Add(time.Minute))
	w.Update(d(90), t0.Add(2*time.Minute))

	high, low = w.Range()
	if !high.Equal(d(120)) || !low.Equal(d(90)) {
		t.Errorf("range = %s/%s, want 120/90", high, low)
	}
}
