// Package candle aggregates a price-tick stream into a bounded rolling
// window of OHLCV buckets.
package candle

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/gridline/bot-engine/internal/model"
)

// Defaults for the rolling window.
const (
	DefaultInterval = time.Minute
	DefaultCap      = 200
)

// Window maintains closed candles plus the in-progress bucket. The bucket
// is mutated in place (high=max, low=min, close=last) until its interval
// elapses, then appended to the window; the oldest candle is evicted once
// the cap is reached.
type Window struct {
	interval time.Duration
	cap      int

	closed  []model.Candle
	current *model.Candle
}

// NewWindow creates a window with the given bucket interval and capacity.
// Non-positive arguments fall back to the defaults.
func NewWindow(interval time.Duration, capacity int) *Window {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if capacity <= 0 {
		capacity = DefaultCap
	}
	return &Window{interval: interval, cap: capacity}
}

// Update folds one tick into the window. A tick in a new interval closes
// the in-progress bucket first.
func (w *Window) Update(price decimal.Decimal, at time.Time) {
	start := at.Truncate(w.interval)

	if w.current != nil && !w.current.StartTime.Equal(start) {
		w.closed = append(w.closed, *w.current)
		if len(w.closed) > w.cap {
			w.closed = w.closed[1:]
		}
		w.current = nil
	}

	if w.current == nil {
		w.current = &model.Candle{
			StartTime: start,
			Open:      price,
			High:      price,
			Low:       price,
			Close:     price,
		}
		return
	}

	if price.GreaterThan(w.current.High) {
		w.current.High = price
	}
	if price.LessThan(w.current.Low) {
		w.current.Low = price
	}
	w.current.Close = price
}

// Candles returns the closed candles followed by the in-progress bucket.
func (w *Window) Candles() []model.Candle {
	out := make([]model.Candle, len(w.closed), len(w.closed)+1)
	copy(out, w.closed)
	if w.current != nil {
		out = append(out, *w.current)
	}
	return out
}

// Len returns the number of candles including the in-progress bucket.
func (w *Window) Len() int {
	n := len(w.closed)
	if w.current != nil {
		n++
	}
	return n
}

// Range returns the highest high and lowest low across the window.
// Both are zero when the window is empty.
func (w *Window) Range() (high, low decimal.Decimal) {
	first := true
	for _, c := range w.Candles() {
		if first {
			high, low = c.High, c.Low
			first = false
			continue
		}
		if c.High.GreaterThan(high) {
			high = c.High
		}
		if c.Low.LessThan(low) {
			low = c.Low
		}
	}
	return high, low
}
