package risk

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
)

func d(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f)
}

func TestCheckBuy(t *testing.T) {
	l := NewLimiter(d(10), d(5000), 3, d(0.8))

	tests := []struct {
		name      string
		notional  float64
		fees      float64
		cash      float64
		inventory float64
		open      int
		wantErr   error
	}{
		{"ok", 1000, 1, 10000, 0, 0, nil},
		{"below minimum", 5, 0.005, 10000, 0, 0, ErrBelowMinNotional},
		{"above per-trade cap", 6000, 6, 10000, 0, 0, ErrAboveMaxNotional},
		{"insufficient cash", 1000, 1, 1000.5, 0, 0, ErrInsufficientCash},
		{"max positions", 1000, 1, 10000, 0, 3, ErrMaxPositionsOpen},
		{"exposure cap", 5000, 5, 6000, 4000, 0, ErrExposureLimitExceeded},
		{"exposure within cap", 1000, 1, 6000, 1000, 0, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := l.CheckBuy(d(tt.notional), d(tt.fees), d(tt.cash), d(tt.inventory), tt.open)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("CheckBuy = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestDisabledCaps(t *testing.T) {
	l := NewLimiter(d(10), decimal.Zero, 0, decimal.Zero)

	if err := l.CheckBuy(d(1e9), d(1e6), d(2e9), d(0), 100); err != nil {
		t.Errorf("disabled caps should pass any in-cash trade, got %v", err)
	}
}

func TestDefaultMinNotional(t *testing.T) {
	l := NewLimiter(decimal.Zero, decimal.Zero, 0, decimal.Zero)
	if err := l.CheckBuy(d(5), d(0), d(100), d(0), 0); !errors.Is(err, ErrBelowMinNotional) {
		t.Errorf("zero min should default to 10, got %v", err)
	}
}
