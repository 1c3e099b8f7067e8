// Package risk enforces pre-trade limits on proposed buys: notional floors
// and caps per trade, a cap on open lots, and a cap on total inventory
// exposure relative to account equity.
//
// Limit violations are routine strategy behavior, not faults; callers drop
// the signal and move on.
package risk

import (
	"errors"

	"github.com/shopspring/decimal"
)

var (
	// ErrBelowMinNotional is returned when a proposed buy is too small to
	// be worth executing.
	ErrBelowMinNotional = errors.New("risk: notional below minimum")

	// ErrAboveMaxNotional is returned when a single trade would exceed
	// the per-trade cap.
	ErrAboveMaxNotional = errors.New("risk: notional above per-trade maximum")

	// ErrInsufficientCash is returned when cost plus fees exceeds
	// available cash.
	ErrInsufficientCash = errors.New("risk: insufficient cash")

	// ErrMaxPositionsOpen is returned when the open-lot cap is reached.
	ErrMaxPositionsOpen = errors.New("risk: maximum open positions reached")

	// ErrExposureLimitExceeded is returned when the trade would push
	// inventory exposure past the configured share of equity.
	ErrExposureLimitExceeded = errors.New("risk: exposure limit exceeded")
)

// Limiter validates proposed buys. The zero value is unusable; use
// NewLimiter, which fills sane defaults.
type Limiter struct {
	// MinNotional is the smallest quote value a single buy may carry.
	MinNotional decimal.Decimal

	// MaxNotional is the largest quote value a single buy may carry.
	// Zero disables the cap.
	MaxNotional decimal.Decimal

	// MaxOpenPositions caps the number of simultaneously open lots.
	// Zero disables the cap.
	MaxOpenPositions int

	// MaxExposureRatio caps inventory value as a fraction of total
	// equity (cash + inventory value). Zero disables the cap.
	MaxExposureRatio decimal.Decimal
}

// NewLimiter creates a limiter with the given minimum notional and
// defaults for the rest.
func NewLimiter(minNotional, maxNotional decimal.Decimal, maxOpen int, maxExposure decimal.Decimal) *Limiter {
	if minNotional.IsZero() {
		minNotional = decimal.NewFromInt(10)
	}
	return &Limiter{
		MinNotional:      minNotional,
		MaxNotional:      maxNotional,
		MaxOpenPositions: maxOpen,
		MaxExposureRatio: maxExposure,
	}
}

// CheckBuy validates a proposed buy.
//
// Parameters:
//   - notional: quote value of the proposed trade
//   - fees: fee charged on top of the notional
//   - cash: spendable quote balance
//   - inventoryValue: current inventory marked to market
//   - openPositions: number of currently open lots
//
// Returns nil when the trade is within limits.
func (l *Limiter) CheckBuy(notional, fees, cash, inventoryValue decimal.Decimal, openPositions int) error {
	if notional.LessThan(l.MinNotional) {
		return ErrBelowMinNotional
	}
	if l.MaxNotional.IsPositive() && notional.GreaterThan(l.MaxNotional) {
		return ErrAboveMaxNotional
	}
	if notional.Add(fees).GreaterThan(cash) {
		return ErrInsufficientCash
	}
	if l.MaxOpenPositions > 0 && openPositions >= l.MaxOpenPositions {
		return ErrMaxPositionsOpen
	}
	if l.MaxExposureRatio.IsPositive() {
		equity := cash.Add(inventoryValue)
		if equity.IsPositive() {
			newExposure := inventoryValue.Add(notional)
			if newExposure.Div(equity).GreaterThan(l.MaxExposureRatio) {
				return ErrExposureLimitExceeded
			}
		}
	}
	return nil
}
