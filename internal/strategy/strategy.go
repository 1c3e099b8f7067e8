// Package strategy defines the pluggable trading-strategy contract and a
// registry of concrete implementations selected by a discriminant string.
//
// Strategies are pure signal generators: they never touch the ledger or the
// balance. The orchestrator keeps each strategy's internal bookkeeping in
// sync with the ledger through RestorePositions/AddPosition/RemovePosition.
package strategy

import (
	"errors"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/gridline/bot-engine/internal/model"
)

// ErrUnknownType is returned when no strategy is registered under the
// requested discriminant. The orchestrator responds by entering degraded
// mode rather than failing the start command.
var ErrUnknownType = errors.New("strategy: unknown strategy type")

// Strategy is the closed capability interface every trading strategy
// implements.
type Strategy interface {
	// Analyze consumes the candle history and current price and emits a
	// buy/sell/hold signal.
	Analyze(candles []model.Candle, price decimal.Decimal) model.Signal

	// CalculatePositionSize converts a buy signal into a base-asset
	// quantity given the available cash and execution price.
	CalculatePositionSize(availableCash decimal.Decimal, sig model.Signal, price decimal.Decimal) decimal.Decimal

	// RestorePositions seeds strategy-internal state from the persisted
	// ledger, replacing whatever the strategy tracked before.
	RestorePositions(positions []model.Position)

	// AddPosition and RemovePosition keep strategy bookkeeping in sync
	// with ledger mutations.
	AddPosition(p model.Position)
	RemovePosition(id string)

	// Config returns the strategy's immutable parameter set.
	Config() model.StrategyConfig
}

// Builder constructs a strategy from an immutable config value.
type Builder func(cfg model.StrategyConfig) (Strategy, error)

var registry = map[string]Builder{
	TypeGrid:          newGrid,
	TypeMeanReversion: newMeanReversion,
	TypeDCA:           newDCA,
}

// Strategy discriminants.
const (
	TypeGrid          = "grid"
	TypeMeanReversion = "meanrev"
	TypeDCA           = "dca"
)

// New builds the strategy registered under typ.
func New(typ string, cfg model.StrategyConfig) (Strategy, error) {
	build, ok := registry[typ]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, typ)
	}
	return build(withDefaults(cfg))
}

// Types returns the registered discriminants, sorted.
func Types() []string {
	out := make([]string, 0, len(registry))
	for t := range registry {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// withDefaults fills zero-valued config fields. The input is a value, so
// the caller's config is never mutated.
func withDefaults(cfg model.StrategyConfig) model.StrategyConfig {
	if cfg.DropThreshold.IsZero() {
		cfg.DropThreshold = decimal.NewFromFloat(0.01) // 1% drop
	}
	if cfg.ProfitTarget.IsZero() {
		cfg.ProfitTarget = decimal.NewFromFloat(0.004) // 0.4% gain
	}
	if cfg.MaxGridLevels <= 0 {
		cfg.MaxGridLevels = 10
	}
	return cfg
}

// book is the shared strategy-internal lot bookkeeping.
type book struct {
	lots []model.Position
}

func (b *book) RestorePositions(positions []model.Position) {
	b.lots = make([]model.Position, len(positions))
	copy(b.lots, positions)
}

func (b *book) AddPosition(p model.Position) {
	b.lots = append(b.lots, p)
}

func (b *book) RemovePosition(id string) {
	for i, p := range b.lots {
		if p.ID == id {
			b.lots = append(b.lots[:i], b.lots[i+1:]...)
			return
		}
	}
}

// anyLotAboveTarget reports whether some tracked lot cleared the profit
// target at the given price.
func (b *book) anyLotAboveTarget(price, target decimal.Decimal) bool {
	for _, p := range b.lots {
		if p.EntryPrice.IsZero() {
			continue
		}
		gain := price.Sub(p.EntryPrice).Div(p.EntryPrice)
		if gain.GreaterThanOrEqual(target) {
			return true
		}
	}
	return false
}

// lowestEntry returns the smallest entry price among tracked lots, or zero.
func (b *book) lowestEntry() decimal.Decimal {
	low := decimal.Zero
	for _, p := range b.lots {
		if low.IsZero() || p.EntryPrice.LessThan(low) {
			low = p.EntryPrice
		}
	}
	return low
}

// sizeFromCash converts a quote budget into a base quantity at price.
// OrderSize wins when set; otherwise cash is split across the remaining
// grid levels.
func sizeFromCash(cfg model.StrategyConfig, openLots int, cash, price decimal.Decimal) decimal.Decimal {
	if !price.IsPositive() || !cash.IsPositive() {
		return decimal.Zero
	}
	quote := cfg.OrderSize
	if quote.IsZero() {
		levelsLeft := cfg.MaxGridLevels - openLots
		if levelsLeft < 1 {
			levelsLeft = 1
		}
		quote = cash.Div(decimal.NewFromInt(int64(levelsLeft)))
	}
	if quote.GreaterThan(cash) {
		quote = cash
	}
	return quote.Div(price)
}
