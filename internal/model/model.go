// Package model defines the core domain types shared across the bot engine.
// All monetary values use shopspring/decimal — never float64 for money.
package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Trade sides.
const (
	SideBuy  = "buy"
	SideSell = "sell"
)

// Position is one open inventory lot: a quantity of base asset bought at a
// specific price, tracked until fully sold. Partial sells shrink Size in
// place rather than deleting and recreating the lot.
type Position struct {
	ID         string          `json:"id"`
	Sequence   uint64          `json:"sequence"` // creation order, monotonic per bot
	EntryPrice decimal.Decimal `json:"entry_price"`
	Size       decimal.Decimal `json:"size"`
	CreatedAt  time.Time       `json:"created_at"`
	Reason     string          `json:"reason"`
}

// Notional returns the cost basis of the lot (entry price × size).
func (p Position) Notional() decimal.Decimal {
	return p.EntryPrice.Mul(p.Size)
}

// Trade is an immutable execution record. Once created, these are never
// modified or deleted; the ledger can be reconstructed from them.
type Trade struct {
	ID        string          `json:"id"`
	Timestamp time.Time       `json:"timestamp"`
	Side      string          `json:"side"` // "buy" or "sell"
	Amount    decimal.Decimal `json:"amount"`
	Price     decimal.Decimal `json:"price"`
	Notional  decimal.Decimal `json:"notional"`
	Fees      decimal.Decimal `json:"fees"`
	Reason    string          `json:"reason"`

	// Sell-only fields.
	Profit     decimal.Decimal `json:"profit,omitempty"`
	CostBasis  decimal.Decimal `json:"cost_basis,omitempty"`
	PositionID string          `json:"position_id,omitempty"`
}

// Balance tracks the quote and base holdings of one bot.
// Invariant: cash + inventory*price + profitVault + inventoryVault*price
// equals total account value.
type Balance struct {
	Cash           decimal.Decimal `json:"cash"`            // spendable quote currency
	Inventory      decimal.Decimal `json:"inventory"`       // base asset held in open lots
	ProfitVault    decimal.Decimal `json:"profit_vault"`    // quote-denominated realized profit reserve
	InventoryVault decimal.Decimal `json:"inventory_vault"` // base-denominated realized profit reserve
}

// TotalValue marks the full account to market at the given price.
func (b Balance) TotalValue(price decimal.Decimal) decimal.Decimal {
	return b.Cash.
		Add(b.Inventory.Mul(price)).
		Add(b.ProfitVault).
		Add(b.InventoryVault.Mul(price))
}

// Statistics holds cumulative per-bot counters.
type Statistics struct {
	TotalFees           decimal.Decimal `json:"total_fees"`
	TotalRealizedProfit decimal.Decimal `json:"total_realized_profit"`
	TotalReinvested     decimal.Decimal `json:"total_reinvested"`
	WinningTrades       int             `json:"winning_trades"`
	LosingTrades        int             `json:"losing_trades"`
}

// WinRate returns winningTrades/(winningTrades+losingTrades), or zero when
// no sells have completed.
func (s Statistics) WinRate() decimal.Decimal {
	total := s.WinningTrades + s.LosingTrades
	if total == 0 {
		return decimal.Zero
	}
	return decimal.NewFromInt(int64(s.WinningTrades)).
		Div(decimal.NewFromInt(int64(total)))
}

// Candle is one OHLCV bucket keyed by its interval-truncated start time.
type Candle struct {
	StartTime time.Time       `json:"start_time"`
	Open      decimal.Decimal `json:"open"`
	High      decimal.Decimal `json:"high"`
	Low       decimal.Decimal `json:"low"`
	Close     decimal.Decimal `json:"close"`
	Volume    decimal.Decimal `json:"volume"`
}

// SnapshotVersion is the current persisted-snapshot schema version.
// Older snapshots are migrated forward on load and re-persisted.
const SnapshotVersion = 2

// Snapshot is the complete persisted state of one bot at a point in time.
type Snapshot struct {
	Version   int    `json:"version"`
	BotID     string `json:"bot_id"`
	IsRunning bool   `json:"is_running"`
	IsPaused  bool   `json:"is_paused"`

	Balance    Balance    `json:"balance"`
	Statistics Statistics `json:"statistics"`
	Trades     []Trade    `json:"trades"`
	Positions  []Position `json:"positions"`

	StrategyType   string          `json:"strategy_type,omitempty"`
	StrategyConfig StrategyConfig  `json:"strategy_config"`
	CurrentPrice   decimal.Decimal `json:"current_price"`
	RecentHigh     decimal.Decimal `json:"recent_high"`
	RecentLow      decimal.Decimal `json:"recent_low"`

	UpdatedAt time.Time `json:"updated_at"`
}

// StrategyConfig is the immutable strategy parameter set. Reconfiguration
// produces a new value; configs are never shared by pointer between the
// orchestrator and a strategy.
type StrategyConfig struct {
	DropThreshold decimal.Decimal `json:"drop_threshold"` // fractional drop from recent high that triggers a buy
	ProfitTarget  decimal.Decimal `json:"profit_target"`  // fractional gain on a lot that permits a sell
	MaxGridLevels int             `json:"max_grid_levels"`
	OrderSize     decimal.Decimal `json:"order_size"` // quote amount per entry; zero → strategy default
}

// Signal types emitted by strategies.
const (
	SignalBuy  = "buy"
	SignalSell = "sell"
	SignalHold = "hold"
)

// Signal is a strategy's verdict for the current tick.
type Signal struct {
	Type   string `json:"type"` // "buy", "sell", or "hold"
	Reason string `json:"reason"`
}
