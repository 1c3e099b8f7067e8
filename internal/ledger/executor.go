package ledger

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/gridline/bot-engine/internal/model"
)

var (
	// ErrInsufficientInventory is returned when a sell exceeds the open
	// lot total.
	ErrInsufficientInventory = errors.New("ledger: sell amount exceeds open inventory")

	// ErrNonPositiveAmount is returned for zero or negative trade sizes.
	ErrNonPositiveAmount = errors.New("ledger: trade amount must be positive")
)

// DefaultFeeRate is the flat fee charged on notional value per execution.
var DefaultFeeRate = decimal.NewFromFloat(0.001) // 0.1%

// Notifier receives best-effort trade notifications. Implementations must
// not block; failures never fail the trade.
type Notifier interface {
	ProfitableSell(trade model.Trade)
}

// Executor records executed buys and sells into an append-only trade history
// and computes realized profit for sells against FIFO-matched cost basis.
type Executor struct {
	positions *PositionManager
	history   []model.Trade
	feeRate   decimal.Decimal
	notifier  Notifier

	now func() time.Time
}

// NewExecutor creates an executor over the given position book.
// notifier may be nil.
func NewExecutor(pm *PositionManager, notifier Notifier) *Executor {
	return &Executor{
		positions: pm,
		feeRate:   DefaultFeeRate,
		notifier:  notifier,
		now:       time.Now,
	}
}

// FeeRate returns the flat fee rate applied to notional value.
func (e *Executor) FeeRate() decimal.Decimal { return e.feeRate }

// Fee returns the fee charged for the given notional.
func (e *Executor) Fee(notional decimal.Decimal) decimal.Decimal {
	return notional.Mul(e.feeRate)
}

// ExecuteBuy opens a new lot and records the buy trade. The caller is
// responsible for checking balance sufficiency before calling; the executor
// itself always succeeds for a positive amount.
func (e *Executor) ExecuteBuy(amount, price decimal.Decimal, reason string) (model.Position, model.Trade, error) {
	if !amount.IsPositive() {
		return model.Position{}, model.Trade{}, ErrNonPositiveAmount
	}

	at := e.now().UTC()
	notional := amount.Mul(price)

	pos := e.positions.NewPosition(price, amount, reason, at)
	e.positions.Add(pos)

	trade := model.Trade{
		ID:         newID(),
		Timestamp:  at,
		Side:       model.SideBuy,
		Amount:     amount,
		Price:      price,
		Notional:   notional,
		Fees:       e.Fee(notional),
		Reason:     reason,
		PositionID: pos.ID,
	}
	e.history = append(e.history, trade)
	return pos, trade, nil
}

// ExecuteSell closes amount of inventory against the oldest lots first
// (true FIFO: partially consumed lots shrink in place until exhausted) and
// records the sell trade. Realized profit is proceeds minus fee minus the
// matched cost basis.
func (e *Executor) ExecuteSell(amount, price decimal.Decimal, reason string) (model.Trade, error) {
	if !amount.IsPositive() {
		return model.Trade{}, ErrNonPositiveAmount
	}
	if amount.GreaterThan(e.positions.TotalSize()) {
		return model.Trade{}, fmt.Errorf("%w: want %s, have %s",
			ErrInsufficientInventory, amount, e.positions.TotalSize())
	}

	fills := e.positions.ConsumeOldest(amount)

	costBasis := decimal.Zero
	firstLot := ""
	for _, f := range fills {
		costBasis = costBasis.Add(f.costBasis)
		if firstLot == "" {
			firstLot = f.positionID
		}
	}

	at := e.now().UTC()
	notional := amount.Mul(price)
	fee := e.Fee(notional)
	profit := notional.Sub(fee).Sub(costBasis)

	trade := model.Trade{
		ID:         newID(),
		Timestamp:  at,
		Side:       model.SideSell,
		Amount:     amount,
		Price:      price,
		Notional:   notional,
		Fees:       fee,
		Reason:     reason,
		Profit:     profit,
		CostBasis:  costBasis,
		PositionID: firstLot,
	}
	e.history = append(e.history, trade)

	if e.notifier != nil && profit.IsPositive() {
		// Best effort; a broken hook must never fail the trade.
		go e.notifier.ProfitableSell(trade)
	}
	return trade, nil
}

// SellPosition sells one specific lot in full at the given price (grid
// semantics: one lot per sell, not the whole inventory).
func (e *Executor) SellPosition(id string, price decimal.Decimal, reason string) (model.Trade, error) {
	pos, ok := e.positions.Get(id)
	if !ok {
		return model.Trade{}, fmt.Errorf("%w: position %s not open", ErrInsufficientInventory, id)
	}

	costBasis, consumed := e.positions.Consume(id, pos.Size)

	at := e.now().UTC()
	notional := consumed.Mul(price)
	fee := e.Fee(notional)
	profit := notional.Sub(fee).Sub(costBasis)

	trade := model.Trade{
		ID:         newID(),
		Timestamp:  at,
		Side:       model.SideSell,
		Amount:     consumed,
		Price:      price,
		Notional:   notional,
		Fees:       fee,
		Reason:     reason,
		Profit:     profit,
		CostBasis:  costBasis,
		PositionID: id,
	}
	e.history = append(e.history, trade)

	if e.notifier != nil && profit.IsPositive() {
		go e.notifier.ProfitableSell(trade)
	}
	return trade, nil
}

// History returns the full append-only trade list.
func (e *Executor) History() []model.Trade {
	out := make([]model.Trade, len(e.history))
	copy(out, e.history)
	return out
}

// RestoreHistory replaces the trade list from a persisted snapshot.
func (e *Executor) RestoreHistory(trades []model.Trade) {
	e.history = make([]model.Trade, len(trades))
	copy(e.history, trades)
}

// ClearHistory resets the trade list and, through the position book, any
// FIFO matching state. Used only on full bot reset.
func (e *Executor) ClearHistory() {
	e.history = nil
}
