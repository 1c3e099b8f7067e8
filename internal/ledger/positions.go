// Package ledger implements the position book and trade execution for one
// bot: open-lot tracking with cost-basis accounting, FIFO sell matching, and
// an append-only trade history.
//
// All monetary values use shopspring/decimal — never float64 for money.
package ledger

import (
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/gridline/bot-engine/internal/model"
)

// PositionManager owns the open-position collection for one bot. All
// mutations are synchronous and local to that bot; cross-bot sharing never
// happens. Callers serialize access (the orchestrator holds its own mutex
// around every ledger mutation).
type PositionManager struct {
	positions []model.Position
	nextSeq   uint64
}

// NewPositionManager creates an empty position book.
func NewPositionManager() *PositionManager {
	return &PositionManager{nextSeq: 1}
}

// NewPosition builds a lot with a fresh id and the next creation sequence.
func (pm *PositionManager) NewPosition(entryPrice, size decimal.Decimal, reason string, at time.Time) model.Position {
	p := model.Position{
		ID:         uuid.New().String(),
		Sequence:   pm.nextSeq,
		EntryPrice: entryPrice,
		Size:       size,
		CreatedAt:  at,
		Reason:     reason,
	}
	pm.nextSeq++
	return p
}

// Add appends a lot to the book, keeping creation order.
func (pm *PositionManager) Add(p model.Position) {
	if p.Sequence >= pm.nextSeq {
		pm.nextSeq = p.Sequence + 1
	}
	pm.positions = append(pm.positions, p)
	sort.SliceStable(pm.positions, func(i, j int) bool {
		return pm.positions[i].Sequence < pm.positions[j].Sequence
	})
}

// Remove deletes the lot with the given id. Unknown ids are ignored.
func (pm *PositionManager) Remove(id string) {
	for i, p := range pm.positions {
		if p.ID == id {
			pm.positions = append(pm.positions[:i], pm.positions[i+1:]...)
			return
		}
	}
}

// ClearAll drops every open lot. Used on full bot reset.
func (pm *PositionManager) ClearAll() {
	pm.positions = nil
	pm.nextSeq = 1
}

// List returns a copy of the open lots in creation order.
func (pm *PositionManager) List() []model.Position {
	out := make([]model.Position, len(pm.positions))
	copy(out, pm.positions)
	return out
}

// Len returns the number of open lots.
func (pm *PositionManager) Len() int {
	return len(pm.positions)
}

// Get returns the lot with the given id, or false.
func (pm *PositionManager) Get(id string) (model.Position, bool) {
	for _, p := range pm.positions {
		if p.ID == id {
			return p, true
		}
	}
	return model.Position{}, false
}

// TotalSize returns the aggregate base-asset quantity across open lots.
func (pm *PositionManager) TotalSize() decimal.Decimal {
	total := decimal.Zero
	for _, p := range pm.positions {
		total = total.Add(p.Size)
	}
	return total
}

// TotalCostBasis returns Σ(entryPrice_i × size_i) across open lots.
func (pm *PositionManager) TotalCostBasis() decimal.Decimal {
	total := decimal.Zero
	for _, p := range pm.positions {
		total = total.Add(p.Notional())
	}
	return total
}

// AverageEntryPrice returns the cost-basis-weighted average entry price:
// Σ(entryPrice_i × size_i) / Σ size_i. Returns zero with no open lots.
func (pm *PositionManager) AverageEntryPrice() decimal.Decimal {
	size := pm.TotalSize()
	if size.IsZero() {
		return decimal.Zero
	}
	return pm.TotalCostBasis().Div(size)
}

// UnrealizedPnL marks all open lots against the given price.
func (pm *PositionManager) UnrealizedPnL(currentPrice decimal.Decimal) decimal.Decimal {
	return pm.TotalSize().Mul(currentPrice).Sub(pm.TotalCostBasis())
}

// MostProfitable returns the open lot with the highest fractional gain at
// the given price, or false when the book is empty.
func (pm *PositionManager) MostProfitable(currentPrice decimal.Decimal) (model.Position, bool) {
	var best model.Position
	bestGain := decimal.Zero
	found := false
	for _, p := range pm.positions {
		if p.EntryPrice.IsZero() {
			continue
		}
		gain := currentPrice.Sub(p.EntryPrice).Div(p.EntryPrice)
		if !found || gain.GreaterThan(bestGain) {
			best = p
			bestGain = gain
			found = true
		}
	}
	return best, found
}

// lotFill is one lot's contribution to a sell.
type lotFill struct {
	positionID string
	size       decimal.Decimal
	costBasis  decimal.Decimal
}

// ConsumeOldest matches amount against open lots oldest-first (true FIFO).
// Partially consumed lots have Size reduced in place; exhausted lots are
// removed. Returns the per-lot fills in consumption order. The caller must
// verify amount does not exceed TotalSize.
func (pm *PositionManager) ConsumeOldest(amount decimal.Decimal) []lotFill {
	var fills []lotFill
	remaining := amount

	i := 0
	for i < len(pm.positions) && remaining.IsPositive() {
		p := &pm.positions[i]
		take := decimal.Min(p.Size, remaining)
		fills = append(fills, lotFill{
			positionID: p.ID,
			size:       take,
			costBasis:  p.EntryPrice.Mul(take),
		})
		remaining = remaining.Sub(take)
		p.Size = p.Size.Sub(take)
		if p.Size.IsZero() {
			pm.positions = append(pm.positions[:i], pm.positions[i+1:]...)
		} else {
			i++
		}
	}
	return fills
}

// Consume matches amount against one specific lot, shrinking or removing it.
// Returns the matched cost basis and the size actually consumed.
func (pm *PositionManager) Consume(id string, amount decimal.Decimal) (costBasis, consumed decimal.Decimal) {
	for i := range pm.positions {
		p := &pm.positions[i]
		if p.ID != id {
			continue
		}
		take := decimal.Min(p.Size, amount)
		costBasis = p.EntryPrice.Mul(take)
		p.Size = p.Size.Sub(take)
		if p.Size.IsZero() {
			pm.positions = append(pm.positions[:i], pm.positions[i+1:]...)
		}
		return costBasis, take
	}
	return decimal.Zero, decimal.Zero
}

// Restore replaces the book with the given lots (persisted-state adoption).
func (pm *PositionManager) Restore(positions []model.Position) {
	pm.positions = nil
	pm.nextSeq = 1
	for _, p := range positions {
		pm.Add(p)
	}
}

func newID() string { return uuid.New().String() }
