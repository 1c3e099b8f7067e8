package ledger

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/gridline/bot-engine/internal/model"
)

// Reconstruct repairs a divergent ledger where the balance shows nonzero
// inventory but the position list does not match it (e.g. after a crash
// mid-write). The repair is deterministic:
//
//  1. Replay the trade history FIFO — buys open lots, sells consume the
//     oldest lots first.
//  2. If the replayed total is short of the balance inventory, the
//     remainder becomes one synthetic lot at the most recent trade price.
//  3. If the replayed total exceeds the balance inventory, oldest lots are
//     trimmed until the totals agree.
//
// This is a best-effort repair: the reconstructed cost basis is exact when
// the trade history is complete, and a blended approximation otherwise.
func Reconstruct(trades []model.Trade, inventory decimal.Decimal, now time.Time) []model.Position {
	if !inventory.IsPositive() {
		return nil
	}

	pm := NewPositionManager()
	lastPrice := decimal.Zero

	for _, t := range trades {
		lastPrice = t.Price
		switch t.Side {
		case model.SideBuy:
			p := pm.NewPosition(t.Price, t.Amount, "reconstructed: "+t.Reason, t.Timestamp)
			pm.Add(p)
		case model.SideSell:
			amount := decimal.Min(t.Amount, pm.TotalSize())
			if amount.IsPositive() {
				pm.ConsumeOldest(amount)
			}
		}
	}

	replayed := pm.TotalSize()
	switch {
	case replayed.LessThan(inventory):
		// With no trade history lastPrice stays zero and the lot
		// carries a zero cost basis; any sale realizes full proceeds.
		remainder := inventory.Sub(replayed)
		p := pm.NewPosition(lastPrice, remainder, "reconstructed: unmatched inventory", now)
		pm.Add(p)
	case replayed.GreaterThan(inventory):
		pm.ConsumeOldest(replayed.Sub(inventory))
	}

	return pm.List()
}
