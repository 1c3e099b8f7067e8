package strategy

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/gridline/bot-engine/internal/model"
)

// grid buys on dips below the recent high and sells single lots once they
// clear the profit target. One lot per level; a new level opens only when
// price has dropped at least DropThreshold below the cheapest open entry,
// so entries ladder down instead of clustering.
type grid struct {
	book
	cfg model.StrategyConfig
}

func newGrid(cfg model.StrategyConfig) (Strategy, error) {
	return &grid{cfg: cfg}, nil
}

func (g *grid) Config() model.StrategyConfig { return g.cfg }

func (g *grid) Analyze(candles []model.Candle, price decimal.Decimal) model.Signal {
	if !price.IsPositive() || len(candles) == 0 {
		return model.Signal{Type: model.SignalHold, Reason: "no data"}
	}

	if g.anyLotAboveTarget(price, g.cfg.ProfitTarget) {
		return model.Signal{
			Type:   model.SignalSell,
			Reason: fmt.Sprintf("lot cleared %s profit target", g.cfg.ProfitTarget),
		}
	}

	if len(g.lots) >= g.cfg.MaxGridLevels {
		return model.Signal{Type: model.SignalHold, Reason: "all grid levels open"}
	}

	recentHigh := decimal.Zero
	for _, c := range candles {
		if c.High.GreaterThan(recentHigh) {
			recentHigh = c.High
		}
	}
	if !recentHigh.IsPositive() {
		return model.Signal{Type: model.SignalHold, Reason: "no recent high"}
	}

	drop := recentHigh.Sub(price).Div(recentHigh)
	if drop.LessThan(g.cfg.DropThreshold) {
		return model.Signal{Type: model.SignalHold, Reason: "drop below threshold"}
	}

	// Ladder check: the next level must sit a full threshold below the
	// cheapest open entry.
	if low := g.lowestEntry(); low.IsPositive() {
		spacing := low.Sub(price).Div(low)
		if spacing.LessThan(g.cfg.DropThreshold) {
			return model.Signal{Type: model.SignalHold, Reason: "level already open near price"}
		}
	}

	return model.Signal{
		Type:   model.SignalBuy,
		Reason: fmt.Sprintf("%s drop from recent high %s", drop.Round(6), recentHigh),
	}
}

func (g *grid) CalculatePositionSize(cash decimal.Decimal, _ model.Signal, price decimal.Decimal) decimal.Decimal {
	return sizeFromCash(g.cfg, len(g.lots), cash, price)
}
